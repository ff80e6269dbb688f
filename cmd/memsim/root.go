package main

import (
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vkngwrapper/memsim/allocator"
	"github.com/vkngwrapper/memsim/sim"
	"golang.org/x/exp/slog"
)

// Config is everything the command can be told, from flags, MEMSIM_* environment variables
// or a config file, in that order of precedence
type Config struct {
	Runs       int   `mapstructure:"runs"`
	Operations int   `mapstructure:"ops"`
	Seed       int64 `mapstructure:"seed"`

	Reference  bool `mapstructure:"reference"`
	AutoVerify bool `mapstructure:"auto_verify"`
	Threshold  int  `mapstructure:"threshold"`

	JSON    bool `mapstructure:"json"`
	Verbose bool `mapstructure:"verbose"`
}

var defaultConfig = Config{
	Runs:       1000,
	Operations: 10000,
	Threshold:  sim.DefaultExternalFragmentationThreshold,
}

func (c Config) Validate() error {
	if c.Runs < 1 {
		return errors.Newf("runs must be positive, got %d", c.Runs)
	}
	if c.Operations < 1 {
		return errors.Newf("ops must be positive, got %d", c.Operations)
	}
	if c.Threshold < 1 {
		return errors.Newf("threshold must be positive, got %d", c.Threshold)
	}
	return nil
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "memsim",
		Short: "Compare memory allocation strategies",
		Long: `memsim drives several allocators through the same random workload of
allocations and frees over a 1 MiB address space, then reports how often each
one failed, what its operations cost in algorithmic steps, and how badly it
fragmented memory.

Example:
  memsim
  memsim --runs 100 --ops 5000 --seed 42
  memsim --reference --auto-verify --json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(v)
			if err != nil {
				return err
			}
			return run(cmd, config)
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "Configuration file path")
	flags.Int("runs", defaultConfig.Runs, "Number of runs")
	flags.Int("ops", defaultConfig.Operations, "Workload steps per run")
	flags.Int64("seed", 0, "Random seed, 0 picks one from the clock")
	flags.Bool("reference", false, "Also simulate the stack and null reference allocators")
	flags.Bool("auto-verify", false, "Check every allocator for overlapping chunks after each operation")
	flags.Int("threshold", defaultConfig.Threshold, "Free regions smaller than this many bytes count as externally fragmented")
	flags.Bool("json", false, "Output in JSON format")
	flags.BoolP("verbose", "v", false, "Enable debug logging")

	_ = v.BindPFlag("config", flags.Lookup("config"))
	_ = v.BindPFlag("runs", flags.Lookup("runs"))
	_ = v.BindPFlag("ops", flags.Lookup("ops"))
	_ = v.BindPFlag("seed", flags.Lookup("seed"))
	_ = v.BindPFlag("reference", flags.Lookup("reference"))
	_ = v.BindPFlag("auto_verify", flags.Lookup("auto-verify"))
	_ = v.BindPFlag("threshold", flags.Lookup("threshold"))
	_ = v.BindPFlag("json", flags.Lookup("json"))
	_ = v.BindPFlag("verbose", flags.Lookup("verbose"))

	v.SetEnvPrefix("memsim")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

func loadConfig(v *viper.Viper) (Config, error) {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		err := v.ReadInConfig()
		if err != nil {
			return Config{}, errors.Wrapf(err, "failed to load config %s", path)
		}
	}

	config := defaultConfig
	err := v.Unmarshal(&config)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal config")
	}

	return config, config.Validate()
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func run(cmd *cobra.Command, config Config) error {
	logger := newLogger(cmd.ErrOrStderr(), config.Verbose)

	configs := allocator.DefaultConfigs()
	if config.Reference {
		configs = append(configs, allocator.ReferenceConfigs()...)
	}

	state, err := sim.NewFromConfigs(logger, configs, sim.Options{
		AutoVerify:                     config.AutoVerify,
		ExternalFragmentationThreshold: config.Threshold,
	})
	if err != nil {
		return err
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	logger.Info("starting simulation",
		slog.Int("allocators", len(configs)),
		slog.Int("runs", config.Runs),
		slog.Int("ops", config.Operations),
		slog.Int64("seed", seed),
	)

	simErr := sim.RunWorkload(cmd.Context(), state, rand.New(rand.NewSource(seed)), sim.WorkloadOptions{
		Runs:             config.Runs,
		OperationsPerRun: config.Operations,
	})
	if simErr != nil {
		logger.Error("simulation stopped", slog.Any("error", simErr))
	}

	// Whatever was recorded before a failure is still worth reporting
	out := cmd.OutOrStdout()
	if config.JSON {
		writer := jwriter.NewWriter()
		state.WriteJSON(&writer)
		if err := writer.Error(); err != nil {
			return errors.CombineErrors(simErr, err)
		}
		_, err = fmt.Fprintln(out, string(writer.Bytes()))
	} else {
		_, err = fmt.Fprint(out, state.String())
	}

	return errors.CombineErrors(simErr, err)
}
