package sim

import (
	"context"
	"math"
	"math/rand"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// RunWorkload drives state through options.Runs runs of random allocations and frees. Below
// ForcedAllocationThreshold live bytes every step allocates, at or above AllocateUpTo every
// step frees, and in between each happens with even odds.
//
// A run in which every allocator faults ends early and the next run starts. Any other error,
// which is always an integrity violation, stops the workload and is returned. ctx is checked
// between runs. Options with negative fields are rejected before the first run.
func RunWorkload(ctx context.Context, state *State, rng *rand.Rand, options WorkloadOptions) error {
	err := options.validate()
	if err != nil {
		return err
	}
	options = options.withDefaults()
	logger := state.logger

	for run := 0; run < options.Runs; run++ {
		err = ctx.Err()
		if err != nil {
			return err
		}

		err = runOnce(state, rng, options)
		if errors.Is(err, ErrAllFaulted) {
			logger.LogAttrs(ctx, slog.LevelWarn, "run ended early",
				slog.Int("run", run),
				slog.String("reason", err.Error()),
			)
		} else if err != nil {
			return errors.Wrapf(err, "run %d", run)
		}

		err = state.EndRun()
		if err != nil {
			return errors.Wrapf(err, "run %d", run)
		}

		if run%options.ProgressInterval == 0 {
			logger.LogAttrs(ctx, slog.LevelInfo, "progress",
				slog.Int("run", run),
				slog.Int("runs", options.Runs),
				slog.Float64("percent", math.Round(float64(run)/float64(options.Runs)*100)),
			)
		}
	}

	return nil
}

func runOnce(state *State, rng *rand.Rand, options WorkloadOptions) error {
	for op := 0; op < options.OperationsPerRun; op++ {
		allocated := state.CurrentlyAllocatedBytes()

		if allocated < options.ForcedAllocationThreshold || (rng.Intn(2) == 1 && allocated < options.AllocateUpTo) {
			err := state.Allocate(rng.Intn(options.MaxRequestFactor) * rng.Intn(options.MaxRequestFactor))
			if err != nil {
				return err
			}
		}

		if allocated >= options.AllocateUpTo || (rng.Intn(2) == 1 && allocated > options.ForcedAllocationThreshold) {
			err := state.FreeRandom(rng)
			if err != nil {
				return err
			}
		}
	}

	return nil
}
