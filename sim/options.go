package sim

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/memsim/allocator"
)

const (
	// DefaultExternalFragmentationThreshold is the value used for Options.ExternalFragmentationThreshold
	// when none is provided. Free regions smaller than this count as externally fragmented.
	DefaultExternalFragmentationThreshold int = 65536
)

// Options contains optional settings when creating a State
type Options struct {
	// AutoVerify runs State.VerifyIntegrity after construction and after every operation. It
	// is expensive, since every tracker's live chunks are compared pairwise.
	AutoVerify bool
	// ExternalFragmentationThreshold is the request size external fragmentation is measured
	// against. If left at 0, DefaultExternalFragmentationThreshold is used.
	ExternalFragmentationThreshold int
}

func (o Options) withDefaults() Options {
	if o.ExternalFragmentationThreshold == 0 {
		o.ExternalFragmentationThreshold = DefaultExternalFragmentationThreshold
	}
	return o
}

// WorkloadOptions contains optional settings for RunWorkload. Zero fields use the defaults
// documented on each field, and negative fields are rejected.
type WorkloadOptions struct {
	// Runs is the number of runs to perform. Defaults to 1000.
	Runs int
	// OperationsPerRun is the number of workload steps in each run. Each step may allocate,
	// free, or both. Defaults to 10000.
	OperationsPerRun int
	// ForcedAllocationThreshold is the number of live bytes below which a step always
	// allocates. Defaults to allocator.MemorySize/10.
	ForcedAllocationThreshold int
	// AllocateUpTo is the number of live bytes at or above which a step always frees and
	// never allocates. Defaults to allocator.MemorySize/5.
	AllocateUpTo int
	// MaxRequestFactor bounds request sizes. Each request is the product of two independent
	// uniform draws from [0, MaxRequestFactor). Defaults to 256.
	MaxRequestFactor int
	// ProgressInterval is the number of runs between progress log lines. Defaults to one
	// twentieth of Runs.
	ProgressInterval int
}

func (o WorkloadOptions) withDefaults() WorkloadOptions {
	if o.Runs == 0 {
		o.Runs = 1000
	}
	if o.OperationsPerRun == 0 {
		o.OperationsPerRun = 10000
	}
	if o.ForcedAllocationThreshold == 0 {
		o.ForcedAllocationThreshold = allocator.MemorySize / 10
	}
	if o.AllocateUpTo == 0 {
		o.AllocateUpTo = allocator.MemorySize / 5
	}
	if o.MaxRequestFactor == 0 {
		o.MaxRequestFactor = 256
	}
	if o.ProgressInterval == 0 {
		o.ProgressInterval = o.Runs / 20
		if o.ProgressInterval < 1 {
			o.ProgressInterval = 1
		}
	}
	return o
}

func (o WorkloadOptions) validate() error {
	if o.Runs < 0 {
		return errors.Newf("runs must not be negative, got %d", o.Runs)
	}
	if o.OperationsPerRun < 0 {
		return errors.Newf("operations per run must not be negative, got %d", o.OperationsPerRun)
	}
	if o.ForcedAllocationThreshold < 0 {
		return errors.Newf("forced allocation threshold must not be negative, got %d", o.ForcedAllocationThreshold)
	}
	if o.AllocateUpTo < 0 {
		return errors.Newf("allocation limit must not be negative, got %d", o.AllocateUpTo)
	}
	if o.MaxRequestFactor < 0 {
		return errors.Newf("max request factor must not be negative, got %d", o.MaxRequestFactor)
	}
	if o.ProgressInterval < 0 {
		return errors.Newf("progress interval must not be negative, got %d", o.ProgressInterval)
	}
	return nil
}
