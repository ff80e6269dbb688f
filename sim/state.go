package sim

import (
	"context"
	"math/rand"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/memsim/allocator"
	"github.com/vkngwrapper/memsim/memutils"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// State drives several allocators through the same workload. Every operation is forwarded to
// one Tracker per allocator, so each allocator sees the same sequence of requests in its own
// address space.
//
// Live allocations are addressed by index. Indices are dense and 0-based, and freeing index i
// moves every later allocation down by one, in the harness and in every tracker alike.
type State struct {
	logger   *slog.Logger
	options  Options
	trackers []*Tracker

	// live holds the size of every live allocation, indexed like the trackers' chunks
	live                    []int
	currentlyAllocatedBytes int
	mostBytesAllocated      int
	mostAllocatedChunks     int
	bytesPerAllocation      memutils.Metric
}

// New creates a State tracking each of the provided allocators. The allocators should be
// empty and must not be used by anything else afterward.
func New(logger *slog.Logger, allocators []allocator.Allocator, options Options) (*State, error) {
	if len(allocators) == 0 {
		return nil, errors.New("at least one allocator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	options = options.withDefaults()
	if options.ExternalFragmentationThreshold < 0 {
		return nil, errors.Newf("external fragmentation threshold must not be negative, got %d", options.ExternalFragmentationThreshold)
	}

	s := &State{
		logger:             logger,
		options:            options,
		trackers:           make([]*Tracker, 0, len(allocators)),
		bytesPerAllocation: memutils.NewMetric(false),
	}

	for _, alloc := range allocators {
		if alloc == nil {
			return nil, errors.New("allocators must not be nil")
		}
		s.trackers = append(s.trackers, NewTracker(logger, alloc, options))
	}

	if options.AutoVerify {
		err := s.VerifyIntegrity()
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

// NewFromConfigs builds one allocator per config and creates a State tracking them
func NewFromConfigs(logger *slog.Logger, configs []allocator.Config, options Options) (*State, error) {
	allocators := make([]allocator.Allocator, 0, len(configs))
	for _, config := range configs {
		alloc, err := allocator.New(config)
		if err != nil {
			return nil, errors.Wrap(err, "could not create allocator")
		}
		allocators = append(allocators, alloc)
	}

	return New(logger, allocators, options)
}

// AllFaulted returns true if every tracked allocator has faulted during the current run
func (s *State) AllFaulted() bool {
	for _, tracker := range s.trackers {
		if !tracker.HasFaulted() {
			return false
		}
	}
	return true
}

func (s *State) autoVerify() error {
	if !s.options.AutoVerify {
		return nil
	}
	return s.VerifyIntegrity()
}

// Allocate requests numBytes from every allocator. Requests of 0 bytes or fewer are ignored.
// Allocators that fail are faulted for the rest of the run. Returns ErrAllFaulted if every
// allocator had already faulted.
func (s *State) Allocate(numBytes int) error {
	if numBytes <= 0 {
		return nil
	}
	if s.AllFaulted() {
		return ErrAllFaulted
	}

	s.bytesPerAllocation.Include(float64(numBytes))

	for _, tracker := range s.trackers {
		tracker.Allocate(numBytes)
	}

	s.live = append(s.live, numBytes)
	s.currentlyAllocatedBytes += numBytes
	if len(s.live) > s.mostAllocatedChunks {
		s.mostAllocatedChunks = len(s.live)
	}
	if s.currentlyAllocatedBytes > s.mostBytesAllocated {
		s.mostBytesAllocated = s.currentlyAllocatedBytes
	}

	return s.autoVerify()
}

// Free releases the allocation at index from every allocator. Returns false if no allocator
// freed anything because all of them have faulted.
func (s *State) Free(index int) (bool, error) {
	if index < 0 || index >= len(s.live) {
		return false, integrityViolationf("cannot free allocation %d, only %d are live", index, len(s.live))
	}

	size := s.live[index]
	freed := false

	for _, tracker := range s.trackers {
		trackerSize, _, err := tracker.Free(index)
		if err != nil {
			return false, err
		}

		if trackerSize == 0 {
			continue
		}
		if trackerSize != size {
			return false, integrityViolationf("%s freed %d bytes at index %d, but the allocation was %d bytes", tracker.Name(), trackerSize, index, size)
		}
		freed = true
	}

	s.live = slices.Delete(s.live, index, index+1)
	s.currentlyAllocatedBytes -= size

	return freed, s.autoVerify()
}

// FreeRandom frees a uniformly chosen live allocation. It does nothing if nothing is live.
func (s *State) FreeRandom(rng *rand.Rand) error {
	if len(s.live) == 0 {
		return nil
	}

	_, err := s.Free(rng.Intn(len(s.live)))
	return err
}

// VerifyIntegrity checks the harness counters, then checks every tracker that hasn't faulted.
// It can be expensive.
func (s *State) VerifyIntegrity() error {
	if s.currentlyAllocatedBytes < 0 {
		return integrityViolationf("memory released to negative total: %d", s.currentlyAllocatedBytes)
	}
	if len(s.live) == 0 && s.currentlyAllocatedBytes != 0 {
		return integrityViolationf("all chunks released, but total is not 0: %d", s.currentlyAllocatedBytes)
	}
	if s.currentlyAllocatedBytes > allocator.MemorySize {
		return integrityViolationf("total allocated memory %d exceeds the address space", s.currentlyAllocatedBytes)
	}

	var sum int
	for _, size := range s.live {
		sum += size
	}
	if sum != s.currentlyAllocatedBytes {
		return integrityViolationf("live allocations add up to %d bytes, but the total is %d", sum, s.currentlyAllocatedBytes)
	}

	for _, tracker := range s.trackers {
		err := tracker.VerifyIntegrity(len(s.live))
		if err != nil {
			return err
		}
	}

	return nil
}

// EndRun discards every live allocation and resets all trackers for the next run. High-water
// marks and the bytes-per-allocation metric are kept.
func (s *State) EndRun() error {
	s.live = s.live[:0]
	s.currentlyAllocatedBytes = 0

	var err error
	for _, tracker := range s.trackers {
		err = errors.CombineErrors(err, tracker.EndRun())
	}

	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "run ended",
		slog.Int("mostChunks", s.mostAllocatedChunks),
		slog.Int("mostBytes", s.mostBytesAllocated),
	)

	return err
}

// Trackers returns the tracker of every allocator, in the order the allocators were provided
func (s *State) Trackers() []*Tracker { return s.trackers }

// Options returns the options with defaults applied
func (s *State) Options() Options { return s.options }

// CurrentlyAllocatedBytes is the sum of all live request sizes
func (s *State) CurrentlyAllocatedBytes() int { return s.currentlyAllocatedBytes }

// LiveAllocationCount is the number of live allocations
func (s *State) LiveAllocationCount() int { return len(s.live) }

// LiveAllocationSize returns the requested size of the live allocation at index
func (s *State) LiveAllocationSize(index int) int { return s.live[index] }

// MostBytesSimultaneouslyAllocated is the high-water mark of live bytes across all runs
func (s *State) MostBytesSimultaneouslyAllocated() int { return s.mostBytesAllocated }

// MostSimultaneouslyAllocatedChunks is the high-water mark of live allocations across all runs
func (s *State) MostSimultaneouslyAllocatedChunks() int { return s.mostAllocatedChunks }

// LiveStatistics sums the live and free regions of every allocator that is currently in use
func (s *State) LiveStatistics() memutils.DetailedStatistics {
	var total memutils.DetailedStatistics
	total.Clear()

	for _, tracker := range s.trackers {
		var stats memutils.DetailedStatistics
		stats.Clear()
		tracker.Allocator().AddDetailedStatistics(&stats)
		total.AddDetailedStatistics(&stats)
	}

	return total
}

// BytesPerAllocation records the size of every request
func (s *State) BytesPerAllocation() memutils.Metric { return s.bytesPerAllocation }
