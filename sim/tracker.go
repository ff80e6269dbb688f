package sim

import (
	"context"
	"fmt"

	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/memsim/allocator"
	"github.com/vkngwrapper/memsim/memutils"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// Tracker wraps a single allocator and follows along with the operations a State issues. It
// keeps the chunks the allocator handed out in allocation order, so that the chunk at a given
// index is the same logical allocation in every tracker, and records cost and fragmentation
// metrics for each run.
//
// A Tracker whose allocator fails is faulted for the remainder of the run and ignores further
// operations. EndRun clears the fault and replaces the allocator with a fresh one.
type Tracker struct {
	logger    *slog.Logger
	allocator allocator.Allocator
	options   Options

	fault         *Fault
	faultMessages *swiss.Map[string, int]
	faultOrder    []string

	thisRun             memutils.MetricSet
	allTime             memutils.MetricSet
	faultedAtByteCount  memutils.Metric
	faultedAtAllocation memutils.Metric

	currentlyAllocatedBytes int
	chunks                  []allocator.MemoryChunk
	steps                   allocator.StepCounter
	runCount                int
}

// NewTracker wraps alloc, which should be empty. A nil logger uses slog.Default.
func NewTracker(logger *slog.Logger, alloc allocator.Allocator, options Options) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracker{
		logger:    logger.With(slog.String("allocator", alloc.String())),
		allocator: alloc,
		options:   options.withDefaults(),

		faultMessages: swiss.NewMap[string, int](8),

		thisRun:             memutils.NewMetricSet(),
		allTime:             memutils.NewMetricSet(),
		faultedAtByteCount:  memutils.NewMetric(false),
		faultedAtAllocation: memutils.NewMetric(false),
	}
}

func (t *Tracker) recordFault(message string, err error) *Fault {
	t.fault = &Fault{
		Allocator: t.allocator.String(),
		Message:   message,
		Err:       err,
		Bytes:     t.currentlyAllocatedBytes,
		Chunks:    len(t.chunks),
	}

	t.faultedAtByteCount.Include(float64(t.currentlyAllocatedBytes))
	t.faultedAtAllocation.Include(float64(len(t.chunks)))

	count, seen := t.faultMessages.Get(message)
	if !seen {
		t.faultOrder = append(t.faultOrder, message)
	}
	t.faultMessages.Put(message, count+1)

	t.logger.LogAttrs(context.Background(), slog.LevelDebug, "allocator faulted",
		slog.String("message", message),
		slog.Int("bytes", t.fault.Bytes),
		slog.Int("chunks", t.fault.Chunks),
	)

	return t.fault
}

func (t *Tracker) updateFragmentation(occupied, internal, external int) {
	t.thisRun.InternalFragmentation.Include(float64(internal) / float64(occupied))

	theoreticalFree := t.TheoreticalFreeBytes()
	if theoreticalFree > 0 {
		t.thisRun.ExternalFragmentation.Include(float64(external) / float64(theoreticalFree))
	} else {
		t.thisRun.ExternalFragmentation.Include(0)
	}
}

// Allocate requests numBytes from the allocator. If the allocator fails, returns a chunk
// that is out of range or of the wrong size, or reports statistics outside their bounds
// afterward, the tracker faults and the Fault is returned. Faulted trackers do nothing and
// return nil.
func (t *Tracker) Allocate(numBytes int) *Fault {
	if t.fault != nil {
		return nil
	}

	t.steps.Reset()
	chunk, err := t.allocator.Allocate(numBytes, &t.steps)
	if err != nil {
		return t.recordFault(err.Error(), err)
	}

	err = chunk.Validate()
	if err != nil {
		return t.recordFault(fmt.Sprintf("%s returned an invalid chunk: %s", t.allocator, err), err)
	}
	if chunk.Size != numBytes {
		return t.recordFault(fmt.Sprintf("%s returned %s for a request of %d bytes", t.allocator, chunk, numBytes), nil)
	}

	// The chunk only counts as live once the allocator's bookkeeping checks out
	live := t.currentlyAllocatedBytes + chunk.Size
	occupied := t.allocator.OccupiedMemoryBytes()
	if occupied < live {
		return t.recordFault(fmt.Sprintf("%s reports %d occupied bytes, but %d bytes are live", t.allocator, occupied, live), nil)
	}

	internal := t.allocator.InternalFragmentationBytes()
	if internal < 0 || internal >= occupied {
		return t.recordFault(fmt.Sprintf("%s reports %d bytes of internal fragmentation out of %d occupied bytes", t.allocator, internal, occupied), nil)
	}

	external := t.allocator.ExternalFragmentationBytes(t.options.ExternalFragmentationThreshold)
	if external < 0 {
		return t.recordFault(fmt.Sprintf("%s reports %d bytes of external fragmentation", t.allocator, external), nil)
	}

	t.currentlyAllocatedBytes = live
	t.chunks = append(t.chunks, chunk)
	t.thisRun.AllocationCost.Include(float64(t.steps.Steps()))

	t.updateFragmentation(occupied, internal, external)
	return nil
}

// Free releases the chunk at index and returns its size. Later chunks move down one index.
// If the allocator fails to free it, the tracker faults and 0 is returned with the Fault.
// Faulted trackers do nothing and return 0. An index outside the live chunk list is an
// integrity violation.
func (t *Tracker) Free(index int) (int, *Fault, error) {
	if t.fault != nil {
		return 0, nil, nil
	}

	if index < 0 || index >= len(t.chunks) {
		return 0, nil, integrityViolationf("%s was asked to free chunk %d, but holds %d chunks", t.allocator, index, len(t.chunks))
	}

	chunk := t.chunks[index]
	t.chunks = slices.Delete(t.chunks, index, index+1)
	t.currentlyAllocatedBytes -= chunk.Size

	t.steps.Reset()
	err := t.allocator.Free(chunk, &t.steps)
	if err != nil {
		return 0, t.recordFault(fmt.Sprintf("%s could not free %s: %s", t.allocator, chunk, err), err), nil
	}

	t.thisRun.FreeCost.Include(float64(t.steps.Steps()))
	return chunk.Size, nil, nil
}

// VerifyIntegrity checks that the tracker holds expectedCount chunks, that none of them
// overlap, and that the allocator agrees with the tracker and passes its own self-check.
// Faulted trackers are not checked.
func (t *Tracker) VerifyIntegrity(expectedCount int) error {
	if t.fault != nil {
		return nil
	}

	if len(t.chunks) != expectedCount {
		return integrityViolationf("%s holds %d chunks, but %d are live", t.allocator, len(t.chunks), expectedCount)
	}

	allocCount := t.allocator.AllocationCount()
	if allocCount != len(t.chunks) {
		return integrityViolationf("%s reports %d allocations, but %d chunks are live", t.allocator, allocCount, len(t.chunks))
	}

	for i := 0; i+1 < len(t.chunks); i++ {
		for j := i + 1; j < len(t.chunks); j++ {
			if t.chunks[i].Overlaps(t.chunks[j]) {
				return integrityViolationf("%s handed out overlapping chunks %s and %s", t.allocator, t.chunks[i], t.chunks[j])
			}
		}
	}

	err := t.allocator.Validate()
	if err != nil {
		return wrapIntegrityViolation(err, "%s failed validation", t.allocator)
	}

	return nil
}

// EndRun folds this run's metrics into the all-time metrics, unless the tracker faulted,
// then discards all live chunks and swaps in an empty allocator with the same Config. A
// replacement that differs from the previous allocator or isn't empty is an integrity violation.
func (t *Tracker) EndRun() error {
	t.runCount++
	if t.fault == nil {
		t.allTime.Merge(&t.thisRun)
	}
	t.thisRun = memutils.NewMetricSet()

	t.currentlyAllocatedBytes = 0
	t.fault = nil
	t.chunks = t.chunks[:0]

	oldConfig := t.allocator.Config()
	oldName := t.allocator.String()
	t.allocator = t.allocator.CreateNew()

	t.logger.LogAttrs(context.Background(), slog.LevelDebug, "run ended", slog.Int("runs", t.runCount))

	if t.allocator.Config() != oldConfig {
		return integrityViolationf("fresh allocator is not equal to the previous allocator: %s != %s", t.allocator.Config(), oldConfig)
	}
	if t.allocator.String() != oldName {
		return integrityViolationf("fresh allocator is not equal to the previous allocator: %s != %s", t.allocator, oldName)
	}
	if occupied := t.allocator.OccupiedMemoryBytes(); occupied != 0 {
		return integrityViolationf("fresh allocator %s has %d occupied bytes", t.allocator, occupied)
	}

	return nil
}

// Name returns the display name of the tracked allocator
func (t *Tracker) Name() string { return t.allocator.String() }

// Allocator returns the allocator currently in use
func (t *Tracker) Allocator() allocator.Allocator { return t.allocator }

// HasFaulted returns true if the allocator faulted during the current run
func (t *Tracker) HasFaulted() bool { return t.fault != nil }

// Fault returns the fault recorded during the current run, or nil
func (t *Tracker) Fault() *Fault { return t.fault }

// ChunkCount is the number of live chunks the tracker holds
func (t *Tracker) ChunkCount() int { return len(t.chunks) }

// Chunk returns the live chunk at index
func (t *Tracker) Chunk(index int) allocator.MemoryChunk { return t.chunks[index] }

// CurrentlyAllocatedBytes is the sum of live chunk sizes
func (t *Tracker) CurrentlyAllocatedBytes() int { return t.currentlyAllocatedBytes }

// RunCount is the number of completed runs
func (t *Tracker) RunCount() int { return t.runCount }

// AllocationCost is the all-time step cost of successful allocations
func (t *Tracker) AllocationCost() memutils.Metric { return t.allTime.AllocationCost }

// FreeCost is the all-time step cost of successful frees
func (t *Tracker) FreeCost() memutils.Metric { return t.allTime.FreeCost }

// TotalCost combines AllocationCost and FreeCost
func (t *Tracker) TotalCost() memutils.Metric {
	total, err := memutils.Combine(&t.allTime.AllocationCost, &t.allTime.FreeCost)
	if err != nil {
		// Both cost metrics are created as plain counts in NewMetricSet
		panic(err)
	}
	return total
}

// InternalFragmentation is the all-time share of occupied memory lost to rounding
func (t *Tracker) InternalFragmentation() memutils.Metric { return t.allTime.InternalFragmentation }

// ExternalFragmentation is the all-time share of free memory in regions below the threshold
func (t *Tracker) ExternalFragmentation() memutils.Metric { return t.allTime.ExternalFragmentation }

// FaultCount is the number of runs in which the allocator faulted
func (t *Tracker) FaultCount() int { return t.faultedAtByteCount.Count() }

// FaultedAtByteCount records how many bytes were live each time the allocator faulted
func (t *Tracker) FaultedAtByteCount() memutils.Metric { return t.faultedAtByteCount }

// FaultedAtAllocation records how many chunks were live each time the allocator faulted
func (t *Tracker) FaultedAtAllocation() memutils.Metric { return t.faultedAtAllocation }

// FaultMessages returns every distinct fault message in the order it was first recorded
func (t *Tracker) FaultMessages() []FaultMessage {
	messages := make([]FaultMessage, 0, len(t.faultOrder))
	for _, message := range t.faultOrder {
		count, _ := t.faultMessages.Get(message)
		messages = append(messages, FaultMessage{Message: message, Count: count})
	}
	return messages
}

// RepresentativeFault returns the most frequently recorded fault message. Ties go to the
// earliest message. Returns false if the allocator never faulted.
func (t *Tracker) RepresentativeFault() (FaultMessage, bool) {
	var best FaultMessage
	found := false

	for _, message := range t.FaultMessages() {
		if !found || message.Count > best.Count {
			best = message
			found = true
		}
	}

	return best, found
}

// TheoreticalFreeBytes is the number of bytes that would be free with no overhead at all
func (t *Tracker) TheoreticalFreeBytes() int {
	return allocator.MemorySize - t.currentlyAllocatedBytes
}

// RemainingFreeBytes is the number of bytes still usable for requests of allocationBytes
// once internal and external fragmentation are subtracted
func (t *Tracker) RemainingFreeBytes(allocationBytes int) int {
	return t.TheoreticalFreeBytes() - t.allocator.InternalFragmentationBytes() - t.allocator.ExternalFragmentationBytes(allocationBytes)
}
