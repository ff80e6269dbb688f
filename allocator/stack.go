package allocator

import (
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/memsim/memutils"
)

// Stack is a bump allocator. Every allocation is placed at the end of the previous one and
// freed chunks are never reused, so it bounds how badly an allocator can fragment. Freeing
// only lowers the occupied total.
type Stack struct {
	offset    int
	allocated int
	live      *swiss.Map[int, int]
}

var _ Allocator = &Stack{}

// NewStack creates an empty Stack allocator
func NewStack() *Stack {
	return &Stack{
		live: swiss.NewMap[int, int](42),
	}
}

func (s *Stack) Config() Config { return StackConfig() }

func (s *Stack) String() string { return s.Config().String() }

func (s *Stack) CreateNew() Allocator { return NewStack() }

func (s *Stack) AllocationCount() int { return s.live.Count() }

func (s *Stack) OccupiedMemoryBytes() int { return s.allocated }

func (s *Stack) InternalFragmentationBytes() int { return 0 }

// ExternalFragmentationBytes counts everything below the high-water offset that is no longer
// live, since it will never be handed out again, plus the untouched tail when it is too small
// for thresholdBytes.
func (s *Stack) ExternalFragmentationBytes(thresholdBytes int) int {
	total := s.offset - s.allocated
	if MemorySize-s.offset < thresholdBytes {
		total += MemorySize - s.offset
	}
	return total
}

func (s *Stack) Allocate(numBytes int, steps *StepCounter) (MemoryChunk, error) {
	if numBytes < 1 {
		return MemoryChunk{}, errors.Wrapf(memutils.ErrInvalidRequest, "%s received a request for %d bytes", s, numBytes)
	}
	if s.offset+numBytes > MemorySize {
		return MemoryChunk{}, errors.Wrapf(memutils.ErrOutOfMemory, "%s has %d untouched bytes, %d were requested", s, MemorySize-s.offset, numBytes)
	}

	chunk := MemoryChunk{Offset: s.offset, Size: numBytes}
	s.offset += numBytes
	s.allocated += numBytes
	s.live.Put(chunk.Offset, chunk.Size)
	steps.Inc()

	return chunk, nil
}

func (s *Stack) Free(chunk MemoryChunk, steps *StepCounter) error {
	size, ok := s.live.Get(chunk.Offset)
	if !ok || size != chunk.Size {
		return errors.Wrapf(memutils.ErrForeignChunk, "%s has no live chunk %s", s, chunk)
	}

	s.live.Delete(chunk.Offset)
	s.allocated -= size
	steps.Inc()

	return nil
}

func (s *Stack) Validate() error {
	if s.offset < 0 || s.offset > MemorySize {
		return errors.Errorf("the stack offset %d is outside the address space", s.offset)
	}

	var sum int
	var err error
	s.live.Iter(func(offset int, size int) bool {
		if offset+size > s.offset {
			err = errors.Errorf("live chunk %s extends past the stack offset %d", MemoryChunk{Offset: offset, Size: size}, s.offset)
			return true
		}
		sum += size
		return false
	})
	if err != nil {
		return err
	}

	if sum != s.allocated {
		return errors.Errorf("the allocated size is %d, but the live chunks add up to %d", s.allocated, sum)
	}

	return nil
}

func (s *Stack) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.CapacityBytes += MemorySize

	s.live.Iter(func(_ int, size int) bool {
		stats.AddAllocation(size, size)
		return false
	})

	if s.offset < MemorySize {
		stats.AddUnusedRange(MemorySize - s.offset)
	}
}

func (s *Stack) WriteJSON(json *jwriter.ObjectState) {
	writeJSONHeader(json, s)

	json.Name("Offset").Int(s.offset)
	json.Name("AbandonedBytes").Int(s.offset - s.allocated)
}
