package allocator

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/memsim/memutils"
)

// Null never allocates anything. It is a control for checking that a faulted allocator does
// not disturb the others.
type Null struct{}

var _ Allocator = Null{}

// NewNull returns a Null allocator
func NewNull() Null { return Null{} }

func (n Null) Config() Config { return NullConfig() }

func (n Null) String() string { return n.Config().String() }

func (n Null) CreateNew() Allocator { return Null{} }

func (n Null) AllocationCount() int { return 0 }

func (n Null) OccupiedMemoryBytes() int { return 0 }

func (n Null) InternalFragmentationBytes() int { return 0 }

func (n Null) ExternalFragmentationBytes(thresholdBytes int) int { return 0 }

func (n Null) Allocate(numBytes int, steps *StepCounter) (MemoryChunk, error) {
	if numBytes < 1 {
		return MemoryChunk{}, errors.Wrapf(memutils.ErrInvalidRequest, "%s received a request for %d bytes", n, numBytes)
	}
	return MemoryChunk{}, errors.Wrapf(memutils.ErrOutOfMemory, "%s cannot allocate %d bytes", n, numBytes)
}

func (n Null) Free(chunk MemoryChunk, steps *StepCounter) error {
	return errors.Wrapf(memutils.ErrForeignChunk, "%s never allocated %s", n, chunk)
}

func (n Null) Validate() error { return nil }

func (n Null) AddDetailedStatistics(stats *memutils.DetailedStatistics) {}

func (n Null) WriteJSON(json *jwriter.ObjectState) {
	writeJSONHeader(json, n)
}
