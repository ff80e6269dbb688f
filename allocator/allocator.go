package allocator

import (
	"strconv"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/memsim/memutils"
)

// MemorySize is the size in bytes of the address space every allocator manages. Chunks
// must lie within [0, MemorySize).
const MemorySize int = 1 << 20

// MemoryChunk is an allocated address range [Offset, Offset+Size). Chunks handed out by the
// same allocator instance never overlap.
type MemoryChunk struct {
	Offset int
	Size   int
}

// End returns the first byte past the chunk
func (c MemoryChunk) End() int {
	return c.Offset + c.Size
}

// Overlaps returns true if the two chunks share at least one byte
func (c MemoryChunk) Overlaps(other MemoryChunk) bool {
	return c.Offset < other.End() && other.Offset < c.End()
}

// Validate returns an error if the chunk does not lie within the address space
func (c MemoryChunk) Validate() error {
	if c.Offset < 0 {
		return errors.Errorf("%s: offset is negative", c)
	}
	if c.Offset >= MemorySize {
		return errors.Errorf("%s: offset is not less than the available memory size (%d)", c, MemorySize)
	}
	if c.Size < 0 {
		return errors.Errorf("%s: size is negative", c)
	}
	if c.End() > MemorySize {
		return errors.Errorf("%s: offset+size is greater than the available memory size (%d)", c, MemorySize)
	}

	return nil
}

// String formats the chunk as a half-open range, [Offset,End)
func (c MemoryChunk) String() string {
	return "[" + strconv.Itoa(c.Offset) + "," + strconv.Itoa(c.End()) + ")"
}

// StepCounter accumulates units of algorithmic work (list steps, comparisons, tree descents,
// splits and merges) so allocators can be compared without timing noise. A nil StepCounter
// discards everything added to it.
type StepCounter struct {
	total int
}

// Add charges steps units of work
func (c *StepCounter) Add(steps int) {
	if c != nil {
		c.total += steps
	}
}

// Inc charges a single unit of work
func (c *StepCounter) Inc() {
	if c != nil {
		c.total++
	}
}

// Steps returns the work charged since the last Reset
func (c *StepCounter) Steps() int {
	if c == nil {
		return 0
	}
	return c.total
}

// Reset sets the counter back to 0
func (c *StepCounter) Reset() {
	if c != nil {
		c.total = 0
	}
}

//go:generate mockgen -source allocator.go -destination ./mocks/allocator.go -package mock_allocator

// Allocator is a memory allocation strategy over an address space of MemorySize bytes. It
// is responsible both for allocating new chunks and for freeing previously allocated ones.
type Allocator interface {
	// Allocate reserves a chunk of exactly numBytes bytes. It returns an error wrapping
	// memutils.ErrInvalidRequest if numBytes is not positive, and one wrapping
	// memutils.ErrOutOfMemory if no free region can hold the request.
	Allocate(numBytes int, steps *StepCounter) (MemoryChunk, error)
	// Free returns a chunk previously produced by Allocate on this same instance. Any other
	// chunk, including one that was already freed, produces an error wrapping
	// memutils.ErrForeignChunk.
	Free(chunk MemoryChunk, steps *StepCounter) error

	// InternalFragmentationBytes is the number of bytes reserved inside live chunks beyond what
	// was requested
	InternalFragmentationBytes() int
	// ExternalFragmentationBytes is the total size of free regions strictly smaller than
	// thresholdBytes
	ExternalFragmentationBytes(thresholdBytes int) int
	// OccupiedMemoryBytes is the sum of live chunk sizes plus internal fragmentation
	OccupiedMemoryBytes() int
	// AllocationCount is the number of live chunks
	AllocationCount() int

	// CreateNew builds an empty allocator with the same Config
	CreateNew() Allocator
	// Config returns the configuration this allocator was built from
	Config() Config
	// String returns the display name, which is derived from Config
	String() string

	// Validate performs internal consistency checks. They may be expensive.
	Validate() error
	// AddDetailedStatistics sums this allocator's live and free regions into stats
	AddDetailedStatistics(stats *memutils.DetailedStatistics)
	// WriteJSON populates a json object with information about the address space
	WriteJSON(json *jwriter.ObjectState)
}

func writeJSONHeader(json *jwriter.ObjectState, a Allocator) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	a.AddDetailedStatistics(&stats)

	json.Name("Name").String(a.String())
	json.Name("TotalBytes").Int(MemorySize)
	json.Name("OccupiedBytes").Int(a.OccupiedMemoryBytes())
	json.Name("InternalFragmentationBytes").Int(a.InternalFragmentationBytes())

	statsObj := json.Name("Statistics").Object()
	stats.WriteJSON(&statsObj)
	statsObj.End()
}
