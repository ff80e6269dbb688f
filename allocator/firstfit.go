package allocator

import (
	"fmt"
	"sync"

	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/memsim/memutils"
)

var blockAllocator = sync.Pool{
	New: func() any {
		return &fitBlock{}
	},
}

// fitBlock is one region of a FirstFit address space, either free or backing a live chunk.
// All blocks form a chain in address order that covers [0, MemorySize) without gaps.
type fitBlock struct {
	offset    int
	size      int
	requested int
	taken     bool

	prevPhysical *fitBlock
	nextPhysical *fitBlock
}

func (b *fitBlock) MarkFree() {
	b.taken = false
	b.requested = 0
}

func (b *fitBlock) MarkTaken(requested int) {
	b.taken = true
	b.requested = requested
}

func (b *fitBlock) IsFree() bool {
	return !b.taken
}

// FirstFit is a free-list allocator. Requests are rounded up by a Quantization and served
// from the first suitable free region according to an Ordering; the rest of that region
// stays free. Freed regions are merged with free neighbors immediately, so no two free
// regions are ever adjacent.
type FirstFit struct {
	config Config

	firstBlock *fitBlock
	taken      *swiss.Map[int, *fitBlock]
	free       freeIndex

	allocCount     int
	occupiedBytes  int
	requestedBytes int
}

var _ Allocator = &FirstFit{}

// NewFirstFit creates an empty FirstFit allocator whose address space is a single free region.
// It panics if ordering is unknown.
func NewFirstFit(ordering Ordering, quantization Quantization) *FirstFit {
	f := &FirstFit{
		config: FirstFitConfig(ordering, quantization),
		taken:  swiss.NewMap[int, *fitBlock](42),
	}

	switch ordering {
	case OrderingIncreasingSize:
		f.free = newSizeIndex(false)
	case OrderingDecreasingSize:
		f.free = newSizeIndex(true)
	case OrderingNextFit:
		f.free = newAddressIndex()
	default:
		panic(fmt.Sprintf("unknown first fit ordering: %d", ordering))
	}

	block := f.allocateBlock()
	block.size = MemorySize
	block.MarkFree()
	f.firstBlock = block
	f.free.insert(block)

	return f
}

func (f *FirstFit) allocateBlock() *fitBlock {
	b := blockAllocator.Get().(*fitBlock)
	b.offset = 0
	b.size = 0
	b.requested = 0
	b.taken = false
	b.prevPhysical = nil
	b.nextPhysical = nil
	return b
}

func (f *FirstFit) freeBlock(b *fitBlock) {
	b.prevPhysical = nil
	b.nextPhysical = nil
	blockAllocator.Put(b)
}

func (f *FirstFit) Config() Config { return f.config }

func (f *FirstFit) String() string { return f.config.String() }

func (f *FirstFit) CreateNew() Allocator {
	return NewFirstFit(f.config.Ordering, f.config.Quantization)
}

func (f *FirstFit) AllocationCount() int { return f.allocCount }

func (f *FirstFit) OccupiedMemoryBytes() int { return f.occupiedBytes }

func (f *FirstFit) InternalFragmentationBytes() int {
	return f.occupiedBytes - f.requestedBytes
}

func (f *FirstFit) ExternalFragmentationBytes(thresholdBytes int) int {
	var total int
	f.free.visit(func(block *fitBlock) bool {
		if block.size < thresholdBytes {
			total += block.size
		}
		return true
	})
	return total
}

// Allocate quantizes numBytes and carves the result out of the free region chosen by the
// ordering. Searching the free index and splitting the region both cost steps.
func (f *FirstFit) Allocate(numBytes int, steps *StepCounter) (MemoryChunk, error) {
	if numBytes < 1 {
		return MemoryChunk{}, errors.Wrapf(memutils.ErrInvalidRequest, "%s received a request for %d bytes", f, numBytes)
	}

	memutils.DebugValidate(f)

	reserved := f.config.Quantization.Apply(numBytes)
	if reserved > MemorySize-f.occupiedBytes {
		return MemoryChunk{}, errors.Wrapf(memutils.ErrOutOfMemory, "%s has %d free bytes, %d were requested", f, MemorySize-f.occupiedBytes, reserved)
	}

	f.free.bind(steps)
	defer f.free.bind(nil)

	block := f.free.find(reserved)
	if block == nil {
		return MemoryChunk{}, errors.Wrapf(memutils.ErrOutOfMemory, "%s has no free region of %d bytes", f, reserved)
	}
	f.free.remove(block)

	if block.size > reserved {
		// Split the remainder off into a new free block
		remainder := f.allocateBlock()
		remainder.offset = block.offset + reserved
		remainder.size = block.size - reserved
		remainder.prevPhysical = block
		remainder.nextPhysical = block.nextPhysical
		if block.nextPhysical != nil {
			block.nextPhysical.prevPhysical = remainder
		}
		block.nextPhysical = remainder
		block.size = reserved

		remainder.MarkFree()
		f.free.insert(remainder)
		steps.Inc()
	}

	block.MarkTaken(numBytes)
	f.taken.Put(block.offset, block)
	f.free.allocated(block)

	f.allocCount++
	f.occupiedBytes += block.size
	f.requestedBytes += numBytes

	return MemoryChunk{Offset: block.offset, Size: numBytes}, nil
}

// Free releases chunk and merges it with free neighbors, one step per merge
func (f *FirstFit) Free(chunk MemoryChunk, steps *StepCounter) error {
	block, ok := f.taken.Get(chunk.Offset)
	if !ok {
		return errors.Wrapf(memutils.ErrForeignChunk, "%s has no live chunk at %s", f, chunk)
	}
	if block.requested != chunk.Size {
		return errors.Wrapf(memutils.ErrForeignChunk, "%s holds a chunk of %d bytes at offset %d, but %s was freed", f, block.requested, block.offset, chunk)
	}

	memutils.DebugValidate(f)

	f.free.bind(steps)
	defer f.free.bind(nil)

	f.taken.Delete(chunk.Offset)
	f.allocCount--
	f.occupiedBytes -= block.size
	f.requestedBytes -= chunk.Size
	block.MarkFree()
	steps.Inc()

	// Try merging
	prev := block.prevPhysical
	if prev != nil && prev.IsFree() {
		f.free.remove(prev)
		f.mergeBlock(prev, block)
		block = prev
		steps.Inc()
	}

	next := block.nextPhysical
	if next != nil && next.IsFree() {
		f.free.remove(next)
		f.mergeBlock(block, next)
		steps.Inc()
	}

	f.free.insert(block)
	return nil
}

// mergeBlock absorbs next into block. Neither may be in the free index.
func (f *FirstFit) mergeBlock(block *fitBlock, next *fitBlock) {
	if block.nextPhysical != next {
		panic("cannot merge separate physical regions")
	}

	block.size += next.size
	block.nextPhysical = next.nextPhysical
	if block.nextPhysical != nil {
		block.nextPhysical.prevPhysical = block
	}

	f.freeBlock(next)
}

func (f *FirstFit) Validate() error {
	if f.firstBlock == nil {
		return errors.New("the block chain is empty")
	}
	if f.firstBlock.prevPhysical != nil {
		return errors.New("the first block in the chain has a previous block")
	}

	var offset, allocCount, freeCount, occupied, requested int
	prevFree := false

	for block := f.firstBlock; block != nil; block = block.nextPhysical {
		if block.offset != offset {
			return errors.Errorf("block at offset %d should start at offset %d", block.offset, offset)
		}
		if block.size < 1 {
			return errors.Errorf("block at offset %d has invalid size %d", block.offset, block.size)
		}
		if block.nextPhysical != nil && block.nextPhysical.prevPhysical != block {
			return errors.Errorf("block at offset %d has a next physical block, but the reverse reference is broken", block.offset)
		}

		if block.IsFree() {
			if prevFree {
				return errors.Errorf("free block at offset %d was not merged with the free block before it", block.offset)
			}
			freeCount++
		} else {
			if block.requested < 1 || block.requested > block.size {
				return errors.Errorf("block at offset %d reserves %d bytes for a request of %d bytes", block.offset, block.size, block.requested)
			}
			indexed, ok := f.taken.Get(block.offset)
			if !ok || indexed != block {
				return errors.Errorf("taken block at offset %d is missing from the taken index", block.offset)
			}

			allocCount++
			occupied += block.size
			requested += block.requested
		}

		prevFree = block.IsFree()
		offset += block.size
	}

	if offset != MemorySize {
		return errors.Errorf("the blocks add up to %d bytes, but the address space is %d bytes", offset, MemorySize)
	}

	var indexErr error
	f.free.visit(func(block *fitBlock) bool {
		if !block.IsFree() {
			indexErr = errors.Errorf("block at offset %d is in the free index but it is not free", block.offset)
			return false
		}
		return true
	})
	if indexErr != nil {
		return indexErr
	}

	if freeCount != f.free.len() {
		return errors.Errorf("the number of free blocks in the chain and in the free index do not match! free index size: %d, chain free blocks: %d", f.free.len(), freeCount)
	}
	if allocCount != f.allocCount || f.taken.Count() != f.allocCount {
		return errors.Errorf("the allocation count is %d, the taken index holds %d blocks and the chain holds %d", f.allocCount, f.taken.Count(), allocCount)
	}
	if occupied != f.occupiedBytes {
		return errors.Errorf("the occupied size is %d, but the taken blocks add up to %d", f.occupiedBytes, occupied)
	}
	if requested != f.requestedBytes {
		return errors.Errorf("the requested size is %d, but the taken blocks add up to %d", f.requestedBytes, requested)
	}

	return nil
}

func (f *FirstFit) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.CapacityBytes += MemorySize

	for block := f.firstBlock; block != nil; block = block.nextPhysical {
		if block.IsFree() {
			stats.AddUnusedRange(block.size)
		} else {
			stats.AddAllocation(block.size, block.requested)
		}
	}
}

func (f *FirstFit) WriteJSON(json *jwriter.ObjectState) {
	writeJSONHeader(json, f)

	largest := 0
	f.free.visit(func(block *fitBlock) bool {
		if block.size > largest {
			largest = block.size
		}
		return true
	})

	json.Name("Ordering").String(f.config.Ordering.String())
	json.Name("Quantization").String(f.config.Quantization.String())
	json.Name("LargestFreeRegion").Int(largest)

	regions := json.Name("Regions").Array()
	defer regions.End()

	for block := f.firstBlock; block != nil; block = block.nextPhysical {
		obj := regions.Object()
		obj.Name("Offset").Int(block.offset)
		obj.Name("Size").Int(block.size)
		if block.IsFree() {
			obj.Name("Type").String("Free")
		} else {
			obj.Name("Type").String("Allocation")
			obj.Name("RequestedSize").Int(block.requested)
		}
		obj.End()
	}
}
