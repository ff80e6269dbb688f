package allocator

import (
	"math/bits"

	"github.com/bits-and-blooms/bitset"
	"github.com/dolthub/swiss"
	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/memsim/memutils"
)

type buddyAllocation struct {
	order     int
	requested int
}

// Buddy is a binary buddy allocator. Every block is 2^order bytes and aligned to its own size.
// Requests are rounded up to a power of two no smaller than the minimum block size. A freed
// block is merged with its buddy, the other half of its parent, for as long as the buddy is
// also entirely free.
//
// Free blocks are kept in one offset-ordered set per order, and the lowest free offset of the
// smallest sufficient order is always taken. Allocated blocks are marked in a bitmap laid
// out like a binary heap, where the root is node 1 and the children of node n are 2n and 2n+1.
type Buddy struct {
	config Config

	minOrder int
	maxOrder int

	free      []*treeset.Set
	allocated *bitset.BitSet
	live      *swiss.Map[int, buddyAllocation]

	allocCount     int
	occupiedBytes  int
	requestedBytes int
}

var _ Allocator = &Buddy{}

// NewBuddy creates an empty buddy allocator. minBlockSize must be a power of two no larger
// than MemorySize. 0 selects DefaultBuddyMinBlockSize.
func NewBuddy(minBlockSize int) *Buddy {
	if minBlockSize == 0 {
		minBlockSize = DefaultBuddyMinBlockSize
	}
	if err := memutils.CheckPow2(minBlockSize, "buddy minimum block size"); err != nil {
		panic(err)
	}

	b := &Buddy{
		config:   Config{Kind: KindBuddy, MinBlockSize: minBlockSize},
		minOrder: bits.TrailingZeros(uint(minBlockSize)),
		maxOrder: memutils.Log2Ceil(MemorySize),
		live:     swiss.NewMap[int, buddyAllocation](42),
	}
	if b.minOrder > b.maxOrder {
		panic(errors.Errorf("buddy minimum block size %d is larger than the address space", minBlockSize))
	}

	b.free = make([]*treeset.Set, b.maxOrder+1)
	for order := b.minOrder; order <= b.maxOrder; order++ {
		b.free[order] = treeset.NewWith(utils.IntComparator)
	}
	b.allocated = bitset.New(uint(2) << (b.maxOrder - b.minOrder))

	// An address space that isn't a power of two starts out as its binary decomposition
	offset := 0
	for order := b.maxOrder; order >= b.minOrder; order-- {
		if MemorySize&(1<<order) != 0 {
			b.free[order].Add(offset)
			offset += 1 << order
		}
	}

	return b
}

func (b *Buddy) nodeIndex(order, offset int) uint {
	return uint(1<<(b.maxOrder-order)) + uint(offset>>order)
}

func (b *Buddy) orderFor(numBytes int) int {
	order := memutils.Log2Ceil(numBytes)
	if order < b.minOrder {
		return b.minOrder
	}
	return order
}

func (b *Buddy) Config() Config { return b.config }

func (b *Buddy) String() string { return b.config.String() }

func (b *Buddy) CreateNew() Allocator {
	return NewBuddy(b.config.MinBlockSize)
}

func (b *Buddy) AllocationCount() int { return b.allocCount }

func (b *Buddy) OccupiedMemoryBytes() int { return b.occupiedBytes }

func (b *Buddy) InternalFragmentationBytes() int {
	return b.occupiedBytes - b.requestedBytes
}

func (b *Buddy) ExternalFragmentationBytes(thresholdBytes int) int {
	var total int
	for order := b.minOrder; order <= b.maxOrder; order++ {
		blockSize := 1 << order
		if blockSize >= thresholdBytes {
			break
		}
		total += blockSize * b.free[order].Size()
	}
	return total
}

func (b *Buddy) lowestFree(order int) int {
	it := b.free[order].Iterator()
	it.First()
	return it.Value().(int)
}

// Allocate takes the lowest free block of the smallest sufficient order, splitting larger
// blocks as needed. Each order searched and each split costs a step.
func (b *Buddy) Allocate(numBytes int, steps *StepCounter) (MemoryChunk, error) {
	if numBytes < 1 {
		return MemoryChunk{}, errors.Wrapf(memutils.ErrInvalidRequest, "%s received a request for %d bytes", b, numBytes)
	}

	memutils.DebugValidate(b)

	order := b.orderFor(numBytes)
	if order > b.maxOrder {
		return MemoryChunk{}, errors.Wrapf(memutils.ErrOutOfMemory, "%s cannot hold a request of %d bytes", b, numBytes)
	}

	found := -1
	for k := order; k <= b.maxOrder; k++ {
		steps.Inc()
		if !b.free[k].Empty() {
			found = k
			break
		}
	}
	if found < 0 {
		return MemoryChunk{}, errors.Wrapf(memutils.ErrOutOfMemory, "%s has no free block of %d bytes", b, 1<<order)
	}

	offset := b.lowestFree(found)
	b.free[found].Remove(offset)

	// Split, keeping the lower half and releasing the upper half each time
	for k := found; k > order; {
		k--
		b.free[k].Add(offset + 1<<k)
		steps.Inc()
	}

	b.allocated.Set(b.nodeIndex(order, offset))
	b.live.Put(offset, buddyAllocation{order: order, requested: numBytes})

	b.allocCount++
	b.occupiedBytes += 1 << order
	b.requestedBytes += numBytes

	return MemoryChunk{Offset: offset, Size: numBytes}, nil
}

// Free releases chunk and merges it with its buddy for as long as the buddy is free. Each
// buddy checked costs a step.
func (b *Buddy) Free(chunk MemoryChunk, steps *StepCounter) error {
	alloc, ok := b.live.Get(chunk.Offset)
	if !ok {
		return errors.Wrapf(memutils.ErrForeignChunk, "%s has no live chunk at %s", b, chunk)
	}
	if alloc.requested != chunk.Size {
		return errors.Wrapf(memutils.ErrForeignChunk, "%s holds a chunk of %d bytes at offset %d, but %s was freed", b, alloc.requested, chunk.Offset, chunk)
	}

	node := b.nodeIndex(alloc.order, chunk.Offset)
	if !b.allocated.Test(node) {
		return errors.Wrapf(memutils.ErrForeignChunk, "%s has a record of %s, but its block is not marked allocated", b, chunk)
	}

	memutils.DebugValidate(b)

	b.allocated.Clear(node)
	b.live.Delete(chunk.Offset)

	b.allocCount--
	b.occupiedBytes -= 1 << alloc.order
	b.requestedBytes -= alloc.requested

	offset := chunk.Offset
	order := alloc.order
	for order < b.maxOrder {
		steps.Inc()
		buddy := offset ^ (1 << order)
		if !b.free[order].Contains(buddy) {
			break
		}

		b.free[order].Remove(buddy)
		if buddy < offset {
			offset = buddy
		}
		order++
	}
	b.free[order].Add(offset)

	return nil
}

func (b *Buddy) Validate() error {
	var freeBytes int

	for order := b.minOrder; order <= b.maxOrder; order++ {
		blockSize := 1 << order

		var err error
		b.free[order].Each(func(_ int, value interface{}) {
			if err != nil {
				return
			}

			offset := value.(int)
			if offset&(blockSize-1) != 0 {
				err = errors.Errorf("free block at offset %d is not aligned to its size %d", offset, blockSize)
				return
			}
			if offset+blockSize > MemorySize {
				err = errors.Errorf("free block at offset %d of size %d extends past the address space", offset, blockSize)
				return
			}
			if b.allocated.Test(b.nodeIndex(order, offset)) {
				err = errors.Errorf("block at offset %d of size %d is both free and allocated", offset, blockSize)
				return
			}
			if order < b.maxOrder && b.free[order].Contains(offset^blockSize) {
				err = errors.Errorf("free block at offset %d of size %d was not merged with its buddy", offset, blockSize)
				return
			}

			freeBytes += blockSize
		})
		if err != nil {
			return err
		}
	}

	var occupied, requested int
	var liveErr error
	b.live.Iter(func(offset int, alloc buddyAllocation) bool {
		if alloc.requested < 1 || alloc.requested > 1<<alloc.order {
			liveErr = errors.Errorf("block at offset %d has order %d but holds a request of %d bytes", offset, alloc.order, alloc.requested)
			return true
		}
		if !b.allocated.Test(b.nodeIndex(alloc.order, offset)) {
			liveErr = errors.Errorf("block at offset %d is live but not marked allocated", offset)
			return true
		}

		occupied += 1 << alloc.order
		requested += alloc.requested
		return false
	})
	if liveErr != nil {
		return liveErr
	}

	if b.live.Count() != b.allocCount || int(b.allocated.Count()) != b.allocCount {
		return errors.Errorf("the allocation count is %d, but %d blocks are live and %d are marked allocated", b.allocCount, b.live.Count(), b.allocated.Count())
	}
	if occupied != b.occupiedBytes {
		return errors.Errorf("the occupied size is %d, but the live blocks add up to %d", b.occupiedBytes, occupied)
	}
	if requested != b.requestedBytes {
		return errors.Errorf("the requested size is %d, but the live blocks add up to %d", b.requestedBytes, requested)
	}
	if freeBytes+occupied != MemorySize {
		return errors.Errorf("free blocks (%d bytes) and live blocks (%d bytes) do not cover the address space", freeBytes, occupied)
	}

	return nil
}

func (b *Buddy) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.CapacityBytes += MemorySize

	for order := b.minOrder; order <= b.maxOrder; order++ {
		for i := b.free[order].Size(); i > 0; i-- {
			stats.AddUnusedRange(1 << order)
		}
	}

	b.live.Iter(func(_ int, alloc buddyAllocation) bool {
		stats.AddAllocation(1<<alloc.order, alloc.requested)
		return false
	})
}

func (b *Buddy) WriteJSON(json *jwriter.ObjectState) {
	writeJSONHeader(json, b)

	json.Name("MinBlockSize").Int(1 << b.minOrder)

	orders := json.Name("FreeBlocks").Array()
	defer orders.End()

	for order := b.minOrder; order <= b.maxOrder; order++ {
		if b.free[order].Empty() {
			continue
		}

		obj := orders.Object()
		obj.Name("BlockSize").Int(1 << order)
		obj.Name("Count").Int(b.free[order].Size())
		obj.End()
	}
}
