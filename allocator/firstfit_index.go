package allocator

import (
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
)

// freeIndex orders the free blocks of a FirstFit allocator and decides which one serves a
// request. Blocks must be removed from the index before their size or offset changes.
type freeIndex interface {
	// bind sets the counter that comparisons and scan steps are charged to
	bind(steps *StepCounter)
	insert(block *fitBlock)
	remove(block *fitBlock)
	// find returns the block that should serve a request of size bytes, or nil
	find(size int) *fitBlock
	// allocated is called after a request was served from block
	allocated(block *fitBlock)
	// visit calls handle for each free block until handle returns false
	visit(handle func(block *fitBlock) bool)
	len() int
}

// sizeIndex keeps free blocks in a red-black tree sorted by size. Ties are broken by
// offset so that the lowest address wins among equally sized regions.
type sizeIndex struct {
	descending bool
	tree       *redblacktree.Tree
	steps      *StepCounter
}

var _ freeIndex = &sizeIndex{}

func newSizeIndex(descending bool) *sizeIndex {
	index := &sizeIndex{descending: descending}
	index.tree = redblacktree.NewWith(index.compare)
	return index
}

func (i *sizeIndex) compare(a, b interface{}) int {
	i.steps.Inc()

	left := a.(*fitBlock)
	right := b.(*fitBlock)
	if left.size != right.size {
		if (left.size < right.size) != i.descending {
			return -1
		}
		return 1
	}

	return utils.IntComparator(left.offset, right.offset)
}

func (i *sizeIndex) bind(steps *StepCounter) { i.steps = steps }

func (i *sizeIndex) insert(block *fitBlock) {
	i.tree.Put(block, nil)
}

func (i *sizeIndex) remove(block *fitBlock) {
	i.tree.Remove(block)
}

func (i *sizeIndex) find(size int) *fitBlock {
	if i.descending {
		// The largest block comes first: if it can't hold the request, nothing can
		node := i.tree.Left()
		if node == nil {
			return nil
		}

		i.steps.Inc()
		block := node.Key.(*fitBlock)
		if block.size >= size {
			return block
		}
		return nil
	}

	it := i.tree.Iterator()
	for it.Next() {
		i.steps.Inc()
		block := it.Key().(*fitBlock)
		if block.size >= size {
			return block
		}
	}

	return nil
}

func (i *sizeIndex) allocated(block *fitBlock) {}

func (i *sizeIndex) visit(handle func(block *fitBlock) bool) {
	it := i.tree.Iterator()
	for it.Next() {
		if !handle(it.Key().(*fitBlock)) {
			return
		}
	}
}

func (i *sizeIndex) len() int {
	return i.tree.Size()
}

// addressIndex keeps free blocks in address order for next-fit searches. cursor is the
// end of the most recent allocation; searches start at the first free block at or past
// it and wrap around to the start of the address space once.
type addressIndex struct {
	tree   *treemap.Map
	cursor int
	steps  *StepCounter
}

var _ freeIndex = &addressIndex{}

func newAddressIndex() *addressIndex {
	index := &addressIndex{}
	index.tree = treemap.NewWith(index.compare)
	return index
}

func (i *addressIndex) compare(a, b interface{}) int {
	i.steps.Inc()
	return utils.IntComparator(a, b)
}

func (i *addressIndex) bind(steps *StepCounter) { i.steps = steps }

func (i *addressIndex) insert(block *fitBlock) {
	i.tree.Put(block.offset, block)
}

func (i *addressIndex) remove(block *fitBlock) {
	i.tree.Remove(block.offset)
}

func (i *addressIndex) find(size int) *fitBlock {
	// Cursor to the end of the address space
	for key := i.cursor; ; {
		_, value := i.tree.Ceiling(key)
		if value == nil {
			break
		}

		i.steps.Inc()
		block := value.(*fitBlock)
		if block.size >= size {
			return block
		}
		key = block.offset + 1
	}

	// Wrap around, start of the address space to the cursor
	for key := 0; ; {
		_, value := i.tree.Ceiling(key)
		if value == nil {
			break
		}

		block := value.(*fitBlock)
		if block.offset >= i.cursor {
			break
		}

		i.steps.Inc()
		if block.size >= size {
			return block
		}
		key = block.offset + 1
	}

	return nil
}

func (i *addressIndex) allocated(block *fitBlock) {
	i.cursor = block.offset + block.size
}

func (i *addressIndex) visit(handle func(block *fitBlock) bool) {
	it := i.tree.Iterator()
	for it.Next() {
		if !handle(it.Value().(*fitBlock)) {
			return
		}
	}
}

func (i *addressIndex) len() int {
	return i.tree.Size()
}
