package allocator_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/memsim/allocator"
	"github.com/vkngwrapper/memsim/memutils"
)

func TestFirstFitBasicAlloc(t *testing.T) {
	fit := allocator.NewFirstFit(allocator.OrderingIncreasingSize, allocator.PreciseX1())

	var stats memutils.DetailedStatistics
	stats.Clear()
	fit.AddDetailedStatistics(&stats)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			CapacityBytes: allocator.MemorySize,
		},
		UnusedRangeCount:   1,
		UnusedBytes:        allocator.MemorySize,
		AllocationSizeMin:  math.MaxInt,
		AllocationSizeMax:  0,
		UnusedRangeSizeMin: allocator.MemorySize,
		UnusedRangeSizeMax: allocator.MemorySize,
	}, stats)

	var steps allocator.StepCounter
	chunk, err := fit.Allocate(100, &steps)
	require.NoError(t, err)
	require.Equal(t, allocator.MemoryChunk{Offset: 0, Size: 100}, chunk)
	require.Greater(t, steps.Steps(), 0)
	require.NoError(t, fit.Validate())

	stats.Clear()
	fit.AddDetailedStatistics(&stats)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			CapacityBytes:   allocator.MemorySize,
			AllocationCount: 1,
			AllocationBytes: 100,
			RequestedBytes:  100,
		},
		UnusedRangeCount:   1,
		UnusedBytes:        allocator.MemorySize - 100,
		AllocationSizeMin:  100,
		AllocationSizeMax:  100,
		UnusedRangeSizeMin: allocator.MemorySize - 100,
		UnusedRangeSizeMax: allocator.MemorySize - 100,
	}, stats)

	steps.Reset()
	err = fit.Free(chunk, &steps)
	require.NoError(t, err)
	require.Greater(t, steps.Steps(), 0)
	require.NoError(t, fit.Validate())

	stats.Clear()
	fit.AddDetailedStatistics(&stats)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			CapacityBytes: allocator.MemorySize,
		},
		UnusedRangeCount:   1,
		UnusedBytes:        allocator.MemorySize,
		AllocationSizeMin:  math.MaxInt,
		AllocationSizeMax:  0,
		UnusedRangeSizeMin: allocator.MemorySize,
		UnusedRangeSizeMax: allocator.MemorySize,
	}, stats)
	require.Equal(t, 0, fit.OccupiedMemoryBytes())
	require.Equal(t, 0, fit.AllocationCount())
}

func TestFirstFitFreeFirstOfTwo(t *testing.T) {
	for _, ordering := range []allocator.Ordering{
		allocator.OrderingIncreasingSize,
		allocator.OrderingDecreasingSize,
		allocator.OrderingNextFit,
	} {
		t.Run(ordering.String(), func(t *testing.T) {
			fit := allocator.NewFirstFit(ordering, allocator.PreciseX1())

			first, err := fit.Allocate(300000, nil)
			require.NoError(t, err)
			require.Equal(t, allocator.MemoryChunk{Offset: 0, Size: 300000}, first)

			second, err := fit.Allocate(300000, nil)
			require.NoError(t, err)
			require.Equal(t, allocator.MemoryChunk{Offset: 300000, Size: 300000}, second)
			require.Equal(t, 600000, fit.OccupiedMemoryBytes())

			require.NoError(t, fit.Free(first, nil))
			require.NoError(t, fit.Validate())

			require.Equal(t, 300000, fit.OccupiedMemoryBytes())
			require.Equal(t, 0, fit.InternalFragmentationBytes())
			require.Equal(t, 0, fit.ExternalFragmentationBytes(65536))
			require.Equal(t, allocator.MemorySize-300000, fit.ExternalFragmentationBytes(allocator.MemorySize+1))
		})
	}
}

func TestFirstFitQuantization(t *testing.T) {
	testCases := []struct {
		quantization allocator.Quantization
		request      int
		reserved     int
	}{
		{allocator.PreciseX1(), 100, 100},
		{allocator.PreciseX15(), 100, 150},
		{allocator.PreciseX15(), 5, 8},
		{allocator.MultiplesOf(16), 100, 112},
		{allocator.MultiplesOf(16), 128, 128},
	}

	for _, testCase := range testCases {
		t.Run(testCase.quantization.String(), func(t *testing.T) {
			fit := allocator.NewFirstFit(allocator.OrderingNextFit, testCase.quantization)

			chunk, err := fit.Allocate(testCase.request, nil)
			require.NoError(t, err)
			require.Equal(t, testCase.request, chunk.Size)
			require.Equal(t, testCase.reserved, fit.OccupiedMemoryBytes())
			require.Equal(t, testCase.reserved-testCase.request, fit.InternalFragmentationBytes())

			next, err := fit.Allocate(1, nil)
			require.NoError(t, err)
			require.Equal(t, testCase.reserved, next.Offset)

			require.NoError(t, fit.Free(chunk, nil))
			require.NoError(t, fit.Validate())
			require.Equal(t, testCase.quantization.Apply(1)-1, fit.InternalFragmentationBytes())
		})
	}
}

// holes allocates 100, 50, 300 and 50 bytes in a row and frees the 100 and 300 byte chunks,
// leaving free regions [0,100), [150,450) and [500,MemorySize)
func holes(t *testing.T, fit *allocator.FirstFit) {
	var chunks []allocator.MemoryChunk
	for _, size := range []int{100, 50, 300, 50} {
		chunk, err := fit.Allocate(size, nil)
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}

	require.NoError(t, fit.Free(chunks[0], nil))
	require.NoError(t, fit.Free(chunks[2], nil))
	require.NoError(t, fit.Validate())
	require.Equal(t, 100, fit.OccupiedMemoryBytes())
	require.Equal(t, 100+300, fit.ExternalFragmentationBytes(65536))
}

func TestFirstFitIncreasingSizeTakesSmallestSufficientRegion(t *testing.T) {
	fit := allocator.NewFirstFit(allocator.OrderingIncreasingSize, allocator.PreciseX1())
	holes(t, fit)

	chunk, err := fit.Allocate(200, nil)
	require.NoError(t, err)
	require.Equal(t, 150, chunk.Offset)

	chunk, err = fit.Allocate(80, nil)
	require.NoError(t, err)
	require.Equal(t, 0, chunk.Offset)

	chunk, err = fit.Allocate(150, nil)
	require.NoError(t, err)
	require.Equal(t, 500, chunk.Offset)
	require.NoError(t, fit.Validate())
}

func TestFirstFitDecreasingSizeTakesLargestRegion(t *testing.T) {
	fit := allocator.NewFirstFit(allocator.OrderingDecreasingSize, allocator.PreciseX1())
	holes(t, fit)

	chunk, err := fit.Allocate(80, nil)
	require.NoError(t, err)
	require.Equal(t, 500, chunk.Offset)

	chunk, err = fit.Allocate(200, nil)
	require.NoError(t, err)
	require.Equal(t, 580, chunk.Offset)
	require.NoError(t, fit.Validate())
}

func TestFirstFitNextFitWrapsAround(t *testing.T) {
	fit := allocator.NewFirstFit(allocator.OrderingNextFit, allocator.PreciseX1())
	holes(t, fit)

	// The search resumes where the last allocation ended
	chunk, err := fit.Allocate(80, nil)
	require.NoError(t, err)
	require.Equal(t, 500, chunk.Offset)

	chunk, err = fit.Allocate(allocator.MemorySize-580, nil)
	require.NoError(t, err)
	require.Equal(t, 580, chunk.Offset)

	chunk, err = fit.Allocate(80, nil)
	require.NoError(t, err)
	require.Equal(t, 0, chunk.Offset)

	// [80,100) is too small, so the next region after the cursor is used
	chunk, err = fit.Allocate(90, nil)
	require.NoError(t, err)
	require.Equal(t, 150, chunk.Offset)

	_, err = fit.Allocate(250, nil)
	require.ErrorIs(t, err, memutils.ErrOutOfMemory)
	require.NoError(t, fit.Validate())
}

func TestFirstFitCoalescesNeighbors(t *testing.T) {
	fit := allocator.NewFirstFit(allocator.OrderingIncreasingSize, allocator.PreciseX1())

	var chunks []allocator.MemoryChunk
	for i := 0; i < 3; i++ {
		chunk, err := fit.Allocate(100, nil)
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}

	require.NoError(t, fit.Free(chunks[1], nil))
	require.NoError(t, fit.Validate())
	require.NoError(t, fit.Free(chunks[0], nil))
	require.NoError(t, fit.Validate())

	var stats memutils.DetailedStatistics
	stats.Clear()
	fit.AddDetailedStatistics(&stats)
	require.Equal(t, 2, stats.UnusedRangeCount)
	require.Equal(t, 200, stats.UnusedRangeSizeMin)

	require.NoError(t, fit.Free(chunks[2], nil))
	require.NoError(t, fit.Validate())

	stats.Clear()
	fit.AddDetailedStatistics(&stats)
	require.Equal(t, 1, stats.UnusedRangeCount)
	require.Equal(t, allocator.MemorySize, stats.UnusedRangeSizeMax)

	// Everything merged back into one region, so a request for all of memory succeeds
	chunk, err := fit.Allocate(allocator.MemorySize, nil)
	require.NoError(t, err)
	require.Equal(t, allocator.MemoryChunk{Offset: 0, Size: allocator.MemorySize}, chunk)
}

func TestFirstFitErrors(t *testing.T) {
	fit := allocator.NewFirstFit(allocator.OrderingNextFit, allocator.MultiplesOf(16))

	_, err := fit.Allocate(0, nil)
	require.ErrorIs(t, err, memutils.ErrInvalidRequest)

	_, err = fit.Allocate(-5, nil)
	require.ErrorIs(t, err, memutils.ErrInvalidRequest)

	_, err = fit.Allocate(allocator.MemorySize+1, nil)
	require.ErrorIs(t, err, memutils.ErrOutOfMemory)

	chunk, err := fit.Allocate(10, nil)
	require.NoError(t, err)

	err = fit.Free(allocator.MemoryChunk{Offset: 512, Size: 10}, nil)
	require.ErrorIs(t, err, memutils.ErrForeignChunk)

	err = fit.Free(allocator.MemoryChunk{Offset: chunk.Offset, Size: 16}, nil)
	require.ErrorIs(t, err, memutils.ErrForeignChunk)

	require.NoError(t, fit.Free(chunk, nil))

	err = fit.Free(chunk, nil)
	require.ErrorIs(t, err, memutils.ErrForeignChunk)
	require.NoError(t, fit.Validate())
}

func TestFirstFitDecreasingSizeInspectsOneRegion(t *testing.T) {
	fit := allocator.NewFirstFit(allocator.OrderingDecreasingSize, allocator.PreciseX1())
	holes(t, fit)

	chunk, err := fit.Allocate(allocator.MemorySize-500, nil)
	require.NoError(t, err)
	require.Equal(t, 500, chunk.Offset)

	// Only [150,450) and [0,100) remain, and the largest can't hold the request
	_, err = fit.Allocate(301, nil)
	require.ErrorIs(t, err, memutils.ErrOutOfMemory)

	chunk, err = fit.Allocate(300, nil)
	require.NoError(t, err)
	require.Equal(t, 150, chunk.Offset)
}
