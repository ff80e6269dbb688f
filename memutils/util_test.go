package memutils_test

import (
	"math"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/memsim/memutils"
)

func TestCheckPow2(t *testing.T) {
	for _, value := range []int{1, 2, 16, 1 << 20} {
		require.NoError(t, memutils.CheckPow2(value, "value"))
	}

	for _, value := range []int{0, -4, 3, 24, 1<<20 + 1} {
		require.ErrorIs(t, memutils.CheckPow2(value, "value"), memutils.PowerOfTwoError)
	}

	require.NoError(t, memutils.CheckPow2(uint(64), "value"))
}

func TestRounding(t *testing.T) {
	require.Equal(t, 32, memutils.RoundUp(17, 16))
	require.Equal(t, 16, memutils.RoundUp(16, 16))
	require.Equal(t, 21, memutils.RoundUp(15, 7))
	require.Equal(t, 15, memutils.RoundUp(15, 1))
	require.Equal(t, 15, memutils.RoundUp(15, 0))
}

func TestLog2Ceil(t *testing.T) {
	require.Equal(t, 0, memutils.Log2Ceil(0))
	require.Equal(t, 0, memutils.Log2Ceil(1))
	require.Equal(t, 1, memutils.Log2Ceil(2))
	require.Equal(t, 2, memutils.Log2Ceil(3))
	require.Equal(t, 10, memutils.Log2Ceil(1024))
	require.Equal(t, 11, memutils.Log2Ceil(1025))

	require.Equal(t, 19, memutils.Log2Ceil(300000))
}

func TestDetailedStatistics(t *testing.T) {
	var first memutils.DetailedStatistics
	first.Clear()
	first.CapacityBytes = 1000
	first.AddAllocation(128, 100)
	first.AddUnusedRange(872)

	var second memutils.DetailedStatistics
	second.Clear()
	second.CapacityBytes = 1000
	second.AddAllocation(16, 16)
	second.AddAllocation(512, 300)
	second.AddUnusedRange(200)
	second.AddUnusedRange(272)

	var total memutils.DetailedStatistics
	total.Clear()
	total.AddDetailedStatistics(&first)
	total.AddDetailedStatistics(&second)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			CapacityBytes:   2000,
			AllocationCount: 3,
			AllocationBytes: 656,
			RequestedBytes:  416,
		},
		UnusedRangeCount:   3,
		UnusedBytes:        1344,
		AllocationSizeMin:  16,
		AllocationSizeMax:  512,
		UnusedRangeSizeMin: 200,
		UnusedRangeSizeMax: 872,
	}, total)
	require.Equal(t, 240, total.InternalFragmentationBytes())

	total.Clear()
	require.Equal(t, math.MaxInt, total.AllocationSizeMin)
	require.Equal(t, 0, total.UnusedBytes)
}

func TestDetailedStatisticsWriteJSON(t *testing.T) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	stats.CapacityBytes = 1024

	writer := jwriter.NewWriter()
	obj := writer.Object()
	stats.WriteJSON(&obj)
	obj.End()
	require.NoError(t, writer.Error())
	require.Equal(t, `{"CapacityBytes":1024,"AllocationCount":0,"AllocationBytes":0,"RequestedBytes":0,"UnusedRangeCount":0,"UnusedBytes":0}`, string(writer.Bytes()))

	stats.AddAllocation(128, 100)
	stats.AddUnusedRange(896)

	writer = jwriter.NewWriter()
	obj = writer.Object()
	stats.WriteJSON(&obj)
	obj.End()
	require.NoError(t, writer.Error())
	require.Equal(t, `{"CapacityBytes":1024,"AllocationCount":1,"AllocationBytes":128,"RequestedBytes":100,"UnusedRangeCount":1,"UnusedBytes":896,"AllocationSizeMin":128,"AllocationSizeMax":128,"UnusedRangeSizeMin":896,"UnusedRangeSizeMax":896}`, string(writer.Bytes()))
}
