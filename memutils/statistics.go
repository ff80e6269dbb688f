package memutils

import (
	"math"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Statistics summarizes the live contents of a single allocator address space
type Statistics struct {
	// CapacityBytes is the size of the address space the allocator manages
	CapacityBytes int
	// AllocationCount is the number of live chunks
	AllocationCount int
	// AllocationBytes is the number of bytes reserved for live chunks, including
	// internal fragmentation
	AllocationBytes int
	// RequestedBytes is the number of bytes callers actually asked for
	RequestedBytes int
}

// Clear zeroes every counter
func (s *Statistics) Clear() {
	s.CapacityBytes = 0
	s.AllocationCount = 0
	s.AllocationBytes = 0
	s.RequestedBytes = 0
}

// AddStatistics sums other into s
func (s *Statistics) AddStatistics(other *Statistics) {
	s.CapacityBytes += other.CapacityBytes
	s.AllocationCount += other.AllocationCount
	s.AllocationBytes += other.AllocationBytes
	s.RequestedBytes += other.RequestedBytes
}

// InternalFragmentationBytes is the number of reserved bytes nobody asked for
func (s *Statistics) InternalFragmentationBytes() int {
	return s.AllocationBytes - s.RequestedBytes
}

// DetailedStatistics extends Statistics with the count and size range of free regions and
// the size range of live chunks. Call Clear before accumulating into a new value.
type DetailedStatistics struct {
	Statistics
	UnusedRangeCount   int
	UnusedBytes        int
	AllocationSizeMin  int
	AllocationSizeMax  int
	UnusedRangeSizeMin int
	UnusedRangeSizeMax int
}

// Clear zeroes every counter and resets the size ranges so the first sample sets them
func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.UnusedRangeCount = 0
	s.UnusedBytes = 0
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
	s.UnusedRangeSizeMin = math.MaxInt
	s.UnusedRangeSizeMax = 0
}

// AddUnusedRange records a free region of size bytes
func (s *DetailedStatistics) AddUnusedRange(size int) {
	s.UnusedRangeCount++
	s.UnusedBytes += size

	if size < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = size
	}

	if size > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = size
	}
}

// AddAllocation records a live chunk. reservedSize is the number of bytes the allocator
// set aside for it and requestedSize is the number of bytes the caller asked for.
func (s *DetailedStatistics) AddAllocation(reservedSize, requestedSize int) {
	s.AllocationCount++
	s.AllocationBytes += reservedSize
	s.RequestedBytes += requestedSize

	if reservedSize < s.AllocationSizeMin {
		s.AllocationSizeMin = reservedSize
	}

	if reservedSize > s.AllocationSizeMax {
		s.AllocationSizeMax = reservedSize
	}
}

// AddDetailedStatistics sums other into s, widening the size ranges as needed
func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.UnusedRangeCount += other.UnusedRangeCount
	s.UnusedBytes += other.UnusedBytes

	if other.UnusedRangeSizeMin < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = other.UnusedRangeSizeMin
	}

	if other.UnusedRangeSizeMax > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = other.UnusedRangeSizeMax
	}

	if other.AllocationSizeMin < s.AllocationSizeMin {
		s.AllocationSizeMin = other.AllocationSizeMin
	}

	if other.AllocationSizeMax > s.AllocationSizeMax {
		s.AllocationSizeMax = other.AllocationSizeMax
	}
}

// WriteJSON populates a json object with the statistics. Size ranges are only written
// when something was recorded in them.
func (s *DetailedStatistics) WriteJSON(json *jwriter.ObjectState) {
	json.Name("CapacityBytes").Int(s.CapacityBytes)
	json.Name("AllocationCount").Int(s.AllocationCount)
	json.Name("AllocationBytes").Int(s.AllocationBytes)
	json.Name("RequestedBytes").Int(s.RequestedBytes)
	json.Name("UnusedRangeCount").Int(s.UnusedRangeCount)
	json.Name("UnusedBytes").Int(s.UnusedBytes)

	if s.AllocationCount > 0 {
		json.Name("AllocationSizeMin").Int(s.AllocationSizeMin)
		json.Name("AllocationSizeMax").Int(s.AllocationSizeMax)
	}

	if s.UnusedRangeCount > 0 {
		json.Name("UnusedRangeSizeMin").Int(s.UnusedRangeSizeMin)
		json.Name("UnusedRangeSizeMax").Int(s.UnusedRangeSizeMax)
	}
}
