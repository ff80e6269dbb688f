package memutils

import (
	"math"
	"strconv"
	"strings"

	cerrors "github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Metric is a streaming accumulator of samples. It keeps the count, sum, sum of squares,
// minimum and maximum of everything passed to Include, which is enough to report the mean
// and standard deviation without retaining the samples.
//
// Percentage metrics hold fractions in [0,1] and are formatted as percentages by String.
type Metric struct {
	count      int
	sum        float64
	sqrSum     float64
	min        float64
	max        float64
	percentage bool
}

// NewMetric creates an empty metric
func NewMetric(percentage bool) Metric {
	return Metric{percentage: percentage}
}

// IsPercentage returns true if samples are fractions that String formats as percentages
func (m Metric) IsPercentage() bool { return m.percentage }

// Include adds a single sample
func (m *Metric) Include(v float64) {
	if m.count == 0 || v < m.min {
		m.min = v
	}
	if m.count == 0 || v > m.max {
		m.max = v
	}

	m.count++
	m.sum += v
	m.sqrSum += v * v
}

// Merge adds all samples of other into this metric
func (m *Metric) Merge(other *Metric) {
	if other.count == 0 {
		return
	}

	if m.count == 0 || other.min < m.min {
		m.min = other.min
	}
	if m.count == 0 || other.max > m.max {
		m.max = other.max
	}

	m.count += other.count
	m.sum += other.sum
	m.sqrSum += other.sqrSum
}

// Combine returns a new metric holding the samples of both a and b. Both must agree on
// whether they are percentages.
func Combine(a, b *Metric) (Metric, error) {
	if a.percentage != b.percentage {
		return Metric{}, cerrors.New("combined metrics must either both be percentages or both not be")
	}

	result := NewMetric(a.percentage)
	result.Merge(a)
	result.Merge(b)
	return result, nil
}

// Count returns the number of included samples
func (m Metric) Count() int { return m.count }

// IsSet returns true if any samples were included
func (m Metric) IsSet() bool { return m.count > 0 }

// Sum returns the sum of all samples
func (m Metric) Sum() float64 { return m.sum }

// Mean returns the mean of all samples, or 0 if there are none
func (m Metric) Mean() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

// Deviation returns the population standard deviation, or 0 if there are no samples
func (m Metric) Deviation() float64 {
	if m.count == 0 {
		return 0
	}

	mean := m.Mean()
	variance := m.sqrSum/float64(m.count) - mean*mean
	if variance < 0 {
		// rounding
		return 0
	}
	return math.Sqrt(variance)
}

// Min returns the smallest sample, or 0 if there are none
func (m Metric) Min() float64 { return m.min }

// Max returns the largest sample, or 0 if there are none
func (m Metric) Max() float64 { return m.max }

func roundedRaw(v float64) string {
	r := math.Round(v*100) / 100
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func (m Metric) rounded(v float64) string {
	if m.percentage {
		return roundedRaw(v*100) + "%"
	}
	return roundedRaw(v)
}

// String formats the metric as "min a <= avg b <= max c, calculated from n sample(s)",
// leaving out a zero min or max
func (m Metric) String() string {
	if m.count == 0 {
		return "not recorded"
	}

	var b strings.Builder
	if m.min != 0 {
		b.WriteString("min ")
		b.WriteString(m.rounded(m.min))
		b.WriteString(" <= ")
	}
	b.WriteString("avg ")
	b.WriteString(m.rounded(m.Mean()))
	if m.max != 0 {
		b.WriteString(" <= max ")
		b.WriteString(m.rounded(m.max))
	}
	b.WriteString(", calculated from ")
	b.WriteString(strconv.Itoa(m.count))
	b.WriteString(" sample(s)")
	return b.String()
}

// WriteJSON populates a json object with the metric's summary values
func (m *Metric) WriteJSON(json *jwriter.ObjectState) {
	json.Name("Count").Int(m.count)
	if m.count == 0 {
		return
	}

	json.Name("Min").Float64(m.min)
	json.Name("Mean").Float64(m.Mean())
	json.Name("Max").Float64(m.max)
	json.Name("Deviation").Float64(m.Deviation())
	json.Name("Percentage").Bool(m.percentage)
}

// MetricSet is the group of metrics recorded for every allocator
type MetricSet struct {
	// AllocationCost is the number of steps spent per allocation
	AllocationCost Metric
	// FreeCost is the number of steps spent per free
	FreeCost Metric
	// InternalFragmentation is InternalFragmentationBytes / OccupiedMemoryBytes, sampled after each allocation
	InternalFragmentation Metric
	// ExternalFragmentation is the share of theoretically free memory that sits in regions too small for the
	// fragmentation threshold, sampled after each allocation
	ExternalFragmentation Metric
}

// NewMetricSet creates an empty set with the fragmentation metrics marked as percentages
func NewMetricSet() MetricSet {
	return MetricSet{
		AllocationCost:        NewMetric(false),
		FreeCost:              NewMetric(false),
		InternalFragmentation: NewMetric(true),
		ExternalFragmentation: NewMetric(true),
	}
}

// Merge adds every metric of other to the matching metric of this set
func (s *MetricSet) Merge(other *MetricSet) {
	s.AllocationCost.Merge(&other.AllocationCost)
	s.FreeCost.Merge(&other.FreeCost)
	s.InternalFragmentation.Merge(&other.InternalFragmentation)
	s.ExternalFragmentation.Merge(&other.ExternalFragmentation)
}
