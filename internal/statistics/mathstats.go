package statistics

import (
	"fmt"

	"github.com/goccy/go-json"
	statslib "github.com/montanaflynn/stats"
)

// DefaultPercentiles are the cut-points reported when none are configured
var DefaultPercentiles = []float64{25, 50, 75, 90, 99}

// PercentileValue is the value of a sample at percentile P
type PercentileValue struct {
	Percentile float64 `json:"percentile"`
	Value      float64 `json:"value"`
}

// MathStatistics summarizes one numeric sample.
//
// Percentiles follow the nearest-rank rule: the value at rank ceil(P/100*n) of
// the sorted sample, rank 1 for P = 0. The median is the middle value, or the
// mean of the two middle values for an even sample, so it can differ from the
// 50th percentile. Standard deviation is the population one.
//
// For an empty sample every derived statistic is undefined and its accessor
// reports false; coverage and extreme are kept as given.
type MathStatistics struct {
	coverage    PercentagePair
	n           int
	mean        float64
	median      float64
	stdDev      float64
	min         float64
	max         float64
	percentiles []PercentileValue
	extreme     *RecordPair
}

// NewMathStatistics computes the statistics of sample. A nil percentiles slice
// selects DefaultPercentiles. The sample is not retained.
func NewMathStatistics(coverage PercentagePair, sample []float64, percentiles []float64, extreme *RecordPair) (*MathStatistics, error) {
	if percentiles == nil {
		percentiles = DefaultPercentiles
	}

	ms := &MathStatistics{
		coverage: coverage,
		n:        len(sample),
	}
	if extreme != nil {
		pair := *extreme
		ms.extreme = &pair
	}

	if len(sample) == 0 {
		return ms, nil
	}

	data := statslib.Float64Data(append([]float64(nil), sample...))

	var err error
	if ms.mean, err = statslib.Mean(data); err != nil {
		return nil, fmt.Errorf("failed to compute mean: %w", err)
	}
	if ms.median, err = statslib.Median(data); err != nil {
		return nil, fmt.Errorf("failed to compute median: %w", err)
	}
	if ms.stdDev, err = statslib.StandardDeviationPopulation(data); err != nil {
		return nil, fmt.Errorf("failed to compute standard deviation: %w", err)
	}
	if ms.min, err = statslib.Min(data); err != nil {
		return nil, fmt.Errorf("failed to compute minimum: %w", err)
	}
	if ms.max, err = statslib.Max(data); err != nil {
		return nil, fmt.Errorf("failed to compute maximum: %w", err)
	}

	ms.percentiles = make([]PercentileValue, 0, len(percentiles))
	for _, p := range percentiles {
		value, err := statslib.PercentileNearestRank(data, p)
		if err != nil {
			return nil, fmt.Errorf("failed to compute percentile %v: %w", p, err)
		}
		ms.percentiles = append(ms.percentiles, PercentileValue{Percentile: p, Value: value})
	}

	return ms, nil
}

// Coverage returns the sample size over the number of records considered
func (m *MathStatistics) Coverage() PercentagePair { return m.coverage }

// Count returns the sample size
func (m *MathStatistics) Count() int { return m.n }

// Defined reports whether the sample had at least one value
func (m *MathStatistics) Defined() bool { return m.n > 0 }

func (m *MathStatistics) Mean() (float64, bool)   { return m.mean, m.Defined() }
func (m *MathStatistics) Median() (float64, bool) { return m.median, m.Defined() }
func (m *MathStatistics) StdDev() (float64, bool) { return m.stdDev, m.Defined() }
func (m *MathStatistics) Min() (float64, bool)    { return m.min, m.Defined() }
func (m *MathStatistics) Max() (float64, bool)    { return m.max, m.Defined() }

// Percentiles returns a copy of the computed cut-points, empty when undefined
func (m *MathStatistics) Percentiles() []PercentileValue {
	return append([]PercentileValue(nil), m.percentiles...)
}

// Percentile returns the value computed for cut-point p
func (m *MathStatistics) Percentile(p float64) (float64, bool) {
	for _, pv := range m.percentiles {
		if pv.Percentile == p {
			return pv.Value, true
		}
	}
	return 0, false
}

// Extreme returns the record holding the maximum of the tracked metric
func (m *MathStatistics) Extreme() (RecordPair, bool) {
	if m.extreme == nil {
		return RecordPair{}, false
	}
	return *m.extreme, true
}

type mathStatisticsJSON struct {
	Coverage    PercentagePair    `json:"coverage"`
	Count       int               `json:"count"`
	Mean        *float64          `json:"mean"`
	Median      *float64          `json:"median"`
	StdDev      *float64          `json:"stdDev"`
	Min         *float64          `json:"min"`
	Max         *float64          `json:"max"`
	Percentiles []PercentileValue `json:"percentiles"`
	Extreme     *RecordPair       `json:"extreme"`
}

// MarshalJSON writes undefined statistics as null
func (m *MathStatistics) MarshalJSON() ([]byte, error) {
	out := mathStatisticsJSON{
		Coverage:    m.coverage,
		Count:       m.n,
		Percentiles: m.Percentiles(),
		Extreme:     m.extreme,
	}
	if m.Defined() {
		out.Mean, out.Median, out.StdDev = &m.mean, &m.median, &m.stdDev
		out.Min, out.Max = &m.min, &m.max
	}
	if out.Percentiles == nil {
		out.Percentiles = []PercentileValue{}
	}
	return json.Marshal(out)
}
