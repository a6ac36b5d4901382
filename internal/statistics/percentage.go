package statistics

import (
	"github.com/goccy/go-json"
)

// PercentagePair is a count over a total. The percentage is derived on demand
// so the count can keep growing while a pass is running.
type PercentagePair struct {
	Count int
	Total int
}

// NewPercentagePair creates a pair with the given count and total
func NewPercentagePair(count, total int) PercentagePair {
	return PercentagePair{Count: count, Total: total}
}

// Percentage returns Count/Total*100. The boolean is false when Total is zero,
// in which case the percentage is undefined.
func (p PercentagePair) Percentage() (float64, bool) {
	if p.Total <= 0 {
		return 0, false
	}
	return float64(p.Count) / float64(p.Total) * 100, true
}

type percentagePairJSON struct {
	Count      int      `json:"count"`
	Total      int      `json:"total"`
	Percentage *float64 `json:"percentage"`
}

// MarshalJSON writes the pair with its percentage, null when undefined
func (p PercentagePair) MarshalJSON() ([]byte, error) {
	out := percentagePairJSON{Count: p.Count, Total: p.Total}
	if pct, ok := p.Percentage(); ok {
		out.Percentage = &pct
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads count and total; the percentage is recomputed.
func (p *PercentagePair) UnmarshalJSON(data []byte) error {
	var in percentagePairJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	p.Count = in.Count
	p.Total = in.Total
	return nil
}
