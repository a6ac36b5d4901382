package statistics

// RecordPair remembers an extreme value and the record that produced it.
// SourceID is a label for reporting only.
type RecordPair struct {
	Value    float64 `json:"value"`
	SourceID string  `json:"sourceId"`
}

// ExtremeTracker keeps the running maximum of every named metric.
//
// Ties keep the first record offered: a stored value is only replaced by a
// strictly greater one, so reports are reproducible for a fixed input order.
type ExtremeTracker struct {
	best map[string]RecordPair
}

// NewExtremeTracker creates an empty tracker
func NewExtremeTracker() *ExtremeTracker {
	return &ExtremeTracker{best: make(map[string]RecordPair)}
}

// Offer records value for metric if it beats the current maximum
func (t *ExtremeTracker) Offer(metric string, value float64, sourceID string) {
	current, ok := t.best[metric]
	if ok && value <= current.Value {
		return
	}
	t.best[metric] = RecordPair{Value: value, SourceID: sourceID}
}

// Snapshot returns the current maximum for metric. The boolean is false when
// nothing was offered for it yet, which callers must treat as "no data".
func (t *ExtremeTracker) Snapshot(metric string) (RecordPair, bool) {
	pair, ok := t.best[metric]
	return pair, ok
}

// Merge folds other into t. other must come from records that follow t's
// records in input order, so t keeps its value on ties.
func (t *ExtremeTracker) Merge(other *ExtremeTracker) {
	if other == nil {
		return
	}
	for metric, pair := range other.best {
		t.Offer(metric, pair.Value, pair.SourceID)
	}
}
