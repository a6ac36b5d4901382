package statistics

import (
	"errors"
	"fmt"
	"strings"

	"apkstats/pkg/logger"
	"apkstats/pkg/models"
)

// SkippedRecord describes a record left out of a pass
type SkippedRecord struct {
	Index    int    `json:"index"`
	SourceID string `json:"sourceId,omitempty"`
	Reason   string `json:"reason"`
}

// accumulator owns the mutable state of one pass. Every field is consistent
// after each observe call, so a pass may stop at any record.
type accumulator struct {
	series []series

	analyzed      int
	localeRecords int
	samples       map[string][]float64
	extremes      *ExtremeTracker
	locales       *CategoryCounter
	normalized    *CategoryCounter

	skippedCount int
	skipped      []SkippedRecord
	maxSkips     int
}

func newAccumulator(table []series, maxSkips int) *accumulator {
	return &accumulator{
		series:     table,
		samples:    make(map[string][]float64, len(table)),
		extremes:   NewExtremeTracker(),
		locales:    NewCategoryCounter(),
		normalized: NewCategoryCounter(),
		maxSkips:   maxSkips,
	}
}

// observe folds one element of the record stream into the accumulator
func (a *accumulator) observe(index int, record *models.ApkData, loadErr error) {
	if err := checkRecord(record, loadErr); err != nil {
		a.skip(index, record, err)
		return
	}

	a.analyzed++
	resources := record.ResourceData

	if resources.NumberOfStringResource != nil {
		value := float64(*resources.NumberOfStringResource)
		a.add(MetricStringXMLResources, value)
		a.extremes.Offer(MetricStringXMLResources, value, record.FileName)
	}

	if resources.Locale != nil {
		a.localeRecords++
		a.countLocales(resources.Locale)

		cardinality := float64(len(resources.Locale))
		a.add(MetricLocale, cardinality)
		a.extremes.Offer(MetricLocale, cardinality, record.FileName)
	}
}

// countLocales increments each counter at most once per distinct key of one record
func (a *accumulator) countLocales(tags []string) {
	rawSeen := make(map[string]struct{}, len(tags))
	normalizedSeen := make(map[string]struct{}, len(tags))

	for _, tag := range tags {
		raw := strings.ToLower(tag)
		if _, ok := rawSeen[raw]; !ok {
			rawSeen[raw] = struct{}{}
			a.locales.Increment(raw)
		}

		normalized := strings.ToLower(NormalizeLocale(tag))
		if _, ok := normalizedSeen[normalized]; !ok {
			normalizedSeen[normalized] = struct{}{}
			a.normalized.IncrementNormalized(normalized)
		}
	}
}

// add appends value to every series fed by metric that accepts it
func (a *accumulator) add(metric string, value float64) {
	for _, s := range a.series {
		if s.metric != metric {
			continue
		}
		if s.accept != nil && !s.accept(value) {
			continue
		}
		a.samples[s.name] = append(a.samples[s.name], value)
	}
}

func (a *accumulator) skip(index int, record *models.ApkData, err error) {
	a.skippedCount++

	entry := SkippedRecord{Index: index, Reason: err.Error()}
	if record != nil {
		entry.SourceID = record.FileName
	}
	if len(a.skipped) < a.maxSkips {
		a.skipped = append(a.skipped, entry)
	}

	logger.Logger.WithError(err).WithFields(map[string]interface{}{
		"index":  index,
		"source": entry.SourceID,
	}).Warn("Skipping unreadable record")
}

// merge folds other into a. other must hold records that come after a's.
func (a *accumulator) merge(other *accumulator) {
	a.analyzed += other.analyzed
	a.localeRecords += other.localeRecords
	for name, sample := range other.samples {
		a.samples[name] = append(a.samples[name], sample...)
	}
	a.extremes.Merge(other.extremes)
	a.locales.Merge(other.locales)
	a.normalized.Merge(other.normalized)

	a.skippedCount += other.skippedCount
	for _, entry := range other.skipped {
		if len(a.skipped) >= a.maxSkips {
			break
		}
		a.skipped = append(a.skipped, entry)
	}
}

func checkRecord(record *models.ApkData, loadErr error) error {
	switch {
	case loadErr != nil:
		if errors.Is(loadErr, ErrRecordUnreadable) {
			return loadErr
		}
		return fmt.Errorf("%w: %w", ErrRecordUnreadable, loadErr)
	case record == nil:
		return fmt.Errorf("%w: empty record", ErrRecordUnreadable)
	case record.ResourceData == nil:
		return fmt.Errorf("%w: missing resource data", ErrRecordUnreadable)
	}
	return nil
}
