package statistics

import (
	"github.com/goccy/go-json"
)

// LocalizationsStatistics is the result of one localizations pass. It is
// never modified after the processor returns it.
type LocalizationsStatistics struct {
	analyzedApks   int
	skippedRecords int
	skipped        []SkippedRecord

	metrics map[string]*MathStatistics
	order   []string

	topLocalizations           []CategoryEntry
	topLocalizationsNormalized []CategoryEntry
}

// AnalyzedApks returns the number of well-formed records in the pass
func (r *LocalizationsStatistics) AnalyzedApks() int { return r.analyzedApks }

// SkippedRecords returns how many records were unreadable
func (r *LocalizationsStatistics) SkippedRecords() int { return r.skippedRecords }

// Skipped returns the reported subset of unreadable records
func (r *LocalizationsStatistics) Skipped() []SkippedRecord {
	return append([]SkippedRecord(nil), r.skipped...)
}

// Metric returns the statistics published under a series name
func (r *LocalizationsStatistics) Metric(name string) (*MathStatistics, bool) {
	ms, ok := r.metrics[name]
	return ms, ok
}

// MetricNames returns the series names in report order
func (r *LocalizationsStatistics) MetricNames() []string {
	return append([]string(nil), r.order...)
}

func (r *LocalizationsStatistics) DefaultStringXMLEntries() *MathStatistics {
	return r.metrics[SeriesStringXMLResources]
}

func (r *LocalizationsStatistics) DefaultStringXMLEntriesNonDefault() *MathStatistics {
	return r.metrics[SeriesStringXMLResourcesNonDefault]
}

func (r *LocalizationsStatistics) LocalizationNumber() *MathStatistics {
	return r.metrics[SeriesLocale]
}

func (r *LocalizationsStatistics) LocalizationNumberNonZero() *MathStatistics {
	return r.metrics[SeriesLocaleNonZero]
}

// TopLocalizations returns the raw locale table
func (r *LocalizationsStatistics) TopLocalizations() []CategoryEntry {
	return append([]CategoryEntry(nil), r.topLocalizations...)
}

// TopLocalizationsNormalized returns the base language table
func (r *LocalizationsStatistics) TopLocalizationsNormalized() []CategoryEntry {
	return append([]CategoryEntry(nil), r.topLocalizationsNormalized...)
}

type localizationsStatisticsJSON struct {
	AnalyzedApks               int                        `json:"analyzedApks"`
	SkippedRecords             int                        `json:"skippedRecords"`
	Skipped                    []SkippedRecord            `json:"skipped"`
	Metrics                    map[string]*MathStatistics `json:"metrics"`
	TopLocalizations           []CategoryEntry            `json:"topLocalizations"`
	TopLocalizationsNormalized []CategoryEntry            `json:"topLocalizationsNormalized"`
}

// MarshalJSON writes the report in its persisted form
func (r *LocalizationsStatistics) MarshalJSON() ([]byte, error) {
	out := localizationsStatisticsJSON{
		AnalyzedApks:               r.analyzedApks,
		SkippedRecords:             r.skippedRecords,
		Skipped:                    r.skipped,
		Metrics:                    r.metrics,
		TopLocalizations:           r.topLocalizations,
		TopLocalizationsNormalized: r.topLocalizationsNormalized,
	}
	if out.Skipped == nil {
		out.Skipped = []SkippedRecord{}
	}
	if out.TopLocalizations == nil {
		out.TopLocalizations = []CategoryEntry{}
	}
	if out.TopLocalizationsNormalized == nil {
		out.TopLocalizationsNormalized = []CategoryEntry{}
	}
	return json.Marshal(out)
}
