package statistics

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"apkstats/pkg/logger"
	"apkstats/pkg/models"

	"golang.org/x/sync/errgroup"
)

// Observed metrics. Each one feeds one or more series and owns an extreme.
const (
	MetricStringXMLResources = "string_xml_resources"
	MetricLocale             = "locale"
)

// Series reported by the localizations processor
const (
	SeriesStringXMLResources           = "string_xml_resources"
	SeriesStringXMLResourcesNonDefault = "string_xml_resources_non_default"
	SeriesLocale                       = "locale"
	SeriesLocaleNonZero                = "locale_non_zero"
)

// series routes values of one metric into a named sample. accept filters the
// values; a nil accept keeps all of them. The series name is also the slot the
// computed statistics are published under in the report.
type series struct {
	name   string
	metric string
	accept func(value float64) bool
}

// Options tune a LocalizationsProcessor
type Options struct {
	// TopK limits the locale tables, 0 keeps every key
	TopK int
	// Percentiles are the cut-points computed for every series
	Percentiles []float64
	// NonDefaultStringResources is the highest string resource count still
	// considered the platform default
	NonDefaultStringResources int
	// ProgressInterval is how many records pass between progress logs
	ProgressInterval int
	// MaxReportedSkips caps the skipped records listed in the report
	MaxReportedSkips int
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		TopK:                      25,
		Percentiles:               DefaultPercentiles,
		NonDefaultStringResources: 1,
		ProgressInterval:          1000,
		MaxReportedSkips:          100,
	}
}

// LocalizationsProcessor computes string resource and localization statistics
// over a stream of records. A processor holds no pass state and may be reused.
type LocalizationsProcessor struct {
	opts   Options
	series []series
}

// NewLocalizationsProcessor creates a processor with the given options
func NewLocalizationsProcessor(opts Options) *LocalizationsProcessor {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultOptions().ProgressInterval
	}
	if opts.MaxReportedSkips < 0 {
		opts.MaxReportedSkips = 0
	}

	threshold := float64(opts.NonDefaultStringResources)
	return &LocalizationsProcessor{
		opts: opts,
		series: []series{
			{name: SeriesStringXMLResources, metric: MetricStringXMLResources},
			{name: SeriesStringXMLResourcesNonDefault, metric: MetricStringXMLResources, accept: func(v float64) bool { return v > threshold }},
			{name: SeriesLocale, metric: MetricLocale},
			{name: SeriesLocaleNonZero, metric: MetricLocale, accept: func(v float64) bool { return v != 0 }},
		},
	}
}

// Process runs one forward pass over records and assembles the report.
// Elements carrying an error, nil records and records without resource data
// are skipped and reported, never fatal. A nil or empty sequence returns
// ErrInvalidArgument and no report.
func (p *LocalizationsProcessor) Process(records iter.Seq2[*models.ApkData, error]) (*LocalizationsStatistics, error) {
	if records == nil {
		return nil, fmt.Errorf("%w: records sequence is nil", ErrInvalidArgument)
	}

	acc := newAccumulator(p.series, p.opts.MaxReportedSkips)
	seen := 0
	for record, err := range records {
		if seen%p.opts.ProgressInterval == 0 {
			logger.Logger.WithField("index", seen).Info("Loading record")
		}
		acc.observe(seen, record, err)
		seen++
	}

	if seen == 0 {
		return nil, fmt.Errorf("%w: no records to process", ErrInvalidArgument)
	}

	return p.assemble(acc)
}

// LoadedRecord is one element of a record stream held in memory: the decoded
// record, or the error that kept it from loading.
type LoadedRecord struct {
	Record *models.ApkData
	Err    error
}

// ProcessRecords runs Process over a slice. nil elements count as unreadable.
func (p *LocalizationsProcessor) ProcessRecords(records []*models.ApkData) (*LocalizationsStatistics, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records to process", ErrInvalidArgument)
	}
	return p.Process(recordSeq(records))
}

// ProcessSharded splits records into contiguous shards, accumulates them
// concurrently and merges the shards in input order. The report is identical
// to the one Process produces over the same elements, tie-breaks and skip
// reasons included.
func (p *LocalizationsProcessor) ProcessSharded(ctx context.Context, records []LoadedRecord, shards int) (*LocalizationsStatistics, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records to process", ErrInvalidArgument)
	}
	if shards <= 1 || len(records) < shards {
		return p.Process(loadedSeq(records))
	}

	chunkSize := (len(records) + shards - 1) / shards
	var chunks [][]LoadedRecord
	for chunk := range slices.Chunk(records, chunkSize) {
		chunks = append(chunks, chunk)
	}

	logger.Logger.WithFields(map[string]interface{}{
		"records": len(records),
		"shards":  len(chunks),
	}).Info("Processing records in shards")

	accs := make([]*accumulator, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		offset := i * chunkSize
		g.Go(func() error {
			acc := newAccumulator(p.series, p.opts.MaxReportedSkips)
			for j, loaded := range chunk {
				if err := ctx.Err(); err != nil {
					return err
				}
				acc.observe(offset+j, loaded.Record, loaded.Err)
			}
			accs[i] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sharded pass aborted: %w", err)
	}

	merged := accs[0]
	for _, acc := range accs[1:] {
		merged.merge(acc)
	}
	return p.assemble(merged)
}

// assemble turns the final accumulator into an immutable report
func (p *LocalizationsProcessor) assemble(acc *accumulator) (*LocalizationsStatistics, error) {
	report := &LocalizationsStatistics{
		analyzedApks:   acc.analyzed,
		skippedRecords: acc.skippedCount,
		skipped:        acc.skipped,
		metrics:        make(map[string]*MathStatistics, len(p.series)),
		order:          make([]string, 0, len(p.series)),
	}

	for _, s := range p.series {
		logger.Logger.WithField("series", s.name).Debug("Started processing series")

		sample := acc.samples[s.name]
		var extreme *RecordPair
		if pair, ok := acc.extremes.Snapshot(s.metric); ok {
			extreme = &pair
		}

		ms, err := NewMathStatistics(NewPercentagePair(len(sample), acc.analyzed), sample, p.opts.Percentiles, extreme)
		if err != nil {
			return nil, fmt.Errorf("failed to compute %s statistics: %w", s.name, err)
		}
		report.metrics[s.name] = ms
		report.order = append(report.order, s.name)

		logger.Logger.WithFields(map[string]interface{}{
			"series":  s.name,
			"samples": len(sample),
		}).Debug("Finished processing series")
	}

	report.topLocalizations = acc.locales.TopK(p.opts.TopK, acc.localeRecords)
	report.topLocalizationsNormalized = acc.normalized.TopK(p.opts.TopK, acc.localeRecords)

	logger.Logger.WithFields(map[string]interface{}{
		"analyzed": acc.analyzed,
		"skipped":  acc.skippedCount,
	}).Info("Localization statistics assembled")

	return report, nil
}

func recordSeq(records []*models.ApkData) iter.Seq2[*models.ApkData, error] {
	return func(yield func(*models.ApkData, error) bool) {
		for _, record := range records {
			if !yield(record, nil) {
				return
			}
		}
	}
}

func loadedSeq(records []LoadedRecord) iter.Seq2[*models.ApkData, error] {
	return func(yield func(*models.ApkData, error) bool) {
		for _, loaded := range records {
			if !yield(loaded.Record, loaded.Err) {
				return
			}
		}
	}
}
