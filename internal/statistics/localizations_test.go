package statistics

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"slices"
	"testing"

	"apkstats/pkg/models"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func localeRecord(name string, locales ...string) *models.ApkData {
	if locales == nil {
		locales = []string{}
	}
	return &models.ApkData{FileName: name, ResourceData: &models.ResourceData{Locale: locales}}
}

func stringsRecord(name string, count int) *models.ApkData {
	return &models.ApkData{FileName: name, ResourceData: &models.ResourceData{NumberOfStringResource: intPtr(count)}}
}

func loadedRecords(records []*models.ApkData) []LoadedRecord {
	out := make([]LoadedRecord, len(records))
	for i, record := range records {
		out[i] = LoadedRecord{Record: record}
	}
	return out
}

func entryKeys(entries []CategoryEntry) map[string]int {
	out := make(map[string]int, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Share.Count
	}
	return out
}

func TestLocalizationsProcessor_LocaleScenario(t *testing.T) {
	processor := NewLocalizationsProcessor(DefaultOptions())

	report, err := processor.ProcessRecords([]*models.ApkData{
		localeRecord("a", "en-US", "en-GB"),
		localeRecord("b", "en"),
		localeRecord("c"),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.AnalyzedApks())
	assert.Equal(t, map[string]int{"en": 2}, entryKeys(report.TopLocalizationsNormalized()))
	assert.Equal(t, map[string]int{"en-us": 1, "en-gb": 1, "en": 1}, entryKeys(report.TopLocalizations()))

	locales := report.LocalizationNumber()
	assert.Equal(t, 3, locales.Count())
	mean, _ := locales.Mean()
	assert.InDelta(t, 1.0, mean, 1e-9, "sample is [2, 1, 0]")
	minimum, _ := locales.Min()
	assert.Equal(t, 0.0, minimum)

	nonZero := report.LocalizationNumberNonZero()
	assert.Equal(t, 2, nonZero.Count(), "sample is [2, 1]")
	assert.Equal(t, NewPercentagePair(2, 3), nonZero.Coverage())

	for _, ms := range []*MathStatistics{locales, nonZero} {
		extreme, ok := ms.Extreme()
		require.True(t, ok)
		assert.Equal(t, RecordPair{Value: 2, SourceID: "a"}, extreme)
	}

	normalized := report.TopLocalizationsNormalized()
	require.Len(t, normalized, 1)
	pct, ok := normalized[0].Share.Percentage()
	require.True(t, ok)
	assert.InDelta(t, 200.0/3.0, pct, 1e-9)
}

func TestLocalizationsProcessor_InvalidArgument(t *testing.T) {
	processor := NewLocalizationsProcessor(DefaultOptions())

	t.Run("should reject nil slice", func(t *testing.T) {
		report, err := processor.ProcessRecords(nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Nil(t, report)
	})

	t.Run("should reject nil sequence", func(t *testing.T) {
		report, err := processor.Process(nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Nil(t, report)
	})

	t.Run("should reject empty sequence", func(t *testing.T) {
		empty := func(yield func(*models.ApkData, error) bool) {}
		report, err := processor.Process(empty)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Nil(t, report)
	})

	t.Run("should reject empty input for sharded pass", func(t *testing.T) {
		_, err := processor.ProcessSharded(context.Background(), []LoadedRecord{}, 4)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestLocalizationsProcessor_AllRecordsSkipped(t *testing.T) {
	processor := NewLocalizationsProcessor(DefaultOptions())

	report, err := processor.ProcessRecords([]*models.ApkData{
		nil,
		{FileName: "no-resources.json"},
	})
	require.NoError(t, err, "skipping every record is not an invalid argument")

	assert.Equal(t, 0, report.AnalyzedApks())
	assert.Equal(t, 2, report.SkippedRecords())
	for _, name := range report.MetricNames() {
		ms, ok := report.Metric(name)
		require.True(t, ok)
		assert.False(t, ms.Defined(), name)
		assert.Equal(t, 0, ms.Coverage().Count, name)
		_, ok = ms.Extreme()
		assert.False(t, ok, name)
	}
	assert.Empty(t, report.TopLocalizations())
	assert.Empty(t, report.TopLocalizationsNormalized())
}

func TestLocalizationsProcessor_SkipsUnreadableRecords(t *testing.T) {
	processor := NewLocalizationsProcessor(DefaultOptions())
	loadErr := errors.New("unexpected end of JSON input")

	var records iter.Seq2[*models.ApkData, error] = func(yield func(*models.ApkData, error) bool) {
		_ = yield(stringsRecord("a.json", 10), nil) &&
			yield(nil, loadErr) &&
			yield(&models.ApkData{FileName: "bare.json"}, nil) &&
			yield(stringsRecord("b.json", 1), nil)
	}

	report, err := processor.Process(records)
	require.NoError(t, err)

	assert.Equal(t, 2, report.AnalyzedApks(), "skipped records stay out of the denominator")
	assert.Equal(t, 2, report.SkippedRecords())

	skipped := report.Skipped()
	require.Len(t, skipped, 2)
	assert.Equal(t, 1, skipped[0].Index)
	assert.Contains(t, skipped[0].Reason, "unexpected end of JSON input")
	assert.Equal(t, "bare.json", skipped[1].SourceID)
	assert.Contains(t, skipped[1].Reason, "missing resource data")

	stringsStats := report.DefaultStringXMLEntries()
	assert.Equal(t, NewPercentagePair(2, 2), stringsStats.Coverage())
}

func TestLocalizationsProcessor_StringResources(t *testing.T) {
	processor := NewLocalizationsProcessor(DefaultOptions())

	report, err := processor.ProcessRecords([]*models.ApkData{
		stringsRecord("one.json", 1),
		stringsRecord("zero.json", 0),
		stringsRecord("many.json", 40),
		stringsRecord("tie.json", 40),
		localeRecord("locale-only.json", "de"),
	})
	require.NoError(t, err)

	all := report.DefaultStringXMLEntries()
	assert.Equal(t, 4, all.Count())
	assert.Equal(t, NewPercentagePair(4, 5), all.Coverage())

	nonDefault := report.DefaultStringXMLEntriesNonDefault()
	assert.Equal(t, 2, nonDefault.Count(), "counts up to the default are excluded")
	median, _ := nonDefault.Median()
	assert.Equal(t, 40.0, median)

	extreme, ok := all.Extreme()
	require.True(t, ok)
	assert.Equal(t, RecordPair{Value: 40, SourceID: "many.json"}, extreme, "first record wins the tie")

	localeStats := report.LocalizationNumber()
	assert.Equal(t, NewPercentagePair(1, 5), localeStats.Coverage())
}

func TestLocalizationsProcessor_ConfigurableNonDefault(t *testing.T) {
	opts := DefaultOptions()
	opts.NonDefaultStringResources = 5
	processor := NewLocalizationsProcessor(opts)

	report, err := processor.ProcessRecords([]*models.ApkData{
		stringsRecord("a", 5),
		stringsRecord("b", 6),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.DefaultStringXMLEntriesNonDefault().Count())
}

func TestLocalizationsProcessor_RecordsWithoutLocalesDoNotAffectTables(t *testing.T) {
	processor := NewLocalizationsProcessor(DefaultOptions())
	base := []*models.ApkData{
		localeRecord("a", "en", "de"),
		localeRecord("b", "en"),
	}
	withExtra := append([]*models.ApkData{}, base...)
	withExtra = append(withExtra, stringsRecord("c", 3), stringsRecord("d", 4))

	baseReport, err := processor.ProcessRecords(base)
	require.NoError(t, err)
	extraReport, err := processor.ProcessRecords(withExtra)
	require.NoError(t, err)

	assert.Equal(t, baseReport.TopLocalizations(), extraReport.TopLocalizations())
	assert.Equal(t, baseReport.TopLocalizationsNormalized(), extraReport.TopLocalizationsNormalized())
	assert.Equal(t, 2, extraReport.TopLocalizations()[0].Share.Total)
}

func TestLocalizationsProcessor_PerRecordDeduplication(t *testing.T) {
	processor := NewLocalizationsProcessor(DefaultOptions())

	report, err := processor.ProcessRecords([]*models.ApkData{
		localeRecord("a", "en-US", "EN-us", "en_GB", "en", "pt-BR", "pt-PT"),
		localeRecord("b", "pt"),
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"en": 1, "pt": 2}, entryKeys(report.TopLocalizationsNormalized()))
	assert.Equal(t, map[string]int{"en-us": 1, "en_gb": 1, "en": 1, "pt-br": 1, "pt-pt": 1, "pt": 1}, entryKeys(report.TopLocalizations()))

	for _, entry := range report.TopLocalizationsNormalized() {
		assert.LessOrEqual(t, entry.Share.Count, entry.Share.Total)
	}

	extreme, _ := report.LocalizationNumber().Extreme()
	assert.Equal(t, 6.0, extreme.Value, "cardinality counts every declared tag")
}

func TestLocalizationsProcessor_TopK(t *testing.T) {
	opts := DefaultOptions()
	opts.TopK = 2
	processor := NewLocalizationsProcessor(opts)

	report, err := processor.ProcessRecords([]*models.ApkData{
		localeRecord("a", "en", "de", "fr"),
		localeRecord("b", "en", "de"),
		localeRecord("c", "en"),
	})
	require.NoError(t, err)

	top := report.TopLocalizations()
	require.Len(t, top, 2)
	assert.Equal(t, "en", top[0].Key)
	assert.Equal(t, NewPercentagePair(3, 3), top[0].Share)
	assert.Equal(t, "de", top[1].Key)
}

func TestLocalizationsProcessor_SkipListIsCapped(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxReportedSkips = 2
	processor := NewLocalizationsProcessor(opts)

	records := make([]*models.ApkData, 5)
	records = append(records, localeRecord("ok", "en"))

	report, err := processor.ProcessRecords(records)
	require.NoError(t, err)

	assert.Equal(t, 5, report.SkippedRecords())
	assert.Len(t, report.Skipped(), 2)
	assert.Equal(t, 1, report.AnalyzedApks())
}

func TestLocalizationsProcessor_EarlyStopKeepsStateConsistent(t *testing.T) {
	processor := NewLocalizationsProcessor(DefaultOptions())
	records := []*models.ApkData{
		localeRecord("a", "en", "de"),
		localeRecord("b", "fr"),
		localeRecord("c", "es"),
	}

	var firstTwo iter.Seq2[*models.ApkData, error] = func(yield func(*models.ApkData, error) bool) {
		for _, r := range records[:2] {
			if !yield(r, nil) {
				return
			}
		}
	}

	report, err := processor.Process(firstTwo)
	require.NoError(t, err)
	assert.Equal(t, 2, report.AnalyzedApks())
	assert.Equal(t, 2, report.LocalizationNumber().Count())
	assert.Equal(t, 0, entryKeys(report.TopLocalizations())["es"])
}

func TestLocalizationsProcessor_ShardedMatchesSequential(t *testing.T) {
	processor := NewLocalizationsProcessor(DefaultOptions())

	var records []*models.ApkData
	locales := []string{"en-US", "de", "fr-FR", "en", "pt-BR", "es"}
	for i := 0; i < 97; i++ {
		switch {
		case i%13 == 0:
			records = append(records, nil)
		case i%5 == 0:
			records = append(records, stringsRecord(fmt.Sprintf("s%02d.json", i), i%7))
		default:
			record := localeRecord(fmt.Sprintf("l%02d.json", i), locales[:i%len(locales)]...)
			record.ResourceData.NumberOfStringResource = intPtr(i % 11)
			records = append(records, record)
		}
	}

	sequential, err := processor.ProcessRecords(records)
	require.NoError(t, err)

	for _, shards := range []int{2, 3, 8, 200} {
		t.Run(fmt.Sprintf("shards=%d", shards), func(t *testing.T) {
			sharded, err := processor.ProcessSharded(context.Background(), loadedRecords(records), shards)
			require.NoError(t, err)

			expected, err := json.Marshal(sequential)
			require.NoError(t, err)
			actual, err := json.Marshal(sharded)
			require.NoError(t, err)
			assert.JSONEq(t, string(expected), string(actual))
		})
	}
}

func TestLocalizationsProcessor_ShardedKeepsLoadErrors(t *testing.T) {
	processor := NewLocalizationsProcessor(DefaultOptions())
	records := []LoadedRecord{
		{Record: localeRecord("a", "en")},
		{Err: errors.New("failed to decode broken.json: invalid character 'n'")},
		{Record: &models.ApkData{FileName: "bare.json"}},
		{Record: localeRecord("b", "de")},
	}

	sequential, err := processor.Process(loadedSeq(records))
	require.NoError(t, err)
	sharded, err := processor.ProcessSharded(context.Background(), records, 2)
	require.NoError(t, err)

	assert.Equal(t, sequential.Skipped(), sharded.Skipped())

	skipped := sharded.Skipped()
	require.Len(t, skipped, 2)
	assert.Equal(t, 1, skipped[0].Index)
	assert.Contains(t, skipped[0].Reason, "failed to decode broken.json")
	assert.NotContains(t, skipped[0].Reason, "empty record")
	assert.Contains(t, skipped[1].Reason, "missing resource data")
}

func TestLocalizationsProcessor_OrderIndependent(t *testing.T) {
	processor := NewLocalizationsProcessor(DefaultOptions())
	rng := rand.New(rand.NewPCG(7, 11))

	variants := []string{"en", "en-US", "EN_gb", "de", "de_DE", "FR", "fr-ca", "pt-BR", "pt", "es-419", "zh-Hans"}
	records := make([]*models.ApkData, 0, 300)
	for i := range 300 {
		record := &models.ApkData{FileName: fmt.Sprintf("r%03d.json", i), ResourceData: &models.ResourceData{}}
		if rng.IntN(4) > 0 {
			record.ResourceData.NumberOfStringResource = intPtr(rng.IntN(60))
		}
		switch rng.IntN(5) {
		case 0:
			// locale attribute absent
		case 1:
			record.ResourceData.Locale = []string{}
		default:
			n := 1 + rng.IntN(6)
			for range n {
				record.ResourceData.Locale = append(record.ResourceData.Locale, variants[rng.IntN(len(variants))])
			}
		}
		records = append(records, record)
	}

	baseline, err := processor.ProcessRecords(records)
	require.NoError(t, err)

	for round := range 20 {
		shuffled := slices.Clone(records)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		report, err := processor.ProcessRecords(shuffled)
		require.NoError(t, err)

		assert.Equal(t, baseline.AnalyzedApks(), report.AnalyzedApks())
		for _, name := range baseline.MetricNames() {
			want, _ := baseline.Metric(name)
			got, ok := report.Metric(name)
			require.True(t, ok, name)

			assert.Equal(t, want.Count(), got.Count(), "round %d %s", round, name)
			assert.Equal(t, want.Coverage(), got.Coverage(), "round %d %s", round, name)
			wantMean, _ := want.Mean()
			gotMean, _ := got.Mean()
			assert.InDelta(t, wantMean, gotMean, 1e-9, "round %d %s", round, name)
			wantMedian, _ := want.Median()
			gotMedian, _ := got.Median()
			assert.Equal(t, wantMedian, gotMedian, "round %d %s", round, name)
			wantStdDev, _ := want.StdDev()
			gotStdDev, _ := got.StdDev()
			assert.InDelta(t, wantStdDev, gotStdDev, 1e-9, "round %d %s", round, name)
			assert.Equal(t, want.Percentiles(), got.Percentiles(), "round %d %s", round, name)

			wantExtreme, _ := want.Extreme()
			gotExtreme, _ := got.Extreme()
			assert.Equal(t, wantExtreme.Value, gotExtreme.Value, "round %d %s", round, name)
		}

		assert.Equal(t, baseline.TopLocalizations(), report.TopLocalizations(), "round %d", round)
		assert.Equal(t, baseline.TopLocalizationsNormalized(), report.TopLocalizationsNormalized(), "round %d", round)
	}
}

func TestLocalizationsProcessor_ShardedHonorsCancellation(t *testing.T) {
	processor := NewLocalizationsProcessor(DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := []*models.ApkData{localeRecord("a", "en"), localeRecord("b", "de"), localeRecord("c", "fr")}
	_, err := processor.ProcessSharded(ctx, loadedRecords(records), 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalizationsStatistics_JSON(t *testing.T) {
	processor := NewLocalizationsProcessor(DefaultOptions())
	report, err := processor.ProcessRecords([]*models.ApkData{localeRecord("a", "en-US")})
	require.NoError(t, err)

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded struct {
		AnalyzedApks     int                        `json:"analyzedApks"`
		Metrics          map[string]json.RawMessage `json:"metrics"`
		TopLocalizations []CategoryEntry            `json:"topLocalizations"`
		Skipped          []SkippedRecord            `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, 1, decoded.AnalyzedApks)
	assert.Len(t, decoded.Metrics, 4)
	assert.Contains(t, decoded.Metrics, SeriesLocaleNonZero)
	assert.Equal(t, report.TopLocalizations(), decoded.TopLocalizations)
	assert.NotNil(t, decoded.Skipped)
}
