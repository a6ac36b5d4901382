package generators

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"apkstats/internal/statistics"
	"apkstats/pkg/models"
	"apkstats/pkg/utils"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Output formats of the console summary
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

const notAvailable = "n/a"

// Generator renders localization reports for files and the console
type Generator struct {
	format string
}

// NewGenerator creates a generator for the given summary format
func NewGenerator(format string) *Generator {
	if format == "" {
		format = FormatTable
	}
	return &Generator{format: format}
}

// ReportDocument is the persisted form of one run
type ReportDocument struct {
	GeneratedAt   time.Time                           `json:"generatedAt"`
	Sources       []string                            `json:"sources"`
	Localizations *statistics.LocalizationsStatistics `json:"localizations"`
}

// GenerateJSON encodes the report document written to localizations.json
func (g *Generator) GenerateJSON(report *statistics.LocalizationsStatistics, result *models.ProcessingResult) ([]byte, error) {
	doc := ReportDocument{
		GeneratedAt:   result.ProcessedAt,
		Sources:       sourceNames(result.Sources),
		Localizations: report,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// GenerateSummary renders the console summary in the generator's format
func (g *Generator) GenerateSummary(report *statistics.LocalizationsStatistics, result *models.ProcessingResult) (string, error) {
	switch g.format {
	case FormatJSON:
		data, err := g.GenerateJSON(report, result)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case FormatTable, FormatMarkdown:
	default:
		return "", fmt.Errorf("unsupported output format: %s", g.format)
	}

	var sb strings.Builder

	if g.format == FormatMarkdown {
		sb.WriteString("# Localization statistics\n\n")
	} else {
		sb.WriteString("Localization statistics\n")
	}
	sb.WriteString(fmt.Sprintf("Sources: %s\n", strings.Join(sourceNames(result.Sources), ", ")))
	sb.WriteString(fmt.Sprintf("Analyzed APKs: %d, skipped records: %d, fetched: %s in %s\n\n",
		report.AnalyzedApks(), report.SkippedRecords(), utils.FormatBytes(result.TotalSize), result.Duration.Round(time.Millisecond)))

	sb.WriteString(g.render(g.metricsTable(report)))
	sb.WriteString("\n\n")
	sb.WriteString(g.render(g.localeTable("Top locales", report.TopLocalizations())))
	sb.WriteString("\n\n")
	sb.WriteString(g.render(g.localeTable("Top base languages", report.TopLocalizationsNormalized())))
	sb.WriteString("\n")

	if skipped := report.Skipped(); len(skipped) > 0 {
		sb.WriteString("\n")
		sb.WriteString(g.render(g.skippedTable(skipped, report.SkippedRecords())))
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

func (g *Generator) render(t table.Writer) string {
	if g.format == FormatMarkdown {
		return t.RenderMarkdown()
	}
	t.SetStyle(table.StyleLight)
	return t.Render()
}

func (g *Generator) metricsTable(report *statistics.LocalizationsStatistics) table.Writer {
	t := table.NewWriter()

	var percentileCuts []float64
	for _, name := range report.MetricNames() {
		if ms, ok := report.Metric(name); ok && ms.Defined() {
			for _, pv := range ms.Percentiles() {
				percentileCuts = append(percentileCuts, pv.Percentile)
			}
			break
		}
	}

	header := table.Row{"Series", "Count", "Coverage", "Mean", "Median", "StdDev", "Min", "Max"}
	for _, p := range percentileCuts {
		header = append(header, "P"+strconv.FormatFloat(p, 'f', -1, 64))
	}
	header = append(header, "Extreme")
	t.AppendHeader(header)

	for _, name := range report.MetricNames() {
		ms, _ := report.Metric(name)
		row := table.Row{
			name,
			ms.Count(),
			formatShare(ms.Coverage()),
			formatValue(ms.Mean()),
			formatValue(ms.Median()),
			formatValue(ms.StdDev()),
			formatValue(ms.Min()),
			formatValue(ms.Max()),
		}
		for _, p := range percentileCuts {
			row = append(row, formatValue(ms.Percentile(p)))
		}
		if extreme, ok := ms.Extreme(); ok {
			row = append(row, fmt.Sprintf("%s (%s)", extreme.SourceID, formatNumber(extreme.Value)))
		} else {
			row = append(row, notAvailable)
		}
		t.AppendRow(row)
	}

	return t
}

func (g *Generator) localeTable(title string, entries []statistics.CategoryEntry) table.Writer {
	t := table.NewWriter()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"#", "Locale", "APKs", "Share"})
	for i, entry := range entries {
		t.AppendRow(table.Row{i + 1, entry.Key, entry.Share.Count, formatShare(entry.Share)})
	}
	return t
}

func (g *Generator) skippedTable(skipped []statistics.SkippedRecord, total int) table.Writer {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Skipped records (%d of %d listed)", len(skipped), total))
	t.AppendHeader(table.Row{"Index", "Source", "Reason"})
	for _, s := range skipped {
		t.AppendRow(table.Row{s.Index, s.SourceID, s.Reason})
	}
	return t
}

func formatShare(pair statistics.PercentagePair) string {
	pct, ok := pair.Percentage()
	if !ok {
		return fmt.Sprintf("%d/%d", pair.Count, pair.Total)
	}
	return fmt.Sprintf("%d/%d (%.2f%%)", pair.Count, pair.Total, pct)
}

func formatValue(value float64, ok bool) string {
	if !ok {
		return notAvailable
	}
	return formatNumber(value)
}

// formatNumber rounds to two decimals and drops trailing zeros
func formatNumber(value float64) string {
	return strconv.FormatFloat(math.Round(value*100)/100, 'f', -1, 64)
}

func sourceNames(sources []models.SourceInfo) []string {
	names := make([]string, 0, len(sources))
	for _, source := range sources {
		name := source.FullName
		if source.Branch != "" {
			name += "#" + source.Branch
		}
		names = append(names, name)
	}
	return names
}
