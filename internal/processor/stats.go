package processor

import (
	"apkstats/pkg/models"
	"apkstats/pkg/utils"
)

// StatsCalculator handles run summary calculation
type StatsCalculator struct{}

// NewStatsCalculator creates a new stats calculator
func NewStatsCalculator() *StatsCalculator {
	return &StatsCalculator{}
}

// GetProcessingStats returns statistics about one run, keyed for structured
// logging
func (sc *StatsCalculator) GetProcessingStats(result *models.ProcessingResult) map[string]interface{} {
	stats := make(map[string]interface{})

	stats["sources"] = len(result.Sources)
	stats["total_documents"] = result.TotalDocuments
	stats["analyzed_records"] = result.AnalyzedRecords
	stats["skipped_records"] = result.SkippedRecords
	stats["total_size"] = result.TotalSize
	stats["total_size_human"] = utils.FormatBytes(result.TotalSize)
	stats["processing_duration"] = result.Duration.String()
	stats["errors_count"] = len(result.Errors)
	stats["avg_document_size"] = int64(0)
	stats["skip_rate"] = 0.0

	if result.TotalDocuments > 0 {
		stats["avg_document_size"] = result.TotalSize / int64(result.TotalDocuments)
		stats["avg_document_size_human"] = utils.FormatBytes(result.TotalSize / int64(result.TotalDocuments))
	}

	if seen := result.AnalyzedRecords + result.SkippedRecords; seen > 0 {
		stats["skip_rate"] = float64(result.SkippedRecords) / float64(seen)
	}

	return stats
}
