package pipeline

import (
	"strings"

	"apkstats/pkg/logger"
	"apkstats/pkg/models"
	"apkstats/pkg/utils"
)

// DocumentFilter selects the documents of a listing that take part in a run
type DocumentFilter struct {
	patternMatcher *utils.PatternMatcher
	maxSize        int64
	prefix         string
}

// NewDocumentFilter creates a filter. maxSize <= 0 disables the size cap and
// an empty prefix keeps the whole tree.
func NewDocumentFilter(ignorePatterns, includePatterns []string, maxSize int64, prefix string) *DocumentFilter {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &DocumentFilter{
		patternMatcher: utils.NewPatternMatcher(ignorePatterns, includePatterns),
		maxSize:        maxSize,
		prefix:         prefix,
	}
}

// FilterDocuments keeps listing order. Sizes a provider did not report are
// checked again once the document is fetched.
func (df *DocumentFilter) FilterDocuments(docs []models.DocumentEntry) []models.DocumentEntry {
	var filtered []models.DocumentEntry

	for _, doc := range docs {
		if df.prefix != "" && !strings.HasPrefix(doc.Path, df.prefix) {
			continue
		}
		if !df.patternMatcher.Selects(doc.Path) {
			continue
		}
		if df.TooLarge(doc.Size) {
			logger.Logger.WithFields(map[string]interface{}{
				"document": doc.Path,
				"size":     utils.FormatBytes(doc.Size),
			}).Debug("Skipping document because it's too large")
			continue
		}
		filtered = append(filtered, doc)
	}

	return filtered
}

// TooLarge reports whether size exceeds the configured cap
func (df *DocumentFilter) TooLarge(size int64) bool {
	return df.maxSize > 0 && size > df.maxSize
}
