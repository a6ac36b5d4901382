package utils

import (
	"path/filepath"
	"strings"
)

// PatternMatcher decides which documents of a source take part in a run.
// A path is selected when it matches no ignore pattern and, if include
// patterns are set, at least one of them.
type PatternMatcher struct {
	ignorePatterns  []string
	includePatterns []string
}

// NewPatternMatcher creates a new pattern matcher
func NewPatternMatcher(ignorePatterns, includePatterns []string) *PatternMatcher {
	return &PatternMatcher{
		ignorePatterns:  ignorePatterns,
		includePatterns: includePatterns,
	}
}

// Selects reports whether a document path passes both pattern lists
func (pm *PatternMatcher) Selects(docPath string) bool {
	return !pm.ShouldIgnore(docPath) && pm.ShouldInclude(docPath)
}

// ShouldIgnore checks if a document matches any ignore pattern
func (pm *PatternMatcher) ShouldIgnore(docPath string) bool {
	for _, pattern := range pm.ignorePatterns {
		if matchesPattern(docPath, pattern) {
			return true
		}
	}
	return false
}

// ShouldInclude returns true if no include patterns are set or the document
// matches one of them
func (pm *PatternMatcher) ShouldInclude(docPath string) bool {
	if len(pm.includePatterns) == 0 {
		return true
	}

	for _, pattern := range pm.includePatterns {
		if matchesPattern(docPath, pattern) {
			return true
		}
	}
	return false
}

// matchesPattern tries the pattern as a glob on the base name, as a glob on
// the full path, as a directory prefix when it ends with a slash, and
// finally as a substring
func matchesPattern(docPath, pattern string) bool {
	docPath = filepath.ToSlash(docPath)

	if matched, err := filepath.Match(pattern, filepath.Base(docPath)); err == nil && matched {
		return true
	}

	if matched, err := filepath.Match(pattern, docPath); err == nil && matched {
		return true
	}

	if strings.HasSuffix(pattern, "/") {
		return strings.HasPrefix(docPath, pattern) || strings.Contains(docPath, "/"+pattern)
	}

	// Globs that did not match above never fall through to substring matching
	if strings.ContainsAny(pattern, "*?[") {
		return false
	}
	return strings.Contains(docPath, pattern)
}

// ParsePatterns parses comma-separated pattern strings into slices
func ParsePatterns(patternStr string) []string {
	if patternStr == "" {
		return nil
	}

	var result []string
	for _, pattern := range strings.Split(patternStr, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern != "" {
			result = append(result, pattern)
		}
	}
	return result
}
