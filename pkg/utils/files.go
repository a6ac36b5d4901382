package utils

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([KMG]?B)$`)

var sizeMultipliers = map[string]int64{
	"B":  1,
	"KB": 1024,
	"MB": 1024 * 1024,
	"GB": 1024 * 1024 * 1024,
}

// FormatBytes formats byte counts into human-readable strings
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"KB", "MB", "GB", "TB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[exp])
}

// ParseSize parses size strings like "1MB" or "500 KB" into bytes
func ParseSize(sizeStr string) (int64, error) {
	normalized := strings.TrimSpace(strings.ToUpper(sizeStr))

	matches := sizePattern.FindStringSubmatch(normalized)
	if len(matches) != 3 {
		return 0, fmt.Errorf("invalid size format: %q", sizeStr)
	}

	size, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size number %q: %w", matches[1], err)
	}

	return int64(size * float64(sizeMultipliers[matches[2]])), nil
}

// ExtractFileName returns the last element of a slash separated document path
func ExtractFileName(docPath string) string {
	if docPath == "" {
		return ""
	}
	return path.Base(filepath.ToSlash(docPath))
}

// SanitizeName makes a source name safe to use as a file or directory name
func SanitizeName(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"<", "_", ">", "_", "|", "_", "\"", "_", "#", "_",
	)
	return replacer.Replace(name)
}

// DatedDir returns dir/YYYY-MM-DD for the given instant
func DatedDir(dir string, at time.Time) string {
	return filepath.Join(dir, at.Format("2006-01-02"))
}
