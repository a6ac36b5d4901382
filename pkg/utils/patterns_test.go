package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePatterns(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "should parse comma-separated patterns",
			input:    "*.json,*.tmp,archive/",
			expected: []string{"*.json", "*.tmp", "archive/"},
		},
		{
			name:     "should handle spaces around commas",
			input:    "*.json, *.tmp , archive/",
			expected: []string{"*.json", "*.tmp", "archive/"},
		},
		{
			name:     "should handle empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "should filter out empty patterns",
			input:    "*.json,,*.tmp,",
			expected: []string{"*.json", "*.tmp"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParsePatterns(tt.input))
		})
	}
}

func TestPatternMatcher(t *testing.T) {
	t.Run("should handle ignore patterns", func(t *testing.T) {
		pm := NewPatternMatcher([]string{"*.tmp", "archive/"}, nil)

		assert.True(t, pm.ShouldIgnore("partial.tmp"))
		assert.True(t, pm.ShouldIgnore("archive/2019/app.json"))
		assert.True(t, pm.ShouldIgnore("data/archive/app.json"))
		assert.False(t, pm.ShouldIgnore("data/app.json"))
	})

	t.Run("should handle include patterns", func(t *testing.T) {
		pm := NewPatternMatcher(nil, []string{"*.json"})

		assert.True(t, pm.ShouldInclude("app.json"))
		assert.True(t, pm.ShouldInclude("nested/dir/app.json"))
		assert.False(t, pm.ShouldInclude("README.md"))
		assert.False(t, pm.ShouldInclude("app.json.bak"), "globs do not match as substrings")
	})

	t.Run("should include all when no patterns specified", func(t *testing.T) {
		pm := NewPatternMatcher(nil, nil)

		assert.True(t, pm.Selects("any.file"))
		assert.False(t, pm.ShouldIgnore("any.file"))
	})

	t.Run("should combine ignore and include", func(t *testing.T) {
		pm := NewPatternMatcher([]string{"fixtures"}, []string{"*.json"})

		assert.True(t, pm.Selects("apps/app.json"))
		assert.False(t, pm.Selects("fixtures/app.json"))
		assert.False(t, pm.Selects("apps/notes.txt"))
	})
}
