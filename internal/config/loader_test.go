package config

import (
	"os"
	"path/filepath"
	"testing"

	"apkstats/internal/statistics"
	"apkstats/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apkstats.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_LoadConfig(t *testing.T) {
	loader := NewLoader()

	t.Run("should load default config when no file specified", func(t *testing.T) {
		config, err := loader.LoadConfig("")
		require.NoError(t, err)

		assert.Equal(t, "./apkstats-output", config.Output.Directory)
		assert.Equal(t, "table", config.Output.Format)
		assert.Equal(t, "GITLAB_TOKEN", config.GitLab.TokenEnv)
		assert.Equal(t, "GITHUB_TOKEN", config.GitHub.TokenEnv)
		assert.Equal(t, []string{"*.json"}, config.Processing.IncludeOnly)
		assert.Equal(t, statistics.DefaultPercentiles, config.Statistics.Percentiles)
		assert.Equal(t, 1, config.Statistics.Shards)
		assert.NoError(t, loader.ValidateConfig(config))
	})

	t.Run("should use default config when file does not exist", func(t *testing.T) {
		config, err := loader.LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
		require.NoError(t, err)
		assert.Equal(t, "./apkstats-output", config.Output.Directory)
	})

	t.Run("should load config from valid file", func(t *testing.T) {
		path := writeConfig(t, `
output:
  directory: "./reports"
  format: markdown
  organize_by_date: true
github:
  token_env: "CUSTOM_GITHUB_TOKEN"
processing:
  ignore: ["fixtures/"]
  include_only: ["*.apk.json"]
  max_document_size: "2MB"
statistics:
  top_k: 10
  percentiles: [50, 95]
  non_default_string_resources: 3
  shards: 4
logging:
  level: debug
  format: json
`)

		config, err := loader.LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "./reports", config.Output.Directory)
		assert.Equal(t, "markdown", config.Output.Format)
		assert.True(t, config.Output.OrganizeByDate)
		assert.Equal(t, "CUSTOM_GITHUB_TOKEN", config.GitHub.TokenEnv)
		assert.Equal(t, "GITLAB_TOKEN", config.GitLab.TokenEnv, "untouched sections keep defaults")
		assert.Equal(t, []string{"fixtures/"}, config.Processing.Ignore)
		assert.Equal(t, []string{"*.apk.json"}, config.Processing.IncludeOnly)
		assert.Equal(t, 10, config.Statistics.TopK)
		assert.Equal(t, []float64{50, 95}, config.Statistics.Percentiles)
		assert.Equal(t, 3, config.Statistics.NonDefaultStringResources)
		assert.Equal(t, 4, config.Statistics.Shards)
		assert.Equal(t, 1000, config.Statistics.ProgressInterval)
		assert.Equal(t, "json", config.Logging.Format)
		assert.NoError(t, loader.ValidateConfig(config))
	})

	t.Run("should fail on malformed YAML", func(t *testing.T) {
		path := writeConfig(t, "output: [unterminated")
		_, err := loader.LoadConfig(path)
		assert.ErrorContains(t, err, "failed to parse config file")
	})
}

func TestLoader_OverrideWithFlags(t *testing.T) {
	loader := NewLoader()

	t.Run("should override values that were set", func(t *testing.T) {
		config, err := loader.LoadConfig("")
		require.NoError(t, err)

		require.NoError(t, loader.OverrideWithFlags(config, &models.CLIOptions{
			Output:         "/tmp/out",
			Format:         "json",
			Ignore:         "a/, b/",
			IncludeOnly:    "*.json,*.jsonl",
			MaxConcurrency: 4,
			TopK:           0,
			Shards:         8,
		}))

		assert.Equal(t, "/tmp/out", config.Output.Directory)
		assert.Equal(t, "json", config.Output.Format)
		assert.Equal(t, []string{"a/", "b/"}, config.Processing.Ignore)
		assert.Equal(t, []string{"*.json", "*.jsonl"}, config.Processing.IncludeOnly)
		assert.Equal(t, 4, config.Processing.MaxConcurrency)
		assert.Equal(t, 0, config.Statistics.TopK, "zero is an explicit request for every key")
		assert.Equal(t, 8, config.Statistics.Shards)
	})

	t.Run("should keep configured values for unset flags", func(t *testing.T) {
		config, err := loader.LoadConfig("")
		require.NoError(t, err)

		require.NoError(t, loader.OverrideWithFlags(config, &models.CLIOptions{TopK: -1}))
		assert.Equal(t, 25, config.Statistics.TopK)
		assert.Equal(t, 20, config.Processing.MaxConcurrency)
		assert.Equal(t, 1, config.Statistics.Shards)
	})

	t.Run("should route the base URL by platform", func(t *testing.T) {
		config, err := loader.LoadConfig("")
		require.NoError(t, err)

		require.NoError(t, loader.OverrideWithFlags(config, &models.CLIOptions{TopK: -1, BaseURL: "https://github.example.com/api/v3"}))
		assert.Equal(t, "https://github.example.com/api/v3", config.GitHub.BaseURL)

		require.NoError(t, loader.OverrideWithFlags(config, &models.CLIOptions{TopK: -1, BaseURL: "https://git.example.com"}))
		assert.Equal(t, "https://git.example.com", config.GitLab.BaseURL)

		require.NoError(t, loader.OverrideWithFlags(config, &models.CLIOptions{TopK: -1, BaseURL: "https://code.example.com/api/v3", DefaultPlatform: "github"}))
		assert.Equal(t, "https://code.example.com/api/v3", config.GitHub.BaseURL)
	})
}

func TestLoader_ValidateConfig(t *testing.T) {
	loader := NewLoader()

	tests := []struct {
		name    string
		mutate  func(*models.Config)
		message string
	}{
		{
			name:    "should reject non-positive concurrency",
			mutate:  func(c *models.Config) { c.Processing.MaxConcurrency = 0 },
			message: "Processing.MaxConcurrency",
		},
		{
			name:    "should reject percentiles out of range",
			mutate:  func(c *models.Config) { c.Statistics.Percentiles = []float64{50, 101} },
			message: "Statistics.Percentiles[1]",
		},
		{
			name:    "should reject zero shards",
			mutate:  func(c *models.Config) { c.Statistics.Shards = 0 },
			message: "Statistics.Shards",
		},
		{
			name:    "should reject unknown output format",
			mutate:  func(c *models.Config) { c.Output.Format = "xlsx" },
			message: "Output.Format",
		},
		{
			name:    "should reject invalid base URL",
			mutate:  func(c *models.Config) { c.GitLab.BaseURL = "not a url" },
			message: "GitLab.BaseURL",
		},
		{
			name:    "should reject invalid size",
			mutate:  func(c *models.Config) { c.Processing.MaxDocumentSize = "lots" },
			message: "invalid max_document_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := loader.LoadConfig("")
			require.NoError(t, err)

			tt.mutate(config)
			assert.ErrorContains(t, loader.ValidateConfig(config), tt.message)
		})
	}
}

func TestStatisticsOptions(t *testing.T) {
	loader := NewLoader()
	config, err := loader.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, statistics.DefaultOptions(), StatisticsOptions(config))
}
