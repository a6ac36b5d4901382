package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"apkstats/internal/statistics"
	"apkstats/pkg/models"
	"apkstats/pkg/utils"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading and validation
type Loader struct {
	validate *validator.Validate
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// LoadConfig loads configuration from file or returns default config. A
// missing file is not an error.
func (l *Loader) LoadConfig(configFile string) (*models.Config, error) {
	config := l.getDefaultConfig()

	if configFile == "" {
		return config, nil
	}

	data, err := os.ReadFile(configFile)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// getDefaultConfig returns the default configuration
func (l *Loader) getDefaultConfig() *models.Config {
	defaults := statistics.DefaultOptions()

	return &models.Config{
		GitLab: models.GitLabConfig{
			BaseURL:  "https://gitlab.com",
			TokenEnv: "GITLAB_TOKEN",
		},
		GitHub: models.GitHubConfig{
			BaseURL:  "https://api.github.com",
			TokenEnv: "GITHUB_TOKEN",
		},
		Processing: models.ProcessingConfig{
			Ignore: []string{
				".git/",
				"node_modules/",
				".DS_Store",
			},
			IncludeOnly:     []string{"*.json"},
			MaxDocumentSize: "10MB",
			MaxConcurrency:  20,
		},
		Statistics: models.StatisticsConfig{
			TopK:                      defaults.TopK,
			Percentiles:               append([]float64(nil), defaults.Percentiles...),
			NonDefaultStringResources: defaults.NonDefaultStringResources,
			ProgressInterval:          defaults.ProgressInterval,
			Shards:                    1,
			MaxReportedSkips:          defaults.MaxReportedSkips,
		},
		Output: models.OutputConfig{
			Directory:      "./apkstats-output",
			Format:         "table",
			OrganizeByDate: false,
		},
		Logging: models.LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// OverrideWithFlags overrides config values with command line flags
func (l *Loader) OverrideWithFlags(config *models.Config, flags *models.CLIOptions) error {
	if flags.BaseURL != "" {
		if isGitHubURL(flags.BaseURL) || models.Platform(flags.DefaultPlatform) == models.PlatformGitHub {
			config.GitHub.BaseURL = flags.BaseURL
		} else {
			config.GitLab.BaseURL = flags.BaseURL
		}
	}

	if flags.Output != "" {
		config.Output.Directory = flags.Output
	}

	if flags.Format != "" {
		config.Output.Format = flags.Format
	}

	if flags.Ignore != "" {
		config.Processing.Ignore = utils.ParsePatterns(flags.Ignore)
	}

	if flags.IncludeOnly != "" {
		config.Processing.IncludeOnly = utils.ParsePatterns(flags.IncludeOnly)
	}

	if flags.MaxConcurrency > 0 {
		config.Processing.MaxConcurrency = flags.MaxConcurrency
	}

	if flags.TopK >= 0 {
		config.Statistics.TopK = flags.TopK
	}

	if flags.Shards > 0 {
		config.Statistics.Shards = flags.Shards
	}

	return nil
}

// ValidateConfig validates the configuration
func (l *Loader) ValidateConfig(config *models.Config) error {
	if err := l.validate.Struct(config); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return fmt.Errorf("invalid configuration: %s", describe(validationErrs))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if config.Processing.MaxDocumentSize != "" {
		if _, err := utils.ParseSize(config.Processing.MaxDocumentSize); err != nil {
			return fmt.Errorf("invalid max_document_size: %w", err)
		}
	}

	return nil
}

// StatisticsOptions maps the statistics section onto processor options
func StatisticsOptions(config *models.Config) statistics.Options {
	return statistics.Options{
		TopK:                      config.Statistics.TopK,
		Percentiles:               config.Statistics.Percentiles,
		NonDefaultStringResources: config.Statistics.NonDefaultStringResources,
		ProgressInterval:          config.Statistics.ProgressInterval,
		MaxReportedSkips:          config.Statistics.MaxReportedSkips,
	}
}

func describe(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func isGitHubURL(baseURL string) bool {
	return strings.Contains(baseURL, "github")
}
