package models

import (
	"time"
)

// Config represents the complete configuration for apkstats
type Config struct {
	GitLab     GitLabConfig     `yaml:"gitlab"`
	GitHub     GitHubConfig     `yaml:"github"`
	Processing ProcessingConfig `yaml:"processing"`
	Statistics StatisticsConfig `yaml:"statistics"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// GitLabConfig contains GitLab connection settings
type GitLabConfig struct {
	BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
	TokenEnv string `yaml:"token_env"`
}

// GitHubConfig contains GitHub connection settings
type GitHubConfig struct {
	BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
	TokenEnv string `yaml:"token_env"`
}

// ProcessingConfig contains record document loading settings
type ProcessingConfig struct {
	Ignore          []string `yaml:"ignore"`
	IncludeOnly     []string `yaml:"include_only"`
	MaxDocumentSize string   `yaml:"max_document_size"`
	MaxConcurrency  int      `yaml:"max_concurrency" validate:"gt=0"`
	MaxDocuments    int      `yaml:"max_documents" validate:"gte=0"` // 0 means unlimited
}

// StatisticsConfig contains aggregation settings
type StatisticsConfig struct {
	TopK                      int       `yaml:"top_k" validate:"gte=0"` // 0 means every key
	Percentiles               []float64 `yaml:"percentiles" validate:"dive,gte=0,lte=100"`
	NonDefaultStringResources int       `yaml:"non_default_string_resources" validate:"gte=0"`
	ProgressInterval          int       `yaml:"progress_interval" validate:"gt=0"`
	Shards                    int       `yaml:"shards" validate:"gte=1"`
	MaxReportedSkips          int       `yaml:"max_reported_skips" validate:"gte=0"`
}

// OutputConfig contains report output settings
type OutputConfig struct {
	Directory      string `yaml:"directory" validate:"required"`
	Format         string `yaml:"format" validate:"oneof=table markdown json"`
	OrganizeByDate bool   `yaml:"organize_by_date"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Platform represents where a record corpus is stored
type Platform string

const (
	PlatformGitLab Platform = "gitlab"
	PlatformGitHub Platform = "github"
	PlatformLocal  Platform = "local"
)

// SourceInfo contains parsed record source information
type SourceInfo struct {
	Platform Platform
	Owner    string
	Name     string
	FullName string // owner/repo format, or absolute path for local sources
	URL      string // original URL if provided
	Branch   string // target branch, empty means default branch
	Path     string // sub-directory holding the documents, empty means the whole tree
}

// DocumentEntry describes one record document listed by a provider
type DocumentEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// ApkData is one analyzed package's metadata document
type ApkData struct {
	FileName     string        `json:"fileName"`
	ResourceData *ResourceData `json:"resourceData,omitempty"`
}

// ResourceData holds the resource-level attributes extracted from a package
type ResourceData struct {
	NumberOfStringResource *int     `json:"numberOfStringResource,omitempty"`
	Locale                 []string `json:"locale"`
}

// ProcessingResult summarizes one analysis run
type ProcessingResult struct {
	Sources         []SourceInfo
	TotalDocuments  int
	AnalyzedRecords int
	SkippedRecords  int
	TotalSize       int64
	ProcessedAt     time.Time
	Duration        time.Duration
	Errors          []error
}

// CLIOptions contains command-line options
type CLIOptions struct {
	Token           string
	BaseURL         string
	Output          string
	Format          string
	Ignore          string
	IncludeOnly     string
	ConfigFile      string
	DefaultPlatform string
	TopK            int // negative keeps the configured value
	Shards          int // 0 keeps the configured value
	MaxConcurrency  int // 0 keeps the configured value
	Verbose         bool
	Quiet           bool
	DryRun          bool
}
