package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"apkstats/internal/adapters"
	"apkstats/internal/config"
	"apkstats/internal/orchestration"
	"apkstats/pkg/logger"
	"apkstats/pkg/models"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Version information
	Version = "0.0.1"

	// CLI flags
	token           string
	baseURL         string
	outputDir       string
	format          string
	ignoreFlag      string
	includeOnly     string
	configFile      string
	defaultPlatform string
	topK            int
	shards          int
	maxConcurrency  int
	verbose         bool
	quiet           bool
	dryRun          bool
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "apkstats",
	Short:   "Localization statistics over analyzed APK records",
	Version: Version,
	Long: `apkstats aggregates per-APK metadata records into localization statistics:
string resource counts, number of locales per package and the most common
locales and base languages.

Records are JSON documents read from a local folder or from a GitHub or
GitLab repository.`,
}

// localizationsCmd represents the localizations command
var localizationsCmd = &cobra.Command{
	Use:   "localizations [source...]",
	Short: "Compute localization statistics over record sources",
	Long: `Read every record document of one or more sources, treat them as one corpus
and report string resource and locale statistics.

Sources:
  - a local folder: ./records or /data/records
  - GitHub: https://github.com/owner/repo[/tree/branch/dir] or owner/repo
  - GitLab: https://gitlab.com/group/project[/-/tree/branch/dir] or a bare project name

Branch Targeting:
  Append #branch to any remote source, e.g. owner/repo#snapshots.

Examples:
  # Local folder
  apkstats localizations ./records

  # GitHub dataset, markdown summary, top 10 locales
  apkstats localizations owner/apk-records --format markdown --top 10

  # GitLab dataset on a self-hosted instance
  apkstats localizations group/records --base-url https://gitlab.example.com

  # Sharded aggregation over several sources
  apkstats localizations ./batch-1 ./batch-2 --shards 4

  # Preview which documents would be analyzed
  apkstats localizations owner/apk-records --dry-run --verbose`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLocalizations,
}

func init() {
	RootCmd.AddCommand(localizationsCmd)

	localizationsCmd.Flags().StringVarP(&token, "token", "t", "", "Personal access token for Git platforms")
	localizationsCmd.Flags().StringVar(&baseURL, "base-url", "", "Custom base URL for self-hosted instances")
	localizationsCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default ./apkstats-output)")
	localizationsCmd.Flags().StringVarP(&format, "format", "f", "", "Summary format: table, markdown or json")
	localizationsCmd.Flags().StringVar(&ignoreFlag, "ignore", "", "Comma-separated ignore patterns")
	localizationsCmd.Flags().StringVar(&includeOnly, "include-only", "", "Include only matching patterns")
	localizationsCmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	localizationsCmd.Flags().StringVar(&defaultPlatform, "default-platform", "", "Default platform for owner/repo format (github or gitlab)")
	localizationsCmd.Flags().IntVar(&topK, "top", -1, "Number of locales listed in the tables, 0 lists all")
	localizationsCmd.Flags().IntVar(&shards, "shards", 0, "Number of shards aggregated concurrently")
	localizationsCmd.Flags().IntVarP(&maxConcurrency, "max-concurrency", "m", 0, "Maximum number of documents fetched concurrently")
	localizationsCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	localizationsCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	localizationsCmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the documents that would be analyzed without fetching them")
}

// runLocalizations executes the localizations command
func runLocalizations(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := loadDotEnv(); err != nil {
		logger.Logger.WithError(err).Warn("Failed to load .env file")
	}

	cliOptions := &models.CLIOptions{
		Token:           token,
		BaseURL:         baseURL,
		Output:          outputDir,
		Format:          format,
		Ignore:          ignoreFlag,
		IncludeOnly:     includeOnly,
		ConfigFile:      configFile,
		DefaultPlatform: defaultPlatform,
		TopK:            topK,
		Shards:          shards,
		MaxConcurrency:  maxConcurrency,
		Verbose:         verbose,
		Quiet:           quiet,
		DryRun:          dryRun,
	}

	cfg, err := loadConfig(cliOptions)
	if err != nil {
		return err
	}
	configureLogger(cfg, cliOptions)

	logger.Logger.Info("Starting apkstats localizations run")

	sources, err := parseSources(args, cliOptions.DefaultPlatform)
	if err != nil {
		logger.Logger.WithError(err).Error("Failed to parse sources")
		return fmt.Errorf("failed to parse sources: %w", err)
	}

	orchestrator := orchestration.NewOrchestrator(cfg, cliOptions)
	orchestrator.SetOutput(cmd.OutOrStdout())

	result, err := orchestrator.Run(ctx, sources)
	if err != nil {
		logger.Logger.WithError(err).Error("Localizations run failed")
		return err
	}

	if len(result.Errors) > 0 {
		logger.Logger.WithField("error_count", len(result.Errors)).Warn("Encountered errors during the run")
		for _, e := range result.Errors {
			logger.Logger.WithError(e).Debug("Run error")
		}
	}
	return nil
}

// loadConfig loads, overrides and validates the configuration
func loadConfig(cliOptions *models.CLIOptions) (*models.Config, error) {
	configLoader := config.NewLoader()
	cfg, err := configLoader.LoadConfig(cliOptions.ConfigFile)
	if err != nil {
		logger.Logger.WithError(err).Error("Failed to load configuration")
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := configLoader.OverrideWithFlags(cfg, cliOptions); err != nil {
		logger.Logger.WithError(err).Error("Failed to process configuration")
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}

	if err := configLoader.ValidateConfig(cfg); err != nil {
		logger.Logger.WithError(err).Error("Configuration validation failed")
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// configureLogger applies the logging section, then the verbosity flags
func configureLogger(cfg *models.Config, cliOptions *models.CLIOptions) {
	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)

	if cliOptions.Quiet {
		logger.SetQuiet()
	} else if cliOptions.Verbose {
		logger.SetVerbose()
	}
}

// loadDotEnv reads tokens from a .env file in the working directory, if any
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// parseSources parses source arguments in command line order
func parseSources(args []string, defaultPlatformFlag string) ([]*models.SourceInfo, error) {
	var defaultPlatformEnum models.Platform
	switch strings.ToLower(defaultPlatformFlag) {
	case "github":
		defaultPlatformEnum = models.PlatformGitHub
	case "gitlab":
		defaultPlatformEnum = models.PlatformGitLab
	case "":
		defaultPlatformEnum = ""
	default:
		return nil, fmt.Errorf("invalid default platform '%s'. Valid options: github, gitlab", defaultPlatformFlag)
	}

	sources := make([]*models.SourceInfo, 0, len(args))
	for _, arg := range args {
		source, err := adapters.ParseSourceURL(arg, defaultPlatformEnum)
		if err != nil {
			return nil, fmt.Errorf("failed to parse source '%s': %w", arg, err)
		}
		sources = append(sources, source)
	}
	return sources, nil
}
