package orchestration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"time"

	"apkstats/internal/adapters"
	"apkstats/internal/config"
	"apkstats/internal/generators"
	"apkstats/internal/pipeline"
	"apkstats/internal/processor"
	"apkstats/internal/statistics"
	"apkstats/pkg/logger"
	"apkstats/pkg/models"
	"apkstats/pkg/utils"
)

// ReportFileName is the name of the persisted report
const ReportFileName = "localizations.json"

// ProviderFactory builds the provider serving one source
type ProviderFactory func(source *models.SourceInfo, config *models.Config, token string) (adapters.Provider, error)

// Orchestrator coordinates one localizations run across record sources
type Orchestrator struct {
	config     *models.Config
	cliOptions *models.CLIOptions

	out             io.Writer
	providerFactory ProviderFactory
	now             func() time.Time
}

// NewOrchestrator creates a new orchestrator instance
func NewOrchestrator(config *models.Config, cliOptions *models.CLIOptions) *Orchestrator {
	return &Orchestrator{
		config:          config,
		cliOptions:      cliOptions,
		out:             os.Stdout,
		providerFactory: adapters.CreateProvider,
		now:             time.Now,
	}
}

// SetOutput redirects the console summary
func (o *Orchestrator) SetOutput(w io.Writer) {
	o.out = w
}

// SetProviderFactory replaces the way providers are built
func (o *Orchestrator) SetProviderFactory(factory ProviderFactory) {
	o.providerFactory = factory
}

// sourceRun is one source whose documents were listed
type sourceRun struct {
	source  *models.SourceInfo
	fetcher *pipeline.RecordFetcher
	docs    []models.DocumentEntry
}

// Run analyzes every source as one corpus, writes the report and prints the
// summary. A source that cannot be reached or listed is reported and left out;
// the run fails only when no source could be listed or no record was read.
func (o *Orchestrator) Run(ctx context.Context, sources []*models.SourceInfo) (*models.ProcessingResult, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources given", statistics.ErrInvalidArgument)
	}

	start := o.now()
	result := &models.ProcessingResult{ProcessedAt: start}

	logger.Logger.WithFields(map[string]interface{}{
		"sources": len(sources),
		"dry_run": o.cliOptions.DryRun,
	}).Info("Starting localizations run")

	var runs []*sourceRun
	for _, source := range sources {
		run, err := o.prepareSource(ctx, source)
		if err != nil {
			logger.Logger.WithError(err).WithField("source", source.FullName).Error("Failed to prepare source")
			result.Errors = append(result.Errors, err)
			continue
		}
		runs = append(runs, run)
		result.Sources = append(result.Sources, *source)
		result.TotalDocuments += len(run.docs)
	}

	if len(runs) == 0 {
		return result, fmt.Errorf("no source could be listed: %w", errors.Join(result.Errors...))
	}

	if o.cliOptions.DryRun {
		o.printDryRun(runs)
		result.Duration = time.Since(start)
		return result, nil
	}

	report, err := o.analyze(ctx, runs, result)
	if err != nil {
		return result, err
	}

	for _, run := range runs {
		result.TotalSize += run.fetcher.FetchedBytes()
	}
	result.AnalyzedRecords = report.AnalyzedApks()
	result.SkippedRecords = report.SkippedRecords()
	result.Duration = time.Since(start)

	if err := o.writeReport(report, result); err != nil {
		return result, err
	}

	stats := processor.NewStatsCalculator().GetProcessingStats(result)
	logger.Logger.WithFields(stats).Info("Localizations run completed")

	return result, nil
}

// prepareSource connects to a source and lists its record documents
func (o *Orchestrator) prepareSource(ctx context.Context, source *models.SourceInfo) (*sourceRun, error) {
	var token string
	if source.Platform != models.PlatformLocal {
		var err error
		token, err = GetTokenForPlatform(source.Platform, o.config, o.cliOptions.Token)
		if err != nil {
			return nil, err
		}
	}

	provider, err := o.providerFactory(source, o.config, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider for %s: %w", source.FullName, err)
	}

	logger.Logger.WithFields(map[string]interface{}{
		"source":   source.FullName,
		"platform": source.Platform,
	}).Info("Testing connection...")
	if err := provider.TestConnection(ctx); err != nil {
		return nil, fmt.Errorf("connection test failed for %s: %w", source.FullName, err)
	}

	fetcher := pipeline.NewRecordFetcher(provider, source, o.config.Processing)
	docs, err := fetcher.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	return &sourceRun{source: source, fetcher: fetcher, docs: docs}, nil
}

// analyze streams the records of every run through the localizations
// processor. With more than one shard the records are collected first, each
// with the error that kept it from loading.
func (o *Orchestrator) analyze(ctx context.Context, runs []*sourceRun, result *models.ProcessingResult) (*statistics.LocalizationsStatistics, error) {
	proc := statistics.NewLocalizationsProcessor(config.StatisticsOptions(o.config))
	records := o.records(ctx, runs, result)

	var (
		report *statistics.LocalizationsStatistics
		err    error
	)
	if shards := o.config.Statistics.Shards; shards > 1 {
		var collected []statistics.LoadedRecord
		for record, loadErr := range records {
			collected = append(collected, statistics.LoadedRecord{Record: record, Err: loadErr})
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("run cancelled: %w", ctxErr)
		}
		report, err = proc.ProcessSharded(ctx, collected, shards)
	} else {
		report, err = proc.Process(records)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("run cancelled: %w", ctxErr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to compute localization statistics: %w", err)
	}
	return report, nil
}

// records chains the record streams of every run in source order
func (o *Orchestrator) records(ctx context.Context, runs []*sourceRun, result *models.ProcessingResult) iter.Seq2[*models.ApkData, error] {
	return func(yield func(*models.ApkData, error) bool) {
		for _, run := range runs {
			for record, err := range run.fetcher.Records(ctx, run.docs) {
				if err != nil {
					result.Errors = append(result.Errors, err)
				}
				if !yield(record, err) {
					return
				}
			}
		}
	}
}

// writeReport persists the report and prints the console summary
func (o *Orchestrator) writeReport(report *statistics.LocalizationsStatistics, result *models.ProcessingResult) error {
	generator := generators.NewGenerator(o.config.Output.Format)

	data, err := generator.GenerateJSON(report, result)
	if err != nil {
		return err
	}

	outputDir := o.outputDir()
	logger.Logger.WithField("output_dir", outputDir).Debug("Creating output directory")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	reportPath := filepath.Join(outputDir, ReportFileName)
	if err := WriteFile(reportPath, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", reportPath, err)
	}
	logger.Logger.WithField("file", reportPath).Info("Report written")

	summary, err := generator.GenerateSummary(report, result)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprint(o.out, summary); err != nil {
		return fmt.Errorf("failed to print summary: %w", err)
	}
	return nil
}

// outputDir returns the directory the report is written to
func (o *Orchestrator) outputDir() string {
	if o.config.Output.OrganizeByDate {
		return utils.DatedDir(o.config.Output.Directory, o.now())
	}
	return o.config.Output.Directory
}

// printDryRun lists what a run would analyze without fetching any document
func (o *Orchestrator) printDryRun(runs []*sourceRun) {
	for _, run := range runs {
		var size int64
		for _, doc := range run.docs {
			size += doc.Size
		}

		logger.Logger.WithFields(map[string]interface{}{
			"source":    run.source.FullName,
			"documents": len(run.docs),
			"size":      utils.FormatBytes(size),
		}).Info("[DRY RUN] Source listed")

		fmt.Fprintf(o.out, "[DRY RUN] Would analyze %s (%s)\n", run.source.FullName, run.source.Platform)
		if run.source.Branch != "" {
			fmt.Fprintf(o.out, "  Branch: %s\n", run.source.Branch)
		}
		fmt.Fprintf(o.out, "  Documents: %d\n", len(run.docs))
		fmt.Fprintf(o.out, "  Listed size: %s\n", utils.FormatBytes(size))
		if o.cliOptions.Verbose {
			for _, doc := range run.docs {
				fmt.Fprintf(o.out, "    - %s\n", doc.Path)
			}
		}
	}
	fmt.Fprintf(o.out, "  Would write: %s\n", filepath.Join(o.outputDir(), ReportFileName))
}

// GetTokenForPlatform gets the appropriate token for a platform
func GetTokenForPlatform(platform models.Platform, config *models.Config, cliToken string) (string, error) {
	// If a token was provided via CLI flag, use it for all platforms
	if cliToken != "" {
		return cliToken, nil
	}

	switch platform {
	case models.PlatformGitLab:
		if envToken := os.Getenv(config.GitLab.TokenEnv); envToken != "" {
			return envToken, nil
		}
		return "", fmt.Errorf("GitLab token not found. Set %s environment variable or use --token flag", config.GitLab.TokenEnv)
	case models.PlatformGitHub:
		if envToken := os.Getenv(config.GitHub.TokenEnv); envToken != "" {
			return envToken, nil
		}
		return "", fmt.Errorf("GitHub token not found. Set %s environment variable or use --token flag", config.GitHub.TokenEnv)
	default:
		return "", fmt.Errorf("unsupported platform: %s", platform)
	}
}

// WriteFile writes content to a file
func WriteFile(path string, content []byte) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	return writeAndClose(file, content)
}

// writeAndClose reports a failed close when the write itself went through
func writeAndClose(w io.WriteCloser, content []byte) error {
	if _, err := w.Write(content); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
