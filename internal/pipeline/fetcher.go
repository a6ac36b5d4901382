package pipeline

import (
	"context"
	"fmt"
	"iter"

	"apkstats/internal/adapters"
	"apkstats/pkg/logger"
	"apkstats/pkg/models"
	"apkstats/pkg/utils"

	"golang.org/x/sync/errgroup"
)

const defaultMaxConcurrency = 10

// RecordFetcher turns the documents of one source into a lazy record stream
type RecordFetcher struct {
	provider adapters.Provider
	source   *models.SourceInfo
	config   models.ProcessingConfig
	filter   *DocumentFilter

	fetchedDocuments int
	fetchedBytes     int64
}

// NewRecordFetcher creates a fetcher for source. The size cap must already be
// validated; an unparsable cap is treated as no cap.
func NewRecordFetcher(provider adapters.Provider, source *models.SourceInfo, config models.ProcessingConfig) *RecordFetcher {
	var maxSize int64
	if config.MaxDocumentSize != "" {
		if size, err := utils.ParseSize(config.MaxDocumentSize); err == nil {
			maxSize = size
		}
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaultMaxConcurrency
	}

	return &RecordFetcher{
		provider: provider,
		source:   source,
		config:   config,
		filter:   NewDocumentFilter(config.Ignore, config.IncludeOnly, maxSize, source.Path),
	}
}

// ListDocuments lists and filters the documents of the source, capped at
// MaxDocuments when set
func (rf *RecordFetcher) ListDocuments(ctx context.Context) ([]models.DocumentEntry, error) {
	fields := map[string]interface{}{
		"source": rf.source.FullName,
		"branch": rf.source.Branch,
	}
	logger.Logger.WithFields(fields).Info("Listing record documents")

	docs, err := rf.provider.ListDocuments(ctx, rf.source.FullName, rf.source.Branch)
	if err != nil {
		logger.Logger.WithError(err).WithFields(fields).Error("Failed to list documents")
		return nil, fmt.Errorf("failed to list documents of %s: %w", rf.source.FullName, err)
	}

	filtered := rf.filter.FilterDocuments(docs)
	if rf.config.MaxDocuments > 0 && len(filtered) > rf.config.MaxDocuments {
		filtered = filtered[:rf.config.MaxDocuments]
	}

	logger.Logger.WithFields(fields).WithFields(map[string]interface{}{
		"listed":   len(docs),
		"selected": len(filtered),
	}).Info("Documents selected")
	return filtered, nil
}

type fetchResult struct {
	record *models.ApkData
	size   int64
	err    error
}

// Records fetches and decodes docs, at most MaxConcurrency at a time, and
// yields them in listing order. A document that cannot be fetched or decoded
// yields an error element and the stream goes on. The stream ends early when
// ctx is cancelled or the consumer stops.
func (rf *RecordFetcher) Records(ctx context.Context, docs []models.DocumentEntry) iter.Seq2[*models.ApkData, error] {
	return func(yield func(*models.ApkData, error) bool) {
		window := rf.config.MaxConcurrency * 4

		for start := 0; start < len(docs); start += window {
			end := min(start+window, len(docs))
			results, err := rf.fetchWindow(ctx, docs[start:end])
			if err != nil {
				logger.Logger.WithError(err).WithField("source", rf.source.FullName).Warn("Stopped fetching documents")
				return
			}

			for _, result := range results {
				if result.err == nil {
					rf.fetchedDocuments++
					rf.fetchedBytes += result.size
				}
				if !yield(result.record, result.err) {
					return
				}
			}
		}
	}
}

// fetchWindow fetches one window of documents concurrently. Only context
// cancellation aborts it; per-document failures are carried in the results.
func (rf *RecordFetcher) fetchWindow(ctx context.Context, docs []models.DocumentEntry) ([]fetchResult, error) {
	results := make([]fetchResult, len(docs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(rf.config.MaxConcurrency)
	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = rf.fetchOne(ctx, doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (rf *RecordFetcher) fetchOne(ctx context.Context, doc models.DocumentEntry) fetchResult {
	data, err := rf.provider.GetDocument(ctx, rf.source.FullName, doc.Path, rf.source.Branch)
	if err != nil {
		return fetchResult{err: err}
	}

	size := int64(len(data))
	if rf.filter.TooLarge(size) {
		return fetchResult{err: fmt.Errorf("document %s exceeds the size cap (%s)", doc.Path, utils.FormatBytes(size))}
	}

	record, err := DecodeRecord(doc.Path, data)
	if err != nil {
		return fetchResult{err: err}
	}

	logger.Logger.WithFields(map[string]interface{}{
		"document": doc.Path,
		"size":     size,
	}).Debug("Fetched record document")
	return fetchResult{record: record, size: size}
}

// FetchedDocuments returns how many documents were fetched and decoded so far
func (rf *RecordFetcher) FetchedDocuments() int { return rf.fetchedDocuments }

// FetchedBytes returns the bytes of the documents counted by FetchedDocuments
func (rf *RecordFetcher) FetchedBytes() int64 { return rf.fetchedBytes }
