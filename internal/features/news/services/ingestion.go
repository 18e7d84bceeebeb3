package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

// IngestorConfig configures an Ingestor
type IngestorConfig struct {
	UserAgents []string
	MaxWorkers int
}

// Ingestor pulls due sources and upserts their entries as raw articles
type Ingestor struct {
	sources   *SourceService
	articles  *ArticleService
	logs      *IngestionLogService
	fetcher   *FeedFetcher
	media     *MediaResolver
	publisher Publisher
	logger    *core.Logger
	config    IngestorConfig

	leases sync.Map
	now    func() time.Time
}

// NewIngestor creates a new ingestion orchestrator
func NewIngestor(
	sources *SourceService,
	articles *ArticleService,
	logs *IngestionLogService,
	fetcher *FeedFetcher,
	media *MediaResolver,
	publisher Publisher,
	config IngestorConfig,
	logger *core.Logger,
) *Ingestor {
	if config.MaxWorkers < 1 {
		config.MaxWorkers = 1
	}
	return &Ingestor{
		sources:   sources,
		articles:  articles,
		logs:      logs,
		fetcher:   fetcher,
		media:     media,
		publisher: publisher,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// IngestDue ingests every due source over a bounded worker pool and
// announces the new articles once for the whole run
func (i *Ingestor) IngestDue(ctx context.Context) (*models.IngestRunResult, error) {
	runID := uuid.NewString()
	logger := i.logger.WithRun("ingestion", runID)

	due, err := i.sources.ListDue(ctx, i.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list due sources: %w", err)
	}

	run := &models.IngestRunResult{RunID: runID, Sources: []models.IngestResult{}}
	if len(due) == 0 {
		logger.Info("No sources due for ingestion")
		return run, nil
	}
	logger.Info("Ingesting due sources", "count", len(due), "workers", i.config.MaxWorkers)

	sourceChan := make(chan *models.Source, len(due))
	results := make(chan models.IngestResult, len(due))
	var wg sync.WaitGroup

	for w := 0; w < i.config.MaxWorkers && w < len(due); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for source := range sourceChan {
				results <- i.ingest(ctx, source, logger)
			}
		}()
	}

	for idx := range due {
		sourceChan <- &due[idx]
	}
	close(sourceChan)
	wg.Wait()
	close(results)

	for result := range results {
		run.Sources = append(run.Sources, result)
		run.Created += result.Created
		run.Updated += result.Updated
		if result.Status == models.IngestionFailed {
			run.Failed++
		}
	}

	logger.Info("Ingestion run completed",
		"sources", len(run.Sources), "created", run.Created, "updated", run.Updated, "failed", run.Failed)

	if run.Created > 0 {
		i.publisher.Publish(ctx, NewEvent(models.EventArticlesIngested, run.Created, runID))
	}
	return run, nil
}

// IngestSource ingests one source immediately, due or not
func (i *Ingestor) IngestSource(ctx context.Context, sourceID int) (*models.IngestResult, error) {
	source, err := i.sources.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if !source.Active {
		return nil, core.NewValidationError(fmt.Sprintf("source %d is inactive", sourceID), nil)
	}

	runID := uuid.NewString()
	result := i.ingest(ctx, source, i.logger.WithRun("ingestion", runID))
	if result.Created > 0 {
		i.publisher.Publish(ctx, NewEvent(models.EventArticlesIngested, result.Created, runID))
	}
	return &result, nil
}

// ingest runs one source through Fetching into Success, Partial or
// Failed. A source already being ingested in this process is skipped.
func (i *Ingestor) ingest(ctx context.Context, source *models.Source, runLogger *core.Logger) models.IngestResult {
	logger := runLogger.With("source_id", source.ID, "source", source.Name)
	result := models.IngestResult{SourceID: source.ID}

	if _, held := i.leases.LoadOrStore(source.ID, struct{}{}); held {
		logger.Info("Source ingestion already in progress, skipping")
		result.Skipped = true
		return result
	}
	defer i.leases.Delete(source.ID)

	started := i.now()
	entry, err := i.logs.Start(ctx, source.ID, started)
	if err != nil {
		logger.Error("Failed to open ingestion log", "error", err)
		result.Status = models.IngestionFailed
		result.Error = err.Error()
		return result
	}

	feed, err := i.fetcher.Fetch(ctx, source.FeedURL, DefaultHeaders(i.config.UserAgents, source.CustomHeaders))
	if err != nil {
		i.fail(ctx, source, entry, &result, err, logger)
		return result
	}

	entries := i.fetcher.ParseEntries(feed, source.FeedURL, source.MaxArticlesPerFetch)
	result.Found = len(entries)

	base := feed.Link
	if base == "" {
		base = source.FeedURL
	}

	for _, fe := range entries {
		media := i.media.FromEntry(fe.Item, base)
		upsert, err := i.articles.UpsertFromEntry(ctx, source.ID, fe, media)
		if err != nil {
			result.Errors++
			logger.Error("Failed to store entry", "url", fe.URL, "error", err)
			continue
		}
		if upsert.Created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	result.Status = models.IngestionSuccess
	switch {
	case result.Errors > 0:
		result.Status = models.IngestionPartial
		result.Error = fmt.Sprintf("%d of %d entries failed", result.Errors, result.Found)
	case feed.Malformed:
		result.Status = models.IngestionPartial
		result.Error = feed.Warning
	}

	if err := i.sources.RecordSuccess(ctx, source.ID, i.now()); err != nil {
		logger.Error("Failed to record source success", "error", err)
	}

	entry.Status = result.Status
	entry.ArticlesFound = result.Found
	entry.ArticlesCreated = result.Created
	entry.ArticlesUpdated = result.Updated
	entry.ErrorMessage = result.Error
	if err := i.logs.Complete(ctx, entry, i.now()); err != nil {
		logger.Error("Failed to complete ingestion log", "error", err)
	}

	logger.Info("Source ingested",
		"status", result.Status, "found", result.Found, "created", result.Created,
		"updated", result.Updated, "errors", result.Errors)
	return result
}

func (i *Ingestor) fail(ctx context.Context, source *models.Source, entry *models.IngestionLog, result *models.IngestResult, cause error, logger *core.Logger) {
	result.Status = models.IngestionFailed
	result.Error = cause.Error()

	count, active, err := i.sources.RecordFailure(ctx, source.ID, cause.Error())
	if err != nil {
		logger.Error("Failed to record source failure", "error", err)
	}
	logger.Warn("Source ingestion failed", "error", cause, "error_count", count, "active", active)

	entry.Status = models.IngestionFailed
	entry.ErrorMessage = cause.Error()
	if err := i.logs.Complete(ctx, entry, i.now()); err != nil {
		logger.Error("Failed to complete ingestion log", "error", err)
	}
}
