package news

import (
	"context"
	"fmt"
	"time"

	"genienews/internal/auth"
	"genienews/internal/core"
	"genienews/internal/features/news/ai"
	"genienews/internal/features/news/handlers"
	"genienews/internal/features/news/migrations"
	"genienews/internal/features/news/models"
	"genienews/internal/features/news/services"
)

// Feature represents the news pipeline: ingestion, curation, digests and
// the API over their results
type Feature struct {
	*core.BaseFeature
	config       *Config
	migrationMgr *migrations.Manager

	sources  *services.SourceService
	articles *services.ArticleService
	curated  *services.CuratedService
	segments *services.SegmentService
	logs     *services.IngestionLogService

	dispatcher *services.Dispatcher
	ingestor   *services.Ingestor
	curator    *services.Curator
	digest     *services.DigestGenerator
	scheduler  *services.Scheduler
	importer   *services.SourceImporter

	handlers *handlers.Handlers
	guard    *auth.Middleware
}

// pipeline exposes the stage runs to the admin handlers
type pipeline struct {
	*services.Ingestor
	*services.Curator
	digest *services.DigestGenerator
}

func (p pipeline) GenerateDigest(ctx context.Context, date time.Time) models.DigestResult {
	return p.digest.Generate(ctx, date)
}

// NewFeature creates a new news feature. guard protects the admin routes.
func NewFeature(ctx context.Context, logger *core.Logger, db *core.Database, config *Config, guard *auth.Middleware) (*Feature, error) {
	base := core.NewBaseFeature("news", "AI news ingestion, curation and audio digests", config.Enabled, logger, db)
	log := base.Logger()

	chat, embedder, speech, err := newAIClients(ctx, config.AI)
	if err != nil {
		return nil, err
	}

	enricher, err := services.NewEnricher(chat, embedder, speech, config.Enrichment, log.With("component", "enrichment"))
	if err != nil {
		return nil, err
	}

	// Stores
	sources := services.NewSourceService(db, log)
	articles := services.NewArticleService(db, log)
	curated := services.NewCuratedService(db, log)
	segments := services.NewSegmentService(db, log)
	logs := services.NewIngestionLogService(db, log)

	// Fetching
	limiter := core.NewDomainLimiter(config.RateMinDelay, config.RateMaxDelay)
	fetcher := services.NewFeedFetcher(config.Fetcher, limiter, log.With("component", "fetcher"))
	media := services.NewMediaResolver(log.With("component", "media"))

	var extractor *services.ContentExtractor
	if config.Curator.ExtractContent {
		pages := services.NewPageFetcher(config.ContentTimeout, services.DefaultPageRetryPolicy(), limiter, log.With("component", "pages"))
		extractor = services.NewDefaultContentExtractor(pages, log.With("component", "extractor"))
	}

	// Orchestration
	dispatcher := services.NewDispatcher(config.EventBuffer, log.With("component", "dispatcher"))
	ingestor := services.NewIngestor(sources, articles, logs, fetcher, media, dispatcher, config.Ingestor, log)
	curator := services.NewCurator(articles, curated, enricher, extractor, media, dispatcher, config.Curator, log)
	digest := services.NewDigestGenerator(curated, segments, enricher, dispatcher, config.Digest, log)
	scheduler := services.NewScheduler(ingestor, curator, config.Scheduler, log.With("component", "scheduler"))

	h := handlers.NewHandlers(log, curated, segments, sources, logs,
		pipeline{Ingestor: ingestor, Curator: curator, digest: digest}, config.Digest.AudioDir)

	return &Feature{
		BaseFeature:  base,
		config:       config,
		migrationMgr: migrations.NewManager(db, logger),
		sources:      sources,
		articles:     articles,
		curated:      curated,
		segments:     segments,
		logs:         logs,
		dispatcher:   dispatcher,
		ingestor:     ingestor,
		curator:      curator,
		digest:       digest,
		scheduler:    scheduler,
		importer:     services.NewSourceImporter(sources, log),
		handlers:     h,
		guard:        guard,
	}, nil
}

// newAIClients picks the chat backend by provider. Embeddings and speech
// always go through the OpenAI-compatible API.
func newAIClients(ctx context.Context, cfg core.AIConfig) (ai.ChatCompleter, ai.Embedder, ai.SpeechSynthesizer, error) {
	openai := ai.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)

	switch cfg.Provider {
	case "gemini":
		gemini, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, nil, nil, core.NewConfigurationError("failed to create gemini client", err)
		}
		return gemini, openai, openai, nil
	default:
		return openai, openai, openai, nil
	}
}

// Init initializes the news feature
func (f *Feature) Init(ctx context.Context) error {
	if err := f.BaseFeature.Init(ctx); err != nil {
		return err
	}

	if err := f.config.Validate(); err != nil {
		return core.NewConfigurationError("invalid news configuration", err)
	}

	if err := f.Migrate(ctx); err != nil {
		return err
	}

	f.StartPipeline(ctx, true)

	if f.config.SchedulerEnabled {
		f.scheduler.Start(ctx)
		f.Logger().Info("News scheduler started")
	}

	f.Logger().Info("News feature initialized successfully")
	return nil
}

// Migrate brings the news schema up to date
func (f *Feature) Migrate(ctx context.Context) error {
	if err := f.migrationMgr.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate news schema: %w", err)
	}
	return nil
}

// Rollback reverts the most recent news migration
func (f *Feature) Rollback(ctx context.Context) error {
	return f.migrationMgr.Rollback(ctx)
}

// MigrationStatus reports applied and pending news migrations
func (f *Feature) MigrationStatus(ctx context.Context) (*core.MigrationStatus, error) {
	return f.migrationMgr.Status(ctx)
}

// StartPipeline starts the event dispatcher. With chain set, finished
// ingestion triggers curation and finished curation triggers the digest.
func (f *Feature) StartPipeline(ctx context.Context, chain bool) {
	if chain {
		f.dispatcher.Subscribe(models.EventArticlesIngested, f.onArticlesIngested)
		f.dispatcher.Subscribe(models.EventArticlesCurated, f.onArticlesCurated)
	}
	f.dispatcher.Subscribe(models.EventDigestGenerated, f.onDigestGenerated)
	f.dispatcher.Start(ctx)
}

// StopPipeline drains pending events and stops the dispatcher
func (f *Feature) StopPipeline() {
	f.dispatcher.Stop()
}

func (f *Feature) onArticlesIngested(ctx context.Context, event models.Event) error {
	f.Logger().WithRun("curate", event.RunID).Info("New articles ingested, curating", "count", event.Count)
	_, err := f.curator.CurateBatch(ctx)
	return err
}

func (f *Feature) onArticlesCurated(ctx context.Context, event models.Event) error {
	result := f.digest.GenerateToday(ctx)
	if result.Status == models.DigestFailed {
		return fmt.Errorf("digest for %s failed: %s", result.Date, result.Message)
	}
	return nil
}

func (f *Feature) onDigestGenerated(ctx context.Context, event models.Event) error {
	f.Logger().WithRun("digest", event.RunID).Info("Digest published", "articles", event.Count)
	return nil
}

// Routes returns the HTTP routes for the news feature
func (f *Feature) Routes() []core.Route {
	admin := f.guard.RequireAdmin

	return []core.Route{
		// Read API
		{Method: "GET", Path: "/api/news/articles", Handler: f.handlers.ListArticles},
		{Method: "GET", Path: "/api/news/articles/{id}", Handler: f.handlers.GetArticle},
		{Method: "GET", Path: "/api/news/digest/latest", Handler: f.handlers.LatestDigest},
		{Method: "GET", Path: "/api/news/digest/{date}/audio", Handler: f.handlers.DigestAudio},
		{Method: "GET", Path: "/api/news/sources", Handler: f.handlers.ListSources},
		{Method: "GET", Path: "/api/news/ingestion-logs", Handler: f.handlers.ListIngestionLogs},

		// Admin triggers
		{Method: "POST", Path: "/api/news/admin/ingest", Handler: admin(f.handlers.TriggerIngest)},
		{Method: "POST", Path: "/api/news/admin/curate", Handler: admin(f.handlers.TriggerCurate)},
		{Method: "POST", Path: "/api/news/admin/digest", Handler: admin(f.handlers.TriggerDigest)},
		{Method: "POST", Path: "/api/news/admin/sources/{id}/reactivate", Handler: admin(f.handlers.ReactivateSource)},
	}
}

// Shutdown stops the scheduler, then drains the event queue
func (f *Feature) Shutdown(ctx context.Context) error {
	f.Logger().Info("Shutting down news feature")

	if f.config.SchedulerEnabled {
		f.scheduler.Stop()
	}
	f.StopPipeline()

	return f.BaseFeature.Shutdown(ctx)
}

// Ingestor returns the ingestion orchestrator
func (f *Feature) Ingestor() *services.Ingestor { return f.ingestor }

// Curator returns the curation orchestrator
func (f *Feature) Curator() *services.Curator { return f.curator }

// Digest returns the digest generator
func (f *Feature) Digest() *services.DigestGenerator { return f.digest }

// Importer returns the source importer
func (f *Feature) Importer() *services.SourceImporter { return f.importer }
