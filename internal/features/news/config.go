package news

import (
	"fmt"
	"time"

	"genienews/internal/core"
	"genienews/internal/features/news/services"
)

// Config represents news feature configuration
type Config struct {
	Enabled          bool
	SchedulerEnabled bool

	AI core.AIConfig

	Fetcher    services.FeedFetcherConfig
	Ingestor   services.IngestorConfig
	Curator    services.CuratorConfig
	Digest     services.DigestConfig
	Scheduler  services.SchedulerConfig
	Enrichment services.EnrichmentConfig

	ContentTimeout time.Duration
	RateMinDelay   time.Duration
	RateMaxDelay   time.Duration
	EventBuffer    int
}

// NewConfig creates news config from core config
func NewConfig(coreConfig *core.Config) *Config {
	news := coreConfig.Features.News

	return &Config{
		Enabled:          news.Enabled,
		SchedulerEnabled: news.SchedulerEnabled,
		AI:               news.AI,
		Fetcher: services.FeedFetcherConfig{
			Timeout:       news.FeedTimeout,
			RecencyWindow: time.Duration(news.RecencyDays) * 24 * time.Hour,
			Retry:         services.DefaultFeedRetryPolicy(),
		},
		Ingestor: services.IngestorConfig{
			UserAgents: news.UserAgents,
			MaxWorkers: news.MaxWorkers,
		},
		Curator: services.CuratorConfig{
			BatchSize:      news.CurationBatch,
			ContentBudget:  news.ContentBudget,
			ExtractContent: news.ExtractContent,
			UserAgents:     news.UserAgents,
		},
		Digest: services.DigestConfig{
			AudioDir: news.AudioDir,
			Size:     news.DigestSize,
		},
		Scheduler: services.SchedulerConfig{
			IngestInterval: news.IngestInterval,
			CurateInterval: news.CurateInterval,
		},
		Enrichment:     services.NewEnrichmentConfig(news.AI),
		ContentTimeout: news.ContentTimeout,
		RateMinDelay:   news.RateMinDelay,
		RateMaxDelay:   news.RateMaxDelay,
		EventBuffer:    64,
	}
}

// Validate validates the news configuration
func (c *Config) Validate() error {
	if c.Scheduler.IngestInterval < time.Minute {
		return fmt.Errorf("ingest interval must be at least one minute")
	}

	if c.Scheduler.CurateInterval < time.Minute {
		return fmt.Errorf("curate interval must be at least one minute")
	}

	if c.Curator.BatchSize < 1 || c.Curator.BatchSize > 500 {
		return fmt.Errorf("curation batch must be between 1 and 500")
	}

	if c.Curator.ContentBudget < 100 {
		return fmt.Errorf("content budget must be at least 100 characters")
	}

	if c.Digest.AudioDir == "" {
		return fmt.Errorf("audio directory is required")
	}

	if c.Digest.Size < 1 || c.Digest.Size > 50 {
		return fmt.Errorf("digest size must be between 1 and 50")
	}

	if len(c.Ingestor.UserAgents) == 0 {
		return fmt.Errorf("at least one user agent is required")
	}

	return nil
}
