package services

import (
	"context"
	"sync"
	"time"

	"genienews/internal/core"
)

// SchedulerConfig sets the periods of the background jobs
type SchedulerConfig struct {
	IngestInterval time.Duration
	CurateInterval time.Duration
}

// Scheduler periodically ingests due sources and curates pending articles
type Scheduler struct {
	ingestor *Ingestor
	curator  *Curator
	logger   *core.Logger
	config   SchedulerConfig
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(ingestor *Ingestor, curator *Curator, config SchedulerConfig, logger *core.Logger) *Scheduler {
	return &Scheduler{
		ingestor: ingestor,
		curator:  curator,
		logger:   logger,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Start begins both job loops
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting news scheduler",
		"ingest_interval", s.config.IngestInterval, "curate_interval", s.config.CurateInterval)

	s.wg.Add(2)
	go s.loop(ctx, "ingest", s.config.IngestInterval, s.ingestDue)
	go s.loop(ctx, "curate", s.config.CurateInterval, s.curatePending)
}

// Stop signals both loops and waits for the running jobs
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping news scheduler")
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job string, interval time.Duration, run func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Do initial run
	run(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled", "job", job)
			return
		case <-s.stopChan:
			s.logger.Info("Scheduler stop signal received", "job", job)
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

func (s *Scheduler) ingestDue(ctx context.Context) {
	if _, err := s.ingestor.IngestDue(ctx); err != nil {
		s.logger.Error("Scheduled ingestion failed", "error", err)
	}
}

func (s *Scheduler) curatePending(ctx context.Context) {
	if _, err := s.curator.CurateBatch(ctx); err != nil {
		s.logger.Error("Scheduled curation failed", "error", err)
	}
}
