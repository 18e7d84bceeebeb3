package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

const (
	charsPerWord   = 5
	wordsPerMinute = 150
)

// DigestConfig configures a DigestGenerator
type DigestConfig struct {
	AudioDir string
	Size     int
}

// DigestGenerator turns the top ranked curated articles into one audio
// segment per calendar day
type DigestGenerator struct {
	curated   *CuratedService
	segments  *SegmentService
	enricher  *Enricher
	publisher Publisher
	logger    *core.Logger
	config    DigestConfig
	now       func() time.Time
}

// NewDigestGenerator creates a new digest orchestrator
func NewDigestGenerator(
	curated *CuratedService,
	segments *SegmentService,
	enricher *Enricher,
	publisher Publisher,
	config DigestConfig,
	logger *core.Logger,
) *DigestGenerator {
	if config.Size <= 0 {
		config.Size = 8
	}
	return &DigestGenerator{
		curated:   curated,
		segments:  segments,
		enricher:  enricher,
		publisher: publisher,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// DigestFilename is the audio file name of the digest of date
func DigestFilename(date string) string {
	return fmt.Sprintf("digest_%s.mp3", date)
}

// EstimateDuration approximates the spoken length of script in seconds
func EstimateDuration(script string) int {
	words := float64(utf8.RuneCountInString(script)) / charsPerWord
	return int(words / wordsPerMinute * 60)
}

// GenerateToday generates the digest of the current day
func (g *DigestGenerator) GenerateToday(ctx context.Context) models.DigestResult {
	return g.Generate(ctx, g.now())
}

// Generate creates the digest of date unless one exists. Failures are
// reported in the result, never returned as errors.
func (g *DigestGenerator) Generate(ctx context.Context, date time.Time) models.DigestResult {
	started := time.Now()
	runID := uuid.NewString()
	dateKey := date.Format(models.DigestDateLayout)
	logger := g.logger.WithRun("digest", runID).With("date", dateKey)

	result := models.DigestResult{Date: dateKey}
	finish := func(status models.DigestStatus, message string) models.DigestResult {
		result.Status = status
		result.Message = message
		result.ExecutionTime = time.Since(started)
		switch status {
		case models.DigestFailed:
			logger.Error("Digest generation failed", "reason", message)
		default:
			logger.Info("Digest run finished", "status", status, "message", message)
		}
		return result
	}

	exists, err := g.segments.Exists(ctx, dateKey)
	if err != nil {
		return finish(models.DigestFailed, err.Error())
	}
	if exists {
		return finish(models.DigestSkipped, fmt.Sprintf("digest for %s already exists", dateKey))
	}

	top, err := g.curated.TopRanked(ctx, g.config.Size)
	if err != nil {
		return finish(models.DigestFailed, err.Error())
	}
	if len(top) == 0 {
		return finish(models.DigestFailed, "no articles")
	}

	items := make([]models.DigestItem, 0, len(top))
	ids := make([]int, 0, len(top))
	for _, c := range top {
		item := models.DigestItem{CuratedID: c.ID, Summary: c.SummaryShort}
		if c.Article != nil {
			item.Title = c.Article.Title
			item.SourceName = c.Article.SourceName
		}
		if c.RelevanceScore != nil {
			item.RelevanceScore = *c.RelevanceScore
		}
		items = append(items, item)
		ids = append(ids, c.ID)
	}
	result.ArticleCount = len(items)

	script := g.enricher.Script(ctx, date, items)

	filename := DigestFilename(dateKey)
	final := filepath.Join(g.config.AudioDir, filename)
	staging := final + ".part-" + runID
	if err := g.enricher.Speak(ctx, script, staging); err != nil {
		return finish(models.DigestFailed, err.Error())
	}

	duration := EstimateDuration(script)
	id, created, err := g.segments.Create(ctx, models.DigestSegment{
		Date:            dateKey,
		AudioFile:       filename,
		Script:          script,
		ArticleIDs:      ids,
		DurationSeconds: duration,
	})
	if err != nil {
		os.Remove(staging)
		return finish(models.DigestFailed, err.Error())
	}
	if !created {
		os.Remove(staging)
		return finish(models.DigestSkipped, fmt.Sprintf("digest for %s was created concurrently", dateKey))
	}
	if err := os.Rename(staging, final); err != nil {
		os.Remove(staging)
		if delErr := g.segments.Delete(ctx, id); delErr != nil {
			logger.Error("Digest row left without audio", "segment_id", id, "error", delErr)
		}
		return finish(models.DigestFailed, fmt.Sprintf("failed to publish audio file: %v", err))
	}

	result.SegmentID = id
	result.Filename = filename
	result.DurationSeconds = duration
	g.publisher.Publish(ctx, NewEvent(models.EventDigestGenerated, len(ids), runID))

	return finish(models.DigestSuccess, fmt.Sprintf("digest generated from %d articles", len(ids)))
}
