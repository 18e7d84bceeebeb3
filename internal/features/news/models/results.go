package models

import (
	"time"
)

// ExtractionResult is the outcome of content extraction. Failures are
// reported here, never raised.
type ExtractionResult struct {
	Content      string   `json:"content"`
	Title        string   `json:"title"`
	Images       []string `json:"images"`
	HTML         string   `json:"-"`
	Success      bool     `json:"success"`
	StrategyUsed string   `json:"strategy_used"`
	IsPaywalled  bool     `json:"is_paywalled"`
	Error        string   `json:"error,omitempty"`
}

// IngestResult summarizes one source ingestion
type IngestResult struct {
	SourceID int             `json:"source_id"`
	Status   IngestionStatus `json:"status"`
	Found    int             `json:"found"`
	Created  int             `json:"created"`
	Updated  int             `json:"updated"`
	Errors   int             `json:"errors"`
	Skipped  bool            `json:"skipped,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// IngestRunResult summarizes one pass over the due sources
type IngestRunResult struct {
	RunID   string         `json:"run_id"`
	Sources []IngestResult `json:"sources"`
	Created int            `json:"created"`
	Updated int            `json:"updated"`
	Failed  int            `json:"failed"`
}

// ArticleError identifies one article that could not be curated
type ArticleError struct {
	ArticleID int    `json:"article_id"`
	URL       string `json:"url"`
	Error     string `json:"error"`
}

// CurationResult summarizes one curation batch
type CurationResult struct {
	RunID     string         `json:"run_id"`
	Processed int            `json:"processed"`
	Curated   int            `json:"curated"`
	Errors    []ArticleError `json:"errors"`
}

// DigestStatus is the outcome of a digest run
type DigestStatus string

const (
	DigestSuccess DigestStatus = "success"
	DigestSkipped DigestStatus = "skipped"
	DigestFailed  DigestStatus = "failed"
)

// DigestResult is the structured outcome of a digest run
type DigestResult struct {
	Status          DigestStatus  `json:"status"`
	Date            string        `json:"date"`
	Filename        string        `json:"filename,omitempty"`
	ArticleCount    int           `json:"article_count"`
	DurationSeconds int           `json:"duration_seconds"`
	ExecutionTime   time.Duration `json:"execution_time"`
	Message         string        `json:"message"`
	SegmentID       int           `json:"segment_id,omitempty"`
}

// ImportResult summarizes a source import
type ImportResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Invalid []string `json:"invalid"`
}
