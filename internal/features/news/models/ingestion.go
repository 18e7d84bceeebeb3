package models

import (
	"time"
)

// IngestionStatus is the outcome recorded for one ingestion attempt
type IngestionStatus string

const (
	IngestionRunning IngestionStatus = "running"
	IngestionSuccess IngestionStatus = "success"
	IngestionPartial IngestionStatus = "partial"
	IngestionFailed  IngestionStatus = "failed"
)

// IngestionLog is the append-only audit row of one ingestion attempt
type IngestionLog struct {
	ID              int             `json:"id"`
	SourceID        int             `json:"source_id"`
	Status          IngestionStatus `json:"status"`
	ArticlesFound   int             `json:"articles_found"`
	ArticlesCreated int             `json:"articles_created"`
	ArticlesUpdated int             `json:"articles_updated"`
	ErrorMessage    string          `json:"error_message"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at"`
	DurationSeconds float64         `json:"execution_time_seconds"`
}
