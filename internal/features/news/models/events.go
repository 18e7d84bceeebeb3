package models

import (
	"time"
)

// EventType names a pipeline stage completion
type EventType string

const (
	EventArticlesIngested EventType = "articles.ingested"
	EventArticlesCurated  EventType = "articles.curated"
	EventDigestGenerated  EventType = "digest.generated"
)

// Event is emitted by one stage and consumed by the dispatcher
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Count      int       `json:"count"`
	RunID      string    `json:"run_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
