package models

import (
	"time"
)

// RawArticle is one deduplicated feed entry. URL is the dedup key.
type RawArticle struct {
	ID          int       `json:"id"`
	SourceID    int       `json:"source_id"`
	SourceName  string    `json:"source_name,omitempty"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"published_at"`
	SummaryFeed string    `json:"summary_feed"`
	RawHTML     string    `json:"-"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasHTML reports whether full page HTML has been fetched
func (a *RawArticle) HasHTML() bool {
	return a.RawHTML != ""
}

// UpsertResult reports what an upsert did
type UpsertResult struct {
	ArticleID int
	Created   bool
}
