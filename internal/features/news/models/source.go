package models

import (
	"time"
)

// MaxConsecutiveErrors deactivates a source once its error count reaches it
const MaxConsecutiveErrors = 5

// Source represents a feed endpoint to poll
type Source struct {
	ID                   int               `json:"id"`
	Name                 string            `json:"name"`
	FeedURL              string            `json:"feed_url"`
	SiteURL              string            `json:"site_url"`
	Active               bool              `json:"active"`
	FetchIntervalMinutes int               `json:"fetch_interval_minutes"`
	MaxArticlesPerFetch  int               `json:"max_articles_per_fetch"`
	RequiresJavaScript   bool              `json:"requires_javascript"`
	CustomHeaders        map[string]string `json:"custom_headers"`
	LastFetchedAt        *time.Time        `json:"last_fetched_at"`
	LastError            string            `json:"last_error"`
	ErrorCount           int               `json:"error_count"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// FetchInterval returns the polling interval as a duration
func (s *Source) FetchInterval() time.Duration {
	return time.Duration(s.FetchIntervalMinutes) * time.Minute
}

// IsDue reports whether the source should be fetched at now. Inactive
// sources are never due.
func (s *Source) IsDue(now time.Time) bool {
	if !s.Active {
		return false
	}
	if s.LastFetchedAt == nil {
		return true
	}
	return now.Sub(*s.LastFetchedAt) >= s.FetchInterval()
}

// SourceCreate represents the data needed to create a new source
type SourceCreate struct {
	Name                 string            `json:"name" yaml:"name"`
	FeedURL              string            `json:"feed_url" yaml:"feed_url"`
	SiteURL              string            `json:"site_url" yaml:"site_url"`
	FetchIntervalMinutes int               `json:"fetch_interval_minutes" yaml:"fetch_interval_minutes"`
	MaxArticlesPerFetch  int               `json:"max_articles_per_fetch" yaml:"max_articles_per_fetch"`
	RequiresJavaScript   bool              `json:"requires_javascript" yaml:"requires_javascript"`
	CustomHeaders        map[string]string `json:"custom_headers" yaml:"custom_headers"`
}

// Defaults applied to imported sources
const (
	DefaultFetchIntervalMinutes = 10080
	DefaultMaxArticlesPerFetch  = 50
)

// ApplyDefaults fills zero values with the weekly/50-article defaults
func (c *SourceCreate) ApplyDefaults() {
	if c.FetchIntervalMinutes <= 0 {
		c.FetchIntervalMinutes = DefaultFetchIntervalMinutes
	}
	if c.MaxArticlesPerFetch <= 0 {
		c.MaxArticlesPerFetch = DefaultMaxArticlesPerFetch
	}
}
