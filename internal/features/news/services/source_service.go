package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

const sourceColumns = `id, name, feed_url, site_url, active, fetch_interval_minutes, max_articles_per_fetch,
	requires_javascript, custom_headers, last_fetched_at, last_error, error_count, created_at, updated_at`

// SourceService handles feed source persistence and health bookkeeping
type SourceService struct {
	db     *core.Database
	logger *core.Logger
}

// NewSourceService creates a new source service
func NewSourceService(db *core.Database, logger *core.Logger) *SourceService {
	return &SourceService{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*models.Source, error) {
	var s models.Source
	var headers string
	var lastFetched sql.NullTime

	err := row.Scan(
		&s.ID, &s.Name, &s.FeedURL, &s.SiteURL, &s.Active, &s.FetchIntervalMinutes, &s.MaxArticlesPerFetch,
		&s.RequiresJavaScript, &headers, &lastFetched, &s.LastError, &s.ErrorCount, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastFetched.Valid {
		t := lastFetched.Time
		s.LastFetchedAt = &t
	}
	if headers != "" {
		if err := json.Unmarshal([]byte(headers), &s.CustomHeaders); err != nil {
			return nil, fmt.Errorf("failed to decode custom headers of source %d: %w", s.ID, err)
		}
	}
	return &s, nil
}

func prepareSource(c *models.SourceCreate) (string, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return "", core.NewValidationError("source name is required", nil)
	}

	feedURL, ok := NormalizeURL(c.FeedURL, "")
	if !ok {
		return "", core.NewValidationError(fmt.Sprintf("invalid feed URL %q", c.FeedURL), nil)
	}
	c.FeedURL = feedURL

	if c.SiteURL == "" {
		c.SiteURL = SiteURL(feedURL)
	}
	c.ApplyDefaults()

	if c.CustomHeaders == nil {
		c.CustomHeaders = map[string]string{}
	}
	headers, err := json.Marshal(c.CustomHeaders)
	if err != nil {
		return "", fmt.Errorf("failed to encode custom headers: %w", err)
	}
	return string(headers), nil
}

// Create inserts a new source. A duplicate feed URL is a validation error.
func (s *SourceService) Create(ctx context.Context, c models.SourceCreate) (*models.Source, error) {
	headers, err := prepareSource(&c)
	if err != nil {
		return nil, err
	}

	var id int
	err = s.db.QueryRow(ctx, `
		INSERT INTO news_sources (name, feed_url, site_url, fetch_interval_minutes, max_articles_per_fetch,
			requires_javascript, custom_headers)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		c.Name, c.FeedURL, c.SiteURL, c.FetchIntervalMinutes, c.MaxArticlesPerFetch, c.RequiresJavaScript, headers,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.NewValidationError(fmt.Sprintf("source with feed URL %s already exists", c.FeedURL), err)
		}
		return nil, core.NewDatabaseError("failed to create source", err)
	}

	s.logger.Info("Created source", "source_id", id, "name", c.Name, "feed_url", c.FeedURL)
	return s.Get(ctx, id)
}

// CreateIfAbsent inserts the source unless its feed URL is already known
func (s *SourceService) CreateIfAbsent(ctx context.Context, c models.SourceCreate) (bool, error) {
	headers, err := prepareSource(&c)
	if err != nil {
		return false, err
	}

	result, err := s.db.ExecWithTimeout(ctx, `
		INSERT INTO news_sources (name, feed_url, site_url, fetch_interval_minutes, max_articles_per_fetch,
			requires_javascript, custom_headers)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(feed_url) DO NOTHING`,
		c.Name, c.FeedURL, c.SiteURL, c.FetchIntervalMinutes, c.MaxArticlesPerFetch, c.RequiresJavaScript, headers,
	)
	if err != nil {
		return false, core.NewDatabaseError("failed to create source", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, core.NewDatabaseError("failed to create source", err)
	}
	return affected > 0, nil
}

// Get returns one source
func (s *SourceService) Get(ctx context.Context, id int) (*models.Source, error) {
	source, err := scanSource(s.db.QueryRow(ctx, `SELECT `+sourceColumns+` FROM news_sources WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError(fmt.Sprintf("source %d not found", id), err)
		}
		return nil, core.NewDatabaseError("failed to get source", err)
	}
	return source, nil
}

// List returns every source ordered by name
func (s *SourceService) List(ctx context.Context) ([]models.Source, error) {
	return s.list(ctx, `SELECT `+sourceColumns+` FROM news_sources ORDER BY name, id`)
}

// ListActive returns the sources that are still polled
func (s *SourceService) ListActive(ctx context.Context) ([]models.Source, error) {
	return s.list(ctx, `SELECT `+sourceColumns+` FROM news_sources WHERE active = 1 ORDER BY id`)
}

// ListDue returns the active sources whose fetch interval has elapsed at now
func (s *SourceService) ListDue(ctx context.Context, now time.Time) ([]models.Source, error) {
	active, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	due := make([]models.Source, 0, len(active))
	for _, source := range active {
		if source.IsDue(now) {
			due = append(due, source)
		}
	}
	return due, nil
}

func (s *SourceService) list(ctx context.Context, query string, args ...any) ([]models.Source, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, core.NewDatabaseError("failed to list sources", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, core.NewDatabaseError("failed to scan source", err)
		}
		sources = append(sources, *source)
	}
	return sources, rows.Err()
}

// RecordSuccess marks a completed fetch: the error streak is cleared
func (s *SourceService) RecordSuccess(ctx context.Context, id int, fetchedAt time.Time) error {
	_, err := s.db.ExecWithTimeout(ctx, `
		UPDATE news_sources
		SET last_fetched_at = ?, last_error = '', error_count = 0, updated_at = ?
		WHERE id = ?`,
		fetchedAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		return core.NewDatabaseError("failed to record source success", err)
	}
	return nil
}

// RecordFailure counts a failed fetch and deactivates the source once
// MaxConsecutiveErrors is reached. It returns the new error count and
// whether the source is still active.
func (s *SourceService) RecordFailure(ctx context.Context, id int, message string) (int, bool, error) {
	var errorCount int
	var active bool

	err := s.db.QueryRow(ctx, `
		UPDATE news_sources
		SET error_count = error_count + 1,
			last_error = ?,
			active = CASE WHEN error_count + 1 >= ? THEN 0 ELSE active END,
			updated_at = ?
		WHERE id = ?
		RETURNING error_count, active`,
		message, models.MaxConsecutiveErrors, time.Now().UTC(), id,
	).Scan(&errorCount, &active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, core.NewNotFoundError(fmt.Sprintf("source %d not found", id), err)
		}
		return 0, false, core.NewDatabaseError("failed to record source failure", err)
	}

	if !active {
		s.logger.Warn("Source deactivated after repeated failures", "source_id", id, "error_count", errorCount)
	}
	return errorCount, active, nil
}

// Reactivate turns a deactivated source back on and clears its error streak
func (s *SourceService) Reactivate(ctx context.Context, id int) (*models.Source, error) {
	result, err := s.db.ExecWithTimeout(ctx, `
		UPDATE news_sources SET active = 1, error_count = 0, last_error = '', updated_at = ?
		WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return nil, core.NewDatabaseError("failed to reactivate source", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, core.NewNotFoundError(fmt.Sprintf("source %d not found", id), nil)
	}

	s.logger.Info("Reactivated source", "source_id", id)
	return s.Get(ctx, id)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
