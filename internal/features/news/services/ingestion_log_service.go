package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

// IngestionLogFilter narrows the ingestion log listing
type IngestionLogFilter struct {
	SourceID int
	Status   models.IngestionStatus
	Limit    int
}

// IngestionLogService records one audit row per ingestion attempt
type IngestionLogService struct {
	db     *core.Database
	logger *core.Logger
}

// NewIngestionLogService creates a new ingestion log service
func NewIngestionLogService(db *core.Database, logger *core.Logger) *IngestionLogService {
	return &IngestionLogService{
		db:     db,
		logger: logger,
	}
}

// Start opens a running log row for sourceID
func (s *IngestionLogService) Start(ctx context.Context, sourceID int, startedAt time.Time) (*models.IngestionLog, error) {
	entry := &models.IngestionLog{
		SourceID:  sourceID,
		Status:    models.IngestionRunning,
		StartedAt: startedAt.UTC(),
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO news_ingestion_logs (source_id, status, started_at)
		VALUES (?, ?, ?)
		RETURNING id`,
		sourceID, string(entry.Status), entry.StartedAt,
	).Scan(&entry.ID)
	if err != nil {
		return nil, core.NewDatabaseError("failed to start ingestion log", err)
	}
	return entry, nil
}

// Complete closes entry with its final status and counts
func (s *IngestionLogService) Complete(ctx context.Context, entry *models.IngestionLog, completedAt time.Time) error {
	completedAt = completedAt.UTC()
	entry.CompletedAt = &completedAt
	entry.DurationSeconds = completedAt.Sub(entry.StartedAt).Seconds()

	_, err := s.db.ExecWithTimeout(ctx, `
		UPDATE news_ingestion_logs
		SET status = ?, articles_found = ?, articles_created = ?, articles_updated = ?,
			error_message = ?, completed_at = ?, execution_time_seconds = ?
		WHERE id = ?`,
		string(entry.Status), entry.ArticlesFound, entry.ArticlesCreated, entry.ArticlesUpdated,
		entry.ErrorMessage, completedAt, entry.DurationSeconds, entry.ID)
	if err != nil {
		return core.NewDatabaseError("failed to complete ingestion log", err)
	}
	return nil
}

// List returns the most recent log rows matching filter
func (s *IngestionLogService) List(ctx context.Context, filter IngestionLogFilter) ([]models.IngestionLog, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	builder := sq.Select(
		"id", "source_id", "status", "articles_found", "articles_created", "articles_updated",
		"error_message", "started_at", "completed_at", "execution_time_seconds",
	).
		From("news_ingestion_logs").
		OrderBy("started_at DESC", "id DESC").
		Limit(uint64(limit))
	if filter.SourceID > 0 {
		builder = builder.Where(sq.Eq{"source_id": filter.SourceID})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build ingestion log query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, core.NewDatabaseError("failed to list ingestion logs", err)
	}
	defer rows.Close()

	logs := []models.IngestionLog{}
	for rows.Next() {
		var entry models.IngestionLog
		var completedAt sql.NullTime
		var duration sql.NullFloat64
		err := rows.Scan(
			&entry.ID, &entry.SourceID, &entry.Status, &entry.ArticlesFound, &entry.ArticlesCreated,
			&entry.ArticlesUpdated, &entry.ErrorMessage, &entry.StartedAt, &completedAt, &duration,
		)
		if err != nil {
			return nil, core.NewDatabaseError("failed to scan ingestion log", err)
		}
		if completedAt.Valid {
			t := completedAt.Time
			entry.CompletedAt = &t
		}
		entry.DurationSeconds = duration.Float64
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
