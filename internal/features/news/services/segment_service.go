package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

const segmentColumns = `id, date, audio_file, script, article_ids, duration_seconds, created_at`

// SegmentService persists daily digest segments
type SegmentService struct {
	db     *core.Database
	logger *core.Logger
}

// NewSegmentService creates a new digest segment service
func NewSegmentService(db *core.Database, logger *core.Logger) *SegmentService {
	return &SegmentService{
		db:     db,
		logger: logger,
	}
}

func scanSegment(row rowScanner) (*models.DigestSegment, error) {
	var seg models.DigestSegment
	var ids string
	if err := row.Scan(&seg.ID, &seg.Date, &seg.AudioFile, &seg.Script, &ids, &seg.DurationSeconds, &seg.CreatedAt); err != nil {
		return nil, err
	}
	seg.ArticleIDs = []int{}
	if ids != "" {
		if err := json.Unmarshal([]byte(ids), &seg.ArticleIDs); err != nil {
			return nil, fmt.Errorf("failed to decode article ids of segment %d: %w", seg.ID, err)
		}
	}
	return &seg, nil
}

// Exists reports whether a segment for date is stored
func (s *SegmentService) Exists(ctx context.Context, date string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM news_digest_segments WHERE date = ?)`, date).Scan(&exists)
	if err != nil {
		return false, core.NewDatabaseError("failed to check digest segment", err)
	}
	return exists, nil
}

// Create inserts seg unless a segment for its date already exists. It
// returns the new id and false without writing when the date is taken.
func (s *SegmentService) Create(ctx context.Context, seg models.DigestSegment) (int, bool, error) {
	ids := seg.ArticleIDs
	if ids == nil {
		ids = []int{}
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return 0, false, fmt.Errorf("failed to encode article ids: %w", err)
	}

	var id int
	err = s.db.QueryRow(ctx, `
		INSERT INTO news_digest_segments (date, audio_file, script, article_ids, duration_seconds)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date) DO NOTHING
		RETURNING id`,
		seg.Date, seg.AudioFile, seg.Script, string(encoded), seg.DurationSeconds,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, core.NewDatabaseError("failed to create digest segment", err)
	}
	return id, true, nil
}

// Delete removes the segment with id
func (s *SegmentService) Delete(ctx context.Context, id int) error {
	if _, err := s.db.ExecWithTimeout(ctx, `DELETE FROM news_digest_segments WHERE id = ?`, id); err != nil {
		return core.NewDatabaseError("failed to delete digest segment", err)
	}
	return nil
}

// Latest returns the most recent segment
func (s *SegmentService) Latest(ctx context.Context) (*models.DigestSegment, error) {
	seg, err := scanSegment(s.db.QueryRow(ctx,
		`SELECT `+segmentColumns+` FROM news_digest_segments ORDER BY date DESC LIMIT 1`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError("no digest has been generated yet", err)
		}
		return nil, core.NewDatabaseError("failed to get latest digest", err)
	}
	return seg, nil
}

// GetByDate returns the segment of one day (YYYY-MM-DD)
func (s *SegmentService) GetByDate(ctx context.Context, date string) (*models.DigestSegment, error) {
	seg, err := scanSegment(s.db.QueryRow(ctx,
		`SELECT `+segmentColumns+` FROM news_digest_segments WHERE date = ?`, date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError(fmt.Sprintf("no digest for %s", date), err)
		}
		return nil, core.NewDatabaseError("failed to get digest", err)
	}
	return seg, nil
}
