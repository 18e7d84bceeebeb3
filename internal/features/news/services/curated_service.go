package services

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

var curatedColumns = []string{
	"c.id", "c.raw_article_id", "c.relevance_score", "c.summary_short", "c.summary_detailed",
	"c.ai_tags", "c.cover_media_id", "c.embedding", "c.created_at", "c.updated_at",
}

// MaxCuratedPageSize bounds one page of the curated listing
const MaxCuratedPageSize = 100

// CuratedService persists AI-enriched articles and serves the ranked views
type CuratedService struct {
	db     *core.Database
	logger *core.Logger
}

// NewCuratedService creates a new curated article service
func NewCuratedService(db *core.Database, logger *core.Logger) *CuratedService {
	return &CuratedService{
		db:     db,
		logger: logger,
	}
}

// EncodeEmbedding packs a vector as little-endian float32 values
func EncodeEmbedding(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeEmbedding reverses EncodeEmbedding
func DecodeEmbedding(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes, not a multiple of 4", len(data))
	}
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vector, nil
}

// Create stores the curated article and, when c.Cover is set, its new cover
// asset in one transaction. A second curation of the same raw article is a
// validation error.
func (s *CuratedService) Create(ctx context.Context, c models.CuratedCreate) (*models.CuratedArticle, error) {
	tags, err := encodeStrings(c.Tags)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	var id int
	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		coverID := c.CoverMediaID
		if coverID == nil && c.Cover != nil {
			mediaID, err := getOrCreateMedia(ctx, tx, *c.Cover)
			if err != nil {
				return err
			}
			coverID = &mediaID

			_, err = tx.ExecContext(ctx, `
				INSERT INTO news_raw_article_media (article_id, media_id, position)
				VALUES (?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM news_raw_article_media WHERE article_id = ?))
				ON CONFLICT(article_id, media_id) DO NOTHING`,
				c.RawArticleID, mediaID, c.RawArticleID)
			if err != nil {
				return fmt.Errorf("failed to link cover: %w", err)
			}
		}

		return tx.QueryRowContext(ctx, `
			INSERT INTO news_curated_articles (raw_article_id, relevance_score, summary_short, summary_detailed,
				ai_tags, cover_media_id, embedding, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`,
			c.RawArticleID, c.RelevanceScore, c.SummaryShort, c.SummaryDetailed,
			tags, coverID, EncodeEmbedding(c.Embedding), now, now,
		).Scan(&id)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.NewValidationError(fmt.Sprintf("article %d is already curated", c.RawArticleID), err)
		}
		return nil, core.NewDatabaseError(fmt.Sprintf("failed to curate article %d", c.RawArticleID), err)
	}

	return s.Get(ctx, id)
}

func (s *CuratedService) selectCurated() sq.SelectBuilder {
	columns := append(append(append([]string{}, curatedColumns...), rawArticleColumns...), mediaColumns...)
	return sq.Select(columns...).
		From("news_curated_articles c").
		Join("news_raw_articles r ON r.id = c.raw_article_id").
		Join("news_sources s ON s.id = r.source_id").
		LeftJoin("news_media_assets m ON m.id = c.cover_media_id")
}

func scanCurated(row rowScanner) (*models.CuratedArticle, error) {
	var c models.CuratedArticle
	var a models.RawArticle
	var score sql.NullFloat64
	var coverID sql.NullInt64
	var curatedTags, articleTags string
	var embedding []byte

	var mediaID, width, height sql.NullInt64
	var mediaType, sourceURL, proxyURL, mimeType sql.NullString
	var mediaCreated sql.NullTime

	err := row.Scan(
		&c.ID, &c.RawArticleID, &score, &c.SummaryShort, &c.SummaryDetailed,
		&curatedTags, &coverID, &embedding, &c.CreatedAt, &c.UpdatedAt,
		&a.ID, &a.SourceID, &a.SourceName, &a.Title, &a.URL, &a.Author, &a.PublishedAt,
		&a.SummaryFeed, &a.RawHTML, &articleTags, &a.CreatedAt, &a.UpdatedAt,
		&mediaID, &mediaType, &sourceURL, &proxyURL, &width, &height, &mimeType, &mediaCreated,
	)
	if err != nil {
		return nil, err
	}

	if score.Valid {
		c.RelevanceScore = &score.Float64
	}
	if coverID.Valid {
		id := int(coverID.Int64)
		c.CoverMediaID = &id
	}
	if err := decodeStrings(curatedTags, &c.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags of curated article %d: %w", c.ID, err)
	}
	if err := decodeStrings(articleTags, &a.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags of article %d: %w", a.ID, err)
	}
	if c.Embedding, err = DecodeEmbedding(embedding); err != nil {
		return nil, err
	}

	c.Article = &a
	if mediaID.Valid {
		c.Cover = &models.MediaAsset{
			ID:        int(mediaID.Int64),
			Type:      models.MediaType(mediaType.String),
			SourceURL: sourceURL.String,
			ProxyURL:  proxyURL.String,
			Width:     int(width.Int64),
			Height:    int(height.Int64),
			MimeType:  mimeType.String,
			CreatedAt: mediaCreated.Time,
		}
	}
	return &c, nil
}

// Get returns one curated article with its raw article and cover
func (s *CuratedService) Get(ctx context.Context, id int) (*models.CuratedArticle, error) {
	query, args, err := s.selectCurated().Where(sq.Eq{"c.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build curated query: %w", err)
	}

	curated, err := scanCurated(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError(fmt.Sprintf("curated article %d not found", id), err)
		}
		return nil, core.NewDatabaseError("failed to get curated article", err)
	}
	return curated, nil
}

func tagFilter(tag string) sq.Sqlizer {
	return sq.Expr(
		"EXISTS (SELECT 1 FROM json_each(c.ai_tags) WHERE json_each.value = ?)",
		strings.ToLower(strings.TrimSpace(tag)),
	)
}

// List returns one page of curated articles ordered as params.Ordering asks
func (s *CuratedService) List(ctx context.Context, params models.CuratedListParams) ([]models.CuratedArticle, error) {
	ordering := params.Ordering
	if ordering == "" {
		ordering = models.DefaultCuratedOrdering
	}
	orderBy, ok := models.CuratedOrderings[ordering]
	if !ok {
		return nil, core.NewValidationError(fmt.Sprintf("unknown ordering %q", ordering), nil)
	}

	limit := params.Limit
	if limit <= 0 || limit > MaxCuratedPageSize {
		limit = MaxCuratedPageSize
	}

	builder := s.selectCurated().OrderBy(orderBy, "c.id DESC").Limit(uint64(limit))
	if params.Offset > 0 {
		builder = builder.Offset(uint64(params.Offset))
	}
	if params.Tag != "" {
		builder = builder.Where(tagFilter(params.Tag))
	}

	return s.query(ctx, builder)
}

// Count returns how many curated articles match the tag filter of params
func (s *CuratedService) Count(ctx context.Context, params models.CuratedListParams) (int, error) {
	builder := sq.Select("COUNT(*)").From("news_curated_articles c")
	if params.Tag != "" {
		builder = builder.Where(tagFilter(params.Tag))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var n int
	if err := s.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, core.NewDatabaseError("failed to count curated articles", err)
	}
	return n, nil
}

// TopRanked returns the n curated articles with the highest relevance
func (s *CuratedService) TopRanked(ctx context.Context, n int) ([]models.CuratedArticle, error) {
	builder := s.selectCurated().
		Where(sq.NotEq{"c.relevance_score": nil}).
		OrderBy("c.relevance_score DESC", "r.published_at DESC", "c.id DESC").
		Limit(uint64(n))
	return s.query(ctx, builder)
}

func (s *CuratedService) query(ctx context.Context, builder sq.SelectBuilder) ([]models.CuratedArticle, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build curated query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, core.NewDatabaseError("failed to list curated articles", err)
	}
	defer rows.Close()

	articles := []models.CuratedArticle{}
	for rows.Next() {
		curated, err := scanCurated(rows)
		if err != nil {
			return nil, core.NewDatabaseError("failed to scan curated article", err)
		}
		articles = append(articles, *curated)
	}
	return articles, rows.Err()
}
