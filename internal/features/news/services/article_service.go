package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

var rawArticleColumns = []string{
	"r.id", "r.source_id", "s.name", "r.title", "r.url", "r.author", "r.published_at",
	"r.summary_feed", "r.raw_html", "r.tags", "r.created_at", "r.updated_at",
}

var mediaColumns = []string{
	"m.id", "m.type", "m.source_url", "m.proxy_url", "m.width", "m.height", "m.mime_type", "m.created_at",
}

// ArticleService persists raw articles and their media
type ArticleService struct {
	db     *core.Database
	logger *core.Logger
}

// NewArticleService creates a new article service
func NewArticleService(db *core.Database, logger *core.Logger) *ArticleService {
	return &ArticleService{
		db:     db,
		logger: logger,
	}
}

func scanRawArticle(row rowScanner) (*models.RawArticle, error) {
	var a models.RawArticle
	var tags string
	err := row.Scan(
		&a.ID, &a.SourceID, &a.SourceName, &a.Title, &a.URL, &a.Author, &a.PublishedAt,
		&a.SummaryFeed, &a.RawHTML, &tags, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeStrings(tags, &a.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags of article %d: %w", a.ID, err)
	}
	return &a, nil
}

func scanMedia(row rowScanner) (*models.MediaAsset, error) {
	var m models.MediaAsset
	var width, height sql.NullInt64
	err := row.Scan(&m.ID, &m.Type, &m.SourceURL, &m.ProxyURL, &width, &height, &m.MimeType, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Width = int(width.Int64)
	m.Height = int(height.Int64)
	return &m, nil
}

// UpsertFromEntry creates the article for entry.URL or refreshes its title,
// published date and feed summary. The media candidates are stored and
// linked in the same transaction.
func (s *ArticleService) UpsertFromEntry(ctx context.Context, sourceID int, entry models.FeedEntry, media []models.MediaCandidate) (models.UpsertResult, error) {
	var result models.UpsertResult

	tags, err := encodeStrings(entry.Tags)
	if err != nil {
		return result, err
	}
	now := time.Now().UTC()

	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var id int
		err := tx.QueryRowContext(ctx, `SELECT id FROM news_raw_articles WHERE url = ?`, entry.URL).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			err = tx.QueryRowContext(ctx, `
				INSERT INTO news_raw_articles (source_id, title, url, author, published_at, summary_feed, tags, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				RETURNING id`,
				sourceID, entry.Title, entry.URL, entry.Author, entry.PublishedAt.UTC(), entry.Summary, tags, now,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("failed to insert article: %w", err)
			}
			result.Created = true
		case err != nil:
			return fmt.Errorf("failed to look up article: %w", err)
		default:
			_, err = tx.ExecContext(ctx, `
				UPDATE news_raw_articles
				SET title = ?, published_at = ?, summary_feed = ?, updated_at = ?
				WHERE id = ?`,
				entry.Title, entry.PublishedAt.UTC(), entry.Summary, now, id)
			if err != nil {
				return fmt.Errorf("failed to update article: %w", err)
			}
		}
		result.ArticleID = id

		for position, candidate := range media {
			mediaID, err := getOrCreateMedia(ctx, tx, candidate)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO news_raw_article_media (article_id, media_id, position)
				VALUES (?, ?, ?)
				ON CONFLICT(article_id, media_id) DO NOTHING`,
				id, mediaID, position)
			if err != nil {
				return fmt.Errorf("failed to link media: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.UpsertResult{}, core.NewDatabaseError(fmt.Sprintf("failed to upsert article %s", entry.URL), err)
	}

	return result, nil
}

// getOrCreateMedia returns the id of the asset with candidate's URL,
// inserting it first when it is new
func getOrCreateMedia(ctx context.Context, tx *sql.Tx, candidate models.MediaCandidate) (int, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO news_media_assets (type, source_url, width, height, mime_type)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_url) DO NOTHING`,
		string(candidate.Type), candidate.URL, nullableInt(candidate.Width), nullableInt(candidate.Height), candidate.MimeType)
	if err != nil {
		return 0, fmt.Errorf("failed to insert media asset: %w", err)
	}

	var id int
	if err := tx.QueryRowContext(ctx, `SELECT id FROM news_media_assets WHERE source_url = ?`, candidate.URL).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to look up media asset: %w", err)
	}
	return id, nil
}

func (s *ArticleService) selectArticles() sq.SelectBuilder {
	return sq.Select(rawArticleColumns...).
		From("news_raw_articles r").
		Join("news_sources s ON s.id = r.source_id")
}

// Get returns one raw article
func (s *ArticleService) Get(ctx context.Context, id int) (*models.RawArticle, error) {
	return s.getWhere(ctx, sq.Eq{"r.id": id})
}

// GetByURL returns the raw article stored under url
func (s *ArticleService) GetByURL(ctx context.Context, url string) (*models.RawArticle, error) {
	return s.getWhere(ctx, sq.Eq{"r.url": url})
}

func (s *ArticleService) getWhere(ctx context.Context, pred sq.Eq) (*models.RawArticle, error) {
	query, args, err := s.selectArticles().Where(pred).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article query: %w", err)
	}

	article, err := scanRawArticle(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError("article not found", err)
		}
		return nil, core.NewDatabaseError("failed to get article", err)
	}
	return article, nil
}

// ListUncurated returns up to limit raw articles without a curated
// counterpart, newest first
func (s *ArticleService) ListUncurated(ctx context.Context, limit int) ([]models.RawArticle, error) {
	builder := s.selectArticles().
		LeftJoin("news_curated_articles c ON c.raw_article_id = r.id").
		Where(sq.Eq{"c.id": nil}).
		OrderBy("r.published_at DESC", "r.id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build uncurated query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, core.NewDatabaseError("failed to list uncurated articles", err)
	}
	defer rows.Close()

	var articles []models.RawArticle
	for rows.Next() {
		article, err := scanRawArticle(rows)
		if err != nil {
			return nil, core.NewDatabaseError("failed to scan article", err)
		}
		articles = append(articles, *article)
	}
	return articles, rows.Err()
}

// Count returns the number of raw articles
func (s *ArticleService) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM news_raw_articles`).Scan(&n); err != nil {
		return 0, core.NewDatabaseError("failed to count articles", err)
	}
	return n, nil
}

// Media returns the assets linked to an article in feed order, optionally
// restricted to one media type
func (s *ArticleService) Media(ctx context.Context, articleID int, mediaType models.MediaType) ([]models.MediaAsset, error) {
	builder := sq.Select(mediaColumns...).
		From("news_media_assets m").
		Join("news_raw_article_media am ON am.media_id = m.id").
		Where(sq.Eq{"am.article_id": articleID}).
		OrderBy("am.position", "m.id")
	if mediaType != "" {
		builder = builder.Where(sq.Eq{"m.type": string(mediaType)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build media query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, core.NewDatabaseError("failed to list article media", err)
	}
	defer rows.Close()

	var assets []models.MediaAsset
	for rows.Next() {
		asset, err := scanMedia(rows)
		if err != nil {
			return nil, core.NewDatabaseError("failed to scan media asset", err)
		}
		assets = append(assets, *asset)
	}
	return assets, rows.Err()
}

// SetRawHTML stores the fetched page of an article
func (s *ArticleService) SetRawHTML(ctx context.Context, id int, html string) error {
	_, err := s.db.ExecWithTimeout(ctx,
		`UPDATE news_raw_articles SET raw_html = ?, updated_at = ? WHERE id = ?`,
		html, time.Now().UTC(), id)
	if err != nil {
		return core.NewDatabaseError("failed to store article HTML", err)
	}
	return nil
}

func nullableInt(v int) any {
	if v <= 0 {
		return nil
	}
	return v
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

func decodeStrings(data string, out *[]string) error {
	if data == "" {
		*out = []string{}
		return nil
	}
	return json.Unmarshal([]byte(data), out)
}
