package handlers

import (
	"context"
	"time"

	"genienews/internal/features/news/models"
	"genienews/internal/features/news/services"
)

type ArticleStore interface {
	List(ctx context.Context, params models.CuratedListParams) ([]models.CuratedArticle, error)
	Count(ctx context.Context, params models.CuratedListParams) (int, error)
	Get(ctx context.Context, id int) (*models.CuratedArticle, error)
}

type DigestStore interface {
	Latest(ctx context.Context) (*models.DigestSegment, error)
	GetByDate(ctx context.Context, date string) (*models.DigestSegment, error)
}

type SourceStore interface {
	List(ctx context.Context) ([]models.Source, error)
	Reactivate(ctx context.Context, id int) (*models.Source, error)
}

type IngestionLogStore interface {
	List(ctx context.Context, filter services.IngestionLogFilter) ([]models.IngestionLog, error)
}

// Pipeline is the set of stage runs the admin endpoints can trigger
type Pipeline interface {
	IngestDue(ctx context.Context) (*models.IngestRunResult, error)
	IngestSource(ctx context.Context, sourceID int) (*models.IngestResult, error)
	CurateBatch(ctx context.Context) (*models.CurationResult, error)
	GenerateDigest(ctx context.Context, date time.Time) models.DigestResult
}
