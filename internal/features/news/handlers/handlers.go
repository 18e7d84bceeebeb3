package handlers

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
	"genienews/internal/features/news/services"
)

const defaultPageSize = 20

// Handlers serves the news read API and the admin trigger endpoints
type Handlers struct {
	logger   *core.Logger
	articles ArticleStore
	digests  DigestStore
	sources  SourceStore
	logs     IngestionLogStore
	pipeline Pipeline
	audioDir string
}

// NewHandlers creates new news handlers
func NewHandlers(
	logger *core.Logger,
	articles ArticleStore,
	digests DigestStore,
	sources SourceStore,
	logs IngestionLogStore,
	pipeline Pipeline,
	audioDir string,
) *Handlers {
	return &Handlers{
		logger:   logger,
		articles: articles,
		digests:  digests,
		sources:  sources,
		logs:     logs,
		pipeline: pipeline,
		audioDir: audioDir,
	}
}

// ArticleListResponse is one page of curated articles
type ArticleListResponse struct {
	Articles []models.CuratedArticle `json:"articles"`
	Total    int                     `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
}

// ListArticles handles GET /api/news/articles
func (h *Handlers) ListArticles(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		core.HandleError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		core.HandleError(w, err)
		return
	}
	if limit > services.MaxCuratedPageSize {
		limit = services.MaxCuratedPageSize
	}

	params := models.CuratedListParams{
		Ordering: r.URL.Query().Get("ordering"),
		Tag:      r.URL.Query().Get("tag"),
		Limit:    limit,
		Offset:   offset,
	}

	articles, err := h.articles.List(r.Context(), params)
	if err != nil {
		h.logger.WithContext(r.Context()).Error("Failed to list curated articles", "error", err)
		core.HandleError(w, err)
		return
	}

	total, err := h.articles.Count(r.Context(), params)
	if err != nil {
		h.logger.WithContext(r.Context()).Error("Failed to count curated articles", "error", err)
		core.HandleError(w, err)
		return
	}

	core.WriteJSON(w, http.StatusOK, ArticleListResponse{
		Articles: articles,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

// GetArticle handles GET /api/news/articles/{id}
func (h *Handlers) GetArticle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	article, err := h.articles.Get(r.Context(), id)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.WriteJSON(w, http.StatusOK, article)
}

// LatestDigest handles GET /api/news/digest/latest
func (h *Handlers) LatestDigest(w http.ResponseWriter, r *http.Request) {
	segment, err := h.digests.Latest(r.Context())
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.WriteJSON(w, http.StatusOK, segment)
}

// DigestAudio handles GET /api/news/digest/{date}/audio
func (h *Handlers) DigestAudio(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse(models.DigestDateLayout, date); err != nil {
		core.HandleError(w, core.NewValidationError(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", date), err))
		return
	}

	segment, err := h.digests.GetByDate(r.Context(), date)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	path := filepath.Join(h.audioDir, filepath.Base(segment.AudioFile))
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.logger.WithContext(r.Context()).Warn("Digest audio missing on disk", "date", date, "path", path)
			core.HandleError(w, core.NewNotFoundError("digest audio not found", err))
			return
		}
		core.HandleError(w, core.NewInternalError("failed to open digest audio", err))
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeFile(w, r, path)
}

// ListSources handles GET /api/news/sources
func (h *Handlers) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.sources.List(r.Context())
	if err != nil {
		h.logger.WithContext(r.Context()).Error("Failed to list sources", "error", err)
		core.HandleError(w, err)
		return
	}

	core.WriteJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

// ListIngestionLogs handles GET /api/news/ingestion-logs
func (h *Handlers) ListIngestionLogs(w http.ResponseWriter, r *http.Request) {
	sourceID, err := queryInt(r, "source_id", 0)
	if err != nil {
		core.HandleError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	filter := services.IngestionLogFilter{
		SourceID: sourceID,
		Status:   models.IngestionStatus(r.URL.Query().Get("status")),
		Limit:    limit,
	}

	logs, err := h.logs.List(r.Context(), filter)
	if err != nil {
		h.logger.WithContext(r.Context()).Error("Failed to list ingestion logs", "error", err)
		core.HandleError(w, err)
		return
	}

	core.WriteJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// TriggerIngest handles POST /api/news/admin/ingest. With source_id only
// that source is fetched, otherwise every due source.
func (h *Handlers) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	sourceID, err := queryInt(r, "source_id", 0)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	if sourceID > 0 {
		result, err := h.pipeline.IngestSource(r.Context(), sourceID)
		if err != nil {
			core.HandleError(w, err)
			return
		}
		if result.Status == models.IngestionFailed {
			core.HandleError(w, core.NewFetchError(fmt.Sprintf("source %d: %s", sourceID, result.Error), nil))
			return
		}
		core.WriteJSON(w, http.StatusOK, result)
		return
	}

	result, err := h.pipeline.IngestDue(r.Context())
	if err != nil {
		h.logger.WithContext(r.Context()).Error("Triggered ingestion failed", "error", err)
		core.HandleError(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, result)
}

// TriggerCurate handles POST /api/news/admin/curate
func (h *Handlers) TriggerCurate(w http.ResponseWriter, r *http.Request) {
	result, err := h.pipeline.CurateBatch(r.Context())
	if err != nil {
		h.logger.WithContext(r.Context()).Error("Triggered curation failed", "error", err)
		core.HandleError(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, result)
}

// TriggerDigest handles POST /api/news/admin/digest. The optional date
// query parameter defaults to today.
func (h *Handlers) TriggerDigest(w http.ResponseWriter, r *http.Request) {
	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(models.DigestDateLayout, raw)
		if err != nil {
			core.HandleError(w, core.NewValidationError(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw), err))
			return
		}
		date = parsed
	}

	result := h.pipeline.GenerateDigest(r.Context(), date)

	status := http.StatusOK
	switch result.Status {
	case models.DigestSuccess:
		status = http.StatusCreated
	case models.DigestFailed:
		status = http.StatusUnprocessableEntity
	}
	core.WriteJSON(w, status, result)
}

// ReactivateSource handles POST /api/news/admin/sources/{id}/reactivate
func (h *Handlers) ReactivateSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	source, err := h.sources.Reactivate(r.Context(), id)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	h.logger.WithContext(r.Context()).Info("Source reactivated", "source_id", id, "name", source.Name)
	core.WriteJSON(w, http.StatusOK, source)
}

func pathID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(fmt.Sprintf("invalid id %q", raw), err)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, core.NewValidationError(fmt.Sprintf("%s must be a non-negative integer", name), err)
	}
	return value, nil
}
