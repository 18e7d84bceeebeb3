package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

// CuratedWriter stores one curated article
type CuratedWriter interface {
	Create(ctx context.Context, c models.CuratedCreate) (*models.CuratedArticle, error)
}

// CuratorConfig configures a Curator
type CuratorConfig struct {
	BatchSize      int
	ContentBudget  int
	ExtractContent bool
	UserAgents     []string
}

// Curator enriches pending raw articles into curated articles
type Curator struct {
	articles  *ArticleService
	curated   CuratedWriter
	enricher  *Enricher
	extractor *ContentExtractor
	media     *MediaResolver
	publisher Publisher
	logger    *core.Logger
	config    CuratorConfig
}

// NewCurator creates a new curation orchestrator. extractor may be nil, in
// which case only stored HTML and feed summaries are used.
func NewCurator(
	articles *ArticleService,
	curated CuratedWriter,
	enricher *Enricher,
	extractor *ContentExtractor,
	media *MediaResolver,
	publisher Publisher,
	config CuratorConfig,
	logger *core.Logger,
) *Curator {
	if config.BatchSize <= 0 {
		config.BatchSize = 20
	}
	if config.ContentBudget <= 0 {
		config.ContentBudget = 4000
	}
	return &Curator{
		articles:  articles,
		curated:   curated,
		enricher:  enricher,
		extractor: extractor,
		media:     media,
		publisher: publisher,
		logger:    logger,
		config:    config,
	}
}

// CurateBatch curates up to BatchSize pending articles. A failing article
// is reported in the result and never stops the rest of the batch.
func (c *Curator) CurateBatch(ctx context.Context) (*models.CurationResult, error) {
	runID := uuid.NewString()
	logger := c.logger.WithRun("curation", runID)

	pending, err := c.articles.ListUncurated(ctx, c.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending articles: %w", err)
	}

	result := &models.CurationResult{RunID: runID, Errors: []models.ArticleError{}}
	if len(pending) == 0 {
		logger.Info("No articles pending curation")
		return result, nil
	}
	logger.Info("Curating articles", "count", len(pending))

	for idx := range pending {
		if ctx.Err() != nil {
			break
		}
		article := &pending[idx]
		result.Processed++

		if err := c.curateArticle(ctx, article, logger); err != nil {
			logger.Error("Failed to curate article", "article_id", article.ID, "url", article.URL, "error", err)
			result.Errors = append(result.Errors, models.ArticleError{
				ArticleID: article.ID,
				URL:       article.URL,
				Error:     err.Error(),
			})
			continue
		}
		result.Curated++
	}

	logger.Info("Curation batch completed",
		"processed", result.Processed, "curated", result.Curated, "errors", len(result.Errors))

	if result.Curated > 0 {
		c.publisher.Publish(ctx, NewEvent(models.EventArticlesCurated, result.Curated, runID))
	}
	return result, nil
}

func (c *Curator) curateArticle(ctx context.Context, article *models.RawArticle, runLogger *core.Logger) error {
	logger := runLogger.With("article_id", article.ID)

	content, html, err := c.pageContent(ctx, article)
	if err != nil {
		logger.Info("Curating from feed summary only", "url", article.URL, "error", err)
	}
	text := CompositeText(content, article.SummaryFeed, c.config.ContentBudget)
	if text == "" {
		text = article.Title
	}

	short, detailed := c.enricher.Summarize(ctx, text, article.Title)
	create := models.CuratedCreate{
		RawArticleID:    article.ID,
		SummaryShort:    short,
		SummaryDetailed: detailed,
		RelevanceScore:  c.enricher.Score(ctx, text, article.Title),
		Tags:            c.enricher.Tag(ctx, text, article.Title),
		Embedding:       c.enricher.Embed(ctx, text),
	}

	images, err := c.articles.Media(ctx, article.ID, models.MediaImage)
	if err != nil {
		return err
	}
	switch {
	case len(images) > 0:
		create.CoverMediaID = &images[0].ID
	case html != "":
		create.Cover = c.media.ResolveCover(html, article.URL)
	}

	curated, err := c.curated.Create(ctx, create)
	if err != nil {
		return err
	}

	logger.Debug("Curated article", "curated_id", curated.ID, "relevance", create.RelevanceScore, "tags", create.Tags)
	return nil
}

// pageContent returns the readable text and raw HTML of the article page.
// Stored HTML is preferred; otherwise the page is extracted and its HTML
// stored. A failed extraction returns an EXTRACTION_ERROR and no content.
func (c *Curator) pageContent(ctx context.Context, article *models.RawArticle) (string, string, error) {
	if article.HasHTML() {
		return TextFromHTML(article.RawHTML), article.RawHTML, nil
	}
	if c.extractor == nil || !c.config.ExtractContent {
		return "", "", nil
	}

	extracted := c.extractor.Extract(ctx, article.URL, DefaultHeaders(c.config.UserAgents, nil))
	if !extracted.Success {
		message := "content extraction failed"
		if extracted.IsPaywalled {
			message = "article is paywalled"
		}
		return "", "", core.NewExtractionError(message, errors.New(extracted.Error))
	}

	if extracted.HTML != "" {
		if err := c.articles.SetRawHTML(ctx, article.ID, extracted.HTML); err != nil {
			c.logger.Warn("Failed to store article HTML", "article_id", article.ID, "error", err)
		}
	}
	return extracted.Content, extracted.HTML, nil
}

// CompositeText joins page content, bounded to budget characters, and the
// feed summary
func CompositeText(content, summary string, budget int) string {
	content = Truncate(content, budget)
	switch {
	case content == "":
		return summary
	case summary == "":
		return content
	default:
		return content + "\n\n" + summary
	}
}
