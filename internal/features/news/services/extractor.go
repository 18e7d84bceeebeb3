package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

const (
	maxPageBytes = 5 << 20

	// minContentLength is the shortest text accepted as article content
	minContentLength = 200

	maxExtractedImages = 10
)

// noiseSelectors are removed before reading article text
const noiseSelectors = "script, style, noscript, iframe, form, nav, footer, aside, " +
	".ad, .ads, .advert, .advertisement, .sidebar, .social-share, .share, .comments, .newsletter"

// ExtractionStrategy is one way of turning an article URL into text
type ExtractionStrategy interface {
	Name() string
	Extract(ctx context.Context, pageURL string, headers http.Header) models.ExtractionResult
}

// ContentExtractor runs strategies in order and stops at the first one
// that returns content
type ContentExtractor struct {
	strategies []ExtractionStrategy
	logger     *core.Logger
}

// NewContentExtractor creates an extractor over the given strategies
func NewContentExtractor(logger *core.Logger, strategies ...ExtractionStrategy) *ContentExtractor {
	return &ContentExtractor{
		strategies: strategies,
		logger:     logger,
	}
}

// NewDefaultContentExtractor chains the selector, readability and browser
// strategies over one page fetcher
func NewDefaultContentExtractor(pages *PageFetcher, logger *core.Logger) *ContentExtractor {
	return NewContentExtractor(logger,
		NewSelectorStrategy(pages),
		NewReadabilityStrategy(pages),
		BrowserStrategy{},
	)
}

// Extract never returns an error: a total failure is reported in the result
func (e *ContentExtractor) Extract(ctx context.Context, pageURL string, headers http.Header) models.ExtractionResult {
	var failures []string
	paywalled := false

	for _, strategy := range e.strategies {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err.Error())
			break
		}

		result := strategy.Extract(ctx, pageURL, headers)
		if result.Success && strings.TrimSpace(result.Content) != "" {
			result.StrategyUsed = strategy.Name()
			result.IsPaywalled = result.IsPaywalled || paywalled
			e.logger.Debug("Extracted content", "url", pageURL, "strategy", strategy.Name(), "chars", len(result.Content))
			return result
		}

		if result.IsPaywalled {
			paywalled = true
		}
		reason := result.Error
		if reason == "" {
			reason = "no content"
		}
		failures = append(failures, fmt.Sprintf("%s: %s", strategy.Name(), reason))
		e.logger.Debug("Extraction strategy failed", "url", pageURL, "strategy", strategy.Name(), "reason", reason)
	}

	e.logger.Warn("All extraction strategies failed", "url", pageURL, "paywalled", paywalled)
	return models.ExtractionResult{
		Success:     false,
		IsPaywalled: paywalled,
		Error:       "all extraction strategies failed: " + strings.Join(failures, "; "),
	}
}

// PageFetchError is returned when an article page cannot be downloaded
type PageFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *PageFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetching %s: HTTP error %d", e.URL, e.StatusCode)
}

func (e *PageFetchError) Unwrap() error { return e.Err }

// Retryable is true for transport failures, 429 and 5xx responses
func (e *PageFetchError) Retryable() bool {
	if e.StatusCode == 0 {
		return e.Err != nil
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// DefaultPageRetryPolicy is used for article page downloads
func DefaultPageRetryPolicy() core.RetryPolicy {
	return core.RetryPolicy{
		Name:     "page_fetch",
		Attempts: 2,
		MinWait:  time.Second,
		MaxWait:  10 * time.Second,
		Retryable: func(err error) bool {
			var pe *PageFetchError
			return errors.As(err, &pe) && pe.Retryable()
		},
	}
}

// PageFetcher downloads article pages under the domain limiter
type PageFetcher struct {
	client  *http.Client
	limiter *core.DomainLimiter
	logger  *core.Logger
	retry   core.RetryPolicy
}

// NewPageFetcher creates a new page fetcher
func NewPageFetcher(timeout time.Duration, retry core.RetryPolicy, limiter *core.DomainLimiter, logger *core.Logger) *PageFetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if retry.Attempts == 0 {
		retry = DefaultPageRetryPolicy()
	}
	return &PageFetcher{
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger,
		retry:   retry,
	}
}

// Fetch returns the page body as a string
func (p *PageFetcher) Fetch(ctx context.Context, pageURL string, headers http.Header) (string, error) {
	var body string
	err := p.retry.Do(ctx, p.logger, func() error {
		if err := p.limiter.Wait(ctx, Domain(pageURL)); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return fmt.Errorf("building request for %s: %w", pageURL, err)
		}
		for k, values := range headers {
			for _, v := range values {
				req.Header.Add(k, v)
			}
		}

		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &PageFetchError{URL: pageURL, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &PageFetchError{URL: pageURL, StatusCode: resp.StatusCode}
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) {
				return &PageFetchError{URL: pageURL, Err: err}
			}
			return err
		}
		body = string(data)
		return nil
	})
	return body, err
}

// SelectorStrategy reads the first known content container of the page
type SelectorStrategy struct {
	pages *PageFetcher
}

// NewSelectorStrategy creates the lightweight selector strategy
func NewSelectorStrategy(pages *PageFetcher) *SelectorStrategy {
	return &SelectorStrategy{pages: pages}
}

func (s *SelectorStrategy) Name() string { return "selectors" }

func (s *SelectorStrategy) Extract(ctx context.Context, pageURL string, headers http.Header) models.ExtractionResult {
	doc, raw, result, ok := loadPage(ctx, s.pages, pageURL, headers)
	if !ok {
		return result
	}

	for _, selector := range contentContainers {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}
		if text := containerText(container); len(text) >= minContentLength {
			result.Content = text
			result.HTML = raw
			result.Images = imageURLs(doc, pageURL)
			result.Success = true
			return result
		}
	}

	result.Error = "no content container matched"
	return result
}

// ReadabilityStrategy runs the full readability algorithm over the page
type ReadabilityStrategy struct {
	pages *PageFetcher
}

// NewReadabilityStrategy creates the readability strategy
func NewReadabilityStrategy(pages *PageFetcher) *ReadabilityStrategy {
	return &ReadabilityStrategy{pages: pages}
}

func (s *ReadabilityStrategy) Name() string { return "readability" }

func (s *ReadabilityStrategy) Extract(ctx context.Context, pageURL string, headers http.Header) models.ExtractionResult {
	doc, raw, result, ok := loadPage(ctx, s.pages, pageURL, headers)
	if !ok {
		return result
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		result.Error = fmt.Sprintf("invalid page url: %v", err)
		return result
	}

	article, err := readability.FromReader(strings.NewReader(raw), parsedURL)
	if err != nil {
		result.Error = fmt.Sprintf("readability: %v", err)
		return result
	}

	text := readableText(article)
	if len(text) < minContentLength {
		result.Error = "readable content too short"
		return result
	}

	if result.Title == "" {
		result.Title = CleanText(article.Title)
	}
	result.Content = text
	result.HTML = raw
	result.Images = imageURLs(doc, pageURL)
	if article.Image != "" && !slices.Contains(result.Images, article.Image) {
		result.Images = append([]string{article.Image}, result.Images...)
		if len(result.Images) > maxExtractedImages {
			result.Images = result.Images[:maxExtractedImages]
		}
	}
	result.Success = true
	return result
}

// readableText keeps the paragraph breaks of the extracted article
func readableText(article readability.Article) string {
	if article.Content != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content)); err == nil {
			if text := containerText(doc.Selection); text != "" {
				return text
			}
		}
	}
	return CleanText(article.TextContent)
}

// BrowserStrategy is the reserved slot for pages that need a real browser
type BrowserStrategy struct{}

func (BrowserStrategy) Name() string { return "browser" }

func (BrowserStrategy) Extract(context.Context, string, http.Header) models.ExtractionResult {
	return models.ExtractionResult{Error: "browser automation strategy not implemented"}
}

// loadPage downloads and parses a page and checks it for a paywall. When
// ok is false the returned result already describes the failure.
func loadPage(ctx context.Context, pages *PageFetcher, pageURL string, headers http.Header) (*goquery.Document, string, models.ExtractionResult, bool) {
	var result models.ExtractionResult

	raw, err := pages.Fetch(ctx, pageURL, headers)
	if err != nil {
		result.Error = err.Error()
		return nil, "", result, false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		result.Error = fmt.Sprintf("parsing page: %v", err)
		return nil, "", result, false
	}

	result.Title = pageTitle(doc)

	doc.Find(noiseSelectors).Remove()
	if IsPaywalled(doc.Find("body").Text()) {
		result.IsPaywalled = true
		result.Error = "content is behind a paywall"
		return nil, "", result, false
	}

	return doc, raw, result, true
}

func pageTitle(doc *goquery.Document) string {
	if og, ok := doc.Find("meta[property='og:title']").First().Attr("content"); ok && CleanText(og) != "" {
		return CleanText(og)
	}
	if title := CleanText(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return CleanText(doc.Find("h1").First().Text())
}

// containerText joins the paragraphs of a block, or its whole text when
// it has none
func containerText(sel *goquery.Selection) string {
	var paragraphs []string
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := CleanText(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return CleanText(sel.Text())
	}
	return strings.Join(paragraphs, "\n\n")
}

func imageURLs(doc *goquery.Document, pageURL string) []string {
	candidates := contentImages(doc, pageURL, maxExtractedImages)
	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		urls = append(urls, c.URL)
	}
	return urls
}

// TextFromHTML returns the readable text of an already fetched page: the
// first content container with enough text, else the whole body
func TextFromHTML(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	doc.Find(noiseSelectors).Remove()

	for _, selector := range contentContainers {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}
		if text := containerText(container); len(text) >= minContentLength {
			return text
		}
	}
	return containerText(doc.Find("body"))
}
