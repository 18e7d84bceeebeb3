package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

// maxFeedBytes caps how much of a feed response is read
const maxFeedBytes = 10 << 20

// FeedErrorKind classifies why a feed could not be fetched
type FeedErrorKind string

const (
	FeedErrTimeout    FeedErrorKind = "timeout"
	FeedErrConnection FeedErrorKind = "connection"
	FeedErrNotFound   FeedErrorKind = "not_found"
	FeedErrForbidden  FeedErrorKind = "forbidden"
	FeedErrHTTP       FeedErrorKind = "http"
	FeedErrMalformed  FeedErrorKind = "malformed"
)

// FeedFetchError is returned by FeedFetcher.Fetch
type FeedFetchError struct {
	Kind       FeedErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FeedFetchError) Error() string {
	var msg string
	switch e.Kind {
	case FeedErrTimeout:
		msg = "timeout fetching feed"
	case FeedErrConnection:
		msg = "connection error"
	case FeedErrNotFound:
		msg = "feed not found (404)"
	case FeedErrForbidden:
		msg = "feed access forbidden (403)"
	case FeedErrHTTP:
		msg = fmt.Sprintf("HTTP error %d", e.StatusCode)
	default:
		msg = "malformed feed"
	}

	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", msg, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s", msg, e.URL)
}

func (e *FeedFetchError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed
func (e *FeedFetchError) Retryable() bool {
	switch e.Kind {
	case FeedErrTimeout, FeedErrConnection:
		return true
	case FeedErrHTTP:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	}
	return false
}

func isRetryableFeedError(err error) bool {
	var fe *FeedFetchError
	return errors.As(err, &fe) && fe.Retryable()
}

// DefaultFeedRetryPolicy tolerates flaky feed hosts
func DefaultFeedRetryPolicy() core.RetryPolicy {
	return core.RetryPolicy{
		Name:      "feed_fetch",
		Attempts:  3,
		MinWait:   time.Second,
		MaxWait:   30 * time.Second,
		Retryable: isRetryableFeedError,
	}
}

// FeedFetcherConfig configures a FeedFetcher
type FeedFetcherConfig struct {
	Timeout       time.Duration
	RecencyWindow time.Duration
	Retry         core.RetryPolicy
}

// FeedFetcher downloads feeds and turns their items into entries
type FeedFetcher struct {
	client  *http.Client
	limiter *core.DomainLimiter
	logger  *core.Logger
	retry   core.RetryPolicy
	recency time.Duration
	now     func() time.Time
}

// NewFeedFetcher creates a new feed fetcher
func NewFeedFetcher(cfg FeedFetcherConfig, limiter *core.DomainLimiter, logger *core.Logger) *FeedFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = 30 * 24 * time.Hour
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = DefaultFeedRetryPolicy()
	}

	return &FeedFetcher{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger,
		retry:   cfg.Retry,
		recency: cfg.RecencyWindow,
		now:     time.Now,
	}
}

// Fetch downloads and parses feedURL. A feed that is only partly readable
// is returned with Malformed set.
func (f *FeedFetcher) Fetch(ctx context.Context, feedURL string, headers http.Header) (*models.ParsedFeed, error) {
	domain := Domain(feedURL)

	var feed *models.ParsedFeed
	err := f.retry.Do(ctx, f.logger, func() error {
		if err := f.limiter.Wait(ctx, domain); err != nil {
			return err
		}

		parsed, err := f.fetchOnce(ctx, feedURL, headers)
		if err != nil {
			return err
		}
		feed = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if feed.Malformed {
		f.logger.Warn("Feed is malformed, using readable entries", "url", feedURL, "items", len(feed.Items), "warning", feed.Warning)
	}

	f.logger.Debug("Fetched feed", "url", feedURL, "dialect", feed.Dialect, "items", len(feed.Items))
	return feed, nil
}

func (f *FeedFetcher) fetchOnce(ctx context.Context, feedURL string, headers http.Header) (*models.ParsedFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &FeedFetchError{Kind: FeedErrConnection, URL: feedURL, Err: err}
	}
	for k, values := range headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyTransportError(feedURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &FeedFetchError{Kind: FeedErrNotFound, URL: feedURL, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusForbidden:
		return nil, &FeedFetchError{Kind: FeedErrForbidden, URL: feedURL, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &FeedFetchError{Kind: FeedErrHTTP, URL: feedURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, classifyTransportError(feedURL, err)
	}

	feed, err := ParseFeedDocument(body)
	if err != nil {
		return nil, &FeedFetchError{Kind: FeedErrMalformed, URL: feedURL, StatusCode: resp.StatusCode, Err: err}
	}
	return feed, nil
}

func classifyTransportError(feedURL string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FeedFetchError{Kind: FeedErrTimeout, URL: feedURL, Err: err}
	}
	return &FeedFetchError{Kind: FeedErrConnection, URL: feedURL, Err: err}
}

// ParseEntries normalizes up to maxCount feed items. Items without a title
// or a resolvable absolute URL, and items published outside the recency
// window, are dropped silently.
func (f *FeedFetcher) ParseEntries(feed *models.ParsedFeed, sourceURL string, maxCount int) []models.FeedEntry {
	if feed == nil {
		return nil
	}

	items := feed.Items
	if maxCount > 0 && len(items) > maxCount {
		items = items[:maxCount]
	}

	base := sourceURL
	if feed.Link != "" {
		base = feed.Link
	}

	now := f.now()
	entries := make([]models.FeedEntry, 0, len(items))

	for i := range items {
		item := items[i]

		title := StripHTML(item.Title)
		if title == "" {
			continue
		}

		link := item.Link
		if link == "" && strings.HasPrefix(item.GUID, "http") {
			link = item.GUID
		}
		entryURL, ok := NormalizeURL(link, base)
		if !ok {
			continue
		}

		published := parseEntryDate(&item, now)
		if now.Sub(published) > f.recency {
			continue
		}

		summary := StripHTML(item.Summary)
		if summary == "" {
			summary = StripHTML(item.Content)
		}

		entries = append(entries, models.FeedEntry{
			Title:       title,
			URL:         entryURL,
			PublishedAt: published,
			Summary:     summary,
			Author:      CleanText(item.Author),
			Tags:        entryTags(item.Categories),
			Item:        &item,
		})
	}

	return entries
}

var feedDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC3339Nano,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	"Mon, 2 Jan 2006 15:04 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseEntryDate tries the item's date fields in order and falls back
// to now when none of them parse
func parseEntryDate(item *models.FeedItem, now time.Time) time.Time {
	for _, raw := range []string{item.Published, item.Updated, item.Created, item.PubDate} {
		if t, ok := parseFeedDate(raw); ok {
			return t
		}
	}
	return now
}

func parseFeedDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range feedDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// entryTags flattens structured and plain categories, keeping first
// occurrence order and dropping case-insensitive duplicates
func entryTags(categories []models.FeedCategory) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, c := range categories {
		tag := CleanText(firstNonEmpty(c.Term, c.Label, c.Text))
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, tag)
	}
	return tags
}
