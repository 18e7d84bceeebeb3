package services

import (
	"mime"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

// minCoverSize is the smallest width and height accepted for a content image
const minCoverSize = 200

// contentContainers are tried in order when looking for article images or text
var contentContainers = []string{
	"article",
	"[role='main']",
	".article-content",
	".article-body",
	".entry-content",
	".post-content",
	".story-body",
	".content",
	".post",
	"main",
}

// skippedImageMarkers flag images that are never a good cover
var skippedImageMarkers = []string{
	"/ad/", "/ads/", "advert", "doubleclick", "adserver",
	"tracking", "tracker", "pixel", "beacon", "spacer",
	"logo", "icon", "avatar", "gravatar", "sprite",
}

// MediaResolver finds images and videos in feed entries and article pages
type MediaResolver struct {
	logger *core.Logger
}

// NewMediaResolver creates a new media resolver
func NewMediaResolver(logger *core.Logger) *MediaResolver {
	return &MediaResolver{logger: logger}
}

// FromEntry collects the media of a feed item in priority order: enclosures,
// media:content, media:thumbnail, then images inside the summary and content
// HTML. URLs are resolved against baseURL and duplicates keep their first
// position.
func (m *MediaResolver) FromEntry(item *models.FeedItem, baseURL string) []models.MediaCandidate {
	if item == nil {
		return nil
	}

	c := newCandidateList(baseURL)

	for _, enc := range item.Enclosures {
		if mediaType, ok := mediaTypeOf(enc.Type, "", enc.URL); ok {
			c.add(models.MediaCandidate{Type: mediaType, URL: enc.URL, MimeType: enc.Type})
		}
	}

	for _, mc := range item.MediaContent {
		if mediaType, ok := mediaTypeOf(mc.Type, mc.Medium, mc.URL); ok {
			c.add(models.MediaCandidate{Type: mediaType, URL: mc.URL, Width: mc.Width, Height: mc.Height, MimeType: mc.Type})
		}
	}

	for _, th := range item.MediaThumbnails {
		c.add(models.MediaCandidate{Type: models.MediaImage, URL: th.URL, Width: th.Width, Height: th.Height})
	}

	for _, fragment := range []string{item.Summary, item.Content} {
		if !strings.Contains(fragment, "<img") {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
		if err != nil {
			continue
		}
		doc.Find("img").Each(func(_ int, img *goquery.Selection) {
			width, height := imageSize(img)
			c.add(models.MediaCandidate{Type: models.MediaImage, URL: imageSource(img), Width: width, Height: height})
		})
	}

	return c.items
}

// ResolveCover picks the cover image of an article page: og:image, then
// twitter:image, then the first large enough image inside a content
// container. It returns nil when the page has no usable image.
func (m *MediaResolver) ResolveCover(rawHTML, baseURL string) *models.MediaCandidate {
	if strings.TrimSpace(rawHTML) == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		m.logger.Debug("Failed to parse page for cover image", "url", baseURL, "error", err)
		return nil
	}

	return resolveCoverFromDocument(doc, baseURL)
}

func resolveCoverFromDocument(doc *goquery.Document, baseURL string) *models.MediaCandidate {
	metaSelectors := []struct {
		url    string
		width  string
		height string
	}{
		{"meta[property='og:image'], meta[property='og:image:url'], meta[property='og:image:secure_url']",
			"meta[property='og:image:width']", "meta[property='og:image:height']"},
		{"meta[name='twitter:image'], meta[property='twitter:image'], meta[name='twitter:image:src']",
			"meta[name='twitter:image:width']", "meta[name='twitter:image:height']"},
	}

	for _, sel := range metaSelectors {
		content, _ := doc.Find(sel.url).First().Attr("content")
		resolved, ok := NormalizeURL(content, baseURL)
		if !ok {
			continue
		}
		width, _ := doc.Find(sel.width).First().Attr("content")
		height, _ := doc.Find(sel.height).First().Attr("content")
		return &models.MediaCandidate{
			Type:   models.MediaImage,
			URL:    resolved,
			Width:  atoiOrZero(width),
			Height: atoiOrZero(height),
		}
	}

	images := contentImages(doc, baseURL, 1)
	if len(images) == 0 {
		return nil
	}
	return &images[0]
}

// contentImages returns up to limit qualifying images from the first
// content container that has any
func contentImages(doc *goquery.Document, baseURL string, limit int) []models.MediaCandidate {
	for _, selector := range contentContainers {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}

		c := newCandidateList(baseURL)
		container.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
			src := imageSource(img)
			if src == "" || isSkippedImage(src) {
				return true
			}
			width, height := imageSize(img)
			if (width > 0 && width < minCoverSize) || (height > 0 && height < minCoverSize) {
				return true
			}
			c.add(models.MediaCandidate{Type: models.MediaImage, URL: src, Width: width, Height: height})
			return limit <= 0 || len(c.items) < limit
		})

		if len(c.items) > 0 {
			return c.items
		}
	}
	return nil
}

func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src", "data-original"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(v, "data:") {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func imageSize(img *goquery.Selection) (int, int) {
	width, _ := img.Attr("width")
	height, _ := img.Attr("height")
	return atoiOrZero(width), atoiOrZero(height)
}

func isSkippedImage(src string) bool {
	lower := strings.ToLower(src)
	for _, marker := range skippedImageMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// mediaTypeOf classifies a feed media element by MIME type, Media RSS
// medium or file extension
func mediaTypeOf(mimeType, medium, rawURL string) (models.MediaType, bool) {
	switch strings.ToLower(medium) {
	case "image":
		return models.MediaImage, true
	case "video":
		return models.MediaVideo, true
	}

	if mimeType == "" {
		mimeType = mime.TypeByExtension(strings.ToLower(path.Ext(stripQuery(rawURL))))
	}
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return models.MediaImage, true
	case strings.HasPrefix(mimeType, "video/"):
		return models.MediaVideo, true
	case mimeType == "" && medium == "":
		return models.MediaImage, true
	}
	return "", false
}

func stripQuery(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// candidateList keeps resolved, unique candidates in insertion order
type candidateList struct {
	base  string
	seen  map[string]bool
	items []models.MediaCandidate
}

func newCandidateList(base string) *candidateList {
	return &candidateList{base: base, seen: make(map[string]bool)}
}

func (c *candidateList) add(candidate models.MediaCandidate) {
	resolved, ok := NormalizeURL(candidate.URL, c.base)
	if !ok || c.seen[resolved] {
		return
	}
	c.seen[resolved] = true
	candidate.URL = resolved
	c.items = append(c.items, candidate)
}
