package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

func TestResolveCoverPrefersOpenGraph(t *testing.T) {
	page := `<html><head>
<meta name="twitter:image" content="https://ex.com/twitter.jpg">
<meta property="og:image" content="/og.jpg">
<meta property="og:image:width" content="1200">
</head><body><article>
<img src="https://ex.com/large.jpg" width="800" height="600">
</article></body></html>`

	cover := NewMediaResolver(core.NewNopLogger()).ResolveCover(page, "https://ex.com/a")
	require.NotNil(t, cover)
	assert.Equal(t, "https://ex.com/og.jpg", cover.URL)
	assert.Equal(t, 1200, cover.Width)
	assert.Equal(t, models.MediaImage, cover.Type)
}

func TestResolveCoverFallsBackToTwitter(t *testing.T) {
	page := `<html><head><meta name="twitter:image" content="https://ex.com/twitter.jpg"></head>
<body><article><img src="https://ex.com/large.jpg"></article></body></html>`

	cover := NewMediaResolver(core.NewNopLogger()).ResolveCover(page, "https://ex.com/a")
	require.NotNil(t, cover)
	assert.Equal(t, "https://ex.com/twitter.jpg", cover.URL)
}

func TestResolveCoverContentImage(t *testing.T) {
	page := `<html><body>
<header><img src="/header-banner.jpg" width="900" height="300"></header>
<article>
  <img src="/static/site-logo.png" width="600" height="600">
  <img src="/tiny.jpg" width="50" height="50">
  <img src="/ads/banner.jpg">
  <img src="data:image/gif;base64,AAAA" data-src="/lazy/hero.jpg" width="640" height="480">
  <img src="/second.jpg">
</article></body></html>`

	cover := NewMediaResolver(core.NewNopLogger()).ResolveCover(page, "https://ex.com/post/1")
	require.NotNil(t, cover)
	assert.Equal(t, "https://ex.com/lazy/hero.jpg", cover.URL)
	assert.Equal(t, 640, cover.Width)
}

func TestResolveCoverNothingUsable(t *testing.T) {
	r := NewMediaResolver(core.NewNopLogger())

	assert.Nil(t, r.ResolveCover("", "https://ex.com"))
	assert.Nil(t, r.ResolveCover(`<html><body><article><p>text only</p></article></body></html>`, "https://ex.com"))
	assert.Nil(t, r.ResolveCover(`<meta property="og:image" content="javascript:alert(1)">`, "https://ex.com"))
}

func TestFromEntryPriorityAndDedup(t *testing.T) {
	item := &models.FeedItem{
		Enclosures: []models.FeedEnclosure{
			{URL: "https://cdn.ex.com/enc.jpg", Type: "image/jpeg"},
			{URL: "https://cdn.ex.com/podcast.mp3", Type: "audio/mpeg"},
		},
		MediaContent: []models.FeedMedia{
			{URL: "https://cdn.ex.com/clip.mp4", Medium: "video"},
			{URL: "https://cdn.ex.com/enc.jpg", Medium: "image"},
		},
		MediaThumbnails: []models.FeedMedia{{URL: "/thumb.jpg", Width: 120, Height: 90}},
		Summary:         `<p>Intro <img src="https://cdn.ex.com/inline.png"></p>`,
		Content:         `<img data-lazy-src="/lazy.png"><img src="not a url:::">`,
	}

	candidates := NewMediaResolver(core.NewNopLogger()).FromEntry(item, "https://ex.com/feed")

	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		urls = append(urls, c.URL)
	}
	assert.Equal(t, []string{
		"https://cdn.ex.com/enc.jpg",
		"https://cdn.ex.com/clip.mp4",
		"https://ex.com/thumb.jpg",
		"https://cdn.ex.com/inline.png",
		"https://ex.com/lazy.png",
	}, urls)
	assert.Equal(t, models.MediaVideo, candidates[1].Type)
	assert.Equal(t, 120, candidates[2].Width)
}

func TestFromEntryKeepsVideoType(t *testing.T) {
	item := &models.FeedItem{
		MediaContent:    []models.FeedMedia{{URL: "https://cdn.ex.com/clip.mp4", Type: "video/mp4"}},
		MediaThumbnails: []models.FeedMedia{{URL: "https://cdn.ex.com/poster.jpg"}},
	}

	r := NewMediaResolver(core.NewNopLogger())
	candidates := r.FromEntry(item, "")
	require.Len(t, candidates, 2)
	assert.Equal(t, models.MediaVideo, candidates[0].Type)
	assert.Equal(t, models.MediaImage, candidates[1].Type)
	assert.Equal(t, "https://cdn.ex.com/poster.jpg", candidates[1].URL)

	assert.Empty(t, r.FromEntry(&models.FeedItem{}, ""))
	assert.Empty(t, r.FromEntry(nil, ""))
}
