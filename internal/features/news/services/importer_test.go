package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

func TestImportYAML(t *testing.T) {
	sources := NewSourceService(newTestDB(t), core.NewNopLogger())
	importer := NewSourceImporter(sources, core.NewNopLogger())
	ctx := context.Background()

	doc := `
sources:
  - name: Lab Blog
    feed_url: https://lab.example/rss.xml
    fetch_interval_minutes: 60
    custom_headers:
      X-Api-Key: secret
  - name: Research
    feed_url: https://research.example/atom
    site_url: https://research.example/home
    max_articles_per_fetch: 10
  - name: Broken
    feed_url: ftp://nowhere
`
	result, err := importer.Import(ctx, strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Zero(t, result.Skipped)
	require.Len(t, result.Invalid, 1)
	assert.Contains(t, result.Invalid[0], "Broken")

	all, err := sources.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	byName := map[string]models.Source{}
	for _, s := range all {
		byName[s.Name] = s
	}
	assert.Equal(t, 60, byName["Lab Blog"].FetchIntervalMinutes)
	assert.Equal(t, models.DefaultMaxArticlesPerFetch, byName["Lab Blog"].MaxArticlesPerFetch)
	assert.Equal(t, "https://lab.example", byName["Lab Blog"].SiteURL)
	assert.Equal(t, map[string]string{"X-Api-Key": "secret"}, byName["Lab Blog"].CustomHeaders)
	assert.Equal(t, "https://research.example/home", byName["Research"].SiteURL)
	assert.Equal(t, 10, byName["Research"].MaxArticlesPerFetch)
	assert.Equal(t, models.DefaultFetchIntervalMinutes, byName["Research"].FetchIntervalMinutes)

	again, err := importer.Import(ctx, strings.NewReader(doc))
	require.NoError(t, err)
	assert.Zero(t, again.Created)
	assert.Equal(t, 2, again.Skipped)
}

func TestImportLineFormat(t *testing.T) {
	sources := NewSourceService(newTestDB(t), core.NewNopLogger())
	importer := NewSourceImporter(sources, core.NewNopLogger())
	ctx := context.Background()

	doc := `Sources
OpenAI News: https://openai.example/news/rss.xml
DeepMind:https://deepmind.example/blog/rss.xml

sk-not-a-source
no colon here
Bad: notaurl
`
	result, err := importer.Import(ctx, strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Len(t, result.Invalid, 2)

	all, err := sources.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "DeepMind", all[0].Name)
	assert.Equal(t, "https://deepmind.example/blog/rss.xml", all[0].FeedURL)
	assert.Equal(t, "https://deepmind.example", all[0].SiteURL)
	assert.Equal(t, models.DefaultFetchIntervalMinutes, all[0].FetchIntervalMinutes)
	assert.Equal(t, "OpenAI News", all[1].Name)
}
