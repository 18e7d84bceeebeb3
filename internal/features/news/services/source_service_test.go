package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

func TestSourceCreate(t *testing.T) {
	sources := NewSourceService(newTestDB(t), core.NewNopLogger())
	ctx := context.Background()

	source, err := sources.Create(ctx, models.SourceCreate{
		Name:          "  Example  ",
		FeedURL:       " https://example.com/feed/ ",
		CustomHeaders: map[string]string{"X-Token": "abc"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Example", source.Name)
	assert.Equal(t, "https://example.com/feed/", source.FeedURL)
	assert.Equal(t, "https://example.com", source.SiteURL)
	assert.True(t, source.Active)
	assert.Equal(t, models.DefaultFetchIntervalMinutes, source.FetchIntervalMinutes)
	assert.Equal(t, models.DefaultMaxArticlesPerFetch, source.MaxArticlesPerFetch)
	assert.Equal(t, map[string]string{"X-Token": "abc"}, source.CustomHeaders)
	assert.Nil(t, source.LastFetchedAt)

	_, err = sources.Create(ctx, models.SourceCreate{Name: "Again", FeedURL: "https://example.com/feed/"})
	require.Error(t, err)
	var appErr *core.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, core.ErrCodeValidation, appErr.Code)
}

func TestSourceCreateValidation(t *testing.T) {
	sources := NewSourceService(newTestDB(t), core.NewNopLogger())

	tests := []struct {
		name  string
		input models.SourceCreate
	}{
		{"missing name", models.SourceCreate{FeedURL: "https://example.com/feed"}},
		{"bad scheme", models.SourceCreate{Name: "x", FeedURL: "ftp://example.com/feed"}},
		{"no host", models.SourceCreate{Name: "x", FeedURL: "not a url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sources.Create(context.Background(), tt.input)
			require.Error(t, err)
		})
	}
}

func TestSourceCreateIfAbsent(t *testing.T) {
	sources := NewSourceService(newTestDB(t), core.NewNopLogger())
	ctx := context.Background()

	created, err := sources.CreateIfAbsent(ctx, models.SourceCreate{Name: "A", FeedURL: "https://a.example/rss"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = sources.CreateIfAbsent(ctx, models.SourceCreate{Name: "A again", FeedURL: "https://a.example/rss"})
	require.NoError(t, err)
	assert.False(t, created)

	all, err := sources.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "A", all[0].Name)
}

func TestSourceGetNotFound(t *testing.T) {
	sources := NewSourceService(newTestDB(t), core.NewNopLogger())

	_, err := sources.Get(context.Background(), 42)
	assert.True(t, core.IsNotFound(err))
}

func TestSourceDeactivatesAfterConsecutiveFailures(t *testing.T) {
	sources := NewSourceService(newTestDB(t), core.NewNopLogger())
	ctx := context.Background()
	source := createTestSource(t, sources, "Flaky", "https://flaky.example/feed")

	for i := 1; i < models.MaxConsecutiveErrors; i++ {
		count, active, err := sources.RecordFailure(ctx, source.ID, "timeout")
		require.NoError(t, err)
		assert.Equal(t, i, count)
		assert.True(t, active)
	}

	count, active, err := sources.RecordFailure(ctx, source.ID, "still failing")
	require.NoError(t, err)
	assert.Equal(t, models.MaxConsecutiveErrors, count)
	assert.False(t, active)

	stored, err := sources.Get(ctx, source.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Equal(t, "still failing", stored.LastError)

	due, err := sources.ListDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)

	reactivated, err := sources.Reactivate(ctx, source.ID)
	require.NoError(t, err)
	assert.True(t, reactivated.Active)
	assert.Zero(t, reactivated.ErrorCount)
	assert.Empty(t, reactivated.LastError)
}

func TestSourceSuccessResetsErrorStreak(t *testing.T) {
	sources := NewSourceService(newTestDB(t), core.NewNopLogger())
	ctx := context.Background()
	source := createTestSource(t, sources, "Recovering", "https://recovering.example/feed")

	for i := 0; i < 3; i++ {
		_, _, err := sources.RecordFailure(ctx, source.ID, "boom")
		require.NoError(t, err)
	}

	fetchedAt := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sources.RecordSuccess(ctx, source.ID, fetchedAt))

	stored, err := sources.Get(ctx, source.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.ErrorCount)
	assert.Empty(t, stored.LastError)
	require.NotNil(t, stored.LastFetchedAt)
	assert.True(t, fetchedAt.Equal(*stored.LastFetchedAt))

	count, active, err := sources.RecordFailure(ctx, source.ID, "again")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.True(t, active)
}

func TestSourceListDue(t *testing.T) {
	sources := NewSourceService(newTestDB(t), core.NewNopLogger())
	ctx := context.Background()

	never := createTestSource(t, sources, "Never fetched", "https://never.example/feed")
	recent := createTestSource(t, sources, "Recent", "https://recent.example/feed")
	stale := createTestSource(t, sources, "Stale", "https://stale.example/feed")

	now := time.Now().UTC()
	require.NoError(t, sources.RecordSuccess(ctx, recent.ID, now.Add(-time.Hour)))
	require.NoError(t, sources.RecordSuccess(ctx, stale.ID, now.Add(-8*24*time.Hour)))

	due, err := sources.ListDue(ctx, now)
	require.NoError(t, err)

	var ids []int
	for _, s := range due {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []int{never.ID, stale.ID}, ids)
}

func TestSourceReactivateUnknown(t *testing.T) {
	sources := NewSourceService(newTestDB(t), core.NewNopLogger())

	_, err := sources.Reactivate(context.Background(), 99)
	assert.True(t, core.IsNotFound(err))
}
