package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genienews/internal/auth"
	"genienews/internal/core"
)

func testConfig(t *testing.T) *core.Config {
	t.Helper()
	t.Setenv("NEWS_AUDIO_DIR", t.TempDir())
	t.Setenv("NEWS_SCHEDULER_ENABLED", "false")
	t.Setenv("NEWS_ADMIN_PASSWORD", "s3cret")
	t.Setenv("OPENAI_BASE_URL", "http://127.0.0.1:1")

	cfg, err := core.LoadConfig()
	require.NoError(t, err)
	return cfg
}

func TestConfigValidate(t *testing.T) {
	base := NewConfig(testConfig(t))
	require.NoError(t, base.Validate())
	assert.Equal(t, 30*24*time.Hour, base.Fetcher.RecencyWindow)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"short ingest interval", func(c *Config) { c.Scheduler.IngestInterval = time.Second }},
		{"short curate interval", func(c *Config) { c.Scheduler.CurateInterval = 0 }},
		{"batch too large", func(c *Config) { c.Curator.BatchSize = 1000 }},
		{"tiny content budget", func(c *Config) { c.Curator.ContentBudget = 10 }},
		{"no audio dir", func(c *Config) { c.Digest.AudioDir = "" }},
		{"digest too large", func(c *Config) { c.Digest.Size = 100 }},
		{"no user agents", func(c *Config) { c.Ingestor.UserAgents = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestFeatureRoutes(t *testing.T) {
	cfg := testConfig(t)
	logger := core.NewNopLogger()
	ctx := context.Background()

	db, err := core.OpenDatabase(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	authService, err := auth.NewService(cfg.Auth, logger)
	require.NoError(t, err)

	feature, err := NewFeature(ctx, logger, db, NewConfig(cfg), auth.NewMiddleware(authService, logger))
	require.NoError(t, err)
	require.NoError(t, feature.Init(ctx))
	t.Cleanup(func() { feature.Shutdown(context.Background()) })

	r := chi.NewRouter()
	for _, route := range feature.Routes() {
		r.Method(route.Method, route.Path, route.Handler)
	}

	do := func(method, target string, withAuth bool) int {
		req := httptest.NewRequest(method, target, nil)
		if withAuth {
			req.SetBasicAuth("admin", "s3cret")
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/news/articles", false))
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/news/sources", false))
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/api/news/digest/latest", false))

	assert.Equal(t, http.StatusUnauthorized, do(http.MethodPost, "/api/news/admin/ingest", false))
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/news/admin/ingest", true))
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/news/admin/curate", true))
	assert.Equal(t, http.StatusUnprocessableEntity, do(http.MethodPost, "/api/news/admin/digest", true))
}
