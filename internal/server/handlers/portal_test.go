package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genienews/internal/core"
)

type stubFeature struct {
	*core.BaseFeature
}

func TestHealthCheck(t *testing.T) {
	logger := core.NewNopLogger()
	db, err := core.OpenDatabase(":memory:", logger)
	require.NoError(t, err)

	h := NewPortalHandler(logger, core.NewRegistry(logger), db)

	rec := httptest.NewRecorder()
	h.HealthCheckHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["database"])

	require.NoError(t, db.Close())
	rec = httptest.NewRecorder()
	h.HealthCheckHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil).WithContext(context.Background()))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFeaturesHandler(t *testing.T) {
	logger := core.NewNopLogger()
	registry := core.NewRegistry(logger)
	require.NoError(t, registry.Register(stubFeature{core.NewBaseFeature("news", "News pipeline", true, logger, nil)}))
	require.NoError(t, registry.Register(stubFeature{core.NewBaseFeature("archive", "Archive", false, logger, nil)}))

	h := NewPortalHandler(logger, registry, nil)
	rec := httptest.NewRecorder()
	h.FeaturesHandler(rec, httptest.NewRequest(http.MethodGet, "/api/features", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Features []core.FeatureStatus `json:"features"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Features, 2)
	assert.Equal(t, "archive", body.Features[0].Name)
	assert.False(t, body.Features[0].Enabled)
	assert.Equal(t, "news", body.Features[1].Name)
}
