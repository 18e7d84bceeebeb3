package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genienews/internal/core"
)

type echoFeature struct {
	*core.BaseFeature
}

func (f echoFeature) Routes() []core.Route {
	return []core.Route{
		{Method: "GET", Path: "/api/echo/{word}", Handler: func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(chi.URLParam(r, "word")))
		}},
	}
}

func TestRoutesMountFeatures(t *testing.T) {
	logger := core.NewNopLogger()
	db, err := core.OpenDatabase(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	registry := core.NewRegistry(logger)
	require.NoError(t, registry.Register(echoFeature{core.NewBaseFeature("echo", "Echo", true, logger, db)}))
	require.NoError(t, registry.InitAll(context.Background()))

	cfg := &core.Config{Server: core.ServerConfig{Host: "127.0.0.1", Port: 4000}}
	srv := httptest.NewServer(New(cfg, logger, db, registry).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/echo/hello")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
