package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shutter-control-backend/config"
)

func TestRouter_ServesDashboard(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>shutter</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	router := NewRouter(config.ServerConfig{
		RateLimitPerSec: 100,
		RateLimitBurst:  100,
		CacheTTLSeconds: 60,
		StaticDir:       dir,
	}, NewHandler(nil, nil, nil, nil, nil))

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, "<h1>shutter</h1>", get("/").Body.String())
	assert.Equal(t, "console.log(1)", get("/app.js").Body.String())
	assert.Equal(t, "<h1>shutter</h1>", get("/settings").Body.String())

	missing := get("/api/unknown")
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.JSONEq(t, `{"error":"not found"}`, missing.Body.String())
}
