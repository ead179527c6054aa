package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/estimate-app/backend/internal/config"
	"github.com/estimate-app/backend/internal/handler"
	"github.com/estimate-app/backend/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testSecret = "test-secret-for-routes"

func newTestServer(t *testing.T, authRequired bool) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Server:   config.ServerConfig{FrontendURL: "http://localhost:3000", ShareRateLimitPerMinute: 100},
		Database: config.DatabaseConfig{Driver: config.StoreMemory},
		Auth:     config.AuthConfig{Required: authRequired, JWTSecret: testSecret},
	}
	st, err := openStore(context.Background(), cfg.Database)
	require.NoError(t, err)
	t.Cleanup(st.close)

	limiter := handler.NewRateLimiter(cfg.Server.ShareRateLimitPerMinute)
	t.Cleanup(limiter.Stop)
	return routes(st, cfg, authMiddleware(cfg.Auth), limiter)
}

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), rec.Body.String())
	return out
}

func TestRoutes_EstimateLifecycle(t *testing.T) {
	h := newTestServer(t, false)

	rec := do(t, h, http.MethodPost, "/api/estimates", `{
		"title": "MV制作",
		"revision_limit": 2,
		"extra_revision_rate": 5000,
		"line_items": [
			{"name": "撮影", "hours": "4", "hourly_rate": 1000},
			{"name": "編集", "hours": 2, "hourly_rate": 2000}
		]
	}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.EqualValues(t, 8000, created["total"])
	id := created["id"].(string)
	token := created["share_token"].(string)

	for i := 0; i < 2; i++ {
		rec = do(t, h, http.MethodPost, "/api/estimates/"+id+"/revisions", `{"memo":"修正"}`, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodPost, "/api/estimates/"+id+"/revisions", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/estimates/"+id+"/line-items", `{"line_items":[{"name":"企画","hours":"1.5","hourly_rate":3000}]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 4500, decode(t, rec)["total"])

	rec = do(t, h, http.MethodGet, "/api/share/"+token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode(t, rec)
	assert.EqualValues(t, 4500, view["total"])
	assert.EqualValues(t, 0, view["revisions_remaining"])
	assert.Equal(t, true, view["limit_reached"])
	assert.NotContains(t, view, "user_id")
	assert.NotContains(t, view, "share_token")
	assert.NotContains(t, view, "id")

	rec = do(t, h, http.MethodGet, "/api/me/estimates", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["estimates"], 1)
}

func TestRoutes_ShareUnknownToken(t *testing.T) {
	h := newTestServer(t, false)
	rec := do(t, h, http.MethodGet, "/api/share/not-a-token", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRoutes_TemplateDraftToEstimate(t *testing.T) {
	h := newTestServer(t, false)

	rec := do(t, h, http.MethodPost, "/api/me/templates", `{"name":"CM 15秒","default_hourly_rate":3000,"default_revision_limit":2,"default_extra_revision_rate":5000}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tplID := decode(t, rec)["id"].(string)

	rec = do(t, h, http.MethodGet, "/api/templates/user/"+tplID+"/draft", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	draft := decode(t, rec)
	assert.Len(t, draft["line_items"], 5)
	assert.EqualValues(t, 21, draft["estimated_duration_days"])

	rec = do(t, h, http.MethodGet, "/api/templates", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)
	assert.Len(t, list["system"], 3)
	assert.Len(t, list["user"], 1)

	rec = do(t, h, http.MethodGet, "/api/templates/shared/"+tplID+"/draft", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_AuthRequired(t *testing.T) {
	h := newTestServer(t, true)

	rec := do(t, h, http.MethodGet, "/api/me/estimates", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := auth.IssueAccessToken(testSecret, "11111111-1111-4111-8111-111111111111", time.Minute)
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/api/me/estimates", "", http.Header{"Authorization": {"Bearer " + tok}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
