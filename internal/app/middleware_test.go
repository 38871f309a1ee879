package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storecraft/backoffice/internal/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSessionManager(t *testing.T) (*shared.SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewSessionManager(client, "bo_session", "secret", time.Hour, false), mr
}

func TestSessionMiddlewareCommitsBeforeHeaders(t *testing.T) {
	sm, mr := newSessionManager(t)
	var sessionID string
	h := SessionMiddleware(sm, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		sess.SignIn(shared.Identity{UID: "u1"}, "biz-1")
		sessionID = sess.ID
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, mr.Exists("session:"+sessionID))
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, sessionID, rec.Result().Cookies()[0].Value)
}

func TestSessionMiddlewareCommitsSilentHandlers(t *testing.T) {
	sm, mr := newSessionManager(t)
	var sessionID string
	h := SessionMiddleware(sm, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		sess.Set("k", "v")
		sessionID = sess.ID
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, mr.Exists("session:"+sessionID))
}

func TestCSRFMiddleware(t *testing.T) {
	sm, _ := newSessionManager(t)
	csrf := shared.NewCSRFManager("csrf-secret")
	var token string
	h := SessionMiddleware(sm, discardLogger())(CSRFMiddleware(csrf, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			var err error
			token, err = csrf.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
			require.NoError(t, err)
		}
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/csrf", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	post := func(header string) int {
		req := httptest.NewRequest(http.MethodPost, "/thing", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		if header != "" {
			req.Header.Set(shared.CSRFHeader, header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusForbidden, post(""))
	assert.Equal(t, http.StatusForbidden, post("forged"))
	assert.Equal(t, http.StatusNoContent, post(token))
}

func TestAccessMiddlewarePassesAnonymousRequests(t *testing.T) {
	sm, _ := newSessionManager(t)
	called := false
	h := SessionMiddleware(sm, discardLogger())(AccessMiddleware(nil, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name   string
		checks map[string]HealthChecker
		status int
		body   healthResponse
	}{
		{name: "no checks", checks: nil, status: http.StatusOK, body: healthResponse{Status: "ok"}},
		{
			name:   "all up",
			checks: map[string]HealthChecker{"postgres": ok, "redis": ok},
			status: http.StatusOK,
			body:   healthResponse{Status: "ok", Checks: map[string]string{"postgres": "ok", "redis": "ok"}},
		},
		{
			name:   "redis down",
			checks: map[string]HealthChecker{"postgres": ok, "redis": down},
			status: http.StatusServiceUnavailable,
			body:   healthResponse{Status: "degraded", Checks: map[string]string{"postgres": "ok", "redis": "down"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			healthHandler(tt.checks, discardLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.status, rec.Code)
			var got healthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.body, got)
		})
	}
}

func TestDashboardHandlerFallsBackToIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>shell</html>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o600))
	h := dashboardHandler(dir)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/orders", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shell")
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console.log")
}

func TestDashboardHandlerStub(t *testing.T) {
	rec := httptest.NewRecorder()
	dashboardHandler("").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"shell":"dashboard","path":"/dashboard"}`, rec.Body.String())
}
