package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/couchcryptid/temp-anomaly-service/internal/adapter/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReadiness struct {
	err error
}

func (f *fakeReadiness) CheckReadiness(_ context.Context) error {
	return f.err
}

func newTestServer(ready *fakeReadiness) *httpadapter.Server {
	status := func() any {
		return map[string]any{"phase": "weekly", "observations": 42}
	}
	return httpadapter.NewServer(":0", ready, status, slog.Default())
}

func TestServer_Healthz(t *testing.T) {
	srv := newTestServer(&fakeReadiness{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestServer_ReadyzNotReady(t *testing.T) {
	srv := newTestServer(&fakeReadiness{err: errors.New("no observations yet")})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no observations yet")
}

func TestServer_ReadyzReady(t *testing.T) {
	srv := newTestServer(&fakeReadiness{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestServer_Status(t *testing.T) {
	srv := newTestServer(&fakeReadiness{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "weekly", got["phase"])
	assert.Equal(t, float64(42), got["observations"])
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(&fakeReadiness{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
