package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/version-radar/internal/radar"
	"github.com/JakeFAU/version-radar/internal/storage/memory"
)

var seededAt = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func seededStore(t *testing.T, name, version string) *memory.Store {
	t.Helper()
	store := memory.New()
	sess, err := store.Session(context.Background())
	require.NoError(t, err)
	_, err = sess.Upsert(context.Background(), name, version, seededAt)
	require.NoError(t, err)
	require.NoError(t, sess.Close(context.Background()))
	return store
}

func serve(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Welcome(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(memory.New(), "App", nil, nil), http.MethodGet, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Welcome to Version Radar 📡", rec.Body.String())
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
}

func TestServer_CurrentVersion_ReturnsRecord(t *testing.T) {
	t.Parallel()

	srv := NewServer(seededStore(t, "App", "13.17.0"), "App", nil, nil)
	rec := serve(t, srv, http.MethodGet, "/current-version")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Data radar.VersionRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "App", body.Data.SoftwareName)
	require.Equal(t, "13.17.0", body.Data.Version)
	require.True(t, seededAt.Equal(body.Data.UpdatedAt))
	require.Contains(t, rec.Body.String(), `"softwareName":"App"`)
}

func TestServer_CurrentVersion_OnlyWatchedSoftware(t *testing.T) {
	t.Parallel()

	srv := NewServer(seededStore(t, "Other", "1.0"), "App", nil, nil)
	rec := serve(t, srv, http.MethodGet, "/current-version")

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"message":"Version information not found."}`, rec.Body.String())
}

func TestServer_CurrentVersion_StoreFailure(t *testing.T) {
	t.Parallel()

	srv := NewServer(failingStore{err: errors.New("connection refused")}, "App", nil, nil)
	rec := serve(t, srv, http.MethodGet, "/current-version")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body.Message, "connection refused")
}

func TestServer_CurrentVersion_GetFailure(t *testing.T) {
	t.Parallel()

	srv := NewServer(failingStore{getErr: errors.New("cursor closed")}, "App", nil, nil)
	rec := serve(t, srv, http.MethodGet, "/current-version")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body.Message, "cursor closed")
}

func TestServer_HealthzAndMetrics(t *testing.T) {
	t.Parallel()

	srv := NewServer(memory.New(), "App", nil, nil)

	rec := serve(t, srv, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(t, srv, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_CheckDisabledWithoutChecker(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(memory.New(), "App", nil, nil), http.MethodPost, "/check")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CheckRunsCycle(t *testing.T) {
	t.Parallel()

	checker := &stubChecker{result: radar.Result{RunID: "run-1", State: radar.StateDone, Version: "2.10", Changed: true}}
	rec := serve(t, NewServer(memory.New(), "App", checker, nil), http.MethodPost, "/check")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, checker.calls)
	var got radar.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "run-1", got.RunID)
	require.Equal(t, radar.StateDone, got.State)
	require.True(t, got.Changed)
}

func TestServer_CheckReportsFailure(t *testing.T) {
	t.Parallel()

	checker := &stubChecker{result: radar.Result{State: radar.StateFailed, FailedAt: radar.StateFetching, Error: "fetch failed"}}
	rec := serve(t, NewServer(memory.New(), "App", checker, nil), http.MethodPost, "/check")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "fetch failed")
}

func TestServer_RequestIDMiddleware(t *testing.T) {
	t.Parallel()

	srv := NewServer(memory.New(), "App", nil, nil)

	rec := serve(t, srv, http.MethodGet, "/healthz")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, "caller-supplied", rec.Header().Get("X-Request-ID"))
}

func TestServer_LoggingMiddleware(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	srv := NewServer(memory.New(), "App", nil, zap.New(core))
	serve(t, srv, http.MethodGet, "/current-version")

	entries := logs.FilterMessage("request completed").AllUntimed()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "/current-version", fields["path"])
	require.EqualValues(t, http.StatusNotFound, fields["status"])
	require.NotEmpty(t, fields["request_id"])
}

func TestServer_RecoverMiddleware(t *testing.T) {
	t.Parallel()

	srv := NewServer(memory.New(), "App", nil, nil)
	handler := srv.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"message":"Error fetching version information."}`, rec.Body.String())
}

type stubChecker struct {
	result radar.Result
	calls  int
}

func (s *stubChecker) RunScrapeCycle(context.Context) radar.Result {
	s.calls++
	return s.result
}

type failingStore struct {
	err    error
	getErr error
}

func (f failingStore) Session(context.Context) (radar.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return failingSession(f), nil
}

func (failingStore) Close(context.Context) error { return nil }

type failingSession struct {
	err    error
	getErr error
}

func (f failingSession) Get(context.Context, string) (radar.VersionRecord, error) {
	return radar.VersionRecord{}, f.getErr
}

func (failingSession) Upsert(context.Context, string, string, time.Time) (radar.VersionRecord, error) {
	return radar.VersionRecord{}, errors.New("read only")
}

func (failingSession) Close(context.Context) error { return nil }
