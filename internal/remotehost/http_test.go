package remotehost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

func newTestClient(baseURL string) *httpClient {
	return &httpClient{
		baseURL:    trimTrailingSlash(baseURL),
		httpClient: http.DefaultClient,
		logger:     zap.NewNop().Sugar(),
		sem:        semaphore.NewWeighted(hostConnectionCap),
		sleepFunc:  noopSleep,
	}
}

func TestLogin_SetsTokenFromEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)

		var body loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body.Username)

		_ = json.NewEncoder(w).Encode(apiEnvelope{
			Code: 200,
			Data: json.RawMessage(`{"token":"tok-123"}`),
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	tok, err := c.Login(context.Background(), srv.URL, "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok)
}

func TestListDir_ParsesEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/fs/list", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(apiEnvelope{
			Code: 200,
			Data: json.RawMessage(`{
				"content": [
					{"name": "movie.mkv", "size": 1024, "is_dir": false, "sign": "abc", "raw_url": "http://x/movie.mkv"},
					{"name": "Season 1", "size": 0, "is_dir": true}
				],
				"total": 2
			}`),
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.token = staticTokenSource{token: "tok-123"}

	res, err := c.ListDir(context.Background(), "/Movies", 1, 100, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "movie.mkv", res.Entries[0].Name)
	assert.False(t, res.Entries[0].IsDir)
	assert.True(t, res.Entries[1].IsDir)
}

func TestDoRetry_RetriesOn503ThenSucceeds(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		_ = json.NewEncoder(w).Encode(apiEnvelope{Code: 200, Data: json.RawMessage(`{"total":0}`)})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	_, err := c.ListDir(context.Background(), "/", 1, 10, false)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoRetry_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	_, err := c.ListDir(context.Background(), "/", 1, 10, false)
	require.Error(t, err)
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}

func TestTestConnection_UsesListDirAtRoot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(apiEnvelope{Code: 200, Data: json.RawMessage(`{"total":0}`)})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	require.NoError(t, c.TestConnection(context.Background()))
}

func TestSplitRemotePath(t *testing.T) {
	dir, name := splitRemotePath("/Movies/a.mkv")
	assert.Equal(t, "/Movies", dir)
	assert.Equal(t, "a.mkv", name)

	dir, name = splitRemotePath("/a.mkv")
	assert.Equal(t, "/", dir)
	assert.Equal(t, "a.mkv", name)
}

func TestIsVideoAndIsSidecar(t *testing.T) {
	assert.True(t, IsVideo("movie.MKV"))
	assert.False(t, IsVideo("poster.jpg"))
	assert.True(t, IsSidecar("movie.srt"))
	assert.True(t, IsSidecar("poster.jpg"))
	assert.True(t, IsSidecar("movie.nfo"))
	assert.False(t, IsSidecar("movie.mkv"))
}
