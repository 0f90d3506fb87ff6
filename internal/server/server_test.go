package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/mcpanel/internal/config"
	"github.com/woozymasta/mcpanel/internal/models"
	"github.com/woozymasta/mcpanel/internal/status"
)

type stubQuerier struct {
	err  error
	last status.Request
}

func (q *stubQuerier) Query(_ context.Context, req status.Request) (*models.ServerStatus, error) {
	q.last = req
	if q.err != nil {
		return nil, q.err
	}
	return &models.ServerStatus{RealHost: req.Host, Port: 25565, Online: true, PluginNames: []string{}}, nil
}

type stubHistory struct {
	entries []models.HistoryEntry
	limit   int
}

func (h *stubHistory) RecentQueries(_ string, limit int) ([]models.HistoryEntry, error) {
	h.limit = limit
	return h.entries, nil
}

func newTestServer(t *testing.T, q Querier, h HistoryReader, mutate func(*config.Server)) http.Handler {
	t.Helper()
	cfg := config.Server{AuthToken: "secret", HardLimitCount: 100, HardLimitWin: time.Minute}
	if mutate != nil {
		mutate(&cfg)
	}
	s := New(q, h, cfg)
	t.Cleanup(s.Close)
	return s.Run()
}

func do(h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleStatus(t *testing.T) {
	q := &stubQuerier{}
	h := newTestServer(t, q, nil, nil)

	rec := do(h, http.MethodGet, "/api/status?host=play.example.test&port=25570&mode=query", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var st models.ServerStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Online)
	assert.Equal(t, status.Request{Host: "play.example.test", Port: 25570, Mode: models.ModeQuery}, q.last)
}

func TestHandleStatusValidation(t *testing.T) {
	h := newTestServer(t, &stubQuerier{}, nil, nil)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/status", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/status?host=a&port=x", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/status?host=a&mode=ping", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodPost, "/api/status?host=a", nil).Code)
}

func TestHandleStatusQueryFailure(t *testing.T) {
	q := &stubQuerier{err: &status.QueryError{
		Endpoint: models.Endpoint{Host: "down.test", Port: 25565},
		Err:      errors.New("connection refused"),
	}}
	h := newTestServer(t, q, nil, nil)

	rec := do(h, http.MethodGet, "/api/status?host=down.test", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "connection refused")
}

func TestHandleStatusAllowedHosts(t *testing.T) {
	h := newTestServer(t, &stubQuerier{}, nil, func(c *config.Server) {
		c.AllowedHosts = []string{"Play.Example.Test"}
	})

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/status?host=play.example.test", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/api/status?host=other.test", nil).Code)
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, &stubQuerier{}, nil, func(c *config.Server) {
		c.HardLimitCount = 2
		c.HardLimitWin = time.Hour
	})

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/status?host=a", nil).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/status?host=a", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodGet, "/api/status?host=a", nil).Code)
}

func TestHandleHistory(t *testing.T) {
	hist := &stubHistory{entries: []models.HistoryEntry{{ID: "a", Host: "h"}}}
	h := newTestServer(t, &stubQuerier{}, hist, nil)

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/history", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		do(h, http.MethodGet, "/api/history", map[string]string{"Authorization": "Bearer wrong"}).Code)

	auth := map[string]string{"Authorization": "Bearer secret"}
	rec := do(h, http.MethodGet, "/api/history?limit=10000", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxHistoryLimit, hist.limit)

	var entries []models.HistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ID)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/history?limit=0", auth).Code)
}

func TestHandleHistoryDisabled(t *testing.T) {
	h := newTestServer(t, &stubQuerier{}, nil, nil)
	rec := do(h, http.MethodGet, "/api/history", map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleVersion(t *testing.T) {
	h := newTestServer(t, &stubQuerier{}, nil, nil)
	rec := do(h, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"MCPanel"`)
}

func TestGetRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	assert.Equal(t, "192.0.2.1", GetRealIP(req, false))
	assert.Equal(t, "203.0.113.5", GetRealIP(req, true))

	req.Header.Set("CF-Connecting-IP", "198.51.100.9")
	assert.Equal(t, "198.51.100.9", GetRealIP(req, true))
}
