// Package server implements the HTTP API, middleware, and request handlers that expose
// server queries and query history.
package server

import (
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/mcpanel/internal/config"
)

// New creates a new Server instance with the provided query client, history reader, and configuration.
func New(client Querier, history HistoryReader, cfg config.Server) *Server {
	hostMap := make(map[uint64]struct{})
	for _, host := range cfg.AllowedHosts {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		hostMap[hostKey(host)] = struct{}{}
	}

	return &Server{
		client:         client,
		history:        history,
		authToken:      cfg.AuthToken,
		allowedHosts:   hostMap,
		trustProxy:     cfg.TrustProxy,
		hardLimitCount: cfg.HardLimitCount,
		hardLimitWin:   cfg.HardLimitWin,
		shutdown:       make(chan struct{}),
	}
}

// Close stops background routines started by the middleware.
func (s *Server) Close() {
	close(s.shutdown)
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/status", s.RateLimitMiddleware(http.HandlerFunc(s.handleStatus)))
	mux.Handle("GET /api/history", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleHistory)))
	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))

	return s.LoggingMiddleware(mux)
}

// hostAllowed reports whether host may be queried through the API.
func (s *Server) hostAllowed(host string) bool {
	if len(s.allowedHosts) == 0 {
		return true
	}
	_, ok := s.allowedHosts[hostKey(host)]
	return ok
}

func hostKey(host string) uint64 {
	return xxhash.Sum64String(strings.ToLower(strings.TrimSuffix(host, ".")))
}
