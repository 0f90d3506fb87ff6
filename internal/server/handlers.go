package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcpanel/internal/models"
	"github.com/woozymasta/mcpanel/internal/resolver"
	"github.com/woozymasta/mcpanel/internal/status"
	"github.com/woozymasta/mcpanel/internal/vars"
)

// maxHistoryLimit caps the rows returned by /api/history.
const maxHistoryLimit = 500

// handleStatus performs a live query to a server and returns its status.
// Query params: ?host=play.example.test&port=25565&mode=query
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	host := strings.TrimSpace(q.Get("host"))
	if host == "" {
		writeError(w, http.StatusBadRequest, "Missing host")
		return
	}

	port, err := resolver.ParsePort(q.Get("port"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid port")
		return
	}

	mode := models.ModeStatus
	if m := q.Get("mode"); m != "" {
		mode = models.Mode(m)
		if !mode.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid mode")
			return
		}
	}

	if !s.hostAllowed(host) {
		log.Debug().Str("host", host).Str("ip", GetRealIP(r, s.trustProxy)).Msg("Host not allowed")
		writeError(w, http.StatusForbidden, "Host not allowed")
		return
	}

	st, err := s.client.Query(r.Context(), status.Request{Host: host, Port: port, Mode: mode})
	if err != nil {
		var qerr *status.QueryError
		if errors.As(err, &qerr) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, st)
}

// handleHistory returns recorded queries, newest first.
// This endpoint is protected by AdminAuthMiddleware.
// Query params: ?host=play.example.test&limit=50
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "History disabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.history.RecentQueries(r.URL.Query().Get("host"), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch history")
		writeError(w, http.StatusInternalServerError, "Database Error")
		return
	}

	if entries == nil {
		entries = []models.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

// handleVersion returns build information.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Ver())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
