package server

import (
	"context"
	"time"

	"github.com/woozymasta/mcpanel/internal/models"
	"github.com/woozymasta/mcpanel/internal/status"
)

// Querier runs one server query; status.Client satisfies it.
type Querier interface {
	Query(ctx context.Context, req status.Request) (*models.ServerStatus, error)
}

// HistoryReader lists recorded queries; storage.Repository satisfies it.
type HistoryReader interface {
	RecentQueries(host string, limit int) ([]models.HistoryEntry, error)
}

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests.
type Server struct {
	// client runs live queries for /api/status.
	client Querier

	// history provides recorded queries for /api/history.
	// It can be nil if history recording is disabled.
	history HistoryReader

	// allowedHosts is a set of hashed host names (using xxhash) the API may query.
	// An empty set allows any host.
	allowedHosts map[uint64]struct{}

	// shutdown is a signal channel used to stop background cleanup routines.
	shutdown chan struct{}

	// authToken is the secret token required to access /api/history.
	authToken string

	// hardLimitCount is the maximum number of requests allowed per IP address
	// within the hardLimitWin duration.
	hardLimitCount int

	// hardLimitWin is the time window duration for the hard rate limiter.
	hardLimitWin time.Duration

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool
}
