// Package status runs one server query end to end: resolve the endpoint, perform the
// status handshake, optionally the extended query, and journal the outcome.
package status

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcpanel/internal/config"
	"github.com/woozymasta/mcpanel/internal/game"
	"github.com/woozymasta/mcpanel/internal/journal"
	"github.com/woozymasta/mcpanel/internal/models"
	"github.com/woozymasta/mcpanel/internal/resolver"
	"golang.org/x/time/rate"
)

// ErrEmptyHost is returned when a request carries no host.
var ErrEmptyHost = errors.New("server address cannot be empty")

// QueryError reports a failed status handshake: connection refused, timeout or an
// unparsable response. The request is aborted; the caller shows the message.
type QueryError struct {
	Err      error
	Endpoint models.Endpoint
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s failed: %v", e.Endpoint, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Request selects the server and the query mode.
type Request struct {
	Host string
	Mode models.Mode
	Port int
}

// Resolver turns a host and optional port into an endpoint. It never fails.
type Resolver interface {
	Resolve(ctx context.Context, host string, port int) models.Endpoint
}

// Prober speaks the wire protocol.
type Prober interface {
	Status(ctx context.Context, ep models.Endpoint) (*game.StatusResponse, error)
	FullQuery(ctx context.Context, ep models.Endpoint) (*game.QueryResponse, error)
}

// CountryLookup maps an IP address to an ISO country code.
type CountryLookup interface {
	GetCountryCode(ip string) string
}

// Recorder stores finished queries.
type Recorder interface {
	RecordQuery(entry models.HistoryEntry) error
}

// Option customizes a Client.
type Option func(*Client)

// WithResolver replaces the SRV resolver.
func WithResolver(r Resolver) Option {
	return func(c *Client) { c.resolver = r }
}

// WithProber replaces the wire protocol implementation.
func WithProber(p Prober) Option {
	return func(c *Client) { c.prober = p }
}

// WithCountryLookup enables country detection of the resolved address.
func WithCountryLookup(g CountryLookup) Option {
	return func(c *Client) { c.geo = g }
}

// WithRecorder enables query history.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.history = r }
}

// WithJournal enables the request journal.
func WithJournal(j *journal.Journal) Option {
	return func(c *Client) { c.journal = j }
}

// Client executes queries. It holds no per-query state and is safe for concurrent use.
type Client struct {
	resolver Resolver
	prober   Prober
	geo      CountryLookup
	history  Recorder
	journal  *journal.Journal
	limiter  *rate.Limiter
	now      func() time.Time
}

// New creates a Client from the query configuration.
func New(cfg config.Query, opts ...Option) *Client {
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		resolver: resolver.New(cfg.DNSTimeout),
		prober:   wireProber{options: cfg},
		limiter:  rate.NewLimiter(limit, burst),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Query runs one request.
//
// A failed status handshake returns *QueryError and no status. In query mode a failed
// extended query is absorbed: the status-only result comes back with an empty plugin
// list, Degraded set and the reason in Warning. Every returned status has Online set;
// it is a post-condition of a successful handshake, not a value read from the server.
func (c *Client) Query(ctx context.Context, req Request) (*models.ServerStatus, error) {
	req.Host = strings.TrimSpace(req.Host)
	if req.Host == "" {
		return nil, ErrEmptyHost
	}
	if !req.Mode.Valid() {
		req.Mode = models.ModeStatus
	}

	id := uuid.NewString()
	start := c.now()

	ep := c.resolver.Resolve(ctx, req.Host, req.Port)
	logCtx := log.With().
		Str("query_id", id).
		Str("host", req.Host).
		Str("endpoint", ep.String()).
		Str("mode", string(req.Mode)).
		Logger()

	if err := c.limiter.Wait(ctx); err != nil {
		qerr := &QueryError{Endpoint: ep, Err: err}
		c.finish(logCtx, id, req, ep, nil, qerr, start)
		return nil, qerr
	}

	st, err := c.prober.Status(ctx, ep)
	if err != nil {
		qerr := &QueryError{Endpoint: ep, Err: err}
		c.finish(logCtx, id, req, ep, nil, qerr, start)
		return nil, qerr
	}

	result := &models.ServerStatus{
		QueryID:       id,
		QueriedAt:     start,
		Mode:          req.Mode,
		RealHost:      ep.Host,
		Port:          ep.Port,
		PlayersOnline: st.PlayersOnline,
		PlayersMax:    st.PlayersMax,
		PlayerSample:  st.PlayerSample,
		Motd:          st.Motd,
		Version:       st.Version,
		Latency:       st.Latency,
		HasFavicon:    st.Favicon != "",
		PluginNames:   []string{},
		Online:        true,
	}

	if req.Mode == models.ModeQuery {
		q, err := c.prober.FullQuery(ctx, ep)
		if err != nil {
			result.Degraded = true
			result.Warning = fmt.Sprintf("extended query failed, continuing with status: %v", err)
			logCtx.Warn().Err(err).Msg("Extended query failed, using status only")
		} else {
			if len(q.Plugins) > 0 {
				result.PluginNames = q.Plugins
			}
			result.Software = q.Software
			result.Map = q.Map
		}
	}

	if c.geo != nil && st.RemoteIP != "" {
		result.Country = c.geo.GetCountryCode(st.RemoteIP)
	}

	c.finish(logCtx, id, req, ep, result, nil, start)
	return result, nil
}

// finish journals, records and logs the outcome of a query.
func (c *Client) finish(
	logCtx zerolog.Logger,
	id string,
	req Request,
	ep models.Endpoint,
	st *models.ServerStatus,
	qerr error,
	start time.Time,
) {
	elapsed := c.now().Sub(start)

	entry := journal.Entry{
		QueryID:  id,
		Host:     req.Host,
		Port:     req.Port,
		Resolved: ep,
		Mode:     req.Mode,
		Duration: elapsed,
		Err:      qerr,
	}
	if st != nil {
		entry.Online = st.Online
		entry.Degraded = st.Degraded
		entry.Players = st.PlayersOnline
		entry.MaxPlayers = st.PlayersMax
		entry.Plugins = len(st.PluginNames)
	}
	c.journal.Record(entry)

	if c.history != nil {
		if err := c.history.RecordQuery(historyEntry(id, req, ep, st, qerr, start)); err != nil {
			logCtx.Error().Err(err).Msg("Failed to record query history")
		}
	}

	if qerr != nil {
		logCtx.Debug().Err(qerr).Dur("duration", elapsed).Msg("Query failed")
		return
	}

	logCtx.Debug().
		Int("players", st.PlayersOnline).
		Int("plugins", len(st.PluginNames)).
		Bool("degraded", st.Degraded).
		Dur("duration", elapsed).
		Msg("Query finished")
}

func historyEntry(
	id string,
	req Request,
	ep models.Endpoint,
	st *models.ServerStatus,
	qerr error,
	at time.Time,
) models.HistoryEntry {
	entry := models.HistoryEntry{
		ID:        id,
		QueriedAt: at,
		Host:      req.Host,
		Port:      req.Port,
		RealHost:  ep.Host,
		RealPort:  ep.Port,
		Mode:      req.Mode,
	}

	if qerr != nil {
		entry.Error = qerr.Error()
		return entry
	}

	entry.Online = st.Online
	entry.PlayersOnline = st.PlayersOnline
	entry.PlayersMax = st.PlayersMax
	entry.Motd = st.Motd.Display()
	entry.Version = st.Version.Display()
	entry.Plugins = strings.Join(st.PluginNames, ", ")
	entry.LatencyMS = st.Latency.Milliseconds()
	if st.Degraded {
		entry.Error = st.Warning
	}

	return entry
}

// wireProber adapts the game package to Prober.
type wireProber struct {
	options config.Query
}

func (p wireProber) Status(ctx context.Context, ep models.Endpoint) (*game.StatusResponse, error) {
	return game.StatusPing(ctx, ep, p.options)
}

func (p wireProber) FullQuery(ctx context.Context, ep models.Endpoint) (*game.QueryResponse, error) {
	return game.FullQuery(ctx, ep, p.options)
}
