// Package storage handles database connections, schema migrations, and query history using SQLite.
package storage

import (
	"database/sql"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/mcpanel/assets"
	"github.com/woozymasta/mcpanel/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(db, assets.Migrations()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// EndpointKey returns the stable key of a resolved endpoint used to group history rows.
func EndpointKey(ep models.Endpoint) uint64 {
	return xxhash.Sum64String(ep.String())
}

// RecordQuery inserts one finished query. The endpoint key is derived from the resolved endpoint.
func (r *Repository) RecordQuery(e models.HistoryEntry) error {
	e.EndpointKey = EndpointKey(models.Endpoint{Host: e.RealHost, Port: e.RealPort})

	query := `
	INSERT INTO queries (
		id, endpoint_key, host, port, real_host, real_port, mode, online,
		players_online, players_max, motd, version, plugins, latency_ms, error, queried_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	// SQLite integers are signed; the key keeps its bits through the conversion.
	_, err := r.db.Exec(query,
		e.ID, int64(e.EndpointKey), e.Host, e.Port, e.RealHost, e.RealPort, string(e.Mode), e.Online,
		e.PlayersOnline, e.PlayersMax, e.Motd, e.Version, e.Plugins, e.LatencyMS, e.Error, e.QueriedAt.UTC(),
	)

	return err
}

// RecentQueries returns the latest queries, newest first. A non-empty host restricts
// the result to queries typed with that host.
func (r *Repository) RecentQueries(host string, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, endpoint_key, host, port, real_host, real_port, mode, online,
		       players_online, players_max, motd, version, plugins, latency_ms, error, queried_at
		FROM queries
		WHERE 1=1
	`
	var args []interface{}

	if host != "" {
		query += " AND host = ?"
		args = append(args, host)
	}

	query += " ORDER BY queried_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []models.HistoryEntry
	for rows.Next() {
		var (
			e    models.HistoryEntry
			key  int64
			mode string
		)
		if err := rows.Scan(
			&e.ID, &key, &e.Host, &e.Port, &e.RealHost, &e.RealPort, &mode, &e.Online,
			&e.PlayersOnline, &e.PlayersMax, &e.Motd, &e.Version, &e.Plugins, &e.LatencyMS, &e.Error, &e.QueriedAt,
		); err != nil {
			return nil, err
		}
		e.EndpointKey = uint64(key)
		e.Mode = models.Mode(mode)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Targets returns every distinct host/port pair the operator has queried.
// Port 0 means the target was resolved through SRV discovery.
func (r *Repository) Targets() ([]models.Target, error) {
	rows, err := r.db.Query(`
		SELECT host, port
		FROM queries
		GROUP BY host, port
		ORDER BY MAX(queried_at) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var targets []models.Target
	for rows.Next() {
		var t models.Target
		if err := rows.Scan(&t.Host, &t.Port); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return targets, nil
}

// DeleteBefore removes queries recorded before t and returns how many were deleted.
func (r *Repository) DeleteBefore(t time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM queries WHERE queried_at < ?`, t.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
