package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
)

// migration is one embedded SQL file.
type migration struct {
	version  string
	body     string
	checksum int64
}

// loadMigrations reads every .sql file at the root of fsys, ordered by name.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var out []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		body, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		out = append(out, migration{
			version:  entry.Name(),
			body:     string(body),
			checksum: int64(xxhash.Sum64(body)),
		})
	}

	slices.SortFunc(out, func(a, b migration) int { return strings.Compare(a.version, b.version) })
	return out, nil
}

// runMigrations applies pending migrations from fsys, each in its own transaction.
// An applied migration whose content changed since is an error.
func runMigrations(db *sql.DB, fsys fs.FS) error {
	const migrationTableSchema = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		checksum   INTEGER NOT NULL,
		applied_at DATETIME NOT NULL
	);`

	if _, err := db.Exec(migrationTableSchema); err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	migrations, err := loadMigrations(fsys)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var applied int64
		err := db.QueryRow("SELECT checksum FROM schema_migrations WHERE version = ?", m.version).Scan(&applied)
		switch {
		case err == nil:
			if applied != m.checksum {
				return fmt.Errorf("migration %s was modified after it was applied", m.version)
			}
			continue
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check migration %s: %w", m.version, err)
		}

		log.Info().Str("version", m.version).Msg("Applying database migration...")

		if err := applyMigration(db, m); err != nil {
			return err
		}
	}

	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(m.body); err != nil {
		return fmt.Errorf("exec migration %s: %w", m.version, err)
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, checksum, applied_at) VALUES (?, ?, ?)",
		m.version, m.checksum, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("record migration %s: %w", m.version, err)
	}

	return tx.Commit()
}
