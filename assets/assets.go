// Package assets embeds the SQL migrations of the history database.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var embedFS embed.FS

// Migrations returns the migration files rooted at the migrations directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedFS, "migrations")
	if err != nil {
		// The directory is embedded at build time
		panic(err)
	}
	return sub
}
