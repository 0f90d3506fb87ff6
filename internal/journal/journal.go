// Package journal keeps the append-only request log: one JSON line per query,
// written with a dedicated zerolog logger and read back by the console log viewer.
package journal

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/woozymasta/mcpanel/internal/models"
)

// ErrNoLogs is returned by Dump when the journal file does not exist yet.
var ErrNoLogs = errors.New("no logs found")

// Entry describes one finished query.
type Entry struct {
	Err        error
	QueryID    string
	Host       string
	Mode       models.Mode
	Resolved   models.Endpoint
	Port       int
	Duration   time.Duration
	Online     bool
	Degraded   bool
	Plugins    int
	Players    int
	MaxPlayers int
}

// Journal appends entries to a file. A nil *Journal or one with no path discards entries.
type Journal struct {
	file *os.File
	path string
	log  zerolog.Logger
	mu   sync.Mutex
}

// Open opens (or creates) the journal file at path in append mode.
// An empty path returns a disabled journal.
func Open(path string) (*Journal, error) {
	if path == "" {
		return &Journal{log: zerolog.Nop()}, nil
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &Journal{
		file: file,
		path: path,
		log:  zerolog.New(file).With().Timestamp().Logger(),
	}, nil
}

// Path returns the journal file path, empty when disabled.
func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// Record appends one entry.
func (j *Journal) Record(e Entry) {
	if j == nil || j.file == nil {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	// Log() bypasses the global level so --log-level never silences the journal
	level := zerolog.InfoLevel
	if e.Err != nil {
		level = zerolog.ErrorLevel
	} else if e.Degraded {
		level = zerolog.WarnLevel
	}

	j.log.Log().
		Str(zerolog.LevelFieldName, level.String()).
		AnErr("error", e.Err).
		Str("query_id", e.QueryID).
		Str("host", e.Host).
		Int("port", e.Port).
		Str("resolved", e.Resolved.String()).
		Str("mode", string(e.Mode)).
		Bool("online", e.Online).
		Bool("degraded", e.Degraded).
		Int("players", e.Players).
		Int("max_players", e.MaxPlayers).
		Int("plugins", e.Plugins).
		Dur("duration", e.Duration).
		Msg("query")
}

// Close closes the journal file.
func (j *Journal) Close() error {
	if j == nil || j.file == nil {
		return nil
	}
	return j.file.Close()
}

// Dump copies the journal file at path to w.
// It returns ErrNoLogs when the file is missing or the path is empty.
func Dump(path string, w io.Writer) error {
	if path == "" {
		return ErrNoLogs
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNoLogs
	}
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = io.Copy(w, f)
	return err
}
