// Package console implements the interactive operator menu: query a server, view the
// request journal, view recorded history, exit.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcpanel/internal/journal"
	"github.com/woozymasta/mcpanel/internal/models"
	"github.com/woozymasta/mcpanel/internal/report"
	"github.com/woozymasta/mcpanel/internal/resolver"
	"github.com/woozymasta/mcpanel/internal/status"
	"github.com/woozymasta/mcpanel/internal/vars"
)

// historyLimit is the number of rows shown by the history view.
const historyLimit = 20

// Querier runs one server query; status.Client satisfies it.
type Querier interface {
	Query(ctx context.Context, req status.Request) (*models.ServerStatus, error)
}

// HistoryReader lists recorded queries; storage.Repository satisfies it.
type HistoryReader interface {
	RecentQueries(host string, limit int) ([]models.HistoryEntry, error)
}

// Option customizes a Console.
type Option func(*Console)

// WithHistory enables the history view.
func WithHistory(h HistoryReader) Option {
	return func(c *Console) { c.history = h }
}

// WithJournalPath sets the request journal shown by the log view.
func WithJournalPath(path string) Option {
	return func(c *Console) { c.journalPath = path }
}

// WithPalette sets the output colours.
func WithPalette(p report.Palette) Option {
	return func(c *Console) { c.palette = p }
}

// Console is the interactive menu loop. It runs one query at a time.
type Console struct {
	client      Querier
	history     HistoryReader
	in          *bufio.Reader
	out         io.Writer
	interrupt   func(context.Context) (context.Context, context.CancelFunc)
	journalPath string
	palette     report.Palette
}

// New creates a Console reading answers from in and writing to out.
func New(in io.Reader, out io.Writer, client Querier, opts ...Option) *Console {
	c := &Console{
		client: client,
		in:     bufio.NewReader(in),
		out:    out,
		interrupt: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run shows the main menu until the operator exits or the input ends.
// It returns nil on a normal exit; errors writing to out are returned as is.
func (c *Console) Run(ctx context.Context) error {
	c.header()

	for {
		if ctx.Err() != nil {
			return nil
		}

		c.println("")
		c.println(c.palette.Bold("What would you like to do?"))
		c.println("  1) Query a Minecraft server")
		c.println("  2) View logs (if available)")
		c.println("  3) View query history")
		c.println("  4) Exit")

		choice, err := c.prompt("Choice [1-4]: ")
		if err != nil {
			return c.goodbye(err)
		}

		switch strings.ToLower(choice) {
		case "1", "q", "query":
			err = c.queryServer(ctx)
		case "2", "l", "logs":
			err = c.showLogs()
		case "3", "h", "history":
			err = c.showHistory()
		case "4", "x", "exit", "quit":
			return c.goodbye(nil)
		default:
			c.println(c.palette.Red("Unknown choice: " + choice))
			continue
		}

		if err != nil {
			return c.goodbye(err)
		}
	}
}

func (c *Console) header() {
	c.println(c.palette.Green(c.palette.Bold(vars.Short())))
	c.println(c.palette.Cyan("Console interface to query Minecraft server information"))
}

// goodbye ends the loop. End of input counts as a normal exit.
func (c *Console) goodbye(err error) error {
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	c.println(c.palette.Blue("Goodbye!"))
	return nil
}

func (c *Console) queryServer(ctx context.Context) error {
	var (
		host string
		port int
	)

	for {
		addr, err := c.prompt("Server address (e.g. play.example.net): ")
		if err != nil {
			return err
		}
		if addr == "" {
			c.println(c.palette.Red("The address cannot be empty."))
			continue
		}
		h, p, err := resolver.ParseAddress(addr)
		if err != nil {
			c.println(c.palette.Red(err.Error()))
			continue
		}
		host, port = h, p
		break
	}

	for port == 0 {
		raw, err := c.prompt("Port (leave empty for SRV lookup and default 25565): ")
		if err != nil {
			return err
		}
		p, err := resolver.ParsePort(raw)
		if err != nil {
			c.println(c.palette.Red(err.Error()))
			continue
		}
		port = p
		if p == 0 {
			break
		}
	}

	mode, err := c.promptMode()
	if err != nil {
		return err
	}

	qctx, cancel := c.interrupt(ctx)
	c.println(c.palette.Cyan("Querying server..."))
	st, err := c.client.Query(qctx, status.Request{Host: host, Port: port, Mode: mode})
	cancel()

	switch {
	case err != nil:
		log.Debug().Err(err).Str("host", host).Msg("Console query failed")
		c.println(c.palette.Red("✖ Error while querying the server."))
		c.println(c.palette.Red("Error detail:") + " " + err.Error())
	default:
		if st.Degraded {
			c.println(c.palette.Yellow("⚠ The query method failed, continuing with status."))
		}
		c.println(c.palette.Green("✔ Query succeeded."))
		if err := report.Render(c.out, st, c.palette); err != nil {
			return err
		}
	}

	return c.pause()
}

func (c *Console) promptMode() (models.Mode, error) {
	for {
		c.println("Retrieval method:")
		c.println("  1) Status (ping)")
		c.println("  2) Query (if enabled on the server)")

		raw, err := c.prompt("Method [1]: ")
		if err != nil {
			return "", err
		}

		switch strings.ToLower(raw) {
		case "", "1", "status":
			return models.ModeStatus, nil
		case "2", "query":
			return models.ModeQuery, nil
		}
		c.println(c.palette.Red("Unknown method: " + raw))
	}
}

func (c *Console) showLogs() error {
	c.println("")
	c.println(c.palette.Bold("=== Logs ==="))
	c.println("")

	err := journal.Dump(c.journalPath, c.out)
	if errors.Is(err, journal.ErrNoLogs) {
		c.println(c.palette.Red("No logs found."))
	} else if err != nil {
		log.Error().Err(err).Str("path", c.journalPath).Msg("Failed to read request log")
		c.println(c.palette.Red("Failed to read logs: " + err.Error()))
	}

	return c.pause()
}

func (c *Console) showHistory() error {
	c.println("")
	c.println(c.palette.Bold("=== Query history ==="))
	c.println("")

	if c.history == nil {
		c.println(c.palette.Red("History is disabled."))
		return c.pause()
	}

	entries, err := c.history.RecentQueries("", historyLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read query history")
		c.println(c.palette.Red("Failed to read history: " + err.Error()))
		return c.pause()
	}

	if len(entries) == 0 {
		c.println("No queries recorded yet.")
		return c.pause()
	}

	for _, e := range entries {
		c.println(historyLine(e, c.palette))
	}

	return c.pause()
}

func (c *Console) pause() error {
	_, err := c.prompt("Press Enter to return to the main menu...")
	return err
}

// prompt prints label and reads one trimmed line. A final line without a newline
// is returned; io.EOF only comes back when nothing was read.
func (c *Console) prompt(label string) (string, error) {
	c.print(c.palette.Cyan("? ") + label)

	line, err := c.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		c.println("")
		return "", err
	}

	return strings.TrimSpace(line), nil
}

func (c *Console) print(s string) {
	_, _ = io.WriteString(c.out, s)
}

func (c *Console) println(s string) {
	_, _ = fmt.Fprintln(c.out, s)
}
