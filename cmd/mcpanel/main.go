// main is the entry point of the MCPanel application.
// It initializes the configuration, logger, request journal, history database and GeoIP
// provider, then runs the interactive console, a one-shot query or the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcpanel/internal/config"
	"github.com/woozymasta/mcpanel/internal/console"
	"github.com/woozymasta/mcpanel/internal/fake"
	"github.com/woozymasta/mcpanel/internal/geoip"
	"github.com/woozymasta/mcpanel/internal/journal"
	"github.com/woozymasta/mcpanel/internal/logger"
	"github.com/woozymasta/mcpanel/internal/maintenance"
	"github.com/woozymasta/mcpanel/internal/models"
	"github.com/woozymasta/mcpanel/internal/report"
	"github.com/woozymasta/mcpanel/internal/server"
	"github.com/woozymasta/mcpanel/internal/status"
	"github.com/woozymasta/mcpanel/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Parse()

	logCloser := logger.Setup(cfg.Logger)
	defer func() { _ = logCloser.Close() }()

	ctx := context.Background()

	// Demo server
	if cfg.Target.FakeServer != "" {
		return runFakeServer(cfg.Target.FakeServer)
	}

	// Request journal
	requests, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Journal.Path).Msg("Failed to open request log, journal disabled")
		requests, _ = journal.Open("")
	}
	defer func() {
		if err := requests.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing request log")
		}
	}()

	opts := []status.Option{status.WithJournal(requests)}

	// GeoIP
	if cfg.GeoIP.Path != "" {
		if cfg.GeoIP.Update {
			log.Info().Msg("Checking GeoIP database...")
			if err := geoip.EnsureDB(ctx, cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
				log.Error().Err(err).Msg("Failed to download GeoIP database")
			}
		}

		geoProvider, err := geoip.Open(cfg.GeoIP.Path)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		} else {
			defer func() {
				if err := geoProvider.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP provider")
				}
			}()
			opts = append(opts, status.WithCountryLookup(geoProvider))
		}
	}

	// Database
	var store *storage.Repository
	if !cfg.Storage.Disable {
		store, err = storage.New(cfg.Storage.Path)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.Storage.Path).Msg("Failed to initialize database, history disabled")
			store = nil
		} else {
			defer func() {
				if err := store.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing database")
				}
			}()
			opts = append(opts, status.WithRecorder(store))
		}
	}

	client := status.New(cfg.Query, opts...)

	// Database maintenance
	if store != nil {
		if maintenance.Run(ctx, cfg, store, client) {
			return 0
		}
	} else if cfg.Storage.CheckAll || cfg.Storage.Prune > 0 {
		log.Error().Msg("Maintenance requires the history database")
		return 1
	}

	var history console.HistoryReader
	if store != nil {
		history = store
	}

	switch {
	case cfg.Server.Serve:
		var apiHistory server.HistoryReader
		if store != nil {
			apiHistory = store
		}
		return runServer(cfg, client, apiHistory)

	case cfg.Target.Host != "":
		return runOnce(ctx, cfg, client)

	default:
		stdout := colorable.NewColorable(os.Stdout)
		ui := console.New(os.Stdin, stdout, client,
			console.WithHistory(history),
			console.WithJournalPath(requests.Path()),
			console.WithPalette(report.PaletteFor(os.Stdout)),
		)
		if err := ui.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Console failed")
			return 1
		}
		return 0
	}
}

// runOnce queries the --host target and prints the result. A failed status handshake exits 1.
func runOnce(ctx context.Context, cfg *config.Config, client *status.Client) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := client.Query(ctx, status.Request{
		Host: cfg.Target.Host,
		Port: cfg.Target.Port,
		Mode: models.Mode(cfg.Target.Mode),
	})
	if err != nil {
		log.Error().Err(err).Msg("Query failed")
		return 1
	}

	if st.Degraded {
		log.Warn().Msg(st.Warning)
	}

	if cfg.Target.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(st); err != nil {
			log.Error().Err(err).Msg("Failed to encode result")
			return 1
		}
		return 0
	}

	if err := report.Render(colorable.NewColorable(os.Stdout), st, report.PaletteFor(os.Stdout)); err != nil {
		log.Error().Err(err).Msg("Failed to print report")
		return 1
	}

	return 0
}

func runServer(cfg *config.Config, client *status.Client, history server.HistoryReader) int {
	srvHandler := server.New(client, history, cfg.Server)
	defer srvHandler.Close()

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srvHandler.Run(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.Query.Timeout*2 + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		log.Error().Err(err).Msg("Server failed")
		return 1
	}

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
	return 0
}

// runFakeServer answers status and full-stat queries with canned data until interrupted.
func runFakeServer(addr string) int {
	srv, err := fake.Start(fake.Options{Address: addr, Query: fake.DefaultQuery()})
	if err != nil {
		log.Error().Err(err).Str("address", addr).Msg("Failed to start fake server")
		return 1
	}

	log.Info().Str("address", srv.Endpoint().String()).Msg("Fake Minecraft server listening (TCP status, UDP query)")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	if err := srv.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing fake server")
	}

	return 0
}
