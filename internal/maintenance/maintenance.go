// Package maintenance provides tools to prune and refresh the query history database.
package maintenance

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcpanel/internal/config"
	"github.com/woozymasta/mcpanel/internal/models"
	"github.com/woozymasta/mcpanel/internal/status"
	"golang.org/x/sync/errgroup"
)

// Store is the part of the history repository maintenance needs.
type Store interface {
	Targets() ([]models.Target, error)
	DeleteBefore(t time.Time) (int64, error)
}

// Querier runs one server query; status.Client satisfies it.
type Querier interface {
	Query(ctx context.Context, req status.Request) (*models.ServerStatus, error)
}

// Summary counts the outcome of a re-check.
type Summary struct {
	Total    int
	Online   int
	Offline  int
	Degraded int
}

// Run checks if any maintenance flags are set and executes the corresponding tasks.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg *config.Config, store Store, client Querier) bool {
	if cfg.Storage.Prune > 0 {
		cutoff := time.Now().Add(-cfg.Storage.Prune)
		log.Info().Time("before", cutoff).Msg("Pruning query history...")

		count, err := store.DeleteBefore(cutoff)
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune history")
		} else {
			log.Info().Int64("deleted", count).Msg("Prune finished")
		}

		return true
	}

	if !cfg.Storage.CheckAll {
		return false
	}

	targets, err := store.Targets()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch recorded targets")
		return true
	}

	if len(targets) == 0 {
		log.Info().Msg("No recorded targets to check")
		return true
	}

	log.Info().Int("count", len(targets)).Int("workers", cfg.Storage.Workers).Msg("Re-checking recorded targets...")
	sum := CheckAll(ctx, targets, client, cfg.Storage.Workers)
	log.Info().
		Int("total", sum.Total).
		Int("online", sum.Online).
		Int("offline", sum.Offline).
		Int("degraded", sum.Degraded).
		Msg("Re-check completed")

	return true
}

// CheckAll queries every target in status mode with at most workers queries in flight.
// Each result is recorded by the client; failures are counted, never fatal.
func CheckAll(ctx context.Context, targets []models.Target, client Querier, workers int) Summary {
	if workers < 1 {
		workers = 1
	}

	var online, offline, degraded atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, t := range targets {
		t := t
		g.Go(func() error {
			logCtx := log.With().Str("host", t.Host).Int("port", t.Port).Logger()

			st, err := client.Query(gctx, status.Request{Host: t.Host, Port: t.Port, Mode: models.ModeStatus})
			if err != nil {
				offline.Add(1)
				logCtx.Debug().Err(err).Msg("Target offline")
				return nil
			}

			online.Add(1)
			if st.Degraded {
				degraded.Add(1)
			}
			logCtx.Trace().Int("players", st.PlayersOnline).Msg("Target online")
			return nil
		})
	}
	_ = g.Wait()

	return Summary{
		Total:    len(targets),
		Online:   int(online.Load()),
		Offline:  int(offline.Load()),
		Degraded: int(degraded.Load()),
	}
}
