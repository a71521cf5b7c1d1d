package session

import (
	"context"
	"log/slog"
	"time"
)

const sweepInterval = 5 * time.Minute

// StartSweeper runs a background goroutine that periodically evicts sessions
// idle longer than ttl from the store. It stops when ctx is done.
func StartSweeper(ctx context.Context, s Store, ttl time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", sweepInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				evicted, err := s.CleanupExpired(ctx, ttl)
				if err != nil {
					slog.Error("Session sweep failed", "error", err)
					continue
				}
				if evicted > 0 {
					slog.Info("Session sweep evicted idle sessions", "count", evicted)
				}
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
