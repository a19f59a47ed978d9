package events

import (
	"context"
	"log/slog"
	"time"
)

// SnapshotStore is satisfied by *store.Store.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, v any) error
	LatestSnapshot(ctx context.Context, v any) (bool, error)
}

// RestoreLatest seeds agg from the newest stored snapshot, if any.
func RestoreLatest(ctx context.Context, s SnapshotStore, agg *Aggregator) error {
	var stats Stats
	found, err := s.LatestSnapshot(ctx, &stats)
	if err != nil || !found {
		return err
	}
	agg.Restore(stats)
	slog.Default().Info("analytics restored from snapshot", "resolves", stats.Resolves, "carts", stats.Carts)
	return nil
}

// StartPeriodicSave snapshots agg every interval and once more on shutdown.
// The returned channel closes after the final snapshot.
func StartPeriodicSave(ctx context.Context, s SnapshotStore, agg *Aggregator, interval time.Duration) <-chan struct{} {
	logger := slog.Default().With("component", "analytics-snapshots")
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
					logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
					logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	logger.Info("periodic snapshot started", "interval", interval)
	return done
}
