package ingest

import (
	"context"
	"log/slog"
	"time"
)

// LedgerPruner is the slice of the repository the sweeper needs.
type LedgerPruner interface {
	PruneLedger(ctx context.Context, appliedBefore time.Time) (int64, error)
}

// RetentionSweeper prunes old ingestion-ledger entries on a periodic
// interval, trading an unbounded dedup window for bounded storage. A
// transaction redelivered after its ledger entry was pruned WILL be applied
// again — the retention window must exceed the broker's redelivery horizon.
type RetentionSweeper struct {
	interval  time.Duration
	retention time.Duration
	pruner    LedgerPruner
}

// NewRetentionSweeper creates a sweeper pruning entries older than retention
// every interval.
func NewRetentionSweeper(interval, retention time.Duration, pruner LedgerPruner) *RetentionSweeper {
	return &RetentionSweeper{
		interval:  interval,
		retention: retention,
		pruner:    pruner,
	}
}

// Start begins periodic pruning. Runs until context is cancelled.
func (s *RetentionSweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[RetentionSweeper] Starting ledger retention sweeper",
		"interval", s.interval,
		"retention", s.retention)

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			slog.Info("[RetentionSweeper] Stopping (context cancelled)")
			return nil
		}
	}
}

func (s *RetentionSweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.retention)
	removed, err := s.pruner.PruneLedger(sweepCtx, cutoff)
	if err != nil {
		slog.Error("[RetentionSweeper] Prune failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("[RetentionSweeper] Pruned ledger entries",
			"removed", removed,
			"cutoff", cutoff)
	}
}
