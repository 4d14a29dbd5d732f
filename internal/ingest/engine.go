package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/salestream-lab/salestream/internal/aggregate"
	v1 "github.com/salestream-lab/salestream/internal/api/v1"
	"github.com/salestream-lab/salestream/internal/core/aggregation"
	"github.com/salestream-lab/salestream/internal/telemetry"
)

// Applier is the write side of the aggregate store the engine feeds.
type Applier interface {
	Apply(ctx context.Context, txn *v1.Transaction, category string) (aggregate.Applied, error)
}

// Invalidator drops cache entries for touched bucket keys.
type Invalidator interface {
	InvalidateAll(keys []aggregation.BucketKey)
}

// Categorizer resolves a product ID to its category for enrichment.
type Categorizer interface {
	CategoryOf(productID string) string
}

// Engine consumes the event stream and applies each transaction exactly once
// logically. Per message the state machine is
// RECEIVED -> VALIDATED -> (DUPLICATE | APPLIED) -> ACKNOWLEDGED:
// validation failures go to the dead-letter sink and are acknowledged,
// duplicates are acknowledged without applying, and storage failures are
// nacked for at-least-once redelivery.
type Engine struct {
	source     Source
	deadLetter DeadLetter
	store      Applier
	cache      Invalidator
	catalog    Categorizer
	workers    int
}

// NewEngine wires the ingestion engine. cache may be nil, in which case no
// invalidation happens (reads go straight to the store).
func NewEngine(source Source, deadLetter DeadLetter, store Applier, cache Invalidator, catalog Categorizer, workers int) *Engine {
	if source == nil {
		panic("ingest: source must not be nil")
	}
	if deadLetter == nil {
		panic("ingest: dead-letter sink must not be nil")
	}
	if store == nil {
		panic("ingest: store must not be nil")
	}
	if catalog == nil {
		panic("ingest: catalog must not be nil")
	}
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		source:     source,
		deadLetter: deadLetter,
		store:      store,
		cache:      cache,
		catalog:    catalog,
		workers:    workers,
	}
}

// Run consumes messages with the configured number of workers until ctx is
// cancelled or the source closes. Shutdown is graceful: workers stop pulling
// new messages but finish the apply already in flight, so a committed ledger
// entry is never followed by a lost acknowledgement.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("[IngestionEngine] Starting workers", "workers", e.workers)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < e.workers; i++ {
		worker := i
		g.Go(func() error {
			return e.runWorker(ctx, worker)
		})
	}

	err := g.Wait()
	slog.Info("[IngestionEngine] All workers stopped")
	return err
}

func (e *Engine) runWorker(ctx context.Context, worker int) error {
	for {
		msg, err := e.source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("[IngestionEngine] Worker stopping (context cancelled)", "worker", worker)
				return nil
			}
			if errors.Is(err, ErrSourceClosed) {
				slog.Info("[IngestionEngine] Worker stopping (source closed)", "worker", worker)
				return nil
			}
			// Source connectivity failures are fatal and surface to the
			// process supervisor.
			slog.Error("[IngestionEngine] Event source failed", "worker", worker, "error", err)
			return err
		}

		// The in-flight message finishes on a detached context: a shutdown
		// between apply and ack would otherwise leave a ledger entry whose
		// message gets redelivered and dead-ends as a duplicate forever.
		e.process(context.WithoutCancel(ctx), msg)
	}
}

// process drives one message through the state machine. It never returns an
// error: every outcome is an ack, a nack, or a dead-letter.
func (e *Engine) process(ctx context.Context, msg Message) {
	telemetry.TransactionsConsumed.Inc()
	start := time.Now()

	// RECEIVED -> VALIDATED
	txn, err := v1.ParseTransaction(msg.Payload())
	if err != nil {
		telemetry.TransactionsDeadLettered.Inc()
		slog.Warn("[IngestionEngine] Validation failed, dead-lettering", "error", err)
		if dlErr := e.deadLetter.Send(ctx, msg.Payload(), err.Error()); dlErr != nil {
			slog.Error("[IngestionEngine] Dead-letter sink failed", "error", dlErr)
		}
		// Malformed data is never retried.
		msg.Ack()
		return
	}

	category := e.catalog.CategoryOf(txn.ProductID)

	// VALIDATED -> (DUPLICATE | APPLIED)
	result, err := e.store.Apply(ctx, txn, category)
	if err != nil {
		// StorageFailure: the ledger did not advance. Leave the message
		// unacknowledged so the source redelivers it.
		telemetry.StorageFailures.Inc()
		slog.Warn("[IngestionEngine] Apply failed, message will be redelivered",
			"transaction_id", txn.TransactionID,
			"error", err)
		msg.Nack()
		return
	}

	if result.Duplicate {
		telemetry.TransactionsDuplicate.Inc()
		slog.Debug("[IngestionEngine] Duplicate transaction acknowledged",
			"transaction_id", txn.TransactionID)
		msg.Ack()
		return
	}

	// Invalidate before acknowledging: a reader must never observe the
	// pre-update value after the message is acked.
	if e.cache != nil {
		e.cache.InvalidateAll(result.Touched)
	}

	telemetry.TransactionsApplied.Inc()
	telemetry.ApplyDuration.Observe(float64(time.Since(start).Milliseconds()))

	slog.Info("[IngestionEngine] Applied transaction",
		"transaction_id", txn.TransactionID,
		"status", txn.Status,
		"total_amount", txn.TotalAmount,
		"buckets_touched", len(result.Touched))

	// ACKNOWLEDGED
	msg.Ack()
}
