package aggregate

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	v1 "github.com/salestream-lab/salestream/internal/api/v1"
	"github.com/salestream-lab/salestream/internal/core/aggregation"
	"github.com/salestream-lab/salestream/internal/core/storage"
)

// Applied is the outcome of applying one transaction to the store.
type Applied struct {
	// Duplicate is true when the transaction_id was already in the
	// ingestion ledger. Nothing was written and no cache entry is stale.
	Duplicate bool

	// Touched lists every bucket key the apply updated; the caller must
	// invalidate exactly these cache entries before acknowledging.
	Touched []aggregation.BucketKey
}

// Store is the single source of truth for aggregate bucket state. It is the
// only component permitted to mutate buckets; readers get derived copies.
type Store struct {
	repo  storage.AggregateRepository
	locks keyedMutex
	clock func() time.Time
}

// NewStore creates an aggregate store over the given repository.
func NewStore(repo storage.AggregateRepository) *Store {
	if repo == nil {
		panic("aggregate: repository must not be nil")
	}
	return &Store{
		repo:  repo,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// Apply atomically folds a validated transaction into every bucket it
// contributes to, recording it in the ingestion ledger in the same database
// transaction. Safe to call concurrently: stripe locks serialize writers on
// the same bucket keys, and the ledger makes redelivery an idempotent no-op.
//
// On error, the ledger has NOT advanced — the caller must not acknowledge
// the source message, so the broker redelivers it.
func (s *Store) Apply(ctx context.Context, txn *v1.Transaction, category string) (Applied, error) {
	deltas := aggregation.DeltasFor(txn, category)

	keys := make([]aggregation.BucketKey, len(deltas))
	for i, kd := range deltas {
		keys[i] = kd.Key
	}

	unlock := s.locks.lockAll(keys)
	defer unlock()

	applied, err := s.repo.ApplyRecord(ctx, txn.TransactionID, deltas, s.clock())
	if err != nil {
		return Applied{}, err
	}
	if !applied {
		return Applied{Duplicate: true}, nil
	}

	slog.Debug("[AggregateStore] Applied transaction",
		"transaction_id", txn.TransactionID,
		"status", txn.Status,
		"buckets_touched", len(keys))
	return Applied{Touched: keys}, nil
}

// GetBucket reads one bucket, yielding the zero-valued bucket when it has
// never received a contribution. This is the load function behind the cache.
func (s *Store) GetBucket(ctx context.Context, key aggregation.BucketKey) (aggregation.Bucket, error) {
	bucket, found, err := s.repo.FetchBucket(ctx, key)
	if err != nil {
		return aggregation.Bucket{}, err
	}
	if !found {
		return aggregation.ZeroBucket(key.BucketStart), nil
	}
	return bucket, nil
}

// Read returns buckets of one (dimension, key, granularity) overlapping
// [from, to), ordered by window_start ascending. An empty range yields an
// empty result, not an error.
func (s *Store) Read(
	ctx context.Context,
	dim aggregation.Dimension,
	key string,
	gran aggregation.Granularity,
	from, to time.Time,
) ([]aggregation.Bucket, error) {
	if !from.Before(to) {
		return nil, nil
	}
	return s.repo.FetchBuckets(ctx, dim, key, gran, from, to)
}

// CustomerLifetimeValue sums revenue across all buckets for the customer.
// Unknown customers are a valid zero state.
func (s *Store) CustomerLifetimeValue(ctx context.Context, customerID string) (decimal.Decimal, error) {
	return s.repo.CustomerLifetimeValue(ctx, customerID)
}

// TopProducts ranks products by revenue over [from, to), revenue descending
// with product_id ascending tie-break.
func (s *Store) TopProducts(ctx context.Context, n int, from, to time.Time) ([]storage.ProductRevenue, error) {
	return s.repo.TopProducts(ctx, n, from, to)
}

// SalesByCategory totals counts and revenue per category over [from, to),
// revenue descending with category ascending tie-break.
func (s *Store) SalesByCategory(ctx context.Context, from, to time.Time) ([]storage.CategorySales, error) {
	return s.repo.SalesByCategory(ctx, from, to)
}
