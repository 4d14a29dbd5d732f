package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/salestream-lab/salestream/internal/core/aggregation"
)

// ProductRevenue is one row of a top-products ranking.
type ProductRevenue struct {
	ProductID        string          `json:"product_id"`
	RevenueSum       decimal.Decimal `json:"revenue_sum"`
	TransactionCount int64           `json:"transaction_count"`
}

// CategorySales is one category's totals over a time range.
type CategorySales struct {
	Category         string          `json:"category"`
	TransactionCount int64           `json:"transaction_count"`
	CompletedCount   int64           `json:"completed_count"`
	RevenueSum       decimal.Decimal `json:"revenue_sum"`
}

// AggregateRepository is the durable backing of the aggregate store.
// The relational database is addressed only through this interface.
type AggregateRepository interface {
	// ApplyRecord applies all of a transaction's bucket deltas and its
	// ingestion-ledger entry in ONE database transaction. Returns
	// applied=false when the transaction_id is already in the ledger
	// (idempotent no-op, nothing written). A ledger row therefore exists
	// if and only if the bucket updates committed — the property that makes
	// at-least-once redelivery safe.
	ApplyRecord(ctx context.Context, transactionID string, deltas []aggregation.KeyedDelta, now time.Time) (applied bool, err error)

	// FetchBucket reads a single bucket. found=false (not an error) when the
	// bucket has never received a contribution.
	FetchBucket(ctx context.Context, key aggregation.BucketKey) (bucket aggregation.Bucket, found bool, err error)

	// FetchBuckets reads buckets of one (dimension, key, granularity) with
	// window_start in [from, to), ordered by window_start ascending.
	// An empty range yields an empty slice.
	FetchBuckets(ctx context.Context, dim aggregation.Dimension, key string, gran aggregation.Granularity, from, to time.Time) ([]aggregation.Bucket, error)

	// CustomerLifetimeValue sums revenue across all buckets for a customer.
	// Unknown customers yield zero.
	CustomerLifetimeValue(ctx context.Context, customerID string) (decimal.Decimal, error)

	// TopProducts ranks products by revenue over hour buckets in [from, to),
	// revenue descending, product_id ascending on ties.
	TopProducts(ctx context.Context, n int, from, to time.Time) ([]ProductRevenue, error)

	// SalesByCategory totals counts and revenue per category over hour
	// buckets in [from, to), revenue descending, category ascending on ties.
	SalesByCategory(ctx context.Context, from, to time.Time) ([]CategorySales, error)

	// PruneLedger deletes ledger entries applied before the cutoff and
	// returns the number removed. Bounds dedup memory at the cost of a
	// finite dedup window.
	PruneLedger(ctx context.Context, appliedBefore time.Time) (int64, error)
}
