package aggregation

import (
	"github.com/shopspring/decimal"

	v1 "github.com/salestream-lab/salestream/internal/api/v1"
)

// Delta is the additive contribution of a single transaction to one bucket.
type Delta struct {
	TransactionCount int64
	CompletedCount   int64
	RevenueSum       decimal.Decimal
}

// KeyedDelta pairs a delta with the bucket it applies to.
type KeyedDelta struct {
	Key   BucketKey
	Delta Delta
}

// UncategorizedProduct is the category assigned when the product catalog has
// no entry for a transaction's product_id.
const UncategorizedProduct = "uncategorized"

// DeltaFor computes a transaction's contribution to any one of its buckets.
// Every status counts toward the transaction count (conversion denominator);
// only completed transactions carry revenue.
func DeltaFor(txn *v1.Transaction) Delta {
	d := Delta{
		TransactionCount: 1,
		RevenueSum:       decimal.Zero,
	}
	if txn.Completed() {
		d.CompletedCount = 1
		d.RevenueSum = txn.TotalAmount
	}
	return d
}

// DeltasFor enumerates every bucket a transaction contributes to:
// global hour and day buckets, the category and product hour buckets, and
// the customer and product lifetime buckets. The returned keys are exactly
// the set a successful apply must invalidate in the cache.
func DeltasFor(txn *v1.Transaction, category string) []KeyedDelta {
	if category == "" {
		category = UncategorizedProduct
	}

	delta := DeltaFor(txn)
	keys := []BucketKey{
		{Dimension: DimensionGlobal, Granularity: GranularityHour, BucketStart: GranularityHour.BucketStart(txn.Timestamp)},
		{Dimension: DimensionGlobal, Granularity: GranularityDay, BucketStart: GranularityDay.BucketStart(txn.Timestamp)},
		{Dimension: DimensionCategory, Key: category, Granularity: GranularityHour, BucketStart: GranularityHour.BucketStart(txn.Timestamp)},
		{Dimension: DimensionProduct, Key: txn.ProductID, Granularity: GranularityHour, BucketStart: GranularityHour.BucketStart(txn.Timestamp)},
		{Dimension: DimensionCustomer, Key: txn.CustomerID, Granularity: GranularityAll},
		{Dimension: DimensionProduct, Key: txn.ProductID, Granularity: GranularityAll},
	}

	deltas := make([]KeyedDelta, 0, len(keys))
	for _, key := range keys {
		deltas = append(deltas, KeyedDelta{Key: key, Delta: delta})
	}
	return deltas
}
