package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	v1 "github.com/salestream-lab/salestream/internal/api/v1"
	"github.com/salestream-lab/salestream/internal/core/aggregation"
	"github.com/salestream-lab/salestream/internal/core/storage"
)

// memRepo is an in-memory AggregateRepository mirroring the postgres
// adapter's semantics: a ledger claim plus additive bucket merges, all or
// nothing per transaction.
type memRepo struct {
	mu      sync.Mutex
	ledger  map[string]time.Time
	buckets map[string]aggregation.Bucket
	failing error
}

func newMemRepo() *memRepo {
	return &memRepo{
		ledger:  make(map[string]time.Time),
		buckets: make(map[string]aggregation.Bucket),
	}
}

func (r *memRepo) ApplyRecord(_ context.Context, transactionID string, deltas []aggregation.KeyedDelta, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failing != nil {
		return false, r.failing
	}
	if _, dup := r.ledger[transactionID]; dup {
		return false, nil
	}
	r.ledger[transactionID] = now

	for _, kd := range deltas {
		ck := kd.Key.CacheKey()
		bucket, ok := r.buckets[ck]
		if !ok {
			bucket = aggregation.ZeroBucket(kd.Key.BucketStart)
		}
		r.buckets[ck] = bucket.Merge(kd.Delta, now)
	}
	return true, nil
}

func (r *memRepo) FetchBucket(_ context.Context, key aggregation.BucketKey) (aggregation.Bucket, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, ok := r.buckets[key.CacheKey()]
	return bucket, ok, nil
}

func (r *memRepo) FetchBuckets(_ context.Context, dim aggregation.Dimension, key string, gran aggregation.Granularity, from, to time.Time) ([]aggregation.Bucket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []aggregation.Bucket
	for t := gran.BucketStart(from); t.Before(to); t = t.Add(time.Hour) {
		bucket, ok := r.buckets[aggregation.BucketKey{Dimension: dim, Key: key, Granularity: gran, BucketStart: t}.CacheKey()]
		if ok {
			out = append(out, bucket)
		}
	}
	return out, nil
}

func (r *memRepo) CustomerLifetimeValue(_ context.Context, customerID string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := aggregation.BucketKey{Dimension: aggregation.DimensionCustomer, Key: customerID, Granularity: aggregation.GranularityAll}
	return r.buckets[key.CacheKey()].RevenueSum, nil
}

func (r *memRepo) TopProducts(_ context.Context, n int, from, to time.Time) ([]storage.ProductRevenue, error) {
	return nil, nil
}

func (r *memRepo) SalesByCategory(_ context.Context, from, to time.Time) ([]storage.CategorySales, error) {
	return nil, nil
}

func (r *memRepo) PruneLedger(_ context.Context, appliedBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, appliedAt := range r.ledger {
		if appliedAt.Before(appliedBefore) {
			delete(r.ledger, id)
			removed++
		}
	}
	return removed, nil
}

func storeTxn(id, status string, amount string) *v1.Transaction {
	total := decimal.RequireFromString(amount)
	return &v1.Transaction{
		TransactionID: id,
		Timestamp:     time.Date(2026, 3, 15, 14, 23, 5, 0, time.UTC),
		CustomerID:    "CUST00042",
		ProductID:     "PROD-17",
		Quantity:      1,
		UnitPrice:     total,
		TotalAmount:   total,
		PaymentMethod: v1.PaymentCreditCard,
		Status:        status,
	}
}

func TestStore_ApplyTouchesAllBuckets(t *testing.T) {
	repo := newMemRepo()
	store := NewStore(repo)

	result, err := store.Apply(context.Background(), storeTxn("TXN-1", v1.StatusCompleted, "50.00"), "electronics")
	require.NoError(t, err)
	require.False(t, result.Duplicate)
	require.Len(t, result.Touched, 6)

	bucket, err := store.GetBucket(context.Background(), result.Touched[0])
	require.NoError(t, err)
	require.Equal(t, int64(1), bucket.TransactionCount)
	require.True(t, bucket.RevenueSum.Equal(decimal.RequireFromString("50.00")))
}

func TestStore_ApplyIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	store := NewStore(repo)
	txn := storeTxn("TXN-1", v1.StatusCompleted, "50.00")

	first, err := store.Apply(context.Background(), txn, "electronics")
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	// Redelivery of the same transaction_id must not change any bucket.
	second, err := store.Apply(context.Background(), txn, "electronics")
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.Empty(t, second.Touched)

	bucket, err := store.GetBucket(context.Background(), first.Touched[0])
	require.NoError(t, err)
	require.Equal(t, int64(1), bucket.TransactionCount)
}

func TestStore_ApplySurfacesRepositoryError(t *testing.T) {
	repo := newMemRepo()
	repo.failing = errors.New("connection reset")
	store := NewStore(repo)

	_, err := store.Apply(context.Background(), storeTxn("TXN-1", v1.StatusCompleted, "50.00"), "")
	require.Error(t, err)
	require.Empty(t, repo.ledger, "failed apply must not advance the ledger")
}

func TestStore_ConcurrentAppliesConverge(t *testing.T) {
	repo := newMemRepo()
	store := NewStore(repo)

	// 50 distinct transactions plus a redelivered duplicate of each, applied
	// from competing goroutines. The final counts must match exactly one
	// application per distinct transaction regardless of interleaving.
	const distinct = 50
	var wg sync.WaitGroup
	for i := 0; i < distinct; i++ {
		for copies := 0; copies < 2; copies++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				txn := storeTxn(fmt.Sprintf("TXN-%03d", i), v1.StatusCompleted, "10.00")
				_, err := store.Apply(context.Background(), txn, "electronics")
				require.NoError(t, err)
			}(i)
		}
	}
	wg.Wait()

	hourKey := aggregation.BucketKey{
		Dimension:   aggregation.DimensionGlobal,
		Granularity: aggregation.GranularityHour,
		BucketStart: aggregation.GranularityHour.BucketStart(time.Date(2026, 3, 15, 14, 23, 5, 0, time.UTC)),
	}
	bucket, err := store.GetBucket(context.Background(), hourKey)
	require.NoError(t, err)
	require.Equal(t, int64(distinct), bucket.TransactionCount)
	require.True(t, bucket.RevenueSum.Equal(decimal.RequireFromString("500.00")))
}

func TestStore_GetBucketYieldsZeroState(t *testing.T) {
	store := NewStore(newMemRepo())
	start := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)

	bucket, err := store.GetBucket(context.Background(), aggregation.BucketKey{
		Dimension:   aggregation.DimensionGlobal,
		Granularity: aggregation.GranularityHour,
		BucketStart: start,
	})
	require.NoError(t, err)
	require.Equal(t, start, bucket.WindowStart)
	require.Zero(t, bucket.TransactionCount)
	require.True(t, bucket.RevenueSum.IsZero())
}

func TestStore_ReadRejectsNothingOnEmptyRange(t *testing.T) {
	store := NewStore(newMemRepo())
	ts := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)

	buckets, err := store.Read(context.Background(),
		aggregation.DimensionGlobal, "", aggregation.GranularityHour, ts, ts)
	require.NoError(t, err)
	require.Nil(t, buckets)
}
