package aggregation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Dimension is an axis of aggregation.
type Dimension string

const (
	DimensionGlobal   Dimension = "global"
	DimensionCategory Dimension = "category"
	DimensionCustomer Dimension = "customer"
	DimensionProduct  Dimension = "product"
)

// Granularity is the bucket width of an aggregate.
// GranularityAll is the degenerate all-time bucket (lifetime totals).
type Granularity string

const (
	GranularityHour Granularity = "1h"
	GranularityDay  Granularity = "1d"
	GranularityAll  Granularity = "all"
)

// ParseGranularity maps API granularity names onto bucket widths.
// Accepts both the API spelling ("hour", "day") and the storage label.
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "hour", string(GranularityHour):
		return GranularityHour, nil
	case "day", string(GranularityDay):
		return GranularityDay, nil
	default:
		return "", fmt.Errorf("invalid granularity %q (must be hour or day)", s)
	}
}

// Duration returns the bucket width. ok is false for GranularityAll,
// which has no finite width.
func (g Granularity) Duration() (d time.Duration, ok bool) {
	switch g {
	case GranularityHour:
		return time.Hour, true
	case GranularityDay:
		return 24 * time.Hour, true
	default:
		return 0, false
	}
}

// BucketStart truncates a timestamp to this granularity's bucket boundary.
// All-time aggregates collapse onto the zero time: one bucket per key.
func (g Granularity) BucketStart(t time.Time) time.Time {
	d, ok := g.Duration()
	if !ok {
		return time.Time{}
	}
	return t.UTC().Truncate(d)
}

// BucketKey uniquely identifies one aggregate bucket.
// Key is the dimension member (category name, customer ID, product ID);
// it is empty for the global dimension.
type BucketKey struct {
	Dimension   Dimension
	Key         string
	Granularity Granularity
	BucketStart time.Time
}

// CacheKey renders the canonical cache entry key for this bucket.
// The granularity segment keeps hour and day buckets distinct even when
// their bucket starts coincide (midnight).
func (k BucketKey) CacheKey() string {
	return fmt.Sprintf("agg:%s:%s:%s:%d", k.Dimension, k.Key, k.Granularity, k.BucketStart.Unix())
}

// Bucket holds the running aggregate for one BucketKey.
// Invariants: CompletedCount <= TransactionCount; RevenueSum is the exact
// decimal sum of total_amount over completed transactions in the bucket.
type Bucket struct {
	WindowStart      time.Time       `json:"window_start"`
	TransactionCount int64           `json:"transaction_count"`
	CompletedCount   int64           `json:"completed_count"`
	RevenueSum       decimal.Decimal `json:"revenue_sum"`
	LastUpdated      time.Time       `json:"last_updated"`
}

// ZeroBucket returns the empty aggregate for a bucket start.
// Absence of data is a valid zero state, never an error.
func ZeroBucket(windowStart time.Time) Bucket {
	return Bucket{
		WindowStart: windowStart,
		RevenueSum:  decimal.Zero,
	}
}

// Merge folds a delta into the bucket. Addition is commutative and
// associative, so the final value is independent of application order.
func (b Bucket) Merge(d Delta, now time.Time) Bucket {
	b.TransactionCount += d.TransactionCount
	b.CompletedCount += d.CompletedCount
	b.RevenueSum = b.RevenueSum.Add(d.RevenueSum)
	b.LastUpdated = now
	return b
}

// BucketStarts enumerates the bucket boundaries of a granularity covering
// [from, to), ascending. An empty or inverted range yields nil.
func BucketStarts(g Granularity, from, to time.Time) []time.Time {
	d, ok := g.Duration()
	if !ok || !from.Before(to) {
		return nil
	}

	var starts []time.Time
	for t := g.BucketStart(from); t.Before(to); t = t.Add(d) {
		starts = append(starts, t)
	}
	return starts
}
