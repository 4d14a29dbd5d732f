package aggregation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseGranularity(t *testing.T) {
	tests := []struct {
		input   string
		want    Granularity
		wantErr bool
	}{
		{"hour", GranularityHour, false},
		{"1h", GranularityHour, false},
		{"day", GranularityDay, false},
		{"1d", GranularityDay, false},
		{"week", "", true},
		{"all", "", true}, // lifetime buckets are not addressable via the API
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseGranularity(tt.input)
		if tt.wantErr {
			require.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		require.Equal(t, tt.want, got)
	}
}

func TestGranularity_BucketStart(t *testing.T) {
	ts := time.Date(2026, 3, 15, 14, 23, 5, 123, time.UTC)

	require.Equal(t, time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC), GranularityHour.BucketStart(ts))
	require.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), GranularityDay.BucketStart(ts))
	require.True(t, GranularityAll.BucketStart(ts).IsZero())
}

func TestGranularity_BucketStartNormalizesZone(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*3600)
	local := time.Date(2026, 3, 15, 1, 30, 0, 0, zone) // 23:30 UTC the previous day

	start := GranularityDay.BucketStart(local)
	require.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), start)
}

func TestBucketKey_CacheKey(t *testing.T) {
	midnight := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	hourKey := BucketKey{Dimension: DimensionGlobal, Granularity: GranularityHour, BucketStart: midnight}
	dayKey := BucketKey{Dimension: DimensionGlobal, Granularity: GranularityDay, BucketStart: midnight}

	// Hour and day buckets share a start at midnight; the cache keys must
	// still be distinct.
	require.NotEqual(t, hourKey.CacheKey(), dayKey.CacheKey())
	require.Equal(t, "agg:global::1h:1773532800", hourKey.CacheKey())

	custKey := BucketKey{Dimension: DimensionCustomer, Key: "CUST00042", Granularity: GranularityAll}
	require.Contains(t, custKey.CacheKey(), "agg:customer:CUST00042:all:")
}

func TestBucket_MergeIsCommutative(t *testing.T) {
	now := time.Now().UTC()
	a := Delta{TransactionCount: 1, CompletedCount: 1, RevenueSum: decimal.RequireFromString("10.00")}
	b := Delta{TransactionCount: 1, CompletedCount: 0, RevenueSum: decimal.Zero}
	c := Delta{TransactionCount: 1, CompletedCount: 1, RevenueSum: decimal.RequireFromString("0.01")}

	start := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)
	abc := ZeroBucket(start).Merge(a, now).Merge(b, now).Merge(c, now)
	cba := ZeroBucket(start).Merge(c, now).Merge(b, now).Merge(a, now)

	require.Equal(t, abc.TransactionCount, cba.TransactionCount)
	require.Equal(t, abc.CompletedCount, cba.CompletedCount)
	require.True(t, abc.RevenueSum.Equal(cba.RevenueSum))

	require.Equal(t, int64(3), abc.TransactionCount)
	require.Equal(t, int64(2), abc.CompletedCount)
	require.True(t, abc.RevenueSum.Equal(decimal.RequireFromString("10.01")))
}

func TestBucket_MergeKeepsExactDecimals(t *testing.T) {
	// 0.1 + 0.2 must be exactly 0.3, not a float approximation.
	now := time.Now().UTC()
	b := ZeroBucket(now).
		Merge(Delta{TransactionCount: 1, CompletedCount: 1, RevenueSum: decimal.RequireFromString("0.1")}, now).
		Merge(Delta{TransactionCount: 1, CompletedCount: 1, RevenueSum: decimal.RequireFromString("0.2")}, now)

	require.True(t, b.RevenueSum.Equal(decimal.RequireFromString("0.3")),
		"expected exact 0.3, got %s", b.RevenueSum)
}

func TestBucketStarts(t *testing.T) {
	from := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	to := time.Date(2026, 3, 15, 17, 0, 0, 0, time.UTC)

	starts := BucketStarts(GranularityHour, from, to)
	require.Equal(t, []time.Time{
		time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 15, 15, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 15, 16, 0, 0, 0, time.UTC),
	}, starts)
}

func TestBucketStarts_EmptyRange(t *testing.T) {
	ts := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)

	require.Nil(t, BucketStarts(GranularityHour, ts, ts))
	require.Nil(t, BucketStarts(GranularityHour, ts, ts.Add(-time.Hour)))
	require.Nil(t, BucketStarts(GranularityAll, ts, ts.Add(time.Hour)))
}
