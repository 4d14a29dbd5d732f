package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/salestream-lab/salestream/internal/core/aggregation"
	"github.com/salestream-lab/salestream/internal/core/storage"
)

// ErrInvalidQuery marks client mistakes (bad range, bad count) so the
// handler can map them to a 400 instead of a 500.
var ErrInvalidQuery = errors.New("invalid metrics query")

// maxRangeBuckets caps how many buckets one query may touch. A month of
// hours is far beyond any dashboard window.
const maxRangeBuckets = 24 * 31

// maxTrendCount caps trend length.
const maxTrendCount = 1000

// BucketReader serves single-bucket reads: the cache, or the store directly
// when caching is disabled. The cache is an optimization, never a
// correctness dependency.
type BucketReader interface {
	GetBucket(ctx context.Context, key aggregation.BucketKey) (aggregation.Bucket, error)
}

// ProductRanker is the slice of the store behind top-products queries.
type ProductRanker interface {
	TopProducts(ctx context.Context, n int, from, to time.Time) ([]storage.ProductRevenue, error)
}

// CategoryReader is the slice of the store behind sales-by-category queries:
// grouped totals plus the hour-bucket series of one category.
type CategoryReader interface {
	SalesByCategory(ctx context.Context, from, to time.Time) ([]storage.CategorySales, error)
	Read(ctx context.Context, dim aggregation.Dimension, key string, gran aggregation.Granularity, from, to time.Time) ([]aggregation.Bucket, error)
}

// Service computes derived metrics on the read side. It only ever reads:
// bucket state flows in exclusively through the ingestion engine.
type Service struct {
	buckets    BucketReader
	products   ProductRanker
	categories CategoryReader
	clock      func() time.Time
}

// NewService creates the metrics query service.
func NewService(buckets BucketReader, products ProductRanker, categories CategoryReader) *Service {
	if buckets == nil {
		panic("query: bucket reader must not be nil")
	}
	if products == nil {
		panic("query: product ranker must not be nil")
	}
	if categories == nil {
		panic("query: category reader must not be nil")
	}
	return &Service{
		buckets:    buckets,
		products:   products,
		categories: categories,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

// ConversionRate sums hour buckets in [from, to) and returns
// completed/total*100. An empty range or one with no transactions yields
// zero, never NaN.
func (s *Service) ConversionRate(ctx context.Context, from, to time.Time) (ConversionRateResponse, error) {
	if err := validateRange(from, to, aggregation.GranularityHour); err != nil {
		return ConversionRateResponse{}, err
	}

	resp := ConversionRateResponse{From: from, To: to}
	for _, start := range aggregation.BucketStarts(aggregation.GranularityHour, from, to) {
		bucket, err := s.buckets.GetBucket(ctx, aggregation.BucketKey{
			Dimension:   aggregation.DimensionGlobal,
			Granularity: aggregation.GranularityHour,
			BucketStart: start,
		})
		if err != nil {
			return ConversionRateResponse{}, fmt.Errorf("read conversion bucket: %w", err)
		}
		resp.TransactionCount += bucket.TransactionCount
		resp.CompletedCount += bucket.CompletedCount
	}

	if resp.TransactionCount > 0 {
		resp.ConversionRate = float64(resp.CompletedCount) / float64(resp.TransactionCount) * 100
	}
	return resp, nil
}

// TopProducts ranks the n highest-revenue products in [from, to).
// Ties break on product_id ascending, so rankings are deterministic.
func (s *Service) TopProducts(ctx context.Context, n int, from, to time.Time) (TopProductsResponse, error) {
	if n <= 0 {
		return TopProductsResponse{}, fmt.Errorf("%w: n must be positive, got %d", ErrInvalidQuery, n)
	}
	if err := validateRange(from, to, aggregation.GranularityHour); err != nil {
		return TopProductsResponse{}, err
	}

	products, err := s.products.TopProducts(ctx, n, from, to)
	if err != nil {
		return TopProductsResponse{}, fmt.Errorf("rank products: %w", err)
	}
	if products == nil {
		products = []storage.ProductRevenue{}
	}

	return TopProductsResponse{From: from, To: to, N: n, Products: products}, nil
}

// RevenueTrend returns the most recent count buckets at the given
// granularity, chronological, including the still-open current bucket.
// Buckets with no data are emitted zero-valued so trend consumers always get
// exactly count points.
func (s *Service) RevenueTrend(ctx context.Context, gran aggregation.Granularity, count int) (RevenueTrendResponse, error) {
	if count <= 0 || count > maxTrendCount {
		return RevenueTrendResponse{}, fmt.Errorf("%w: count must be in 1..%d, got %d", ErrInvalidQuery, maxTrendCount, count)
	}
	width, ok := gran.Duration()
	if !ok {
		return RevenueTrendResponse{}, fmt.Errorf("%w: granularity %q has no trend", ErrInvalidQuery, gran)
	}

	latest := gran.BucketStart(s.clock())
	resp := RevenueTrendResponse{
		Granularity: string(gran),
		Count:       count,
		Values:      make([]TrendPoint, 0, count),
	}

	for i := count - 1; i >= 0; i-- {
		start := latest.Add(-time.Duration(i) * width)
		bucket, err := s.buckets.GetBucket(ctx, aggregation.BucketKey{
			Dimension:   aggregation.DimensionGlobal,
			Granularity: gran,
			BucketStart: start,
		})
		if err != nil {
			return RevenueTrendResponse{}, fmt.Errorf("read trend bucket: %w", err)
		}
		resp.Values = append(resp.Values, TrendPoint{
			WindowStart:      start,
			WindowEnd:        start.Add(width),
			TransactionCount: bucket.TransactionCount,
			CompletedCount:   bucket.CompletedCount,
			Revenue:          bucket.RevenueSum,
		})
	}

	return resp, nil
}

// SalesByCategory totals counts and revenue per category over [from, to),
// revenue descending with category ascending tie-break. When category is
// non-empty the response also carries that category's hour-bucket series, so
// a dashboard can drill from the ranking into the shape of one category.
func (s *Service) SalesByCategory(ctx context.Context, category string, from, to time.Time) (SalesByCategoryResponse, error) {
	if err := validateRange(from, to, aggregation.GranularityHour); err != nil {
		return SalesByCategoryResponse{}, err
	}

	categories, err := s.categories.SalesByCategory(ctx, from, to)
	if err != nil {
		return SalesByCategoryResponse{}, fmt.Errorf("read category sales: %w", err)
	}
	if categories == nil {
		categories = []storage.CategorySales{}
	}

	resp := SalesByCategoryResponse{From: from, To: to, Categories: categories}
	if category != "" {
		buckets, err := s.categories.Read(ctx, aggregation.DimensionCategory, category, aggregation.GranularityHour, from, to)
		if err != nil {
			return SalesByCategoryResponse{}, fmt.Errorf("read category buckets: %w", err)
		}
		resp.Category = category
		resp.Buckets = buckets
	}
	return resp, nil
}

// CustomerLifetimeValue reads the customer's all-time bucket through the
// cache. Unknown customers are a valid zero state, not an error.
func (s *Service) CustomerLifetimeValue(ctx context.Context, customerID string) (LifetimeValueResponse, error) {
	if customerID == "" {
		return LifetimeValueResponse{}, fmt.Errorf("%w: customer_id is required", ErrInvalidQuery)
	}

	bucket, err := s.buckets.GetBucket(ctx, aggregation.BucketKey{
		Dimension:   aggregation.DimensionCustomer,
		Key:         customerID,
		Granularity: aggregation.GranularityAll,
	})
	if err != nil {
		return LifetimeValueResponse{}, fmt.Errorf("read lifetime bucket: %w", err)
	}

	return LifetimeValueResponse{
		CustomerID:    customerID,
		LifetimeValue: bucket.RevenueSum,
	}, nil
}

func validateRange(from, to time.Time, gran aggregation.Granularity) error {
	if from.IsZero() || to.IsZero() {
		return fmt.Errorf("%w: from and to are required", ErrInvalidQuery)
	}
	if !from.Before(to) {
		return fmt.Errorf("%w: from %s must precede to %s", ErrInvalidQuery, from, to)
	}
	width, _ := gran.Duration()
	if to.Sub(from) > time.Duration(maxRangeBuckets)*width {
		return fmt.Errorf("%w: range spans more than %d buckets", ErrInvalidQuery, maxRangeBuckets)
	}
	return nil
}
