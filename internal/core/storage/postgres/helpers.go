package postgres

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/salestream-lab/salestream/internal/core/aggregation"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanBucketRow scans a database row into a Bucket.
// revenue_sum is scanned as text and parsed into a decimal — NUMERIC must
// never round-trip through float64.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanBucketRow(row scanner) (aggregation.Bucket, error) {
	var bucket aggregation.Bucket
	var revenueStr string

	err := row.Scan(
		&bucket.WindowStart,
		&bucket.TransactionCount,
		&bucket.CompletedCount,
		&revenueStr,
		&bucket.LastUpdated,
	)
	if err != nil {
		return aggregation.Bucket{}, err
	}

	revenue, err := decimal.NewFromString(revenueStr)
	if err != nil {
		return aggregation.Bucket{}, fmt.Errorf("parse revenue_sum %q: %w", revenueStr, err)
	}
	bucket.RevenueSum = revenue

	return bucket, nil
}
