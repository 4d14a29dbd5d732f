package query

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/salestream-lab/salestream/internal/core/aggregation"
	"github.com/salestream-lab/salestream/internal/core/storage"
)

// ConversionRateResponse reports the completed share of all transactions in
// a time range, as a percentage.
type ConversionRateResponse struct {
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	TransactionCount int64     `json:"transaction_count"`
	CompletedCount   int64     `json:"completed_count"`
	ConversionRate   float64   `json:"conversion_rate"`
}

// TopProductsResponse ranks products by revenue over a time range.
type TopProductsResponse struct {
	From     time.Time                `json:"from"`
	To       time.Time                `json:"to"`
	N        int                      `json:"n"`
	Products []storage.ProductRevenue `json:"products"`
}

// SalesByCategoryResponse totals per-category sales over a time range.
// Category and Buckets are populated only when a single category's
// hour-by-hour series was requested alongside the ranking.
type SalesByCategoryResponse struct {
	From       time.Time               `json:"from"`
	To         time.Time               `json:"to"`
	Categories []storage.CategorySales `json:"categories"`
	Category   string                  `json:"category,omitempty"`
	Buckets    []aggregation.Bucket    `json:"buckets,omitempty"`
}

// TrendPoint is one bucket of a revenue trend.
type TrendPoint struct {
	WindowStart      time.Time       `json:"window_start"`
	WindowEnd        time.Time       `json:"window_end"`
	TransactionCount int64           `json:"transaction_count"`
	CompletedCount   int64           `json:"completed_count"`
	Revenue          decimal.Decimal `json:"revenue"`
}

// RevenueTrendResponse is the most recent count buckets at one granularity,
// chronological. Buckets without data are present and zero-valued.
type RevenueTrendResponse struct {
	Granularity string       `json:"granularity"`
	Count       int          `json:"count"`
	Values      []TrendPoint `json:"values"`
}

// LifetimeValueResponse is the all-time completed revenue of one customer.
type LifetimeValueResponse struct {
	CustomerID    string          `json:"customer_id"`
	LifetimeValue decimal.Decimal `json:"lifetime_value"`
}
