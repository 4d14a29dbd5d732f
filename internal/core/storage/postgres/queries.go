package postgres

// SQL queries for aggregate bucket storage and the ingestion ledger.

const (
	// queryInsertLedger claims a transaction_id for application.
	// ON CONFLICT DO NOTHING makes the claim an atomic check-and-insert:
	// when two workers race on the same redelivered transaction, exactly
	// one insert reports an affected row.
	queryInsertLedger = `
		INSERT INTO ingestion_ledger (transaction_id, applied_at)
		VALUES ($1, $2)
		ON CONFLICT (transaction_id) DO NOTHING
	`

	// queryUpsertBucket additively folds one delta into a bucket.
	// Counts and revenue are commutative sums, so upsert order across
	// transactions does not affect the final value.
	queryUpsertBucket = `
		INSERT INTO aggregate_buckets (
			dimension, dim_key, granularity, window_start,
			transaction_count, completed_count, revenue_sum, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (dimension, dim_key, granularity, window_start)
		DO UPDATE SET
			transaction_count = aggregate_buckets.transaction_count + EXCLUDED.transaction_count,
			completed_count   = aggregate_buckets.completed_count + EXCLUDED.completed_count,
			revenue_sum       = aggregate_buckets.revenue_sum + EXCLUDED.revenue_sum,
			last_updated      = EXCLUDED.last_updated
	`

	queryFetchBucket = `
		SELECT window_start, transaction_count, completed_count, revenue_sum, last_updated
		FROM aggregate_buckets
		WHERE dimension = $1 AND dim_key = $2 AND granularity = $3 AND window_start = $4
	`

	queryFetchBuckets = `
		SELECT window_start, transaction_count, completed_count, revenue_sum, last_updated
		FROM aggregate_buckets
		WHERE dimension = $1 AND dim_key = $2 AND granularity = $3
		  AND window_start >= $4 AND window_start < $5
		ORDER BY window_start ASC
	`

	// queryCustomerLifetimeValue sums revenue across every bucket of one
	// customer. COALESCE makes an unknown customer a zero, not a NULL.
	queryCustomerLifetimeValue = `
		SELECT COALESCE(SUM(revenue_sum), 0)
		FROM aggregate_buckets
		WHERE dimension = 'customer' AND dim_key = $1
	`

	// queryTopProducts ranks products by revenue over hour buckets in range.
	// dim_key ASC breaks revenue ties deterministically.
	queryTopProducts = `
		SELECT dim_key, SUM(revenue_sum) AS revenue, SUM(transaction_count) AS txn_count
		FROM aggregate_buckets
		WHERE dimension = 'product' AND granularity = '1h'
		  AND window_start >= $1 AND window_start < $2
		GROUP BY dim_key
		ORDER BY revenue DESC, dim_key ASC
		LIMIT $3
	`

	// queryCategorySales totals per-category sales over hour buckets in range.
	// dim_key ASC breaks revenue ties deterministically.
	queryCategorySales = `
		SELECT dim_key, SUM(transaction_count) AS txn_count,
		       SUM(completed_count) AS completed, SUM(revenue_sum) AS revenue
		FROM aggregate_buckets
		WHERE dimension = 'category' AND granularity = '1h'
		  AND window_start >= $1 AND window_start < $2
		GROUP BY dim_key
		ORDER BY revenue DESC, dim_key ASC
	`

	queryPruneLedger = `
		DELETE FROM ingestion_ledger
		WHERE applied_at < $1
	`
)
