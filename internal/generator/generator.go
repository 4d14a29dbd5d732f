package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	v1 "github.com/salestream-lab/salestream/internal/api/v1"
	"github.com/salestream-lab/salestream/internal/catalog"
)

var paymentMethods = []string{
	v1.PaymentCreditCard,
	v1.PaymentPaypal,
	v1.PaymentDebitCard,
	v1.PaymentCrypto,
}

var statuses = []string{
	v1.StatusCompleted,
	v1.StatusPending,
	v1.StatusFailed,
}

// Sink receives generated payloads, typically the in-process queue.
type Sink interface {
	Publish(payload []byte) error
}

// Generator emits synthetic sales transactions for demos and load testing.
// Prices come from the product catalog so generated records satisfy the
// total_amount invariant exactly.
type Generator struct {
	products  []catalog.Product
	customers []string
	rng       *rand.Rand
}

// New creates a generator over the catalog's products and n synthetic
// customers. Deterministic for a given seed.
func New(cat *catalog.Catalog, customers int, seed int64) *Generator {
	if customers <= 0 {
		customers = 50
	}
	ids := make([]string, customers)
	for i := range ids {
		ids[i] = fmt.Sprintf("CUST%05d", i)
	}
	return &Generator{
		products:  cat.Products(),
		customers: ids,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Next produces one synthetic transaction. Returns false when the catalog is
// empty — there is nothing to sell.
func (g *Generator) Next(now time.Time) (*v1.Transaction, bool) {
	if len(g.products) == 0 {
		return nil, false
	}

	product := g.products[g.rng.Intn(len(g.products))]
	quantity := int64(g.rng.Intn(5) + 1)
	total := product.Price.Mul(decimal.NewFromInt(quantity)).Round(2)

	return &v1.Transaction{
		TransactionID: "TXN-" + uuid.NewString(),
		Timestamp:     now.UTC(),
		CustomerID:    g.customers[g.rng.Intn(len(g.customers))],
		ProductID:     product.ProductID,
		Quantity:      quantity,
		UnitPrice:     product.Price,
		TotalAmount:   total,
		PaymentMethod: paymentMethods[g.rng.Intn(len(paymentMethods))],
		Status:        statuses[g.rng.Intn(len(statuses))],
	}, true
}

// Run publishes one transaction per interval until ctx is cancelled.
func (g *Generator) Run(ctx context.Context, sink Sink, interval time.Duration) {
	if len(g.products) == 0 {
		slog.Warn("[Generator] Product catalog is empty, nothing to generate")
		return
	}
	if interval <= 0 {
		interval = time.Second
	}

	slog.Info("[Generator] Starting synthetic transaction stream",
		"interval", interval,
		"products", len(g.products),
		"customers", len(g.customers))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			txn, ok := g.Next(time.Now())
			if !ok {
				return
			}
			payload, err := json.Marshal(txn)
			if err != nil {
				slog.Error("[Generator] Failed to marshal transaction", "error", err)
				continue
			}
			if err := sink.Publish(payload); err != nil {
				slog.Warn("[Generator] Failed to publish transaction", "error", err)
			}
		case <-ctx.Done():
			slog.Info("[Generator] Stopping (context cancelled)")
			return
		}
	}
}
