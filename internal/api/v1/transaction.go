package v1

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Payment methods accepted by the pipeline.
const (
	PaymentCreditCard = "credit_card"
	PaymentPaypal     = "paypal"
	PaymentDebitCard  = "debit_card"
	PaymentCrypto     = "crypto"
)

// Transaction statuses. Only StatusCompleted contributes to revenue sums;
// every status contributes to transaction counts (conversion denominator).
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

// AmountTolerance is the maximum accepted drift between total_amount and
// unit_price * quantity. Upstream producers round to cents, so anything
// beyond one cent is a malformed record, not rounding.
var AmountTolerance = decimal.New(1, -2) // 0.01

// Transaction is the atomic unit of the pipeline: one sales event as emitted
// by the upstream source. Immutable once ingested.
type Transaction struct {
	// TransactionID is the globally unique identifier assigned by the source.
	// It is the primary idempotency key: redelivered copies of the same
	// transaction must not be counted twice.
	TransactionID string `json:"transaction_id"`

	// Timestamp is when the sale happened (source-assigned clock).
	// May arrive out of order relative to broker delivery.
	Timestamp time.Time `json:"timestamp"`

	// CustomerID and ProductID are weak references: never dereferenced for
	// correctness, only looked up for enrichment (e.g. product category).
	CustomerID string `json:"customer_id"`
	ProductID  string `json:"product_id"`

	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`

	// TotalAmount must equal round(unit_price * quantity, 2) within
	// AmountTolerance.
	TotalAmount decimal.Decimal `json:"total_amount"`

	PaymentMethod string `json:"payment_method"`
	Status        string `json:"status"`
}

// Completed reports whether this transaction counts toward revenue.
func (t *Transaction) Completed() bool {
	return t.Status == StatusCompleted
}

var validPaymentMethods = map[string]bool{
	PaymentCreditCard: true,
	PaymentPaypal:     true,
	PaymentDebitCard:  true,
	PaymentCrypto:     true,
}

var validStatuses = map[string]bool{
	StatusCompleted: true,
	StatusPending:   true,
	StatusFailed:    true,
}

// Validate ensures the transaction has all required fields and that the
// monetary invariant holds. A validation error means the record is
// structurally bad and must be dead-lettered, never retried.
func (t *Transaction) Validate() error {
	if t.TransactionID == "" {
		return fmt.Errorf("transaction_id is required")
	}

	if t.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	if t.CustomerID == "" {
		return fmt.Errorf("customer_id is required")
	}

	if t.ProductID == "" {
		return fmt.Errorf("product_id is required")
	}

	if t.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", t.Quantity)
	}

	if t.UnitPrice.IsNegative() {
		return fmt.Errorf("unit_price must not be negative, got %s", t.UnitPrice)
	}

	if t.TotalAmount.IsNegative() {
		return fmt.Errorf("total_amount must not be negative, got %s", t.TotalAmount)
	}

	if !validPaymentMethods[t.PaymentMethod] {
		return fmt.Errorf("unknown payment_method %q", t.PaymentMethod)
	}

	if !validStatuses[t.Status] {
		return fmt.Errorf("unknown status %q", t.Status)
	}

	expected := t.UnitPrice.Mul(decimal.NewFromInt(t.Quantity)).Round(2)
	if t.TotalAmount.Sub(expected).Abs().GreaterThan(AmountTolerance) {
		return fmt.Errorf("total_amount %s does not match unit_price %s * quantity %d (expected %s)",
			t.TotalAmount, t.UnitPrice, t.Quantity, expected)
	}

	return nil
}

// ParseTransaction decodes and validates a raw JSON payload from the event
// stream. This is the single parse step that turns untyped broker bytes into
// a trusted Transaction: anything that fails here goes to the dead-letter
// sink with the returned error as the reason.
func ParseTransaction(payload []byte) (*Transaction, error) {
	var txn Transaction
	if err := json.Unmarshal(payload, &txn); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}
	if err := txn.Validate(); err != nil {
		return nil, err
	}
	return &txn, nil
}
