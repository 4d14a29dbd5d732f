package ingest

import (
	"context"
	"errors"
)

// ErrSourceClosed is returned by Source.Next once the source will never
// deliver again.
var ErrSourceClosed = errors.New("event source closed")

// Message is one at-least-once delivery from the event source. The same
// logical transaction may arrive in any number of messages; the ingestion
// ledger makes reprocessing safe.
type Message interface {
	// Payload is the raw JSON-encoded transaction.
	Payload() []byte

	// Ack marks the message fully processed. The source must not redeliver
	// it. Called only once the state machine reaches ACKNOWLEDGED.
	Ack()

	// Nack signals a transient failure. The source redelivers the message
	// later. Called on storage failures, never on validation failures.
	Nack()
}

// Source is the consumer boundary to the event broker. Implementations
// deliver messages in partition order, at least once.
type Source interface {
	// Next blocks until a message is available, ctx is done, or the source
	// is closed (ErrSourceClosed).
	Next(ctx context.Context) (Message, error)
}

// DeadLetter receives payloads that failed validation, with the reason.
// Dead-lettered payloads are acknowledged and never retried.
type DeadLetter interface {
	Send(ctx context.Context, payload []byte, reason string) error
}
