package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DeadLetterEnvelope wraps a rejected payload with its rejection context.
type DeadLetterEnvelope struct {
	ID         string          `json:"id"`
	Reason     string          `json:"reason"`
	Payload    json.RawMessage `json:"payload"`
	RejectedAt time.Time       `json:"rejected_at"`
}

// QueueDeadLetter publishes rejected payloads, enveloped with a reason, to
// another queue — the dead-letter topic stand-in. Downstream tooling can
// drain it for inspection.
type QueueDeadLetter struct {
	queue *Queue
}

// NewQueueDeadLetter creates a dead-letter sink over the given queue.
func NewQueueDeadLetter(q *Queue) *QueueDeadLetter {
	return &QueueDeadLetter{queue: q}
}

func (d *QueueDeadLetter) Send(_ context.Context, payload []byte, reason string) error {
	if !json.Valid(payload) {
		// Keep unparseable bytes readable inside the JSON envelope.
		quoted, err := json.Marshal(string(payload))
		if err != nil {
			return fmt.Errorf("dead-letter: encode payload: %w", err)
		}
		payload = quoted
	}

	envelope := DeadLetterEnvelope{
		ID:         uuid.NewString(),
		Reason:     reason,
		Payload:    payload,
		RejectedAt: time.Now().UTC(),
	}

	encoded, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("dead-letter: encode envelope: %w", err)
	}
	if err := d.queue.Publish(encoded); err != nil {
		return fmt.Errorf("dead-letter: publish: %w", err)
	}
	return nil
}

// LogDeadLetter logs rejected payloads instead of routing them anywhere.
// The fallback sink when no dead-letter queue is configured.
type LogDeadLetter struct{}

func (LogDeadLetter) Send(_ context.Context, payload []byte, reason string) error {
	slog.Warn("Dead-lettered payload",
		"reason", reason,
		"payload_size", len(payload))
	return nil
}
