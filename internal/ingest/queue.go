package ingest

import (
	"context"
	"errors"
	"time"
)

// ErrQueueFull is returned by Publish when the queue buffer is saturated.
// Producers should back off; consumption speed is the back-pressure signal.
var ErrQueueFull = errors.New("ingest queue full")

// defaultRedeliveryDelay spaces out nack redeliveries. Without it a
// persistent storage failure spins the consumer in a hot consume/nack loop.
const defaultRedeliveryDelay = 100 * time.Millisecond

// Queue is an in-process, at-least-once event source: the broker stand-in
// for single-node deployments and tests. Publish feeds it from the HTTP edge
// or the synthetic generator; Nack requeues a message for redelivery.
type Queue struct {
	ch   chan *queueMessage
	done chan struct{}

	redeliveryDelay time.Duration
}

// NewQueue creates a queue with the given buffer capacity.
func NewQueue(buffer int) *Queue {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Queue{
		ch:              make(chan *queueMessage, buffer),
		done:            make(chan struct{}),
		redeliveryDelay: defaultRedeliveryDelay,
	}
}

// Publish enqueues a raw payload for delivery. Returns ErrQueueFull when the
// buffer is saturated and ErrSourceClosed after Close.
func (q *Queue) Publish(payload []byte) error {
	select {
	case <-q.done:
		return ErrSourceClosed
	default:
	}

	select {
	case q.ch <- &queueMessage{payload: payload, q: q}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Next blocks until a message is available, ctx is done, or the queue is
// closed.
func (q *Queue) Next(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		return nil, ErrSourceClosed
	case msg := <-q.ch:
		return msg, nil
	}
}

// Close stops delivery. Buffered messages are dropped — the in-process queue
// offers at-least-once only while the process lives.
func (q *Queue) Close() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}

// Len reports the number of buffered messages.
func (q *Queue) Len() int {
	return len(q.ch)
}

type queueMessage struct {
	payload []byte
	q       *Queue
}

func (m *queueMessage) Payload() []byte { return m.payload }

// Ack is a no-op: the queue forgets a message the moment it is delivered,
// so not redelivering is the default.
func (m *queueMessage) Ack() {}

// Nack requeues the payload for redelivery after the queue's redelivery
// delay, so a failing message cannot spin the consumer. The requeue runs in
// a goroutine so a consumer never deadlocks on its own redelivery.
func (m *queueMessage) Nack() {
	redelivered := &queueMessage{payload: m.payload, q: m.q}
	go func() {
		timer := time.NewTimer(m.q.redeliveryDelay)
		defer timer.Stop()
		select {
		case <-m.q.done:
			return
		case <-timer.C:
		}
		select {
		case <-m.q.done:
		case m.q.ch <- redelivered:
		}
	}()
}
