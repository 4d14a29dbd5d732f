package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueue_PublishAndNext(t *testing.T) {
	q := NewQueue(4)
	defer q.Close()

	require.NoError(t, q.Publish([]byte(`{"a":1}`)))
	require.Equal(t, 1, q.Len())

	msg, err := q.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte(`{"a":1}`), msg.Payload())
	require.Equal(t, 0, q.Len())
}

func TestQueue_PublishFullBuffer(t *testing.T) {
	q := NewQueue(2)
	defer q.Close()

	require.NoError(t, q.Publish([]byte("1")))
	require.NoError(t, q.Publish([]byte("2")))
	require.ErrorIs(t, q.Publish([]byte("3")), ErrQueueFull)
}

func TestQueue_NextHonoursContext(t *testing.T) {
	q := NewQueue(4)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_CloseStopsDelivery(t *testing.T) {
	q := NewQueue(4)
	q.Close()
	q.Close() // idempotent

	require.ErrorIs(t, q.Publish([]byte("x")), ErrSourceClosed)

	_, err := q.Next(context.Background())
	require.ErrorIs(t, err, ErrSourceClosed)
}

func TestQueue_NackRedelivers(t *testing.T) {
	q := NewQueue(4)
	defer q.Close()

	require.NoError(t, q.Publish([]byte("retry-me")))

	msg, err := q.Next(context.Background())
	require.NoError(t, err)
	msg.Nack()

	redelivered, err := q.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("retry-me"), redelivered.Payload())
}

func TestQueue_NackDelaysRedelivery(t *testing.T) {
	q := NewQueue(4)
	defer q.Close()
	q.redeliveryDelay = 60 * time.Millisecond

	require.NoError(t, q.Publish([]byte("retry-me")))

	msg, err := q.Next(context.Background())
	require.NoError(t, err)
	msg.Nack()

	// The message must not come back immediately, so a persistently failing
	// payload cannot spin the consumer in a hot loop.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	_, err = q.Next(ctx)
	cancel()
	require.ErrorIs(t, err, context.DeadlineExceeded)

	ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	redelivered, err := q.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("retry-me"), redelivered.Payload())
}

func TestQueue_AckForgets(t *testing.T) {
	q := NewQueue(4)
	defer q.Close()

	require.NoError(t, q.Publish([]byte("once")))

	msg, err := q.Next(context.Background())
	require.NoError(t, err)
	msg.Ack()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = q.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_NackOnFullBufferDoesNotBlockConsumer(t *testing.T) {
	q := NewQueue(1)
	defer q.Close()

	require.NoError(t, q.Publish([]byte("a")))
	msg, err := q.Next(context.Background())
	require.NoError(t, err)

	// Fill the buffer so the nack cannot requeue inline.
	require.NoError(t, q.Publish([]byte("b")))

	done := make(chan struct{})
	go func() {
		msg.Nack()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Nack blocked the consumer")
	}

	// Drain: both payloads must eventually be delivered.
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		m, err := q.Next(ctx)
		cancel()
		require.NoError(t, err)
		seen[string(m.Payload())] = true
	}
	require.True(t, seen["a"])
	require.True(t, seen["b"])
}
