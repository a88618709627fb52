package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"ms-reservation/internal/config"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func testTopics() config.TopicConfig {
	return config.TopicConfig{
		OrderCreated:   "orders.created",
		OrderCancelled: "orders.cancelled",
		SeatStatus:     "seats.status",
	}
}

func TestProducerRoutesByTopic(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{Writer: w, Topics: testTopics(), Logger: logger.New(io.Discard)}
	ctx := context.Background()

	require.NoError(t, p.PublishOrderCreated(ctx, models.OrderEvent{OrderID: 5, EventID: 2, Status: models.OrderActive}))
	require.NoError(t, p.PublishOrderCancelled(ctx, models.OrderEvent{OrderID: 5, EventID: 2}))
	require.NoError(t, p.PublishSeatStatus(ctx, models.NewSeatStatusChangeEvent("node-a", 2, 5, []int64{7, 8}, true)))

	require.Len(t, w.msgs, 3)
	assert.Equal(t, "orders.created", w.msgs[0].Topic)
	assert.Equal(t, []byte("5"), w.msgs[0].Key)
	assert.Equal(t, "orders.cancelled", w.msgs[1].Topic)
	assert.Equal(t, "seats.status", w.msgs[2].Topic)
	assert.Equal(t, []byte("2"), w.msgs[2].Key)

	var evt models.SeatStatusChangeEvent
	require.NoError(t, json.Unmarshal(w.msgs[2].Value, &evt))
	assert.Equal(t, "node-a", evt.Origin)
	assert.Equal(t, []int64{7, 8}, evt.SeatIDs)
	assert.True(t, evt.Reserved)
}

func TestProducerWriteError(t *testing.T) {
	boom := errors.New("broker unavailable")
	p := &Producer{Writer: &recordingWriter{err: boom}, Topics: testTopics(), Logger: logger.New(io.Discard)}

	err := p.PublishOrderCreated(context.Background(), models.OrderEvent{OrderID: 1})
	assert.ErrorIs(t, err, boom)
}

type queueReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *queueReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *queueReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *queueReader) Close() error { return nil }

func TestConsumerDeliversAndCommits(t *testing.T) {
	good, err := json.Marshal(models.NewSeatStatusChangeEvent("node-b", 3, 9, []int64{1}, false))
	require.NoError(t, err)

	reader := &queueReader{queue: []kafka.Message{
		{Offset: 0, Value: good},
		{Offset: 1, Value: []byte("not json")},
		{Offset: 2, Value: good},
	}}
	c := NewConsumerWithReader(reader, "seats.status", logger.New(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu       sync.Mutex
		received []models.SeatStatusChangeEvent
	)
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, evt models.SeatStatusChangeEvent) error {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, evt)
			if len(received) == 2 {
				return errors.New("handler failed")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, int64(3), received[0].EventID)
	assert.False(t, received[0].Reserved)
	assert.Equal(t, []int64{0, 1, 2}, reader.committed)
}
