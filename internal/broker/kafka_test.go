package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
}

func (r *memReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *memReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *memReader) Config() kafka.ReaderConfig {
	return kafka.ReaderConfig{Topic: "store-events", GroupID: "test"}
}

func (r *memReader) Close() error { return nil }

func (r *memReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumerCommitsHandledMessages(t *testing.T) {
	reader := &memReader{pending: []kafka.Message{{Offset: 1}, {Offset: 2}}}
	consumer := NewConsumerWithReader(reader)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.StartConsuming(ctx, func(context.Context, kafka.Message) error { return nil }) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []int64{1, 2}, reader.commits())
}

func TestConsumerStopsOnFailingMessage(t *testing.T) {
	reader := &memReader{pending: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}
	consumer := NewConsumerWithReader(reader)

	calls := map[int64]int{}
	err := consumer.StartConsuming(context.Background(), func(_ context.Context, msg kafka.Message) error {
		calls[msg.Offset]++
		if msg.Offset == 2 {
			return errors.New("archive down")
		}
		return nil
	})

	require.Error(t, err)
	assert.ErrorContains(t, err, "archive down")
	assert.Equal(t, handleAttempts, calls[2])
	assert.Zero(t, calls[3], "messages after the failing one are not consumed")
	assert.Equal(t, []int64{1}, reader.commits())
}

func TestConsumerRetriesTransientFailure(t *testing.T) {
	reader := &memReader{pending: []kafka.Message{{Offset: 7}}}
	consumer := NewConsumerWithReader(reader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- consumer.StartConsuming(ctx, func(context.Context, kafka.Message) error {
			attempts++
			if attempts < 2 {
				return errors.New("flaky")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(reader.commits()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, 2, attempts)
}
