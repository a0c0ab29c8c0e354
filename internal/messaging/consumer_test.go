package messaging_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/serroba/admission-go/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type mockSubscriber struct {
	msgChan      chan *message.Message
	subscribeErr error
	mu           sync.Mutex
	closed       bool
}

func newMockSubscriber() *mockSubscriber {
	return &mockSubscriber{
		msgChan: make(chan *message.Message, 10),
	}
}

func (m *mockSubscriber) Subscribe(_ context.Context, _ string) (<-chan *message.Message, error) {
	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}

	return m.msgChan, nil
}

func (m *mockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.msgChan)
	}

	return nil
}

func noopHandler(context.Context, *testEvent) error { return nil }

func TestConsumer_Start(t *testing.T) {
	t.Run("starts successfully", func(t *testing.T) {
		consumer := messaging.NewConsumer(newMockSubscriber(), "test.start", noopHandler, zap.NewNop())

		require.NoError(t, consumer.Start(context.Background()))
		assert.Equal(t, "test.start", consumer.Topic())
		assert.NoError(t, consumer.Shutdown())
	})

	t.Run("wraps subscribe errors", func(t *testing.T) {
		errSubscribe := errors.New("subscribe error")
		sub := &mockSubscriber{subscribeErr: errSubscribe}
		consumer := messaging.NewConsumer(sub, "test.start", noopHandler, zap.NewNop())

		err := consumer.Start(context.Background())

		require.ErrorIs(t, err, errSubscribe)
		assert.Contains(t, err.Error(), "test.start")
		assert.NoError(t, consumer.Shutdown(), "shutdown after failed start must not block")
	})

	t.Run("stops when the subscription closes", func(t *testing.T) {
		sub := newMockSubscriber()
		consumer := messaging.NewConsumer(sub, "test.start", noopHandler, zap.NewNop())

		require.NoError(t, consumer.Start(context.Background()))
		require.NoError(t, sub.Close())

		done := make(chan struct{})

		go func() {
			_ = consumer.Shutdown()

			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("shutdown blocked after subscription closed")
		}
	})
}

func TestConsumer_Settle(t *testing.T) {
	valid, err := json.Marshal(testEvent{ID: "123", Name: "test"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		topic      string
		payload    []byte
		handlerErr error
		wantAck    bool
		wantResult string
	}{
		{
			name:       "acks handled events",
			topic:      "test.settle.ok",
			payload:    valid,
			wantAck:    true,
			wantResult: "processed",
		},
		{
			name:       "drops undecodable payloads",
			topic:      "test.settle.poison",
			payload:    []byte("invalid json"),
			wantAck:    true,
			wantResult: "dropped",
		},
		{
			name:       "nacks handler failures",
			topic:      "test.settle.retry",
			payload:    valid,
			handlerErr: errors.New("handler error"),
			wantAck:    false,
			wantResult: "retried",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := newMockSubscriber()

			var (
				mu       sync.Mutex
				received *testEvent
			)

			consumer := messaging.NewConsumer(sub, tt.topic, func(_ context.Context, e *testEvent) error {
				mu.Lock()
				received = e
				mu.Unlock()

				return tt.handlerErr
			}, zap.NewNop())

			require.NoError(t, consumer.Start(context.Background()))
			t.Cleanup(func() { _ = consumer.Shutdown() })

			msg := message.NewMessage(uuid.NewString(), tt.payload)
			sub.msgChan <- msg

			select {
			case <-msg.Acked():
				assert.True(t, tt.wantAck, "message should have been nacked")
			case <-msg.Nacked():
				assert.False(t, tt.wantAck, "message should have been acked")
			case <-time.After(time.Second):
				t.Fatal("timeout waiting for message to settle")
			}

			counter := messaging.EventsConsumed.WithLabelValues(tt.topic, tt.wantResult)
			assert.Eventually(t, func() bool { return testutil.ToFloat64(counter) == 1 }, time.Second, 5*time.Millisecond)

			if tt.wantResult != "dropped" {
				mu.Lock()
				defer mu.Unlock()

				require.NotNil(t, received)
				assert.Equal(t, "123", received.ID)
			}
		})
	}
}
