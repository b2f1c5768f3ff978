package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmtriage/internal/models"
)

type mockEventPublisher struct {
	mu               sync.Mutex
	PublishEventFunc func(ctx context.Context, event *models.ChangeEvent) error
	Published        []string
	Calls            map[string]int
}

func (m *mockEventPublisher) PublishEvent(ctx context.Context, event *models.ChangeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls["PublishEvent"]++
	if m.PublishEventFunc != nil {
		if err := m.PublishEventFunc(ctx, event); err != nil {
			return err
		}
	}
	m.Published = append(m.Published, event.MessageID)
	return nil
}

type mockObserver struct {
	mu      sync.Mutex
	results []error
}

func (m *mockObserver) ObserveEvent(board, eventType string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, err)
}

func TestQueueBridge_ForwardsInOrder(t *testing.T) {
	pub := &mockEventPublisher{}
	obs := &mockObserver{}
	bridge := NewQueueBridge(pub, obs, 16, zerolog.Nop())

	go bridge.Run(context.Background())

	for _, id := range []string{"m1", "m2", "m3"} {
		bridge.Handle(context.Background(), &models.ChangeEvent{BoardID: "brand", MessageID: id})
	}
	bridge.Close()

	assert.Equal(t, []string{"m1", "m2", "m3"}, pub.Published)
	assert.Len(t, obs.results, 3)
}

func TestQueueBridge_RetriesThenGivesUp(t *testing.T) {
	pub := &mockEventPublisher{
		PublishEventFunc: func(ctx context.Context, event *models.ChangeEvent) error {
			return errors.New("broker down")
		},
	}
	obs := &mockObserver{}
	bridge := NewQueueBridge(pub, obs, 1, zerolog.Nop())
	bridge.backoff = time.Millisecond

	go bridge.Run(context.Background())
	bridge.Handle(context.Background(), &models.ChangeEvent{BoardID: "brand", MessageID: "m1"})
	bridge.Close()

	assert.Equal(t, 3, pub.Calls["PublishEvent"])
	require.Len(t, obs.results, 1)
	assert.Error(t, obs.results[0])
}

func TestQueueBridge_RecoversOnRetry(t *testing.T) {
	failures := 1
	pub := &mockEventPublisher{
		PublishEventFunc: func(ctx context.Context, event *models.ChangeEvent) error {
			if failures > 0 {
				failures--
				return errors.New("transient")
			}
			return nil
		},
	}
	bridge := NewQueueBridge(pub, nil, 1, zerolog.Nop())
	bridge.backoff = time.Millisecond

	go bridge.Run(context.Background())
	bridge.Handle(context.Background(), &models.ChangeEvent{MessageID: "m1"})
	bridge.Close()

	assert.Equal(t, 2, pub.Calls["PublishEvent"])
	assert.Equal(t, []string{"m1"}, pub.Published)
}

func TestQueueBridge_HandleAfterClose(t *testing.T) {
	pub := &mockEventPublisher{}
	obs := &mockObserver{}
	bridge := NewQueueBridge(pub, obs, 1, zerolog.Nop())

	go bridge.Run(context.Background())
	bridge.Close()
	bridge.Handle(context.Background(), &models.ChangeEvent{MessageID: "late"})

	assert.Empty(t, pub.Published)
	require.Len(t, obs.results, 1)
	assert.ErrorIs(t, obs.results[0], ErrBridgeClosed)
}
