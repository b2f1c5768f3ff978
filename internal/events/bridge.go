package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crmtriage/internal/models"
)

// EventPublisher sends change events to an external broker
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *models.ChangeEvent) error
}

// EventObserver records delivery outcomes
type EventObserver interface {
	ObserveEvent(board, eventType string, err error)
}

// ErrBridgeClosed is returned when enqueueing on a closed bridge
var ErrBridgeClosed = errors.New("queue bridge closed")

// QueueBridge forwards bus events to a broker from a single goroutine, so
// events reach the broker in publish order. Delivery failures are retried
// and then logged; they never fail the mutation that produced the event.
type QueueBridge struct {
	publisher EventPublisher
	observer  EventObserver
	logger    zerolog.Logger
	events    chan *models.ChangeEvent
	attempts  int
	backoff   time.Duration

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

// NewQueueBridge creates a bridge with a buffer of size events
func NewQueueBridge(publisher EventPublisher, observer EventObserver, size int, logger zerolog.Logger) *QueueBridge {
	if size <= 0 {
		size = 1
	}
	return &QueueBridge{
		publisher: publisher,
		observer:  observer,
		logger:    logger,
		events:    make(chan *models.ChangeEvent, size),
		attempts:  3,
		backoff:   200 * time.Millisecond,
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Handle is the bus handler. It blocks while the buffer is full.
func (q *QueueBridge) Handle(ctx context.Context, event *models.ChangeEvent) {
	if err := q.enqueue(ctx, event); err != nil {
		q.logger.Error().Err(err).
			Str("board", event.BoardID).
			Str("message_id", event.MessageID).
			Int("version", event.Version).
			Msg("change event dropped")
		q.observe(event, err)
	}
}

func (q *QueueBridge) enqueue(ctx context.Context, event *models.ChangeEvent) error {
	select {
	case <-q.closed:
		return ErrBridgeClosed
	default:
	}

	select {
	case q.events <- event:
		return nil
	case <-q.closed:
		return ErrBridgeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run forwards events until ctx is cancelled or Close is called. Events
// already buffered are flushed before Run returns.
func (q *QueueBridge) Run(ctx context.Context) error {
	defer close(q.done)

	for {
		select {
		case event := <-q.events:
			q.forward(ctx, event)
		case <-q.closed:
			q.flush(ctx)
			return nil
		case <-ctx.Done():
			q.flush(context.WithoutCancel(ctx))
			return nil
		}
	}
}

// Close stops accepting events and waits for Run to flush the buffer
func (q *QueueBridge) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
	<-q.done
}

func (q *QueueBridge) flush(ctx context.Context) {
	for {
		select {
		case event := <-q.events:
			q.forward(ctx, event)
		default:
			return
		}
	}
}

func (q *QueueBridge) forward(ctx context.Context, event *models.ChangeEvent) {
	var err error
	for attempt := 1; attempt <= q.attempts; attempt++ {
		if err = q.publisher.PublishEvent(ctx, event); err == nil {
			break
		}
		q.logger.Warn().Err(err).
			Int("attempt", attempt).
			Str("message_id", event.MessageID).
			Msg("failed to publish change event")
		if attempt < q.attempts {
			select {
			case <-time.After(q.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				attempt = q.attempts
			}
		}
	}
	if err != nil {
		q.logger.Error().Err(err).
			Str("board", event.BoardID).
			Str("message_id", event.MessageID).
			Int("version", event.Version).
			Msg("change event not delivered")
	}
	q.observe(event, err)
}

func (q *QueueBridge) observe(event *models.ChangeEvent, err error) {
	if q.observer != nil {
		q.observer.ObserveEvent(event.BoardID, string(event.Type), err)
	}
}
