package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"crmtriage/internal/logging"
	"crmtriage/internal/models"
)

// EventHandler processes one change event
type EventHandler func(ctx context.Context, event *models.ChangeEvent) error

// errMalformed marks deliveries that can never be processed
var errMalformed = errors.New("malformed delivery")

// Consumer consumes change events from a RabbitMQ queue
type Consumer struct {
	conn      *Connection
	queueName string
	handler   EventHandler
	prefetch  int
	logger    zerolog.Logger
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewConsumer creates a new consumer instance
func NewConsumer(conn *Connection, queueName string, prefetch int, handler EventHandler) (*Consumer, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}
	if prefetch <= 0 {
		prefetch = 1
	}

	// Get channel from connection
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	// Declare queue (same settings as publisher)
	if err := declareQueue(ch, queueName); err != nil {
		return nil, err
	}

	return &Consumer{
		conn:      conn,
		queueName: queueName,
		handler:   handler,
		prefetch:  prefetch,
		logger:    logging.Component("consumer").With().Str("queue", queueName).Logger(),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}, nil
}

// Start starts consuming events from the queue
func (c *Consumer) Start(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	// Set QoS so at most prefetch events are unacked at once
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	// Start consuming
	msgs, err := ch.Consume(
		c.queueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (manual acknowledgement)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	// Process deliveries one at a time, in queue order
	go func() {
		defer close(c.doneChan)

		for {
			select {
			case <-c.stopChan:
				c.logger.Info().Msg("consumer stopping")
				return
			case <-ctx.Done():
				c.logger.Info().Msg("consumer context done")
				return
			case d, ok := <-msgs:
				if !ok {
					c.logger.Warn().Msg("delivery channel closed")
					return
				}
				c.settle(d, c.processDelivery(ctx, d))
			}
		}
	}()

	c.logger.Info().Int("prefetch", c.prefetch).Msg("consumer started")
	return nil
}

// Done is closed when the consume loop has exited
func (c *Consumer) Done() <-chan struct{} {
	return c.doneChan
}

// Stop stops consuming events gracefully
func (c *Consumer) Stop() error {
	// Signal the loop once, then wait for it to exit
	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
	}
	<-c.doneChan

	c.logger.Info().Msg("consumer stopped")
	return nil
}

// Acknowledger is the subset of amqp.Delivery used to settle a delivery
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// settle acks successful deliveries. Failed deliveries are requeued once;
// malformed ones and second failures are dropped.
func (c *Consumer) settle(d amqp.Delivery, err error) {
	settleDelivery(c.logger, d, d.Redelivered, d.MessageId, err)
}

func settleDelivery(logger zerolog.Logger, ack Acknowledger, redelivered bool, id string, err error) {
	if err == nil {
		if ackErr := ack.Ack(false); ackErr != nil {
			logger.Error().Err(ackErr).Str("event_id", id).Msg("failed to ack delivery")
		}
		return
	}

	// Requeue for one retry
	requeue := !redelivered && !errors.Is(err, errMalformed)
	logger.Error().Err(err).Str("event_id", id).Bool("requeue", requeue).Msg("failed to process delivery")
	if nackErr := ack.Nack(false, requeue); nackErr != nil {
		logger.Error().Err(nackErr).Str("event_id", id).Msg("failed to nack delivery")
	}
}

func (c *Consumer) processDelivery(ctx context.Context, d amqp.Delivery) error {
	// Parse JSON body into a ChangeEvent
	event, err := DecodeEvent(d.Body)
	if err != nil {
		return err
	}
	if err := c.handler(ctx, event); err != nil {
		return fmt.Errorf("handler failed: %w", err)
	}
	return nil
}

// DecodeEvent parses a delivery body into a change event
func DecodeEvent(body []byte) (*models.ChangeEvent, error) {
	var event models.ChangeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if event.BoardID == "" || event.MessageID == "" {
		return nil, fmt.Errorf("%w: event without board or message id", errMalformed)
	}
	return &event, nil
}
