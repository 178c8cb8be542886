// Package statistics mirrors domain events to the statistics message broker.
package statistics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/pkg/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher errors.
var (
	ErrChannelRequired        = errors.New("amqp channel is required")
	ErrConfirmModeUnavailable = errors.New("channel does not support confirm mode")
	ErrPublishNacked          = errors.New("message was nacked by broker")
	ErrConfirmTimeout         = errors.New("confirmation timed out")
)

const (
	defaultConfirmTimeout = 5 * time.Second

	// confirmChannelBuffer should cover the max unconfirmed messages in
	// flight so notifications never block the broker goroutine.
	confirmChannelBuffer = 256
)

// Channel is the subset of amqp channel operations the publisher needs.
type Channel interface {
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes events to the statistics exchange with publisher
// confirms, so a broker that drops the message surfaces as a dispatch
// failure and the record is retried.
type Publisher struct {
	ch             Channel
	confirms       chan amqp.Confirmation
	exchange       string
	confirmTimeout time.Duration
	logger         log.Logger

	// publishMu serializes publishes so each confirmation can be matched to
	// its message on a single confirm stream.
	publishMu sync.Mutex
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithConfirmTimeout sets how long to wait for broker confirmation.
func WithConfirmTimeout(timeout time.Duration) Option {
	return func(publisher *Publisher) {
		if timeout > 0 {
			publisher.confirmTimeout = timeout
		}
	}
}

// WithLogger sets a structured logger for the publisher.
func WithLogger(logger log.Logger) Option {
	return func(publisher *Publisher) {
		if logger != nil {
			publisher.logger = logger
		}
	}
}

// NewPublisher enables confirm mode on the channel and builds a publisher
// bound to the given exchange.
func NewPublisher(ch Channel, exchange string, opts ...Option) (*Publisher, error) {
	if ch == nil {
		return nil, ErrChannelRequired
	}

	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfirmModeUnavailable, err)
	}

	confirms := make(chan amqp.Confirmation, confirmChannelBuffer)
	ch.NotifyPublish(confirms)

	publisher := &Publisher{
		ch:             ch,
		confirms:       confirms,
		exchange:       exchange,
		confirmTimeout: defaultConfirmTimeout,
		logger:         log.NewNop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(publisher)
		}
	}

	return publisher, nil
}

// Dispatch publishes the event to the statistics exchange, routed by event
// kind, and waits for the broker to confirm it.
func (publisher *Publisher) Dispatch(ctx context.Context, event *domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: encode statistics message: %s", domain.ErrServer, err)
	}

	publisher.publishMu.Lock()
	defer publisher.publishMu.Unlock()

	err = publisher.ch.PublishWithContext(ctx, publisher.exchange, string(event.Kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.Timestamp,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: publish statistics message: %s", domain.ErrUnableToNotify, err)
	}

	if err := publisher.waitConfirm(ctx); err != nil {
		return err
	}

	publisher.logger.Log(ctx, log.LevelDebug, "statistics event published",
		log.String("event_id", event.ID.String()),
		log.String("kind", string(event.Kind)),
	)

	return nil
}

func (publisher *Publisher) waitConfirm(ctx context.Context) error {
	timer := time.NewTimer(publisher.confirmTimeout)
	defer timer.Stop()

	select {
	case confirmation, ok := <-publisher.confirms:
		if !ok {
			return fmt.Errorf("%w: confirm channel closed", domain.ErrUnableToNotify)
		}

		if !confirmation.Ack {
			return fmt.Errorf("%w: %s", domain.ErrUnableToNotify, ErrPublishNacked)
		}

		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %s", domain.ErrUnableToNotify, ErrConfirmTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %s", domain.ErrUnableToNotify, ctx.Err())
	}
}

// Close releases the underlying channel.
func (publisher *Publisher) Close() error {
	return publisher.ch.Close()
}
