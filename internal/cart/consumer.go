package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/go_checkout/internal/checkout"
	"github.com/fjod/go_checkout/pkg/logger"
	"github.com/segmentio/kafka-go"
)

const (
	consumerGroup   = "checkout-cart-cleaner"
	eventTypeHeader = "event_type"
	readBackoff     = time.Second
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type CartClearer interface {
	ClearCartUpdatedBefore(ctx context.Context, userID string, at time.Time) error
}

// CheckoutConsumer empties the user's cart once a checkout completed. The order
// step already clears it inline; this catches the runs where that call failed.
// A cart written to after the checkout completed belongs to a new purchase and is kept.
type CheckoutConsumer struct {
	reader MessageReader
	carts  CartClearer
}

func NewCheckoutConsumer(carts CartClearer, topic string, brokers ...string) *CheckoutConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  consumerGroup,
		MaxBytes: 10e6, // 10MB
	})
	return &CheckoutConsumer{reader: reader, carts: carts}
}

func (c *CheckoutConsumer) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	for {
		m, err := c.reader.ReadMessage(ctx)
		if ctx.Err() != nil {
			return c.reader.Close()
		}
		if err != nil {
			log.Error("failed to read checkout event", slog.Any("err", err))
			select {
			case <-ctx.Done():
				return c.reader.Close()
			case <-time.After(readBackoff):
			}
			continue
		}
		c.handle(ctx, m)
	}
}

type completedEvent struct {
	CheckoutID string    `json:"checkout_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (c *CheckoutConsumer) handle(ctx context.Context, m kafka.Message) {
	if eventType(m) != checkout.EventCheckoutCompleted {
		return
	}
	log := logger.FromContext(ctx)

	var event completedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		log.Error("failed to parse checkout event", slog.String("key", string(m.Key)), slog.Any("err", err))
		return
	}
	if event.UserID == "" {
		log.Warn("checkout event without user_id", slog.String("checkout_id", event.CheckoutID))
		return
	}

	at := event.OccurredAt
	if at.IsZero() {
		at = m.Time
	}
	if at.IsZero() {
		log.Warn("checkout event without a timestamp", slog.String("checkout_id", event.CheckoutID))
		return
	}

	if err := c.carts.ClearCartUpdatedBefore(ctx, event.UserID, at); err != nil && !errors.Is(err, ErrCartNotFound) {
		log.Error("failed to clear cart",
			slog.String("checkout_id", event.CheckoutID),
			slog.String("user_id", event.UserID),
			slog.Any("err", err))
	}
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == eventTypeHeader {
			return string(h.Value)
		}
	}
	return ""
}
