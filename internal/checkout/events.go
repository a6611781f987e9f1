package checkout

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_checkout/domain"
	r "github.com/fjod/go_checkout/internal/repository"
)

const (
	EventCheckoutCompleted     = "CheckoutCompleted"
	EventReconciliationPending = "CheckoutReconciliationPending"
)

type checkoutEvent struct {
	CheckoutID      string                    `json:"checkout_id"`
	UserID          string                    `json:"user_id"`
	OrderID         string                    `json:"order_id,omitempty"`
	PaymentMethod   domain.PaymentMethod      `json:"payment_method"`
	PaymentIntentID string                    `json:"payment_intent_id,omitempty"`
	CouponCode      string                    `json:"coupon_code,omitempty"`
	Items           []domain.CartSnapshotItem `json:"items"`
	Totals          domain.Totals             `json:"totals"`
	OccurredAt      time.Time                 `json:"occurred_at"`
}

func newEvent(eventType string, s *domain.CheckoutSession, at time.Time) (*r.OutboxEvent, error) {
	payload, err := json.Marshal(checkoutEvent{
		CheckoutID:      s.ID,
		UserID:          s.UserID,
		OrderID:         s.OrderID,
		PaymentMethod:   s.PaymentMethod,
		PaymentIntentID: s.PaymentIntentID,
		CouponCode:      s.CouponCode(),
		Items:           s.CartSnapshot.Items,
		Totals:          s.Totals,
		OccurredAt:      at,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &r.OutboxEvent{AggregateID: s.ID, EventType: eventType, Payload: payload}, nil
}
