package orders

import (
	"errors"
)

var ErrPaymentNotSucceeded = errors.New("payment has not succeeded, order cannot be confirmed")

// OrderReconciliationError means the card was charged but the order was not recorded.
// The intent id is enough to finish the order later without charging again.
type OrderReconciliationError struct {
	PaymentIntentID string
	Err             error
}

func (e *OrderReconciliationError) Error() string {
	return "payment succeeded, order confirmation pending"
}

func (e *OrderReconciliationError) Unwrap() error { return e.Err }
