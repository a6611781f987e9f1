package payment

import (
	"errors"
	"fmt"
)

var (
	ErrNoIntent        = errors.New("no payment intent for this checkout attempt")
	ErrAttemptFinished = errors.New("payment attempt already finished")
)

// PaymentSetupError means the backend refused to create an intent. No charge happened.
type PaymentSetupError struct {
	Message string
	Err     error
}

func (e *PaymentSetupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment setup failed: %s: %v", e.Message, e.Err)
	}
	return "payment setup failed: " + e.Message
}

func (e *PaymentSetupError) Unwrap() error { return e.Err }

// PaymentConfirmationError is a failed confirm. The same intent can be retried with
// another card.
type PaymentConfirmationError struct {
	PaymentIntentID string
	Message         string
	Refusal         string
	Err             error
}

func (e *PaymentConfirmationError) Error() string {
	if e.Refusal != "" {
		return fmt.Sprintf("payment %s not confirmed (%s): %s", e.PaymentIntentID, e.Refusal, e.Message)
	}
	return fmt.Sprintf("payment %s not confirmed: %s", e.PaymentIntentID, e.Message)
}

func (e *PaymentConfirmationError) Unwrap() error { return e.Err }

// PollTimeout means the processor never reported a final status. The charge may still
// settle; the user is told to contact support rather than pay again.
type PollTimeout struct {
	PaymentIntentID string
	Attempts        int
	Err             error
}

func (e *PollTimeout) Error() string {
	return "verification timeout, contact support"
}

func (e *PollTimeout) Unwrap() error { return e.Err }
