package payment

import (
	"github.com/fjod/go_checkout/domain"
)

type State string

const (
	StateIdle                 State = "idle"
	StateCreating             State = "creating"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateConfirming           State = "confirming"
	StateSucceeded            State = "succeeded"
	StateRequiresAction       State = "requires_action"
	StateCanceled             State = "canceled"
	StateFailed               State = "failed"
	StateTimedOut             State = "timed_out"
)

// Attempt is one checkout attempt's view of its payment. It owns at most one intent.
type Attempt struct {
	CartKey       string
	State         State
	Intent        *domain.PaymentIntent
	Confirmations int
	NextAction    string
}

func NewAttempt(cartKey string) *Attempt {
	return &Attempt{CartKey: cartKey, State: StateIdle}
}

// ResumeAttempt rebuilds an attempt from a persisted intent.
func ResumeAttempt(cartKey string, intent domain.PaymentIntent, state State) *Attempt {
	return &Attempt{CartKey: cartKey, State: state, Intent: &intent}
}

func (a *Attempt) IntentID() string {
	if a.Intent == nil {
		return ""
	}
	return a.Intent.PaymentIntentID
}

// Outcome is the settled result of a confirm or verify call.
type Outcome struct {
	State           State
	PaymentIntentID string
	NextAction      string
	PollAttempts    int
}
