package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/guard"
	"github.com/fjod/go_checkout/internal/poll"
	"github.com/fjod/go_checkout/internal/processor"
	"github.com/fjod/go_checkout/internal/storefront"
	"github.com/fjod/go_checkout/pkg/logger"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollAttempts = 30
)

// IntentCreator is the backend endpoint that creates processor intents.
type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, req storefront.CreateIntentRequest) (*domain.PaymentIntent, error)
}

type Processor interface {
	ConfirmIntent(ctx context.Context, req processor.ConfirmRequest) (domain.IntentResult, error)
	RetrieveIntent(ctx context.Context, intentID string) (domain.IntentResult, error)
}

// Coordinator drives an intent from creation to a final status.
type Coordinator struct {
	intents   IntentCreator
	processor Processor
	guard     *guard.Guard
	poll      poll.Config
}

func NewCoordinator(intents IntentCreator, proc Processor, g *guard.Guard, pollCfg poll.Config) *Coordinator {
	if pollCfg.Interval <= 0 {
		pollCfg.Interval = DefaultPollInterval
	}
	if pollCfg.MaxAttempts <= 0 {
		pollCfg.MaxAttempts = DefaultPollAttempts
	}
	return &Coordinator{intents: intents, processor: proc, guard: g, poll: pollCfg}
}

// CreateIntent returns the attempt's intent, creating it on first use only.
func (c *Coordinator) CreateIntent(ctx context.Context, a *Attempt, addressID, couponCode string) (*domain.PaymentIntent, error) {
	if a.Intent != nil {
		return a.Intent, nil
	}
	if a.State != StateIdle {
		return nil, fmt.Errorf("create intent in state %s: %w", a.State, ErrAttemptFinished)
	}

	a.State = StateCreating
	intent, err := c.intents.CreatePaymentIntent(ctx, storefront.CreateIntentRequest{
		AddressID:  addressID,
		CouponCode: couponCode,
	})
	if err != nil {
		a.State = StateIdle
		var apiErr *storefront.APIError
		if errors.As(err, &apiErr) {
			return nil, &PaymentSetupError{Message: apiErr.Message, Err: err}
		}
		return nil, &PaymentSetupError{Message: "could not start payment, please try again", Err: err}
	}

	a.Intent = intent
	a.State = StateAwaitingConfirmation
	logger.FromContext(ctx).Info("payment intent created",
		slog.String("payment_intent_id", intent.PaymentIntentID),
		slog.String("amount", intent.Amount.StringFixed(2)))
	return intent, nil
}

// Confirm charges the card against the attempt's intent. The guard section for the
// cart is held from before the processor call until the outcome is known.
func (c *Coordinator) Confirm(ctx context.Context, a *Attempt, card domain.CardDetails, billing domain.BillingDetails) (Outcome, error) {
	if a.Intent == nil {
		return Outcome{}, ErrNoIntent
	}
	switch a.State {
	case StateSucceeded:
		return Outcome{State: StateSucceeded, PaymentIntentID: a.IntentID()}, nil
	case StateAwaitingConfirmation:
	default:
		return Outcome{State: a.State, PaymentIntentID: a.IntentID()}, fmt.Errorf("confirm in state %s: %w", a.State, ErrAttemptFinished)
	}

	section, err := c.guard.Enter(ctx, a.CartKey)
	if err != nil {
		return Outcome{}, err
	}
	defer section.Release()

	a.State = StateConfirming
	a.Confirmations++
	res, err := c.processor.ConfirmIntent(ctx, processor.ConfirmRequest{
		PaymentIntentID: a.IntentID(),
		ClientSecret:    a.Intent.ClientSecret,
		Card:            card,
		Billing:         billing,
		IdempotencyKey:  idempotencyKey(a.IntentID(), card),
	})
	if err != nil {
		if ctx.Err() != nil {
			// the processor may have charged; only a later Verify can tell
			a.State = StateTimedOut
			return Outcome{State: a.State, PaymentIntentID: a.IntentID()}, &PollTimeout{PaymentIntentID: a.IntentID(), Err: err}
		}
		a.State = StateAwaitingConfirmation
		return Outcome{State: a.State, PaymentIntentID: a.IntentID()}, confirmationError(a.IntentID(), err)
	}
	return c.settle(ctx, a, res)
}

// Verify re-reads the intent and settles it, polling while it is processing. It is
// used after a customer action and to resolve timed-out attempts.
func (c *Coordinator) Verify(ctx context.Context, a *Attempt) (Outcome, error) {
	if a.Intent == nil {
		return Outcome{}, ErrNoIntent
	}
	if a.State == StateSucceeded || a.State == StateCanceled {
		return Outcome{State: a.State, PaymentIntentID: a.IntentID()}, nil
	}

	section, err := c.guard.Enter(ctx, a.CartKey)
	if err != nil {
		return Outcome{}, err
	}
	defer section.Release()

	a.State = StateConfirming
	res, err := c.processor.RetrieveIntent(ctx, a.IntentID())
	if err != nil {
		a.State = StateTimedOut
		return Outcome{State: a.State, PaymentIntentID: a.IntentID()}, &PollTimeout{PaymentIntentID: a.IntentID(), Err: err}
	}
	return c.settle(ctx, a, res)
}

func (c *Coordinator) settle(ctx context.Context, a *Attempt, res domain.IntentResult) (Outcome, error) {
	log := logger.FromContext(ctx).With(slog.String("payment_intent_id", a.IntentID()))
	out := Outcome{PaymentIntentID: a.IntentID()}

	if res.Status == domain.IntentProcessing {
		final, attempts, err := poll.Until(ctx, c.poll, func(ctx context.Context) (domain.IntentResult, bool, error) {
			r, err := c.processor.RetrieveIntent(ctx, a.IntentID())
			if err != nil {
				log.Warn("payment status check failed", slog.Any("err", err))
				return res, false, nil
			}
			return r, r.Status != domain.IntentProcessing, nil
		})
		out.PollAttempts = attempts
		if err != nil {
			a.State = StateTimedOut
			out.State = a.State
			log.Error("payment verification timed out", slog.Int("attempts", attempts), slog.Any("err", err))
			if errors.Is(err, poll.ErrTimeout) {
				return out, &PollTimeout{PaymentIntentID: a.IntentID(), Attempts: attempts}
			}
			return out, &PollTimeout{PaymentIntentID: a.IntentID(), Attempts: attempts, Err: err}
		}
		res = final
	}

	switch res.Status {
	case domain.IntentSucceeded:
		a.State = StateSucceeded
		log.Info("payment succeeded")
	case domain.IntentRequiresAction:
		a.State = StateRequiresAction
		a.NextAction = res.NextAction
		out.NextAction = res.NextAction
	case domain.IntentCanceled:
		a.State = StateCanceled
		log.Warn("payment intent canceled")
	case domain.IntentRequiresPaymentMethod, domain.IntentRequiresConfirmation:
		a.State = StateAwaitingConfirmation
		msg := res.FailureMessage
		if msg == "" {
			msg = "your card was declined, please try another card"
		}
		out.State = a.State
		return out, &PaymentConfirmationError{PaymentIntentID: a.IntentID(), Message: msg}
	default:
		a.State = StateFailed
		out.State = a.State
		return out, &PaymentConfirmationError{PaymentIntentID: a.IntentID(), Message: fmt.Sprintf("unexpected payment status %q", res.Status)}
	}

	out.State = a.State
	return out, nil
}

// idempotencyKey scopes confirms to the intent and the card token. Resending the same
// token replays the first answer; another card gets a fresh key, otherwise the
// processor would replay the earlier decline.
func idempotencyKey(intentID string, card domain.CardDetails) string {
	if card.Token == "" {
		return intentID
	}
	return intentID + "-" + card.Token
}

func confirmationError(intentID string, err error) error {
	var declined *processor.DeclinedError
	if errors.As(err, &declined) {
		return &PaymentConfirmationError{
			PaymentIntentID: intentID,
			Message:         declined.Message,
			Refusal:         declined.Refusal.String(),
			Err:             err,
		}
	}
	return &PaymentConfirmationError{PaymentIntentID: intentID, Message: "payment could not be confirmed, please try again", Err: err}
}
