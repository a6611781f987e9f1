package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_checkout/domain"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Refusal classifies why the processor declined a card.
type Refusal int

const (
	RefusalUnknown Refusal = iota
	RefusalInsufficientFunds
	RefusalCardDeclined
	RefusalExpiredCard
	RefusalIncorrectCVC
	RefusalProcessingError
)

func (r Refusal) String() string {
	switch r {
	case RefusalInsufficientFunds:
		return "insufficient_funds"
	case RefusalCardDeclined:
		return "card_declined"
	case RefusalExpiredCard:
		return "expired_card"
	case RefusalIncorrectCVC:
		return "incorrect_cvc"
	case RefusalProcessingError:
		return "processing_error"
	}
	return "unknown"
}

// DeclinedError is a card-level rejection. The intent stays usable with another card.
type DeclinedError struct {
	Refusal Refusal
	Message string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("card declined (%s): %s", e.Refusal, e.Message)
}

type ConfirmRequest struct {
	PaymentIntentID string
	ClientSecret    string
	Card            domain.CardDetails
	Billing         domain.BillingDetails
	IdempotencyKey  string
}

// Stripe adapts the Stripe API to the engine's intent lifecycle. Card data only ever
// travels as the browser-side token.
type Stripe struct {
	api *client.API
}

// NewStripe builds the adapter. backends may be nil to use Stripe's defaults.
func NewStripe(secretKey string, backends *stripe.Backends) *Stripe {
	return &Stripe{api: client.New(secretKey, backends)}
}

func (s *Stripe) CreatePaymentMethod(ctx context.Context, card domain.CardDetails, billing domain.BillingDetails) (string, error) {
	return s.createPaymentMethod(ctx, card, billing, "")
}

// Card tokens are single-use, so a replayed confirm has to replay the payment
// method creation under its own key.
func (s *Stripe) createPaymentMethod(ctx context.Context, card domain.CardDetails, billing domain.BillingDetails, idempotencyKey string) (string, error) {
	params := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCardParams{
			Token: stripe.String(card.Token),
		},
		BillingDetails: billingParams(billing),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	pm, err := s.api.PaymentMethods.New(params)
	if err != nil {
		return "", mapError("create payment method", err)
	}
	return pm.ID, nil
}

// ConfirmIntent attaches the tokenized card and confirms the intent in one call.
func (s *Stripe) ConfirmIntent(ctx context.Context, req ConfirmRequest) (domain.IntentResult, error) {
	pmKey := ""
	if req.IdempotencyKey != "" {
		pmKey = req.IdempotencyKey + "-pm"
	}
	pmID, err := s.createPaymentMethod(ctx, req.Card, req.Billing, pmKey)
	if err != nil {
		return domain.IntentResult{}, err
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(pmID),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := s.api.PaymentIntents.Confirm(req.PaymentIntentID, params)
	if err != nil {
		return domain.IntentResult{}, mapError("confirm intent", err)
	}
	return toResult(pi), nil
}

func (s *Stripe) RetrieveIntent(ctx context.Context, intentID string) (domain.IntentResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return domain.IntentResult{}, mapError("retrieve intent", err)
	}
	return toResult(pi), nil
}

func billingParams(b domain.BillingDetails) *stripe.PaymentMethodBillingDetailsParams {
	p := &stripe.PaymentMethodBillingDetailsParams{
		Name: stripe.String(b.Name),
	}
	if b.Email != "" {
		p.Email = stripe.String(b.Email)
	}
	if b.Phone != "" {
		p.Phone = stripe.String(b.Phone)
	}
	if b.Line1 != "" || b.City != "" || b.PostalCode != "" || b.Country != "" {
		p.Address = &stripe.AddressParams{
			Line1:      stripe.String(b.Line1),
			City:       stripe.String(b.City),
			PostalCode: stripe.String(b.PostalCode),
			Country:    stripe.String(b.Country),
		}
	}
	return p
}

func toResult(pi *stripe.PaymentIntent) domain.IntentResult {
	res := domain.IntentResult{
		PaymentIntentID: pi.ID,
		Status:          domain.IntentStatus(pi.Status),
	}
	if pi.NextAction != nil {
		res.NextAction = string(pi.NextAction.Type)
		if pi.NextAction.RedirectToURL != nil && pi.NextAction.RedirectToURL.URL != "" {
			res.NextAction = pi.NextAction.RedirectToURL.URL
		}
	}
	if pi.LastPaymentError != nil {
		res.FailureMessage = pi.LastPaymentError.Msg
	}
	return res
}

func mapError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
		return &DeclinedError{Refusal: refusalFor(stripeErr), Message: stripeErr.Msg}
	}
	return fmt.Errorf("stripe %s: %w", op, err)
}

func refusalFor(e *stripe.Error) Refusal {
	code := string(e.DeclineCode)
	if code == "" {
		code = string(e.Code)
	}
	switch code {
	case "insufficient_funds":
		return RefusalInsufficientFunds
	case "card_declined", "generic_decline", "do_not_honor":
		return RefusalCardDeclined
	case "expired_card":
		return RefusalExpiredCard
	case "incorrect_cvc":
		return RefusalIncorrectCVC
	case "processing_error":
		return RefusalProcessingError
	}
	return RefusalUnknown
}
