package domain

import "github.com/shopspring/decimal"

// IntentStatus mirrors the processor-owned PaymentIntent lifecycle.
type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentSucceeded             IntentStatus = "succeeded"
	IntentCanceled              IntentStatus = "canceled"
)

// PaymentIntent is the client-side handle of an intent. Card data never passes through it.
type PaymentIntent struct {
	PaymentIntentID string          `json:"paymentIntentId" validate:"required"`
	ClientSecret    string          `json:"clientSecret" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
}

// CardDetails is the opaque token produced by the processor's browser-side payment form.
type CardDetails struct {
	Token string `json:"token" validate:"required"`
}

type BillingDetails struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// IntentResult is what the processor reports after a confirm or retrieve call.
type IntentResult struct {
	PaymentIntentID string       `json:"paymentIntentId"`
	Status          IntentStatus `json:"status"`
	NextAction      string       `json:"nextAction,omitempty"`
	FailureMessage  string       `json:"failureMessage,omitempty"`
}
