package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Totals is what the user sees and what the intent is created for. It is always
// recomputed from the latest cart subtotal.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	Shipping       decimal.Decimal `json:"shipping"`
	FreeShipping   bool            `json:"freeShipping"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency"`
	ChargeAmount   decimal.Decimal `json:"chargeAmount"`
	ChargeCurrency string          `json:"chargeCurrency"`
}

// AppliedCoupon is the coupon selected for a checkout session.
type AppliedCoupon struct {
	Coupon  Coupon      `json:"coupon"`
	Usage   CouponUsage `json:"usage"`
	Message string      `json:"message,omitempty"`
}

type CheckoutSession struct {
	ID              string
	UserID          string
	IdempotencyKey  string
	Status          CheckoutStatus
	CartSnapshot    CartSnapshot
	AddressID       string
	Coupon          *AppliedCoupon
	Totals          Totals
	PaymentMethod   PaymentMethod
	PaymentIntentID string
	ClientSecret    string
	Delivery        DeliveryDetails
	OrderID         string
	FailureReason   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (s *CheckoutSession) CouponCode() string {
	if s.Coupon == nil {
		return ""
	}
	return s.Coupon.Coupon.Code
}

type CheckoutRequest struct {
	UserID         string
	IdempotencyKey string
}
