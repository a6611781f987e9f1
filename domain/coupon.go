package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFlat       DiscountType = "flat"
)

func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFlat
}

// Coupon is a discount rule identified by Code. Zero usage limits mean unlimited.
type Coupon struct {
	Code              string           `json:"code" validate:"required"`
	DiscountType      DiscountType     `json:"discountType" validate:"required,oneof=percentage flat"`
	DiscountValue     decimal.Decimal  `json:"discountValue"`
	DiscountMaxLimit  *decimal.Decimal `json:"discountMaxLimit,omitempty"`
	MinimumOrderValue *decimal.Decimal `json:"minimumOrderValue,omitempty"`
	ExpiryDate        time.Time        `json:"expiryDate"`
	UsageLimitPerUser int              `json:"usageLimitPerUser" validate:"gte=0"`
	UsageLimitGlobal  int              `json:"usageLimitGlobal" validate:"gte=0"`
}

// CouponUsage counts redemptions of a coupon so far.
type CouponUsage struct {
	ByUser int `json:"byUser"`
	Global int `json:"global"`
}

func (c *Coupon) Expired(now time.Time) bool {
	return !c.ExpiryDate.IsZero() && c.ExpiryDate.Before(now)
}
