package pricing

import (
	"fmt"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type RejectReason string

const (
	RejectExpired      RejectReason = "Expired"
	RejectBelowMinimum RejectReason = "BelowMinimum"
	RejectLimitReached RejectReason = "LimitReached"
	RejectNotFound     RejectReason = "NotFound"
)

// CouponRejected carries the specific reason a coupon could not be applied.
type CouponRejected struct {
	Reason  RejectReason
	Message string
}

func (e *CouponRejected) Error() string {
	return fmt.Sprintf("coupon rejected (%s): %s", e.Reason, e.Message)
}

// ComputeDiscount returns the discount a coupon gives on subtotal. It is always
// between zero and subtotal.
func ComputeDiscount(subtotal decimal.Decimal, coupon *domain.Coupon) decimal.Decimal {
	if coupon == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch coupon.DiscountType {
	case domain.DiscountPercentage:
		discount = subtotal.Mul(coupon.DiscountValue).Div(hundred)
		if coupon.DiscountMaxLimit != nil {
			discount = decimal.Min(discount, *coupon.DiscountMaxLimit)
		}
	case domain.DiscountFlat:
		discount = coupon.DiscountValue
	default:
		return decimal.Zero
	}

	discount = decimal.Min(discount, subtotal)
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount.Round(2)
}

// ValidateCoupon checks expiry, minimum order value and usage limits.
func ValidateCoupon(subtotal decimal.Decimal, coupon *domain.Coupon, usage domain.CouponUsage, now time.Time) error {
	if coupon == nil || coupon.Code == "" {
		return &CouponRejected{Reason: RejectNotFound, Message: "coupon not found"}
	}
	if coupon.Expired(now) {
		return &CouponRejected{
			Reason:  RejectExpired,
			Message: fmt.Sprintf("coupon %s expired on %s", coupon.Code, coupon.ExpiryDate.Format("2006-01-02")),
		}
	}
	if coupon.MinimumOrderValue != nil && subtotal.LessThan(*coupon.MinimumOrderValue) {
		return &CouponRejected{
			Reason:  RejectBelowMinimum,
			Message: fmt.Sprintf("minimum order value for %s is %s", coupon.Code, coupon.MinimumOrderValue.StringFixed(2)),
		}
	}
	if coupon.UsageLimitPerUser > 0 && usage.ByUser >= coupon.UsageLimitPerUser {
		return &CouponRejected{Reason: RejectLimitReached, Message: "you have already used this coupon the maximum number of times"}
	}
	if coupon.UsageLimitGlobal > 0 && usage.Global >= coupon.UsageLimitGlobal {
		return &CouponRejected{Reason: RejectLimitReached, Message: "this coupon is no longer available"}
	}
	return nil
}

// ApplyCoupon validates the coupon and computes its discount. A rejected coupon
// yields a zero discount together with the rejection.
func ApplyCoupon(subtotal decimal.Decimal, coupon *domain.Coupon, usage domain.CouponUsage, now time.Time) (decimal.Decimal, error) {
	if err := ValidateCoupon(subtotal, coupon, usage, now); err != nil {
		return decimal.Zero, err
	}
	return ComputeDiscount(subtotal, coupon), nil
}
