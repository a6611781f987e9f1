package pricing

import (
	"testing"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func dp(v string) *decimal.Decimal {
	x := d(v)
	return &x
}

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		coupon   *domain.Coupon
		want     string
	}{
		{"no coupon", "50", nil, "0"},
		{"percentage", "80", &domain.Coupon{DiscountType: domain.DiscountPercentage, DiscountValue: d("10")}, "8"},
		{"percentage capped", "80", &domain.Coupon{DiscountType: domain.DiscountPercentage, DiscountValue: d("50"), DiscountMaxLimit: dp("15")}, "15"},
		{"percentage rounded", "9.99", &domain.Coupon{DiscountType: domain.DiscountPercentage, DiscountValue: d("15")}, "1.5"},
		{"flat", "80", &domain.Coupon{DiscountType: domain.DiscountFlat, DiscountValue: d("5")}, "5"},
		{"flat larger than subtotal", "3", &domain.Coupon{DiscountType: domain.DiscountFlat, DiscountValue: d("5")}, "3"},
		{"over 100 percent", "40", &domain.Coupon{DiscountType: domain.DiscountPercentage, DiscountValue: d("150")}, "40"},
		{"negative value", "40", &domain.Coupon{DiscountType: domain.DiscountFlat, DiscountValue: d("-5")}, "0"},
		{"zero subtotal", "0", &domain.Coupon{DiscountType: domain.DiscountFlat, DiscountValue: d("5")}, "0"},
		{"unknown type", "40", &domain.Coupon{DiscountType: "bogus", DiscountValue: d("5")}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDiscount(d(tt.subtotal), tt.coupon)
			assert.True(t, got.Equal(d(tt.want)), "want %s, got %s", tt.want, got)
		})
	}
}

func TestComputeDiscount_Bounds(t *testing.T) {
	coupons := []*domain.Coupon{
		{DiscountType: domain.DiscountPercentage, DiscountValue: d("33.3")},
		{DiscountType: domain.DiscountPercentage, DiscountValue: d("100"), DiscountMaxLimit: dp("7")},
		{DiscountType: domain.DiscountFlat, DiscountValue: d("12.5")},
	}
	for _, subtotal := range []string{"0.01", "1", "7.77", "12.5", "99.99", "1000"} {
		for _, c := range coupons {
			got := ComputeDiscount(d(subtotal), c)
			assert.False(t, got.IsNegative(), "subtotal %s", subtotal)
			assert.True(t, got.LessThanOrEqual(d(subtotal)), "subtotal %s discount %s", subtotal, got)
		}
	}
}

func TestValidateCoupon(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	base := func() *domain.Coupon {
		return &domain.Coupon{Code: "SAVE", DiscountType: domain.DiscountFlat, DiscountValue: d("5")}
	}

	tests := []struct {
		name   string
		coupon func() *domain.Coupon
		usage  domain.CouponUsage
		reason RejectReason
	}{
		{"missing", func() *domain.Coupon { return nil }, domain.CouponUsage{}, RejectNotFound},
		{"expired", func() *domain.Coupon {
			c := base()
			c.ExpiryDate = now.Add(-time.Hour)
			return c
		}, domain.CouponUsage{}, RejectExpired},
		{"below minimum", func() *domain.Coupon {
			c := base()
			c.MinimumOrderValue = dp("100")
			return c
		}, domain.CouponUsage{}, RejectBelowMinimum},
		{"per user limit", func() *domain.Coupon {
			c := base()
			c.UsageLimitPerUser = 1
			return c
		}, domain.CouponUsage{ByUser: 1}, RejectLimitReached},
		{"global limit", func() *domain.Coupon {
			c := base()
			c.UsageLimitGlobal = 10
			return c
		}, domain.CouponUsage{Global: 10}, RejectLimitReached},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoupon(d("50"), tt.coupon(), tt.usage, now)
			var rejected *CouponRejected
			require.ErrorAs(t, err, &rejected)
			assert.Equal(t, tt.reason, rejected.Reason)
		})
	}
}

func TestValidateCoupon_Accepts(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := &domain.Coupon{
		Code:              "SAVE",
		DiscountType:      domain.DiscountPercentage,
		DiscountValue:     d("10"),
		MinimumOrderValue: dp("50"),
		ExpiryDate:        now.Add(time.Hour),
		UsageLimitPerUser: 2,
	}

	discount, err := ApplyCoupon(d("50"), c, domain.CouponUsage{ByUser: 1}, now)
	require.NoError(t, err)
	assert.True(t, discount.Equal(d("5")))
}

func TestApplyCoupon_RejectedHasZeroDiscount(t *testing.T) {
	c := &domain.Coupon{Code: "OLD", DiscountType: domain.DiscountFlat, DiscountValue: d("5"), ExpiryDate: time.Unix(0, 0)}

	discount, err := ApplyCoupon(d("50"), c, domain.CouponUsage{}, time.Now())
	assert.Error(t, err)
	assert.True(t, discount.IsZero())
}
