package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/pricing"
	"github.com/shopspring/decimal"
)

type applyCouponRequest struct {
	CouponCode string          `json:"couponCode"`
	CartTotal  decimal.Decimal `json:"cartTotal"`
}

// CouponResult is the backend's verdict on a coupon. Coupon is set when the backend
// returns the rule itself so the discount can be recomputed locally.
type CouponResult struct {
	Success        bool                `json:"success"`
	Message        string              `json:"message"`
	DiscountAmount decimal.Decimal     `json:"discountAmount"`
	Coupon         *domain.Coupon      `json:"coupon,omitempty"`
	Usage          *domain.CouponUsage `json:"usage,omitempty"`
}

// ApplyCoupon validates code against cartTotal. A rejection comes back as
// *pricing.CouponRejected with the reason inferred from the backend message.
func (c *Client) ApplyCoupon(ctx context.Context, code string, cartTotal decimal.Decimal) (*CouponResult, error) {
	body, err := c.do(ctx, http.MethodPost, "/coupons/apply", applyCouponRequest{CouponCode: code, CartTotal: cartTotal})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return nil, &pricing.CouponRejected{Reason: rejectReason(apiErr.Status, apiErr.Message), Message: apiErr.Message}
		}
		return nil, err
	}

	// success=false is a business outcome here, not an APIError, so the body is read as is.
	var res CouponResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode coupon response: %w", err)
	}
	if res.Coupon != nil && c.validate.Struct(res.Coupon) != nil {
		res.Coupon = nil
	}
	if !res.Success {
		return nil, &pricing.CouponRejected{Reason: rejectReason(http.StatusOK, res.Message), Message: res.Message}
	}
	return &res, nil
}

func rejectReason(status int, message string) pricing.RejectReason {
	msg := strings.ToLower(message)
	switch {
	case status == http.StatusNotFound, strings.Contains(msg, "not found"), strings.Contains(msg, "invalid coupon"):
		return pricing.RejectNotFound
	case strings.Contains(msg, "expire"):
		return pricing.RejectExpired
	case strings.Contains(msg, "minimum"):
		return pricing.RejectBelowMinimum
	case strings.Contains(msg, "limit"), strings.Contains(msg, "already used"), strings.Contains(msg, "no longer available"):
		return pricing.RejectLimitReached
	}
	return pricing.RejectNotFound
}
