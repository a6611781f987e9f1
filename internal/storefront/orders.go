package storefront

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/fjod/go_checkout/domain"
)

type CreateIntentRequest struct {
	AddressID  string `json:"addressId"`
	CouponCode string `json:"couponCode,omitempty"`
}

type ConfirmOrderRequest struct {
	PaymentIntentID string               `json:"paymentIntentId,omitempty"`
	PaymentMethod   domain.PaymentMethod `json:"paymentMethod"`
	AddressID       string               `json:"addressId"`
	CouponCode      string               `json:"couponCode,omitempty"`
	DeliveryType    domain.DeliveryType  `json:"deliveryType,omitempty"`
	ScheduledTime   *time.Time           `json:"scheduledTime,omitempty"`
	Instructions    string               `json:"userInstructions,omitempty"`
}

// CreatePaymentIntent asks the backend to create a processor intent for the caller's cart.
// The backend computes the amount from the server-side cart.
func (c *Client) CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*domain.PaymentIntent, error) {
	body, err := c.do(ctx, http.MethodPost, "/orders/create-payment-intent", req)
	if err != nil {
		return nil, err
	}
	return decodeInto[*domain.PaymentIntent](c.validate, body, "")
}

func (c *Client) ConfirmOrder(ctx context.Context, req ConfirmOrderRequest) (*domain.Order, error) {
	body, err := c.do(ctx, http.MethodPost, "/orders/confirm", req)
	if err != nil {
		return nil, err
	}
	return decodeInto[*domain.Order](c.validate, body, "order")
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	body, err := c.do(ctx, http.MethodPatch, "/orders/cancel/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}
	return decodeInto[*domain.Order](c.validate, body, "order")
}
