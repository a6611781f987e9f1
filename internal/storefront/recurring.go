package storefront

import (
	"context"
	"net/http"
	"net/url"

	"github.com/fjod/go_checkout/domain"
)

type CreateRecurringRequest struct {
	AddressID       string             `json:"addressId"`
	Items           []domain.OrderItem `json:"items"`
	Frequency       domain.Frequency   `json:"frequency"`
	DayOfWeek       *int               `json:"dayOfWeek,omitempty"`
	ExecutionTime   string             `json:"executionTime"`
	PaymentMethodID string             `json:"paymentMethodId"`
}

func (c *Client) CreateRecurring(ctx context.Context, req CreateRecurringRequest) (*domain.RecurringOrder, error) {
	body, err := c.do(ctx, http.MethodPost, "/recurring/create", req)
	if err != nil {
		return nil, err
	}
	return decodeInto[*domain.RecurringOrder](c.validate, body, "recurringOrder")
}

// PauseRecurring returns the updated record, or nil when the backend only acknowledges.
func (c *Client) PauseRecurring(ctx context.Context, id string) (*domain.RecurringOrder, error) {
	return c.toggleRecurring(ctx, id, "pause")
}

func (c *Client) ResumeRecurring(ctx context.Context, id string) (*domain.RecurringOrder, error) {
	return c.toggleRecurring(ctx, id, "resume")
}

func (c *Client) toggleRecurring(ctx context.Context, id, action string) (*domain.RecurringOrder, error) {
	body, err := c.do(ctx, http.MethodPatch, "/recurring/"+url.PathEscape(id)+"/"+action, nil)
	if err != nil {
		return nil, err
	}
	payload, err := unwrap(body, "recurringOrder")
	if err != nil {
		return nil, err
	}
	rec, err := decodeInto[*domain.RecurringOrder](c.validate, payload, "")
	if err != nil {
		// plain acknowledgement, no record in the body
		return nil, nil
	}
	return rec, nil
}

func (c *Client) DeleteRecurring(ctx context.Context, id string) error {
	body, err := c.do(ctx, http.MethodDelete, "/recurring/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	_, err = unwrap(body, "")
	return err
}

func (c *Client) ListRecurring(ctx context.Context) ([]domain.RecurringOrder, error) {
	body, err := c.do(ctx, http.MethodGet, "/recurring", nil)
	if err != nil {
		return nil, err
	}
	return decodeInto[[]domain.RecurringOrder](c.validate, body, "recurringOrders")
}
