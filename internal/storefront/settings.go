package storefront

import (
	"context"
	"net/http"

	"github.com/fjod/go_checkout/internal/pricing"
)

// GetShippingSettings satisfies pricing.ShippingSettingsFetcher.
func (c *Client) GetShippingSettings(ctx context.Context) (*pricing.ShippingConfig, error) {
	body, err := c.do(ctx, http.MethodGet, "/settings/shipping", nil)
	if err != nil {
		return nil, err
	}
	return decodeInto[*pricing.ShippingConfig](c.validate, body, "shipping")
}
