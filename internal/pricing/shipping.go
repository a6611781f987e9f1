package pricing

import (
	"github.com/shopspring/decimal"
)

var (
	// DefaultShippingCharge applies when the storefront shipping settings cannot be loaded.
	DefaultShippingCharge = decimal.NewFromInt(5)
	// DefaultFreeShippingThreshold is the subtotal from which shipping is free by default.
	DefaultFreeShippingThreshold = decimal.NewFromInt(25)
)

type ShippingConfig struct {
	ShippingCharge        decimal.Decimal `json:"shippingCharge"`
	FreeShippingThreshold decimal.Decimal `json:"freeShippingThreshold"`
}

func DefaultShippingConfig() ShippingConfig {
	return ShippingConfig{
		ShippingCharge:        DefaultShippingCharge,
		FreeShippingThreshold: DefaultFreeShippingThreshold,
	}
}

func (c *ShippingConfig) valid() bool {
	return c != nil && !c.ShippingCharge.IsNegative() && !c.FreeShippingThreshold.IsNegative()
}

type Shipping struct {
	Charge decimal.Decimal `json:"charge"`
	IsFree bool            `json:"isFree"`
}

// ComputeShipping never fails: a missing or malformed config falls back to the default.
func ComputeShipping(subtotal decimal.Decimal, cfg *ShippingConfig) Shipping {
	effective := DefaultShippingConfig()
	if cfg.valid() {
		effective = *cfg
	}

	if subtotal.GreaterThanOrEqual(effective.FreeShippingThreshold) {
		return Shipping{Charge: decimal.Zero, IsFree: true}
	}
	return Shipping{Charge: effective.ShippingCharge, IsFree: false}
}
