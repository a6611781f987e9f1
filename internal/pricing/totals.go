package pricing

import (
	"github.com/fjod/go_checkout/domain"
	"github.com/shopspring/decimal"
)

// Calculator combines discount, shipping and conversion into displayable totals.
type Calculator struct {
	converter Converter
}

func NewCalculator(converter Converter) *Calculator {
	return &Calculator{converter: converter}
}

// Totals recomputes everything from subtotal. The coupon must already be validated.
func (c *Calculator) Totals(subtotal decimal.Decimal, coupon *domain.Coupon, shippingCfg *ShippingConfig) domain.Totals {
	discount := ComputeDiscount(subtotal, coupon)
	shipping := ComputeShipping(subtotal, shippingCfg)
	total := subtotal.Sub(discount).Add(shipping.Charge).Round(2)

	return domain.Totals{
		Subtotal:       subtotal.Round(2),
		Discount:       discount,
		Shipping:       shipping.Charge,
		FreeShipping:   shipping.IsFree,
		Total:          total,
		Currency:       c.converter.From,
		ChargeAmount:   c.converter.Convert(total),
		ChargeCurrency: c.converter.To,
	}
}
