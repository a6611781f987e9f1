package pricing

import "github.com/shopspring/decimal"

// Converter turns store-currency amounts into the charge currency with a fixed rate.
// There is no live exchange-rate source.
type Converter struct {
	From string
	To   string
	Rate decimal.Decimal
}

func NewConverter(from, to string, rate decimal.Decimal) Converter {
	if !rate.IsPositive() {
		rate = decimal.NewFromInt(1)
	}
	return Converter{From: from, To: to, Rate: rate}
}

func (c Converter) Convert(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(c.Rate).Round(2)
}
