package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart       = errors.New("cart is empty, nothing to checkout")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

type Cart struct {
	ID        string     `json:"-"`
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	AddedAt     time.Time       `json:"added_at"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Subtotal is the sum of unit price times quantity over all items.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	if c == nil {
		return total
	}
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Validate checks the cart can be turned into an order.
func (c *Cart) Validate() error {
	if c.IsEmpty() {
		return ErrEmptyCart
	}
	for _, item := range c.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("product %s: %w", item.ProductID, ErrInvalidQuantity)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("product %s: unit price must not be negative", item.ProductID)
		}
	}
	return nil
}
