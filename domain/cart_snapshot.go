package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartSnapshotItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// CartSnapshot represents the full cart state at checkout time
type CartSnapshot struct {
	Items       []CartSnapshotItem `json:"items"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	CapturedAt  time.Time          `json:"captured_at"`
}

func NewCartSnapshot(cart *Cart, at time.Time) CartSnapshot {
	snapshot := CartSnapshot{
		Items:      make([]CartSnapshotItem, 0, len(cart.Items)),
		CapturedAt: at,
	}
	for _, item := range cart.Items {
		snapshot.Items = append(snapshot.Items, CartSnapshotItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.LineTotal(),
		})
	}
	snapshot.TotalAmount = cart.Subtotal()
	return snapshot
}

// OrderItems converts the snapshot into line items for order and subscription payloads.
func (s CartSnapshot) OrderItems() []OrderItem {
	items := make([]OrderItem, len(s.Items))
	for i, item := range s.Items {
		items[i] = OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.UnitPrice,
		}
	}
	return items
}

// Matches reports whether cart still holds exactly the snapshotted lines: the same
// products in the same quantities at the same unit prices.
func (s CartSnapshot) Matches(cart *Cart) bool {
	if cart == nil || len(cart.Items) != len(s.Items) {
		return false
	}
	lines := make(map[string]CartSnapshotItem, len(s.Items))
	for _, item := range s.Items {
		lines[item.ProductID] = item
	}
	for _, item := range cart.Items {
		line, ok := lines[item.ProductID]
		if !ok || line.Quantity != item.Quantity || !line.UnitPrice.Equal(item.UnitPrice) {
			return false
		}
		delete(lines, item.ProductID)
	}
	return true
}
