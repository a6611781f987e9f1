package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "Cash"
	PaymentMethodCard PaymentMethod = "Card"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
	PaymentStatusFailed  PaymentStatus = "Failed"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

type DeliveryType string

const (
	DeliveryStandard  DeliveryType = "standard"
	DeliveryScheduled DeliveryType = "scheduled"
)

type OrderItem struct {
	ProductID   string          `json:"productId" validate:"required"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    int             `json:"quantity" validate:"gte=1"`
	Price       decimal.Decimal `json:"price"`
}

type Order struct {
	OrderID         string          `json:"orderId" validate:"required"`
	UserID          string          `json:"userId"`
	AddressID       string          `json:"addressId"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod" validate:"omitempty,oneof=Cash Card"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	OrderStatus     OrderStatus     `json:"orderStatus"`
	DeliveryType    DeliveryType    `json:"deliveryType,omitempty"`
	ScheduledTime   *time.Time      `json:"scheduledTime,omitempty"`
	Instructions    string          `json:"userInstructions,omitempty"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// DeliveryDetails are the user's delivery choices captured on the checkout form.
type DeliveryDetails struct {
	DeliveryType  DeliveryType `json:"deliveryType" validate:"omitempty,oneof=standard scheduled"`
	ScheduledTime *time.Time   `json:"scheduledTime,omitempty"`
	Instructions  string       `json:"userInstructions,omitempty" validate:"max=500"`
}
