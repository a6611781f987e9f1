package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/payment"
	"github.com/fjod/go_checkout/internal/storefront"
	"github.com/fjod/go_checkout/pkg/logger"
	"github.com/go-playground/validator/v10"
)

type OrderAPI interface {
	ConfirmOrder(ctx context.Context, req storefront.ConfirmOrderRequest) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

// Details is what the checkout form collected besides payment.
type Details struct {
	UserID     string `validate:"required"`
	AddressID  string `validate:"required"`
	CouponCode string `validate:"omitempty,max=64"`
	Delivery   domain.DeliveryDetails
}

type Service struct {
	api      OrderAPI
	carts    CartClearer
	validate *validator.Validate
	now      func() time.Time
}

func NewService(api OrderAPI, carts CartClearer) *Service {
	return &Service{
		api:      api,
		carts:    carts,
		validate: validator.New(),
		now:      time.Now,
	}
}

// ConfirmCard records the order for a charged attempt. It never touches the processor.
func (s *Service) ConfirmCard(ctx context.Context, a *payment.Attempt, d Details) (*domain.Order, error) {
	if a == nil || a.State != payment.StateSucceeded {
		return nil, ErrPaymentNotSucceeded
	}
	return s.Reconcile(ctx, a.IntentID(), d)
}

// Reconcile confirms the order for an intent that is already known to have succeeded.
// The backend deduplicates on the intent id, so it is safe to call repeatedly.
func (s *Service) Reconcile(ctx context.Context, intentID string, d Details) (*domain.Order, error) {
	if intentID == "" {
		return nil, ErrPaymentNotSucceeded
	}
	if err := s.validateDetails(d); err != nil {
		return nil, err
	}

	order, err := s.api.ConfirmOrder(ctx, confirmRequest(domain.PaymentMethodCard, intentID, d))
	if err != nil {
		logger.FromContext(ctx).Error("order confirmation failed after successful payment",
			slog.String("payment_intent_id", intentID),
			slog.String("user_id", d.UserID),
			slog.Any("err", err))
		return nil, &OrderReconciliationError{PaymentIntentID: intentID, Err: err}
	}

	s.clearCart(ctx, d.UserID)
	return order, nil
}

// ConfirmCash places a cash-on-delivery order; payment stays pending until delivery.
func (s *Service) ConfirmCash(ctx context.Context, d Details) (*domain.Order, error) {
	if err := s.validateDetails(d); err != nil {
		return nil, err
	}

	order, err := s.api.ConfirmOrder(ctx, confirmRequest(domain.PaymentMethodCash, "", d))
	if err != nil {
		return nil, fmt.Errorf("confirm cash order: %w", err)
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = domain.PaymentStatusPending
	}

	s.clearCart(ctx, d.UserID)
	return order, nil
}

func (s *Service) Cancel(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, domain.NewValidationError("orderId", "order id is required")
	}
	order, err := s.api.CancelOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return order, nil
}

func (s *Service) validateDetails(d Details) error {
	if err := s.validate.Struct(d); err != nil {
		return domain.NewValidationError("order", err.Error())
	}
	if d.Delivery.DeliveryType == domain.DeliveryScheduled {
		if d.Delivery.ScheduledTime == nil {
			return domain.NewValidationError("scheduledTime", "scheduled delivery needs a time")
		}
		if !d.Delivery.ScheduledTime.After(s.now()) {
			return domain.NewValidationError("scheduledTime", "scheduled time must be in the future")
		}
	}
	return nil
}

func (s *Service) clearCart(ctx context.Context, userID string) {
	if s.carts == nil {
		return
	}
	if err := s.carts.ClearCart(ctx, userID); err != nil {
		logger.FromContext(ctx).Warn("failed to clear cart after order", slog.String("user_id", userID), slog.Any("err", err))
	}
}

func confirmRequest(method domain.PaymentMethod, intentID string, d Details) storefront.ConfirmOrderRequest {
	req := storefront.ConfirmOrderRequest{
		PaymentIntentID: intentID,
		PaymentMethod:   method,
		AddressID:       d.AddressID,
		CouponCode:      d.CouponCode,
		DeliveryType:    d.Delivery.DeliveryType,
		Instructions:    d.Delivery.Instructions,
	}
	if req.DeliveryType == "" {
		req.DeliveryType = domain.DeliveryStandard
	}
	if req.DeliveryType == domain.DeliveryScheduled {
		req.ScheduledTime = d.Delivery.ScheduledTime
	}
	return req
}
