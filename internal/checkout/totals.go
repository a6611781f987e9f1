package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/pricing"
	"github.com/fjod/go_checkout/pkg/logger"
	"github.com/shopspring/decimal"
)

// editable is true before any payment has been started.
func editable(status domain.CheckoutStatus) bool {
	switch status {
	case domain.CheckoutStatusCartValidated, domain.CheckoutStatusAddressSelected, domain.CheckoutStatusTotalsComputed:
		return true
	}
	return false
}

func (s *Service) editableSession(ctx context.Context, userID, id string) (*domain.CheckoutSession, error) {
	session, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !editable(session.Status) {
		if session.Status.IsTerminal() {
			return nil, ErrCheckoutClosed
		}
		return nil, ErrCheckoutLocked
	}
	return session, nil
}

func (s *Service) SelectAddress(ctx context.Context, userID, id, addressID string) (*domain.CheckoutSession, error) {
	if strings.TrimSpace(addressID) == "" {
		return nil, domain.NewValidationError("addressId", "please select a delivery address")
	}
	session, err := s.editableSession(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	session.AddressID = addressID
	if err := s.refreshTotals(ctx, session); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, session, domain.CheckoutStatusAddressSelected); err != nil {
		return nil, err
	}
	return session, nil
}

// ApplyCoupon asks the backend about code and, if accepted, recomputes totals with it.
// A rejection leaves the session as it was and returns *pricing.CouponRejected.
func (s *Service) ApplyCoupon(ctx context.Context, userID, id, code string) (*domain.CheckoutSession, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.NewValidationError("couponCode", "please enter a coupon code")
	}
	session, err := s.editableSession(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	subtotal := cart.Subtotal()

	res, err := s.coupons.ApplyCoupon(ctx, code, subtotal)
	if err != nil {
		return nil, err
	}

	applied := appliedCoupon(code, res.Coupon, res.DiscountAmount, res.Message)
	if res.Usage != nil {
		applied.Usage = *res.Usage
	}
	if res.Coupon != nil {
		// a returned rule is checked locally too, against the subtotal used for display
		if err := pricing.ValidateCoupon(subtotal, &applied.Coupon, applied.Usage, s.now()); err != nil {
			return nil, err
		}
	}

	session.Coupon = applied
	if err := s.refreshTotals(ctx, session); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, session, session.Status); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) RemoveCoupon(ctx context.Context, userID, id string) (*domain.CheckoutSession, error) {
	session, err := s.editableSession(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	session.Coupon = nil
	if err := s.refreshTotals(ctx, session); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, session, session.Status); err != nil {
		return nil, err
	}
	return session, nil
}

// Quote recomputes discount and shipping from the latest cart. Once an address is
// chosen this marks the totals as computed.
func (s *Service) Quote(ctx context.Context, userID, id string) (*domain.CheckoutSession, error) {
	session, err := s.editableSession(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.refreshTotals(ctx, session); err != nil {
		return nil, err
	}

	next := session.Status
	if session.Status == domain.CheckoutStatusAddressSelected {
		next = domain.CheckoutStatusTotalsComputed
	}
	if err := s.transition(ctx, session, next); err != nil {
		return nil, err
	}
	return session, nil
}

// refreshTotals re-reads the cart and recomputes totals. A coupon that no longer
// applies to the new subtotal is dropped.
func (s *Service) refreshTotals(ctx context.Context, session *domain.CheckoutSession) error {
	cart, err := s.carts.GetCart(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	if err := cart.Validate(); err != nil {
		return err
	}
	session.CartSnapshot = domain.NewCartSnapshot(cart, s.now())
	subtotal := cart.Subtotal()

	var coupon *domain.Coupon
	if session.Coupon != nil {
		err := pricing.ValidateCoupon(subtotal, &session.Coupon.Coupon, session.Coupon.Usage, s.now())
		var rejected *pricing.CouponRejected
		switch {
		case err == nil:
			coupon = &session.Coupon.Coupon
		case errors.As(err, &rejected):
			logger.FromContext(ctx).Info("coupon no longer applies, removed",
				slog.String("checkout_id", session.ID),
				slog.String("coupon", session.Coupon.Coupon.Code),
				slog.String("reason", string(rejected.Reason)))
			session.Coupon = nil
		default:
			return err
		}
	}

	session.Totals = s.calc.Totals(subtotal, coupon, s.shipping.Config(ctx))
	return nil
}

func (s *Service) ensureCartUnchanged(ctx context.Context, session *domain.CheckoutSession) error {
	cart, err := s.carts.GetCart(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	if !session.CartSnapshot.Matches(cart) {
		logger.FromContext(ctx).Info("cart changed after payment started",
			slog.String("checkout_id", session.ID),
			slog.String("payment_intent_id", session.PaymentIntentID))
		return domain.NewValidationError("cart", ErrCartChanged.Error())
	}
	return nil
}

// appliedCoupon prefers the backend's rule; without one the backend's discount is
// applied as a flat amount.
func appliedCoupon(code string, rule *domain.Coupon, discount decimal.Decimal, message string) *domain.AppliedCoupon {
	if rule != nil {
		return &domain.AppliedCoupon{Coupon: *rule, Message: message}
	}
	return &domain.AppliedCoupon{
		Coupon: domain.Coupon{
			Code:          code,
			DiscountType:  domain.DiscountFlat,
			DiscountValue: discount,
		},
		Message: message,
	}
}
