package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/guard"
	"github.com/fjod/go_checkout/internal/orders"
	"github.com/fjod/go_checkout/internal/payment"
	"github.com/fjod/go_checkout/internal/pricing"
	"github.com/fjod/go_checkout/internal/recurring"
	r "github.com/fjod/go_checkout/internal/repository"
	"github.com/fjod/go_checkout/internal/storefront"
	"github.com/fjod/go_checkout/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartReader interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
}

type CouponChecker interface {
	ApplyCoupon(ctx context.Context, code string, cartTotal decimal.Decimal) (*storefront.CouponResult, error)
}

type ShippingSource interface {
	Config(ctx context.Context) *pricing.ShippingConfig
}

// Service walks a cart through checkout. Each step reloads the session, checks the
// status transition and persists the result.
type Service struct {
	repo      r.RepoInterface
	carts     CartReader
	coupons   CouponChecker
	shipping  ShippingSource
	calc      *pricing.Calculator
	payments  *payment.Coordinator
	orders    *orders.Service
	recurring *recurring.Client
	guard     *guard.Guard
	// stuckAfter is how long a CONFIRMING session must sit untouched before
	// verification may take it over.
	stuckAfter time.Duration
	now        func() time.Time
}

const defaultStuckAfter = 5 * time.Minute

type Deps struct {
	Repo      r.RepoInterface
	Carts     CartReader
	Coupons   CouponChecker
	Shipping  ShippingSource
	Calc      *pricing.Calculator
	Payments  *payment.Coordinator
	Orders    *orders.Service
	Recurring *recurring.Client
	Guard     *guard.Guard
	// StuckAfter must exceed the longest confirm a live request can run.
	StuckAfter time.Duration
}

func NewService(d Deps) *Service {
	if d.StuckAfter <= 0 {
		d.StuckAfter = defaultStuckAfter
	}
	return &Service{
		repo:       d.Repo,
		carts:      d.Carts,
		coupons:    d.Coupons,
		shipping:   d.Shipping,
		calc:       d.Calc,
		payments:   d.Payments,
		orders:     d.Orders,
		recurring:  d.Recurring,
		guard:      d.Guard,
		stuckAfter: d.StuckAfter,
		now:        time.Now,
	}
}

// Begin starts a checkout for the user's cart. Repeating the call with the same
// idempotency key returns the session created the first time.
func (s *Service) Begin(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	log := logger.FromContext(ctx)

	existing, err := s.repo.GetSessionByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
	if err != nil && !errors.Is(err, r.ErrIdempotencyKeyNotFound) {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		log.Info("duplicate checkout request",
			slog.String("idempotency_key", req.IdempotencyKey),
			slog.String("checkout_id", existing.ID),
			slog.String("status", existing.Status.String()))
		return existing, nil
	}

	cart, err := s.carts.GetCart(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if err := cart.Validate(); err != nil {
		return nil, err
	}

	session := &domain.CheckoutSession{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		IdempotencyKey: req.IdempotencyKey,
		Status:         domain.CheckoutStatusCartValidated,
		CartSnapshot:   domain.NewCartSnapshot(cart, s.now()),
	}
	session.Totals = s.calc.Totals(cart.Subtotal(), nil, s.shipping.Config(ctx))

	if err := s.repo.CreateSession(ctx, session); err != nil {
		if errors.Is(err, r.ErrDuplicateCheckout) {
			// lost a race with an identical request
			return s.repo.GetSessionByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
		}
		return nil, err
	}

	log.Info("checkout started", slog.String("checkout_id", session.ID), slog.String("user_id", req.UserID))
	return session, nil
}

// Get returns the session only to the user that owns it.
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.CheckoutSession, error) {
	session, err := s.repo.GetSession(ctx, id)
	if errors.Is(err, r.ErrSessionNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Abandon cancels a checkout that has no charge in flight.
func (s *Service) Abandon(ctx context.Context, userID, id string) (*domain.CheckoutSession, error) {
	session, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if session.Status == domain.CheckoutStatusAbandoned {
		return session, nil
	}
	if !session.Status.Abandonable() {
		return nil, ErrCheckoutLocked
	}
	if blocked, err := s.guard.Active(ctx, userID); err != nil {
		return nil, err
	} else if blocked {
		return nil, ErrCheckoutLocked
	}

	if err := s.transition(ctx, session, domain.CheckoutStatusAbandoned); err != nil {
		return nil, err
	}
	return session, nil
}

// NavigationBlocked is true while a charge may be in flight for the session's cart.
// The UI must not let the user leave checkout while it holds.
func (s *Service) NavigationBlocked(ctx context.Context, userID, id string) (bool, error) {
	session, err := s.Get(ctx, userID, id)
	if err != nil {
		return false, err
	}
	if session.Status == domain.CheckoutStatusConfirming {
		return true, nil
	}
	if session.Status.IsTerminal() {
		return false, nil
	}
	return s.guard.Active(ctx, userID)
}

// transition moves session to status and persists it, guarded on the stored status.
func (s *Service) transition(ctx context.Context, session *domain.CheckoutSession, to domain.CheckoutStatus) error {
	from := session.Status
	if from != to && !domain.CanTransitionTo(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrIllegalTransition)
	}
	session.Status = to
	if err := s.repo.UpdateSession(ctx, session, from); err != nil {
		session.Status = from
		if errors.Is(err, r.ErrStaleSession) {
			return guard.ErrCheckoutInProgress
		}
		return err
	}
	return nil
}
