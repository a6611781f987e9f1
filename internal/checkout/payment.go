package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/guard"
	"github.com/fjod/go_checkout/internal/orders"
	"github.com/fjod/go_checkout/internal/payment"
	"github.com/fjod/go_checkout/internal/recurring"
	r "github.com/fjod/go_checkout/internal/repository"
	"github.com/fjod/go_checkout/pkg/logger"
)

// afterChargeTimeout bounds the bookkeeping that must finish even if the caller left.
const afterChargeTimeout = 30 * time.Second

type RecurringRequest struct {
	Frequency     domain.Frequency
	DayOfWeek     *int
	ExecutionTime string
	// Card is a fresh token; the one used for the checkout charge is spent.
	Card *domain.CardDetails
}

type PayByCardRequest struct {
	Card      domain.CardDetails
	Billing   domain.BillingDetails
	Delivery  domain.DeliveryDetails
	Recurring *RecurringRequest
}

type PayByCashRequest struct {
	Delivery  domain.DeliveryDetails
	Billing   domain.BillingDetails
	Recurring *RecurringRequest
}

// Result is what the UI needs after a payment step.
type Result struct {
	Session        *domain.CheckoutSession
	Order          *domain.Order
	RecurringOrder *domain.RecurringOrder
	RecurringError string
	NextAction     string
	RedirectPath   string
}

func orderPath(orderID string) string {
	return "/orders/" + orderID
}

func completedResult(session *domain.CheckoutSession) *Result {
	return &Result{Session: session, RedirectPath: orderPath(session.OrderID)}
}

// PayByCard charges the card and, once the charge succeeded, confirms the order.
func (s *Service) PayByCard(ctx context.Context, userID, id string, req PayByCardRequest) (*Result, error) {
	session, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case domain.CheckoutStatusCompleted:
		return completedResult(session), nil
	case domain.CheckoutStatusPaymentSucceeded:
		return s.finalize(ctx, session, s.succeededAttempt(session), req.Billing, req.Recurring)
	case domain.CheckoutStatusConfirming:
		return nil, guard.ErrCheckoutInProgress
	case domain.CheckoutStatusVerificationTimeout:
		return nil, &payment.PollTimeout{PaymentIntentID: session.PaymentIntentID}
	case domain.CheckoutStatusFailed, domain.CheckoutStatusAbandoned:
		return nil, ErrCheckoutClosed
	}

	if err := s.validateRecurring(session, req.Recurring); err != nil {
		return nil, err
	}
	if err := s.prepare(ctx, session, domain.PaymentMethodCard, req.Delivery, domain.CheckoutStatusPaymentPending); err != nil {
		return nil, err
	}

	attempt := s.attemptFor(session)
	if session.PaymentIntentID == "" {
		intent, err := s.payments.CreateIntent(ctx, attempt, session.AddressID, session.CouponCode())
		if err != nil {
			// no intent means nothing can be charged; reopen the session for edits
			pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterChargeTimeout)
			defer cancel()
			s.record(pctx, session, domain.CheckoutStatusTotalsComputed)
			return nil, err
		}
		session.PaymentIntentID = intent.PaymentIntentID
		session.ClientSecret = intent.ClientSecret
		session.FailureReason = ""
		if err := s.transition(ctx, session, domain.CheckoutStatusPaymentPending); err != nil {
			return nil, err
		}
	}

	if err := s.transition(ctx, session, domain.CheckoutStatusConfirming); err != nil {
		return nil, err
	}
	out, payErr := s.payments.Confirm(ctx, attempt, req.Card, req.Billing)
	return s.settle(ctx, session, attempt, out, payErr, domain.CheckoutStatusPaymentPending, req.Billing, req.Recurring)
}

// PayByCash places a cash-on-delivery order. No processor is involved.
func (s *Service) PayByCash(ctx context.Context, userID, id string, req PayByCashRequest) (*Result, error) {
	session, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if session.Status == domain.CheckoutStatusCompleted {
		return completedResult(session), nil
	}
	if !editable(session.Status) {
		if session.Status.IsTerminal() {
			return nil, ErrCheckoutClosed
		}
		return nil, ErrCheckoutLocked
	}

	if err := s.validateRecurring(session, req.Recurring); err != nil {
		return nil, err
	}
	if err := s.prepare(ctx, session, domain.PaymentMethodCash, req.Delivery, domain.CheckoutStatusTotalsComputed); err != nil {
		return nil, err
	}

	order, err := s.orders.ConfirmCash(ctx, s.details(session))
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, session, order, req.Billing, req.Recurring)
}

// VerifyPayment re-checks an intent that needed customer action or timed out.
func (s *Service) VerifyPayment(ctx context.Context, userID, id string) (*Result, error) {
	session, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, session)
}

func (s *Service) verify(ctx context.Context, session *domain.CheckoutSession) (*Result, error) {
	var attempt *payment.Attempt
	revert := session.Status

	switch session.Status {
	case domain.CheckoutStatusCompleted:
		return completedResult(session), nil
	case domain.CheckoutStatusPaymentSucceeded:
		return s.finalize(ctx, session, s.succeededAttempt(session), domain.BillingDetails{}, nil)
	case domain.CheckoutStatusPaymentPending:
		if session.PaymentIntentID == "" {
			return nil, ErrNothingToVerify
		}
		attempt = payment.ResumeAttempt(session.UserID, s.intentOf(session), payment.StateRequiresAction)
		if err := s.transition(ctx, session, domain.CheckoutStatusConfirming); err != nil {
			return nil, err
		}
	case domain.CheckoutStatusVerificationTimeout:
		attempt = payment.ResumeAttempt(session.UserID, s.intentOf(session), payment.StateTimedOut)
	case domain.CheckoutStatusConfirming:
		if err := s.claimInterrupted(ctx, session); err != nil {
			return nil, err
		}
		attempt = payment.ResumeAttempt(session.UserID, s.intentOf(session), payment.StateTimedOut)
		revert = session.Status
	default:
		return nil, ErrNothingToVerify
	}

	out, err := s.payments.Verify(ctx, attempt)
	return s.settle(ctx, session, attempt, out, err, revert, domain.BillingDetails{}, nil)
}

// claimInterrupted takes over a CONFIRMING session whose request died before it
// recorded the outcome. The session is only claimed once it sat untouched longer
// than any confirm can run and no request holds the user's guard.
func (s *Service) claimInterrupted(ctx context.Context, session *domain.CheckoutSession) error {
	if session.PaymentIntentID == "" || s.now().Sub(session.UpdatedAt) < s.stuckAfter {
		return guard.ErrCheckoutInProgress
	}
	held, err := s.guard.Active(ctx, session.UserID)
	if err != nil {
		return err
	}
	if held {
		return guard.ErrCheckoutInProgress
	}

	logger.FromContext(ctx).Warn("resuming interrupted payment confirmation",
		slog.String("checkout_id", session.ID),
		slog.String("payment_intent_id", session.PaymentIntentID))
	session.FailureReason = "payment confirmation was interrupted"
	return s.transition(ctx, session, domain.CheckoutStatusVerificationTimeout)
}

// prepare refreshes totals before any money moves and walks the session up to target.
func (s *Service) prepare(ctx context.Context, session *domain.CheckoutSession, method domain.PaymentMethod, delivery domain.DeliveryDetails, target domain.CheckoutStatus) error {
	if session.Status == domain.CheckoutStatusPaymentPending {
		// the intent amount is fixed once created, so the cart has to be the one it was created for
		if session.PaymentIntentID != "" {
			return s.ensureCartUnchanged(ctx, session)
		}
		return s.refreshTotals(ctx, session)
	}
	if session.AddressID == "" {
		return domain.NewValidationError("addressId", "please select a delivery address")
	}
	if delivery.DeliveryType == domain.DeliveryScheduled {
		if delivery.ScheduledTime == nil || !delivery.ScheduledTime.After(s.now()) {
			return domain.NewValidationError("scheduledTime", "scheduled time must be in the future")
		}
	}

	session.PaymentMethod = method
	session.Delivery = delivery
	if err := s.refreshTotals(ctx, session); err != nil {
		return err
	}

	if session.Status == domain.CheckoutStatusAddressSelected {
		if err := s.transition(ctx, session, domain.CheckoutStatusTotalsComputed); err != nil {
			return err
		}
	}
	return s.transition(ctx, session, target)
}

// settle records the payment outcome on the session. revert is the status used when
// the attempt can be retried.
func (s *Service) settle(
	ctx context.Context,
	session *domain.CheckoutSession,
	attempt *payment.Attempt,
	out payment.Outcome,
	payErr error,
	revert domain.CheckoutStatus,
	billing domain.BillingDetails,
	rec *RecurringRequest) (*Result, error) {

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterChargeTimeout)
	defer cancel()

	var timeout *payment.PollTimeout
	var confirmErr *payment.PaymentConfirmationError
	switch {
	case payErr == nil:
	case errors.As(payErr, &timeout):
		session.FailureReason = timeout.Error()
		s.record(pctx, session, domain.CheckoutStatusVerificationTimeout)
		return &Result{Session: session}, payErr
	case errors.As(payErr, &confirmErr):
		session.FailureReason = confirmErr.Message
		s.record(pctx, session, domain.CheckoutStatusPaymentPending)
		return &Result{Session: session}, payErr
	default:
		s.record(pctx, session, revert)
		return nil, payErr
	}

	switch out.State {
	case payment.StateSucceeded:
		session.FailureReason = ""
		if err := s.transition(pctx, session, domain.CheckoutStatusPaymentSucceeded); err != nil {
			return nil, err
		}
		return s.finalize(pctx, session, attempt, billing, rec)
	case payment.StateRequiresAction:
		s.record(pctx, session, domain.CheckoutStatusPaymentPending)
		return &Result{Session: session, NextAction: out.NextAction}, nil
	case payment.StateCanceled:
		session.FailureReason = ErrPaymentCanceled.Error()
		s.record(pctx, session, domain.CheckoutStatusFailed)
		return &Result{Session: session}, ErrPaymentCanceled
	}

	s.record(pctx, session, revert)
	return &Result{Session: session}, nil
}

// record persists a post-payment status. Failures are logged; the payment outcome
// is what the caller reports.
func (s *Service) record(ctx context.Context, session *domain.CheckoutSession, to domain.CheckoutStatus) {
	if err := s.transition(ctx, session, to); err != nil {
		logger.FromContext(ctx).Error("failed to record payment outcome",
			slog.String("checkout_id", session.ID),
			slog.String("status", to.String()),
			slog.Any("err", err))
	}
}

// finalize confirms the order for a charged session. It never charges.
func (s *Service) finalize(ctx context.Context, session *domain.CheckoutSession, attempt *payment.Attempt, billing domain.BillingDetails, rec *RecurringRequest) (*Result, error) {
	order, err := s.orders.ConfirmCard(ctx, attempt, s.details(session))
	if err != nil {
		var recErr *orders.OrderReconciliationError
		if errors.As(err, &recErr) {
			event, evErr := newEvent(EventReconciliationPending, session, s.now())
			if evErr == nil {
				evErr = s.repo.AddEvent(ctx, event)
			}
			if evErr != nil {
				logger.FromContext(ctx).Error("failed to record reconciliation event", slog.String("checkout_id", session.ID), slog.Any("err", evErr))
			}
			return &Result{Session: session}, err
		}
		return nil, err
	}
	return s.complete(ctx, session, order, billing, rec)
}

func (s *Service) complete(ctx context.Context, session *domain.CheckoutSession, order *domain.Order, billing domain.BillingDetails, rec *RecurringRequest) (*Result, error) {
	log := logger.FromContext(ctx)
	from := session.Status
	if !domain.CanTransitionTo(from, domain.CheckoutStatusCompleted) {
		return nil, ErrIllegalTransition
	}

	session.OrderID = order.OrderID
	session.Status = domain.CheckoutStatusCompleted
	event, err := newEvent(EventCheckoutCompleted, session, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.CompleteSession(ctx, session, from, event); err != nil {
		session.Status = from
		if errors.Is(err, r.ErrStaleSession) {
			// completed concurrently, e.g. by the recovery loop
			return s.reload(ctx, session)
		}
		return nil, err
	}
	log.Info("checkout completed",
		slog.String("checkout_id", session.ID),
		slog.String("order_id", order.OrderID),
		slog.String("payment_method", string(session.PaymentMethod)))

	res := &Result{Session: session, Order: order, RedirectPath: orderPath(order.OrderID)}
	if rec != nil {
		recOrder, err := s.setupRecurring(ctx, session, billing, rec)
		if err != nil {
			log.Warn("recurring order not created", slog.String("checkout_id", session.ID), slog.Any("err", err))
			res.RecurringError = err.Error()
		} else {
			res.RecurringOrder = recOrder
		}
	}
	return res, nil
}

func (s *Service) reload(ctx context.Context, session *domain.CheckoutSession) (*Result, error) {
	fresh, err := s.repo.GetSession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if fresh.Status != domain.CheckoutStatusCompleted {
		return nil, guard.ErrCheckoutInProgress
	}
	return completedResult(fresh), nil
}

func (s *Service) validateRecurring(session *domain.CheckoutSession, rec *RecurringRequest) error {
	if rec == nil {
		return nil
	}
	if rec.Card == nil || rec.Card.Token == "" {
		return ErrRecurringCardNeeded
	}
	return s.recurring.Validate(s.draft(session, rec))
}

func (s *Service) setupRecurring(ctx context.Context, session *domain.CheckoutSession, billing domain.BillingDetails, rec *RecurringRequest) (*domain.RecurringOrder, error) {
	if rec.Card == nil {
		return nil, ErrRecurringCardNeeded
	}
	draft := s.draft(session, rec)
	if err := s.recurring.RegisterPaymentMethod(ctx, draft, *rec.Card, billing); err != nil {
		return nil, err
	}
	return s.recurring.CreateSubscription(ctx, draft)
}

func (s *Service) draft(session *domain.CheckoutSession, rec *RecurringRequest) *recurring.Draft {
	d := recurring.NewDraft(session.UserID, session.AddressID, session.CartSnapshot.OrderItems())
	d.Frequency = rec.Frequency
	d.DayOfWeek = rec.DayOfWeek
	d.ExecutionTime = rec.ExecutionTime
	return d
}

func (s *Service) details(session *domain.CheckoutSession) orders.Details {
	return orders.Details{
		UserID:     session.UserID,
		AddressID:  session.AddressID,
		CouponCode: session.CouponCode(),
		Delivery:   session.Delivery,
	}
}

func (s *Service) intentOf(session *domain.CheckoutSession) domain.PaymentIntent {
	return domain.PaymentIntent{
		PaymentIntentID: session.PaymentIntentID,
		ClientSecret:    session.ClientSecret,
		Amount:          session.Totals.ChargeAmount,
		DiscountAmount:  session.Totals.Discount,
	}
}

// attemptFor rebuilds the payment attempt from what the session stored.
func (s *Service) attemptFor(session *domain.CheckoutSession) *payment.Attempt {
	if session.PaymentIntentID == "" {
		return payment.NewAttempt(session.UserID)
	}
	return payment.ResumeAttempt(session.UserID, s.intentOf(session), payment.StateAwaitingConfirmation)
}

func (s *Service) succeededAttempt(session *domain.CheckoutSession) *payment.Attempt {
	return payment.ResumeAttempt(session.UserID, s.intentOf(session), payment.StateSucceeded)
}
