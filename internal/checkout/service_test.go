package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/guard"
	"github.com/fjod/go_checkout/internal/orders"
	"github.com/fjod/go_checkout/internal/payment"
	"github.com/fjod/go_checkout/internal/pricing"
	"github.com/fjod/go_checkout/internal/processor"
	"github.com/fjod/go_checkout/internal/storefront"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBegin_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := userContext()
	req := domain.CheckoutRequest{UserID: "user-1", IdempotencyKey: "key-1"}

	first, err := f.svc.Begin(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusCartValidated, first.Status)
	assert.True(t, first.Totals.Subtotal.Equal(decimal.NewFromInt(20)))

	second, err := f.svc.Begin(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestBegin_EmptyCart(t *testing.T) {
	f := newFixture(t)
	f.carts.Cart = &domain.Cart{UserID: "user-1"}

	_, err := f.svc.Begin(userContext(), domain.CheckoutRequest{UserID: "user-1", IdempotencyKey: "key-1"})
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestGet_OtherUser(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)

	_, err := f.svc.Get(userContext(), "user-2", s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSelectAddress_RequiresID(t *testing.T) {
	f := newFixture(t)
	s, err := f.svc.Begin(userContext(), domain.CheckoutRequest{UserID: "user-1", IdempotencyKey: "key-1"})
	require.NoError(t, err)

	_, err = f.svc.SelectAddress(userContext(), "user-1", s.ID, " ")
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "addressId", vErr.Field)
}

func TestQuote_UsesLatestCart(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)
	assert.False(t, s.Totals.FreeShipping)
	assert.True(t, s.Totals.Total.Equal(decimal.NewFromInt(25)), "20 + 5 shipping, got %s", s.Totals.Total)

	f.carts.Cart = cartWith("12.00", "8.00", "10.00")
	quoted, err := f.svc.Quote(userContext(), "user-1", s.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.CheckoutStatusTotalsComputed, quoted.Status)
	assert.True(t, quoted.Totals.Subtotal.Equal(decimal.NewFromInt(30)))
	assert.True(t, quoted.Totals.FreeShipping)
	assert.True(t, quoted.Totals.Total.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, "GBP", quoted.Totals.ChargeCurrency)
	assert.True(t, quoted.Totals.ChargeAmount.Equal(decimal.RequireFromString("0.29")), "got %s", quoted.Totals.ChargeAmount)
}

func TestApplyCoupon_FlatFallback(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)
	f.coupons.Result = &storefront.CouponResult{Success: true, Message: "applied", DiscountAmount: decimal.NewFromInt(5)}

	got, err := f.svc.ApplyCoupon(userContext(), "user-1", s.ID, "SAVE5")
	require.NoError(t, err)

	require.NotNil(t, got.Coupon)
	assert.Equal(t, "SAVE5", got.CouponCode())
	assert.True(t, got.Totals.Discount.Equal(decimal.NewFromInt(5)))
	assert.True(t, got.Totals.Total.Equal(decimal.NewFromInt(20)), "20 - 5 + 5 shipping, got %s", got.Totals.Total)
	require.Len(t, f.coupons.Totals, 1)
	assert.True(t, f.coupons.Totals[0].Equal(decimal.NewFromInt(20)))
}

func TestApplyCoupon_PercentageRuleIsCapped(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)
	limit := decimal.NewFromInt(3)
	f.coupons.Result = &storefront.CouponResult{
		Success: true,
		Coupon: &domain.Coupon{
			Code:             "HALF",
			DiscountType:     domain.DiscountPercentage,
			DiscountValue:    decimal.NewFromInt(50),
			DiscountMaxLimit: &limit,
		},
	}

	got, err := f.svc.ApplyCoupon(userContext(), "user-1", s.ID, "HALF")
	require.NoError(t, err)
	assert.True(t, got.Totals.Discount.Equal(limit), "got %s", got.Totals.Discount)
}

func TestApplyCoupon_Rejected(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)
	f.coupons.Err = &pricing.CouponRejected{Reason: pricing.RejectExpired, Message: "coupon expired"}

	_, err := f.svc.ApplyCoupon(userContext(), "user-1", s.ID, "OLD")
	var rejected *pricing.CouponRejected
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, pricing.RejectExpired, rejected.Reason)

	stored, err := f.svc.Get(userContext(), "user-1", s.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Coupon)
}

func TestQuote_DropsCouponBelowMinimum(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)
	minimum := decimal.NewFromInt(15)
	f.coupons.Result = &storefront.CouponResult{
		Success: true,
		Coupon: &domain.Coupon{
			Code:              "MIN15",
			DiscountType:      domain.DiscountFlat,
			DiscountValue:     decimal.NewFromInt(2),
			MinimumOrderValue: &minimum,
		},
	}
	_, err := f.svc.ApplyCoupon(userContext(), "user-1", s.ID, "MIN15")
	require.NoError(t, err)

	f.carts.Cart = cartWith("8.00")
	got, err := f.svc.Quote(userContext(), "user-1", s.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Coupon)
	assert.True(t, got.Totals.Discount.IsZero())
}

func TestPayByCard_Success(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)

	res, err := f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{
		Card:    domain.CardDetails{Token: "tok_visa"},
		Billing: domain.BillingDetails{Name: "Ann"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.CheckoutStatusCompleted, res.Session.Status)
	assert.Equal(t, "ord-1", res.Session.OrderID)
	assert.Equal(t, "/orders/ord-1", res.RedirectPath)
	assert.Equal(t, 1, f.intents.Calls)
	assert.Equal(t, 1, f.processor.ConfirmCalls)
	assert.Equal(t, []string{"user-1"}, f.carts.Cleared)
	assert.Equal(t, []string{EventCheckoutCompleted}, f.repo.eventTypes())
	require.Len(t, f.orderAPI.Requests, 1)
	assert.Equal(t, "pi_1", f.orderAPI.Requests[0].PaymentIntentID)

	again, err := f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_visa"}})
	require.NoError(t, err)
	assert.Equal(t, "/orders/ord-1", again.RedirectPath)
	assert.Equal(t, 1, f.processor.ConfirmCalls, "a completed checkout must not charge again")
}

func TestPayByCard_DeclineThenRetryReusesIntent(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)
	f.processor.ConfirmErr = &processor.DeclinedError{Refusal: processor.RefusalInsufficientFunds, Message: "Your card has insufficient funds."}

	res, err := f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_poor"}})
	var confirmErr *payment.PaymentConfirmationError
	require.ErrorAs(t, err, &confirmErr)
	assert.Equal(t, domain.CheckoutStatusPaymentPending, res.Session.Status)
	assert.Equal(t, "Your card has insufficient funds.", res.Session.FailureReason)

	f.processor.ConfirmErr = nil
	res, err = f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_visa"}})
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusCompleted, res.Session.Status)
	assert.Empty(t, res.Session.FailureReason)
	assert.Equal(t, 1, f.intents.Calls)
	assert.Equal(t, 2, f.processor.ConfirmCalls)
}

func TestPayByCard_TimeoutThenVerify(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)
	f.processor.ConfirmResult = domain.IntentResult{Status: domain.IntentProcessing}
	f.processor.RetrieveResult = domain.IntentResult{Status: domain.IntentProcessing}

	res, err := f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_visa"}})
	var timeout *payment.PollTimeout
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, domain.CheckoutStatusVerificationTimeout, res.Session.Status)

	// no new charge while the outcome is unknown
	_, err = f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_visa"}})
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 1, f.processor.ConfirmCalls)

	f.processor.RetrieveResult = domain.IntentResult{Status: domain.IntentSucceeded}
	verified, err := f.svc.VerifyPayment(userContext(), "user-1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusCompleted, verified.Session.Status)
	assert.Equal(t, 1, f.processor.ConfirmCalls)
}

func TestPayByCard_RequiresAction(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)
	f.processor.ConfirmResult = domain.IntentResult{Status: domain.IntentRequiresAction, NextAction: "https://bank.example/3ds"}

	res, err := f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_3ds"}})
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusPaymentPending, res.Session.Status)
	assert.Equal(t, "https://bank.example/3ds", res.NextAction)

	f.processor.RetrieveResult = domain.IntentResult{Status: domain.IntentSucceeded}
	verified, err := f.svc.VerifyPayment(userContext(), "user-1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusCompleted, verified.Session.Status)
}

func TestPayByCard_Canceled(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)
	f.processor.ConfirmResult = domain.IntentResult{Status: domain.IntentCanceled}

	res, err := f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_visa"}})
	assert.ErrorIs(t, err, ErrPaymentCanceled)
	assert.Equal(t, domain.CheckoutStatusFailed, res.Session.Status)
}

func TestPayByCard_SetupError(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)
	f.intents.Err = &storefront.APIError{Status: 400, Message: "address not found"}

	_, err := f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_visa"}})
	var setupErr *payment.PaymentSetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "address not found", setupErr.Message)
	assert.Zero(t, f.processor.ConfirmCalls)

	// the address named by the error can be fixed and the payment retried
	stored, err := f.svc.Get(userContext(), "user-1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusTotalsComputed, stored.Status)
	assert.Empty(t, stored.PaymentIntentID)

	fixed, err := f.svc.SelectAddress(userContext(), "user-1", s.ID, "addr-2")
	require.NoError(t, err)
	assert.Equal(t, "addr-2", fixed.AddressID)

	f.intents.Err = nil
	res, err := f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_visa"}})
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusCompleted, res.Session.Status)
	assert.Equal(t, 2, f.intents.Calls)
}

func TestPayByCard_CartChangedAfterDeclineIsRefused(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)
	f.processor.ConfirmErr = &processor.DeclinedError{Refusal: processor.RefusalCardDeclined, Message: "declined"}

	_, err := f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_1"}})
	var confirmErr *payment.PaymentConfirmationError
	require.ErrorAs(t, err, &confirmErr)

	f.carts.Cart = cartWith("12.00", "8.00", "500.00")
	f.processor.ConfirmErr = nil
	_, err = f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_2"}})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "cart", vErr.Field)
	assert.Equal(t, 1, f.processor.ConfirmCalls)
	assert.Empty(t, f.orderAPI.Requests)

	// the stale session can still be abandoned
	abandoned, err := f.svc.Abandon(userContext(), "user-1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusAbandoned, abandoned.Status)
}

func TestPayByCard_SameCartAfterDeclineIsCharged(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)
	f.processor.ConfirmErr = &processor.DeclinedError{Refusal: processor.RefusalCardDeclined, Message: "declined"}
	_, err := f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_1"}})
	require.Error(t, err)

	// same lines, fresh read
	f.carts.Cart = cartWith("12.0", "8")
	f.processor.ConfirmErr = nil
	res, err := f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_2"}})
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusCompleted, res.Session.Status)
}

// interruptedConfirm leaves s as a crashed request would: CONFIRMING with an intent.
func (f *fixture) interruptedConfirm(t *testing.T, idle time.Duration) *domain.CheckoutSession {
	t.Helper()
	s := f.readySession(t)
	f.processor.ConfirmErr = &processor.DeclinedError{Refusal: processor.RefusalCardDeclined, Message: "declined"}
	_, err := f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_1"}})
	require.Error(t, err)
	f.processor.ConfirmErr = nil

	stored, err := f.repo.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	stored.Status = domain.CheckoutStatusConfirming
	stored.UpdatedAt = testNow.Add(-idle)
	f.repo.put(stored)
	return stored
}

func TestVerifyPayment_ResumesInterruptedConfirm(t *testing.T) {
	f := newFixture(t)
	s := f.interruptedConfirm(t, time.Hour)
	f.processor.RetrieveResult = domain.IntentResult{Status: domain.IntentSucceeded}

	res, err := f.svc.VerifyPayment(userContext(), "user-1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusCompleted, res.Session.Status)
	assert.Equal(t, 1, f.processor.ConfirmCalls)
	require.Len(t, f.orderAPI.Requests, 1)
}

func TestVerifyPayment_LeavesLiveConfirmAlone(t *testing.T) {
	f := newFixture(t)
	s := f.interruptedConfirm(t, time.Second)

	// too recent: the confirming request may still be running
	_, err := f.svc.VerifyPayment(userContext(), "user-1", s.ID)
	assert.ErrorIs(t, err, guard.ErrCheckoutInProgress)

	// old enough, but a request holds the guard
	s.UpdatedAt = testNow.Add(-time.Hour)
	f.repo.put(s)
	section, err := f.guard.Enter(context.Background(), "user-1")
	require.NoError(t, err)
	_, err = f.svc.VerifyPayment(userContext(), "user-1", s.ID)
	assert.ErrorIs(t, err, guard.ErrCheckoutInProgress)
	require.NoError(t, section.Release())

	stored, err := f.repo.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusConfirming, stored.Status)
	assert.Equal(t, 1, f.processor.ConfirmCalls)
}

func TestRecover_InterruptedConfirmStillProcessing(t *testing.T) {
	f := newFixture(t)
	s := f.interruptedConfirm(t, time.Hour)
	f.processor.RetrieveResult = domain.IntentResult{Status: domain.IntentProcessing}

	err := NewRecoverer(f.svc, "service-token").Recover(context.Background(), s)
	var timeout *payment.PollTimeout
	require.ErrorAs(t, err, &timeout)

	stored, err := f.repo.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusVerificationTimeout, stored.Status)

	f.processor.RetrieveResult = domain.IntentResult{Status: domain.IntentSucceeded}
	require.NoError(t, NewRecoverer(f.svc, "service-token").Recover(context.Background(), stored))
	done, err := f.repo.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusCompleted, done.Status)
}

func TestPayByCard_ScheduledTimeInPast(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)
	past := testNow.Add(-time.Hour)

	_, err := f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{
		Card:     domain.CardDetails{Token: "tok_visa"},
		Delivery: domain.DeliveryDetails{DeliveryType: domain.DeliveryScheduled, ScheduledTime: &past},
	})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "scheduledTime", vErr.Field)
	assert.Zero(t, f.intents.Calls)
}

func TestPayByCard_OrderFailureIsRecovered(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)
	f.orderAPI.Err = &storefront.APIError{Status: 502, Message: "bad gateway"}

	res, err := f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_visa"}})
	var recErr *orders.OrderReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, domain.CheckoutStatusPaymentSucceeded, res.Session.Status)
	assert.Equal(t, []string{EventReconciliationPending}, f.repo.eventTypes())

	pending, err := f.repo.ListSessionsByStatus(context.Background(), domain.CheckoutStatusPaymentSucceeded, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	f.orderAPI.Err = nil
	require.NoError(t, NewRecoverer(f.svc, "service-token").Recover(context.Background(), pending[0]))

	stored, err := f.svc.Get(userContext(), "user-1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusCompleted, stored.Status)
	assert.Equal(t, 1, f.processor.ConfirmCalls)
	assert.Equal(t, []string{EventReconciliationPending, EventCheckoutCompleted}, f.repo.eventTypes())
}

func TestRecover_NothingToDo(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)

	err := NewRecoverer(f.svc, "service-token").Recover(context.Background(), s)
	assert.ErrorIs(t, err, ErrNothingToVerify)
}

func TestPayByCard_BlocksNavigationWhileConfirming(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)

	var blocked bool
	var abandonErr, secondErr error
	f.processor.OnConfirm = func() {
		blocked, _ = f.svc.NavigationBlocked(userContext(), "user-1", s.ID)
		_, abandonErr = f.svc.Abandon(userContext(), "user-1", s.ID)
		_, secondErr = f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_visa"}})
	}

	_, err := f.svc.PayByCard(userContext(), "user-1", s.ID, PayByCardRequest{Card: domain.CardDetails{Token: "tok_visa"}})
	require.NoError(t, err)

	assert.True(t, blocked)
	assert.ErrorIs(t, abandonErr, ErrCheckoutLocked)
	assert.ErrorIs(t, secondErr, guard.ErrCheckoutInProgress)
	assert.Equal(t, 1, f.processor.ConfirmCalls)

	after, err := f.svc.NavigationBlocked(userContext(), "user-1", s.ID)
	require.NoError(t, err)
	assert.False(t, after)
}

func TestAbandon(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)

	got, err := f.svc.Abandon(userContext(), "user-1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusAbandoned, got.Status)

	_, err = f.svc.SelectAddress(userContext(), "user-1", s.ID, "addr-2")
	assert.ErrorIs(t, err, ErrCheckoutClosed)
}

func TestPayByCash(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)

	res, err := f.svc.PayByCash(userContext(), "user-1", s.ID, PayByCashRequest{})
	require.NoError(t, err)

	assert.Equal(t, domain.CheckoutStatusCompleted, res.Session.Status)
	assert.Equal(t, domain.PaymentMethodCash, res.Session.PaymentMethod)
	assert.Equal(t, domain.PaymentStatusPending, res.Order.PaymentStatus)
	assert.Zero(t, f.intents.Calls)
	assert.Zero(t, f.processor.ConfirmCalls)
	assert.Equal(t, []string{EventCheckoutCompleted}, f.repo.eventTypes())
}

func TestPayByCash_WithRecurringOrder(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)
	day := 3

	res, err := f.svc.PayByCash(userContext(), "user-1", s.ID, PayByCashRequest{
		Billing: domain.BillingDetails{Name: "Ann"},
		Recurring: &RecurringRequest{
			Frequency:     domain.FrequencyWeekly,
			DayOfWeek:     &day,
			ExecutionTime: "09:30",
			Card:          &domain.CardDetails{Token: "tok_recurring"},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, res.RecurringOrder)
	assert.Equal(t, "rec-1", res.RecurringOrder.ID)
	assert.Empty(t, res.RecurringError)
	require.Len(t, f.recurring.Created, 1)
	assert.Equal(t, "pm_1", f.recurring.Created[0].PaymentMethodID)
	assert.Len(t, f.recurring.Created[0].Items, 2)
}

func TestPayByCash_RecurringOutsideWindow(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)

	_, err := f.svc.PayByCash(userContext(), "user-1", s.ID, PayByCashRequest{
		Recurring: &RecurringRequest{
			Frequency:     domain.FrequencyDaily,
			ExecutionTime: "23:30",
			Card:          &domain.CardDetails{Token: "tok_recurring"},
		},
	})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "executionTime", vErr.Field)
	assert.Empty(t, f.orderAPI.Requests)
}

func TestPayByCash_RecurringNeedsCard(t *testing.T) {
	f := newFixture(t)
	s := f.readySession(t)

	_, err := f.svc.PayByCash(userContext(), "user-1", s.ID, PayByCashRequest{
		Recurring: &RecurringRequest{Frequency: domain.FrequencyDaily, ExecutionTime: "09:00"},
	})
	assert.True(t, errors.Is(err, ErrRecurringCardNeeded))
}
