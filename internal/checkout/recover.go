package checkout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/auth"
	"github.com/fjod/go_checkout/pkg/logger"
)

// Recoverer finishes sessions a request left behind. Storefront calls run with the
// service credential on behalf of the session's user.
type Recoverer struct {
	svc          *Service
	serviceToken string
}

func NewRecoverer(svc *Service, serviceToken string) *Recoverer {
	return &Recoverer{svc: svc, serviceToken: serviceToken}
}

// Recover confirms the order of a charged session, or re-checks a payment whose
// verification timed out or whose confirming request died. It never starts a new charge.
func (rc *Recoverer) Recover(ctx context.Context, session *domain.CheckoutSession) error {
	ctx = auth.WithSession(ctx, auth.Session{Token: rc.serviceToken, UserID: session.UserID})
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(slog.String("checkout_id", session.ID)))

	switch session.Status {
	case domain.CheckoutStatusPaymentSucceeded:
		// a scheduled slot that passed while the order was pending falls back to standard delivery
		if session.Delivery.ScheduledTime != nil && !session.Delivery.ScheduledTime.After(rc.svc.now()) {
			session.Delivery.DeliveryType = domain.DeliveryStandard
			session.Delivery.ScheduledTime = nil
		}
		_, err := rc.svc.finalize(ctx, session, rc.svc.succeededAttempt(session), domain.BillingDetails{}, nil)
		return err
	case domain.CheckoutStatusVerificationTimeout, domain.CheckoutStatusConfirming:
		_, err := rc.svc.verify(ctx, session)
		return err
	}
	return fmt.Errorf("session %s in status %s: %w", session.ID, session.Status, ErrNothingToVerify)
}
