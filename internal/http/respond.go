package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/auth"
	"github.com/fjod/go_checkout/internal/cart"
	"github.com/fjod/go_checkout/internal/checkout"
	"github.com/fjod/go_checkout/internal/guard"
	"github.com/fjod/go_checkout/internal/orders"
	"github.com/fjod/go_checkout/internal/payment"
	"github.com/fjod/go_checkout/internal/pricing"
	"github.com/fjod/go_checkout/internal/recurring"
	"github.com/fjod/go_checkout/internal/storefront"
	"github.com/fjod/go_checkout/pkg/circuitbreaker"
	"github.com/fjod/go_checkout/pkg/logger"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", slog.Any("err", err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleError maps service errors to a status, a stable code and a message the UI
// can show as is.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *domain.ValidationError
		rejected   *pricing.CouponRejected
		setup      *payment.PaymentSetupError
		confirm    *payment.PaymentConfirmationError
		timeout    *payment.PollTimeout
		reconcile  *orders.OrderReconciliationError
		apiErr     *storefront.APIError
	)

	switch {
	case errors.As(err, &validation):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: validation.Message, Code: "validation_error", Details: validation.Field})
	case errors.As(err, &rejected):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: rejected.Message, Code: "coupon_rejected", Details: string(rejected.Reason)})
	case errors.As(err, &timeout):
		respondError(w, http.StatusGatewayTimeout, "verification_timeout", timeout.Error())
	case errors.As(err, &confirm):
		respondJSON(w, http.StatusPaymentRequired, ErrorResponse{Error: confirm.Message, Code: "payment_declined", Details: confirm.Refusal})
	case errors.As(err, &setup):
		respondError(w, http.StatusBadGateway, "payment_setup_failed", setup.Error())
	case errors.As(err, &reconcile):
		respondError(w, http.StatusAccepted, "order_confirmation_pending", reconcile.Error())
	case errors.Is(err, auth.ErrNoSession):
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
	case errors.Is(err, auth.ErrSessionExpired):
		respondError(w, http.StatusUnauthorized, "session_expired", "your session has expired, please sign in again")
	case errors.Is(err, checkout.ErrSessionNotFound), errors.Is(err, cart.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, guard.ErrCheckoutInProgress), errors.Is(err, checkout.ErrCheckoutLocked):
		respondError(w, http.StatusConflict, "checkout_in_progress", err.Error())
	case errors.Is(err, checkout.ErrCheckoutClosed),
		errors.Is(err, checkout.ErrIllegalTransition),
		errors.Is(err, checkout.ErrNothingToVerify),
		errors.Is(err, recurring.ErrInvalidState):
		respondError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, checkout.ErrPaymentCanceled):
		respondError(w, http.StatusPaymentRequired, "payment_canceled", err.Error())
	case errors.Is(err, domain.ErrEmptyCart), errors.Is(err, domain.ErrInvalidQuantity):
		respondError(w, http.StatusUnprocessableEntity, "invalid_cart", err.Error())
	case errors.Is(err, checkout.ErrRecurringCardNeeded),
		errors.Is(err, recurring.ErrCancelNotConfirmed),
		errors.Is(err, recurring.ErrPaymentMethodMissing):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case circuitbreaker.IsOpen(err):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "the store is temporarily unavailable, please try again shortly")
	case errors.As(err, &apiErr):
		if apiErr.Retryable() {
			respondError(w, http.StatusBadGateway, "upstream_error", apiErr.Message)
			return
		}
		respondError(w, apiErr.Status, "upstream_rejected", apiErr.Message)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "the request took too long, please try again")
	default:
		logger.FromContext(r.Context()).Error("request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
