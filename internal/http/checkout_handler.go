package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/checkout"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type CheckoutService interface {
	Begin(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error)
	Get(ctx context.Context, userID, id string) (*domain.CheckoutSession, error)
	SelectAddress(ctx context.Context, userID, id, addressID string) (*domain.CheckoutSession, error)
	ApplyCoupon(ctx context.Context, userID, id, code string) (*domain.CheckoutSession, error)
	RemoveCoupon(ctx context.Context, userID, id string) (*domain.CheckoutSession, error)
	Quote(ctx context.Context, userID, id string) (*domain.CheckoutSession, error)
	PayByCard(ctx context.Context, userID, id string, req checkout.PayByCardRequest) (*checkout.Result, error)
	PayByCash(ctx context.Context, userID, id string, req checkout.PayByCashRequest) (*checkout.Result, error)
	VerifyPayment(ctx context.Context, userID, id string) (*checkout.Result, error)
	Abandon(ctx context.Context, userID, id string) (*domain.CheckoutSession, error)
	NavigationBlocked(ctx context.Context, userID, id string) (bool, error)
}

type CheckoutHandler struct {
	svc        CheckoutService
	timeout    time.Duration
	payTimeout time.Duration
	validate   *validator.Validate
}

// NewCheckoutHandler uses payTimeout for the payment routes, which may poll the
// processor for a while.
func NewCheckoutHandler(svc CheckoutService, timeout, payTimeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, timeout: timeout, payTimeout: payTimeout, validate: validator.New()}
}

const IdempotencyKeyHeader = "Idempotency-Key"

type InitiateCheckoutRequestDTO struct {
	IdempotencyKey string `json:"idempotency_key"`
}

type SelectAddressRequestDTO struct {
	AddressID string `json:"addressId"`
}

type ApplyCouponRequestDTO struct {
	CouponCode string `json:"couponCode"`
}

type RecurringRequestDTO struct {
	Frequency     domain.Frequency    `json:"frequency" validate:"required,oneof=Daily Weekly Monthly"`
	DayOfWeek     *int                `json:"dayOfWeek,omitempty" validate:"omitempty,min=0,max=6"`
	ExecutionTime string              `json:"executionTime" validate:"required"`
	Card          *domain.CardDetails `json:"card,omitempty"`
}

type PayByCardRequestDTO struct {
	Card      domain.CardDetails     `json:"card"`
	Billing   domain.BillingDetails  `json:"billing"`
	Delivery  domain.DeliveryDetails `json:"delivery"`
	Recurring *RecurringRequestDTO   `json:"recurring,omitempty"`
}

type PayByCashRequestDTO struct {
	Billing   domain.BillingDetails  `json:"billing"`
	Delivery  domain.DeliveryDetails `json:"delivery"`
	Recurring *RecurringRequestDTO   `json:"recurring,omitempty"`
}

type CouponDTO struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type CheckoutResponseDTO struct {
	CheckoutID      string                    `json:"checkout_id"`
	Status          string                    `json:"status"`
	Items           []domain.CartSnapshotItem `json:"items"`
	AddressID       string                    `json:"address_id,omitempty"`
	Coupon          *CouponDTO                `json:"coupon,omitempty"`
	Totals          domain.Totals             `json:"totals"`
	PaymentMethod   domain.PaymentMethod      `json:"payment_method,omitempty"`
	PaymentIntentID string                    `json:"payment_intent_id,omitempty"`
	OrderID         string                    `json:"order_id,omitempty"`
	FailureReason   string                    `json:"failure_reason,omitempty"`
}

type PaymentResponseDTO struct {
	Checkout       CheckoutResponseDTO    `json:"checkout"`
	OrderID        string                 `json:"order_id,omitempty"`
	TotalAmount    *decimal.Decimal       `json:"total_amount,omitempty"`
	RecurringOrder *domain.RecurringOrder `json:"recurring_order,omitempty"`
	RecurringError string                 `json:"recurring_error,omitempty"`
	NextAction     string                 `json:"next_action,omitempty"`
	RedirectPath   string                 `json:"redirect_path,omitempty"`
}

type GuardResponseDTO struct {
	NavigationBlocked bool `json:"navigation_blocked"`
}

func toCheckoutDTO(s *domain.CheckoutSession) CheckoutResponseDTO {
	dto := CheckoutResponseDTO{
		CheckoutID:      s.ID,
		Status:          s.Status.String(),
		Items:           s.CartSnapshot.Items,
		AddressID:       s.AddressID,
		Totals:          s.Totals,
		PaymentMethod:   s.PaymentMethod,
		PaymentIntentID: s.PaymentIntentID,
		OrderID:         s.OrderID,
		FailureReason:   s.FailureReason,
	}
	if s.Coupon != nil {
		dto.Coupon = &CouponDTO{Code: s.Coupon.Coupon.Code, Message: s.Coupon.Message}
	}
	return dto
}

func toPaymentDTO(res *checkout.Result) PaymentResponseDTO {
	dto := PaymentResponseDTO{
		Checkout:       toCheckoutDTO(res.Session),
		OrderID:        res.Session.OrderID,
		RecurringOrder: res.RecurringOrder,
		RecurringError: res.RecurringError,
		NextAction:     res.NextAction,
		RedirectPath:   res.RedirectPath,
	}
	if res.Order != nil {
		dto.TotalAmount = &res.Order.TotalAmount
	}
	return dto
}

func toRecurringRequest(dto *RecurringRequestDTO) *checkout.RecurringRequest {
	if dto == nil {
		return nil
	}
	return &checkout.RecurringRequest{
		Frequency:     dto.Frequency,
		DayOfWeek:     dto.DayOfWeek,
		ExecutionTime: dto.ExecutionTime,
		Card:          dto.Card,
	}
}

// POST /api/v1/checkout
func (h *CheckoutHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" {
		var req InitiateCheckoutRequestDTO
		if !decodeBody(w, r, &req) {
			return
		}
		key = strings.TrimSpace(req.IdempotencyKey)
	}
	if key == "" {
		respondError(w, http.StatusBadRequest, "missing_idempotency_key", "idempotency_key is required")
		return
	}

	session, err := h.svc.Begin(ctx, domain.CheckoutRequest{UserID: userID(r), IdempotencyKey: key})
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCheckoutDTO(session))
}

// GET /api/v1/checkout/{id}
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	h.sessionStep(w, r, func(ctx context.Context, uid, id string) (*domain.CheckoutSession, error) {
		return h.svc.Get(ctx, uid, id)
	})
}

// PUT /api/v1/checkout/{id}/address
func (h *CheckoutHandler) SelectAddress(w http.ResponseWriter, r *http.Request) {
	var req SelectAddressRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	h.sessionStep(w, r, func(ctx context.Context, uid, id string) (*domain.CheckoutSession, error) {
		return h.svc.SelectAddress(ctx, uid, id, req.AddressID)
	})
}

// POST /api/v1/checkout/{id}/coupon
func (h *CheckoutHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req ApplyCouponRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	h.sessionStep(w, r, func(ctx context.Context, uid, id string) (*domain.CheckoutSession, error) {
		return h.svc.ApplyCoupon(ctx, uid, id, req.CouponCode)
	})
}

// DELETE /api/v1/checkout/{id}/coupon
func (h *CheckoutHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	h.sessionStep(w, r, h.svc.RemoveCoupon)
}

// GET /api/v1/checkout/{id}/quote
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	h.sessionStep(w, r, h.svc.Quote)
}

// POST /api/v1/checkout/{id}/abandon
func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	h.sessionStep(w, r, h.svc.Abandon)
}

// GET /api/v1/checkout/{id}/guard
func (h *CheckoutHandler) Guard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	blocked, err := h.svc.NavigationBlocked(ctx, userID(r), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, GuardResponseDTO{NavigationBlocked: blocked})
}

// POST /api/v1/checkout/{id}/pay/card
func (h *CheckoutHandler) PayByCard(w http.ResponseWriter, r *http.Request) {
	var req PayByCardRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "please check your card and billing details", Code: "validation_error", Details: err.Error()})
		return
	}

	h.paymentStep(w, r, func(ctx context.Context, uid, id string) (*checkout.Result, error) {
		return h.svc.PayByCard(ctx, uid, id, checkout.PayByCardRequest{
			Card:      req.Card,
			Billing:   req.Billing,
			Delivery:  req.Delivery,
			Recurring: toRecurringRequest(req.Recurring),
		})
	})
}

// POST /api/v1/checkout/{id}/pay/cash
func (h *CheckoutHandler) PayByCash(w http.ResponseWriter, r *http.Request) {
	var req PayByCashRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req.Delivery); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "please check your delivery details", Code: "validation_error", Details: err.Error()})
		return
	}
	if req.Recurring != nil {
		if err := h.validate.Struct(req.Recurring); err != nil {
			respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "please check your recurring order", Code: "validation_error", Details: err.Error()})
			return
		}
	}

	h.paymentStep(w, r, func(ctx context.Context, uid, id string) (*checkout.Result, error) {
		return h.svc.PayByCash(ctx, uid, id, checkout.PayByCashRequest{
			Billing:   req.Billing,
			Delivery:  req.Delivery,
			Recurring: toRecurringRequest(req.Recurring),
		})
	})
}

// POST /api/v1/checkout/{id}/pay/verify
func (h *CheckoutHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	h.paymentStep(w, r, h.svc.VerifyPayment)
}

func (h *CheckoutHandler) sessionStep(w http.ResponseWriter, r *http.Request, step func(ctx context.Context, userID, id string) (*domain.CheckoutSession, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, err := step(ctx, userID(r), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCheckoutDTO(session))
}

func (h *CheckoutHandler) paymentStep(w http.ResponseWriter, r *http.Request, step func(ctx context.Context, userID, id string) (*checkout.Result, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.payTimeout)
	defer cancel()

	res, err := step(ctx, userID(r), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.NextAction != "" {
		status = http.StatusAccepted
	}
	respondJSON(w, status, toPaymentDTO(res))
}
