package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/recurring"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type RecurringService interface {
	RegisterPaymentMethod(ctx context.Context, d *recurring.Draft, card domain.CardDetails, billing domain.BillingDetails) error
	CreateSubscription(ctx context.Context, d *recurring.Draft) (*domain.RecurringOrder, error)
	Pause(ctx context.Context, id string) (*domain.RecurringOrder, error)
	Resume(ctx context.Context, id string) (*domain.RecurringOrder, error)
	Cancel(ctx context.Context, id string, confirm recurring.CancelConfirmation) error
	List(ctx context.Context) ([]domain.RecurringOrder, error)
}

type RecurringHandler struct {
	svc      RecurringService
	timeout  time.Duration
	validate *validator.Validate
}

func NewRecurringHandler(svc RecurringService, timeout time.Duration) *RecurringHandler {
	return &RecurringHandler{svc: svc, timeout: timeout, validate: validator.New()}
}

type CreateRecurringRequestDTO struct {
	AddressID     string                `json:"addressId" validate:"required"`
	Items         []domain.OrderItem    `json:"items" validate:"required,min=1,dive"`
	Frequency     domain.Frequency      `json:"frequency" validate:"required,oneof=Daily Weekly Monthly"`
	DayOfWeek     *int                  `json:"dayOfWeek,omitempty" validate:"omitempty,min=0,max=6"`
	ExecutionTime string                `json:"executionTime" validate:"required"`
	Card          domain.CardDetails    `json:"card"`
	Billing       domain.BillingDetails `json:"billing"`
}

type RecurringListDTO struct {
	RecurringOrders []domain.RecurringOrder `json:"recurring_orders"`
}

// GET /api/v1/recurring
func (h *RecurringHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.svc.List(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.RecurringOrder{}
	}
	respondJSON(w, http.StatusOK, RecurringListDTO{RecurringOrders: list})
}

// POST /api/v1/recurring
func (h *RecurringHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateRecurringRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "please check your recurring order", Code: "validation_error", Details: err.Error()})
		return
	}

	draft := recurring.NewDraft(userID(r), req.AddressID, req.Items)
	draft.Frequency = req.Frequency
	draft.DayOfWeek = req.DayOfWeek
	draft.ExecutionTime = req.ExecutionTime

	if err := h.svc.RegisterPaymentMethod(ctx, draft, req.Card, req.Billing); err != nil {
		handleError(w, r, err)
		return
	}
	rec, err := h.svc.CreateSubscription(ctx, draft)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

// PATCH /api/v1/recurring/{id}/pause
func (h *RecurringHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.svc.Pause)
}

// PATCH /api/v1/recurring/{id}/resume
func (h *RecurringHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.svc.Resume)
}

// DELETE /api/v1/recurring/{id}?confirm={id}
//
// The confirm parameter must repeat the id the user agreed to cancel.
func (h *RecurringHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	confirmed := r.URL.Query().Get("confirm")
	err := h.svc.Cancel(ctx, id, recurring.CancelConfirmation{ID: confirmed, Confirmed: confirmed != ""})
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecurringHandler) toggle(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (*domain.RecurringOrder, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rec, err := fn(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}
