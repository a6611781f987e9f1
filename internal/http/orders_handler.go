package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/go-chi/chi/v5"
)

type OrderCanceller interface {
	Cancel(ctx context.Context, orderID string) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderCanceller
	timeout time.Duration
}

func NewOrdersHandler(orders OrderCanceller, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{orders: orders, timeout: timeout}
}

// PATCH /api/v1/orders/{id}/cancel
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.Cancel(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
