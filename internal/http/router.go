package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Handlers struct {
	Cart      *CartHandler
	Checkout  *CheckoutHandler
	Orders    *OrdersHandler
	Recurring *RecurringHandler
}

// NewRouter builds the public API. Request deadlines are set per handler because the
// payment routes outlive the others.
func NewRouter(log *slog.Logger, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}", h.Cart.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", h.Checkout.InitiateCheckout)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Checkout.GetCheckout)
				r.Put("/address", h.Checkout.SelectAddress)
				r.Post("/coupon", h.Checkout.ApplyCoupon)
				r.Delete("/coupon", h.Checkout.RemoveCoupon)
				r.Get("/quote", h.Checkout.Quote)
				r.Post("/pay/card", h.Checkout.PayByCard)
				r.Post("/pay/cash", h.Checkout.PayByCash)
				r.Post("/pay/verify", h.Checkout.VerifyPayment)
				r.Post("/abandon", h.Checkout.Abandon)
				r.Get("/guard", h.Checkout.Guard)
			})
		})

		r.Patch("/orders/{id}/cancel", h.Orders.CancelOrder)

		r.Route("/recurring", func(r chi.Router) {
			r.Get("/", h.Recurring.List)
			r.Post("/", h.Recurring.Create)
			r.Patch("/{id}/pause", h.Recurring.Pause)
			r.Patch("/{id}/resume", h.Recurring.Resume)
			r.Delete("/{id}", h.Recurring.Cancel)
		})
	})

	return otelhttp.NewHandler(r, "checkout-api")
}
