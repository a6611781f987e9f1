package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/checkout"
	"github.com/fjod/go_checkout/internal/recurring"
)

type MockCartService struct {
	Cart    *domain.Cart
	Err     error
	Added   []domain.CartItem
	Cleared bool
}

func (m *MockCartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Cart == nil {
		return &domain.Cart{UserID: userID}, nil
	}
	return m.Cart, nil
}

func (m *MockCartService) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	if m.Err != nil {
		return m.Err
	}
	m.Added = append(m.Added, item)
	return nil
}

func (m *MockCartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error {
	return m.Err
}

func (m *MockCartService) RemoveItem(ctx context.Context, userID, productID string) error {
	return m.Err
}

func (m *MockCartService) ClearCart(ctx context.Context, userID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Cleared = true
	return nil
}

type MockCheckoutService struct {
	Session   *domain.CheckoutSession
	Result    *checkout.Result
	Err       error
	Blocked   bool
	Requests  []domain.CheckoutRequest
	CardCalls []checkout.PayByCardRequest
	CashCalls []checkout.PayByCashRequest
	Coupon    string
	UserIDs   []string
}

func (m *MockCheckoutService) session(userID string) (*domain.CheckoutSession, error) {
	m.UserIDs = append(m.UserIDs, userID)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Session, nil
}

func (m *MockCheckoutService) result(userID string) (*checkout.Result, error) {
	m.UserIDs = append(m.UserIDs, userID)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

func (m *MockCheckoutService) Begin(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	m.Requests = append(m.Requests, req)
	return m.session(req.UserID)
}

func (m *MockCheckoutService) Get(ctx context.Context, userID, id string) (*domain.CheckoutSession, error) {
	return m.session(userID)
}

func (m *MockCheckoutService) SelectAddress(ctx context.Context, userID, id, addressID string) (*domain.CheckoutSession, error) {
	return m.session(userID)
}

func (m *MockCheckoutService) ApplyCoupon(ctx context.Context, userID, id, code string) (*domain.CheckoutSession, error) {
	m.Coupon = code
	return m.session(userID)
}

func (m *MockCheckoutService) RemoveCoupon(ctx context.Context, userID, id string) (*domain.CheckoutSession, error) {
	return m.session(userID)
}

func (m *MockCheckoutService) Quote(ctx context.Context, userID, id string) (*domain.CheckoutSession, error) {
	return m.session(userID)
}

func (m *MockCheckoutService) PayByCard(ctx context.Context, userID, id string, req checkout.PayByCardRequest) (*checkout.Result, error) {
	m.CardCalls = append(m.CardCalls, req)
	return m.result(userID)
}

func (m *MockCheckoutService) PayByCash(ctx context.Context, userID, id string, req checkout.PayByCashRequest) (*checkout.Result, error) {
	m.CashCalls = append(m.CashCalls, req)
	return m.result(userID)
}

func (m *MockCheckoutService) VerifyPayment(ctx context.Context, userID, id string) (*checkout.Result, error) {
	return m.result(userID)
}

func (m *MockCheckoutService) Abandon(ctx context.Context, userID, id string) (*domain.CheckoutSession, error) {
	return m.session(userID)
}

func (m *MockCheckoutService) NavigationBlocked(ctx context.Context, userID, id string) (bool, error) {
	return m.Blocked, m.Err
}

type MockOrderCanceller struct {
	Order *domain.Order
	Err   error
}

func (m *MockOrderCanceller) Cancel(ctx context.Context, orderID string) (*domain.Order, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Order, nil
}

type MockRecurringService struct {
	Existing   []domain.RecurringOrder
	Err        error
	Drafts     []*recurring.Draft
	Confirmed  []recurring.CancelConfirmation
	Registered []domain.CardDetails
	Paused     []string
	Resumed    []string
}

func (m *MockRecurringService) RegisterPaymentMethod(ctx context.Context, d *recurring.Draft, card domain.CardDetails, billing domain.BillingDetails) error {
	if m.Err != nil {
		return m.Err
	}
	m.Registered = append(m.Registered, card)
	d.PaymentMethodID = "pm_1"
	d.State = recurring.StatePaymentMethodPending
	return nil
}

func (m *MockRecurringService) CreateSubscription(ctx context.Context, d *recurring.Draft) (*domain.RecurringOrder, error) {
	m.Drafts = append(m.Drafts, d)
	return &domain.RecurringOrder{
		ID:              "rec-1",
		UserID:          d.UserID,
		AddressID:       d.AddressID,
		Items:           d.Items,
		Frequency:       d.Frequency,
		DayOfWeek:       d.DayOfWeek,
		ExecutionTime:   d.ExecutionTime,
		PaymentMethodID: d.PaymentMethodID,
		IsActive:        true,
	}, nil
}

func (m *MockRecurringService) Pause(ctx context.Context, id string) (*domain.RecurringOrder, error) {
	m.Paused = append(m.Paused, id)
	return &domain.RecurringOrder{ID: id, IsActive: false}, m.Err
}

func (m *MockRecurringService) Resume(ctx context.Context, id string) (*domain.RecurringOrder, error) {
	m.Resumed = append(m.Resumed, id)
	return &domain.RecurringOrder{ID: id, IsActive: true}, m.Err
}

func (m *MockRecurringService) Cancel(ctx context.Context, id string, confirm recurring.CancelConfirmation) error {
	m.Confirmed = append(m.Confirmed, confirm)
	if m.Err != nil {
		return m.Err
	}
	if !confirm.Confirmed || confirm.ID != id {
		return recurring.ErrCancelNotConfirmed
	}
	return nil
}

func (m *MockRecurringService) List(ctx context.Context) ([]domain.RecurringOrder, error) {
	return m.Existing, m.Err
}

type server struct {
	cart      *MockCartService
	checkout  *MockCheckoutService
	orders    *MockOrderCanceller
	recurring *MockRecurringService
	handler   http.Handler
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{
		cart:      &MockCartService{},
		checkout:  &MockCheckoutService{},
		orders:    &MockOrderCanceller{},
		recurring: &MockRecurringService{},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.handler = NewRouter(log, Handlers{
		Cart:      NewCartHandler(s.cart, 5*time.Second),
		Checkout:  NewCheckoutHandler(s.checkout, 5*time.Second, 10*time.Second),
		Orders:    NewOrdersHandler(s.orders, 5*time.Second),
		Recurring: NewRecurringHandler(s.recurring, 5*time.Second),
	})
	return s
}

// do sends an authenticated request as user-1.
func (s *server) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set(UserIDHeader, "user-1")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func session(status domain.CheckoutStatus) *domain.CheckoutSession {
	return &domain.CheckoutSession{ID: "chk-1", UserID: "user-1", Status: status}
}
