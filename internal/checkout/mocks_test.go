package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/auth"
	"github.com/fjod/go_checkout/internal/guard"
	"github.com/fjod/go_checkout/internal/orders"
	"github.com/fjod/go_checkout/internal/payment"
	"github.com/fjod/go_checkout/internal/poll"
	"github.com/fjod/go_checkout/internal/pricing"
	"github.com/fjod/go_checkout/internal/processor"
	"github.com/fjod/go_checkout/internal/recurring"
	r "github.com/fjod/go_checkout/internal/repository"
	"github.com/fjod/go_checkout/internal/storefront"
	"github.com/shopspring/decimal"
)

// MockRepository implements r.RepoInterface in memory
type MockRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.CheckoutSession
	Events   []*r.OutboxEvent
}

func NewMockRepository() *MockRepository {
	return &MockRepository{sessions: map[string]domain.CheckoutSession{}}
}

func (m *MockRepository) CreateSession(_ context.Context, s *domain.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.UserID == s.UserID && existing.IdempotencyKey == s.IdempotencyKey {
			return r.ErrDuplicateCheckout
		}
	}
	m.sessions[s.ID] = clone(s)
	return nil
}

func (m *MockRepository) GetSession(_ context.Context, id string) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, r.ErrSessionNotFound
	}
	c := clone(&s)
	return &c, nil
}

func (m *MockRepository) GetSessionByIdempotencyKey(_ context.Context, userID, key string) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserID == userID && s.IdempotencyKey == key {
			c := clone(&s)
			return &c, nil
		}
	}
	return nil, r.ErrIdempotencyKeyNotFound
}

func (m *MockRepository) UpdateSession(_ context.Context, s *domain.CheckoutSession, from domain.CheckoutStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.update(s, from)
}

func (m *MockRepository) update(s *domain.CheckoutSession, from domain.CheckoutStatus) error {
	stored, ok := m.sessions[s.ID]
	if !ok || stored.Status != from {
		return r.ErrStaleSession
	}
	m.sessions[s.ID] = clone(s)
	return nil
}

func (m *MockRepository) CompleteSession(_ context.Context, s *domain.CheckoutSession, from domain.CheckoutStatus, event *r.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.update(s, from); err != nil {
		return err
	}
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockRepository) ListSessionsByStatus(_ context.Context, status domain.CheckoutStatus, _ time.Duration, _ int) ([]*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.CheckoutSession
	for _, s := range m.sessions {
		if s.Status == status {
			c := clone(&s)
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MockRepository) AddEvent(_ context.Context, e *r.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, e)
	return nil
}

func (m *MockRepository) GetUnprocessedEvents(context.Context, int) ([]*r.OutboxEvent, error) {
	return nil, nil
}

func (m *MockRepository) MarkEventAsProcessed(context.Context, string) error {
	return nil
}

func (m *MockRepository) Close() error {
	return nil
}

// put overwrites a stored session, bypassing the status guard.
func (m *MockRepository) put(s *domain.CheckoutSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = clone(s)
}

func (m *MockRepository) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var types []string
	for _, e := range m.Events {
		types = append(types, e.EventType)
	}
	return types
}

func clone(s *domain.CheckoutSession) domain.CheckoutSession {
	c := *s
	if s.Coupon != nil {
		coupon := *s.Coupon
		c.Coupon = &coupon
	}
	return c
}

// MockCartReader implements CartReader and orders.CartClearer for testing
type MockCartReader struct {
	Cart    *domain.Cart
	Err     error
	Cleared []string
}

func (m *MockCartReader) GetCart(_ context.Context, _ string) (*domain.Cart, error) {
	return m.Cart, m.Err
}

func (m *MockCartReader) ClearCart(_ context.Context, userID string) error {
	m.Cleared = append(m.Cleared, userID)
	return nil
}

// MockCouponChecker implements CouponChecker for testing
type MockCouponChecker struct {
	Result *storefront.CouponResult
	Err    error
	Totals []decimal.Decimal
}

func (m *MockCouponChecker) ApplyCoupon(_ context.Context, _ string, cartTotal decimal.Decimal) (*storefront.CouponResult, error) {
	m.Totals = append(m.Totals, cartTotal)
	return m.Result, m.Err
}

type staticShipping struct {
	cfg *pricing.ShippingConfig
}

func (s staticShipping) Config(context.Context) *pricing.ShippingConfig {
	return s.cfg
}

// MockIntentCreator implements payment.IntentCreator for testing
type MockIntentCreator struct {
	Calls int
	Err   error
}

func (m *MockIntentCreator) CreatePaymentIntent(_ context.Context, _ storefront.CreateIntentRequest) (*domain.PaymentIntent, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return &domain.PaymentIntent{PaymentIntentID: "pi_1", ClientSecret: "pi_1_secret", Amount: decimal.NewFromInt(30)}, nil
}

// MockProcessor implements payment.Processor and recurring.PaymentMethodSaver for testing
type MockProcessor struct {
	ConfirmResult  domain.IntentResult
	ConfirmErr     error
	RetrieveResult domain.IntentResult
	ConfirmCalls   int
	MethodCalls    int
	OnConfirm      func()
}

func (m *MockProcessor) ConfirmIntent(_ context.Context, _ processor.ConfirmRequest) (domain.IntentResult, error) {
	m.ConfirmCalls++
	if m.OnConfirm != nil {
		m.OnConfirm()
	}
	return m.ConfirmResult, m.ConfirmErr
}

func (m *MockProcessor) RetrieveIntent(_ context.Context, _ string) (domain.IntentResult, error) {
	return m.RetrieveResult, nil
}

func (m *MockProcessor) CreatePaymentMethod(_ context.Context, _ domain.CardDetails, _ domain.BillingDetails) (string, error) {
	m.MethodCalls++
	return "pm_1", nil
}

// MockOrderAPI implements orders.OrderAPI for testing
type MockOrderAPI struct {
	Err      error
	Requests []storefront.ConfirmOrderRequest
}

func (m *MockOrderAPI) ConfirmOrder(_ context.Context, req storefront.ConfirmOrderRequest) (*domain.Order, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	status := domain.PaymentStatusPaid
	if req.PaymentMethod == domain.PaymentMethodCash {
		status = domain.PaymentStatusPending
	}
	return &domain.Order{OrderID: "ord-1", PaymentMethod: req.PaymentMethod, PaymentStatus: status, PaymentIntentID: req.PaymentIntentID}, nil
}

func (m *MockOrderAPI) CancelOrder(_ context.Context, id string) (*domain.Order, error) {
	return &domain.Order{OrderID: id, OrderStatus: domain.OrderStatusCancelled}, nil
}

// MockRecurringAPI implements recurring.API for testing
type MockRecurringAPI struct {
	Created []storefront.CreateRecurringRequest
}

func (m *MockRecurringAPI) CreateRecurring(_ context.Context, req storefront.CreateRecurringRequest) (*domain.RecurringOrder, error) {
	m.Created = append(m.Created, req)
	return &domain.RecurringOrder{ID: "rec-1", Frequency: req.Frequency, IsActive: true}, nil
}

func (m *MockRecurringAPI) PauseRecurring(context.Context, string) (*domain.RecurringOrder, error) {
	return nil, nil
}

func (m *MockRecurringAPI) ResumeRecurring(context.Context, string) (*domain.RecurringOrder, error) {
	return nil, nil
}

func (m *MockRecurringAPI) DeleteRecurring(context.Context, string) error {
	return nil
}

func (m *MockRecurringAPI) ListRecurring(context.Context) ([]domain.RecurringOrder, error) {
	return nil, nil
}

type fixture struct {
	svc       *Service
	repo      *MockRepository
	carts     *MockCartReader
	coupons   *MockCouponChecker
	intents   *MockIntentCreator
	processor *MockProcessor
	orderAPI  *MockOrderAPI
	recurring *MockRecurringAPI
	guard     *guard.Guard
}

var testNow = time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)

func cartWith(prices ...string) *domain.Cart {
	cart := &domain.Cart{UserID: "user-1"}
	for i, p := range prices {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: string(rune('a' + i)),
			Quantity:  1,
			UnitPrice: decimal.RequireFromString(p),
		})
	}
	return cart
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      NewMockRepository(),
		carts:     &MockCartReader{Cart: cartWith("12.00", "8.00")},
		coupons:   &MockCouponChecker{},
		intents:   &MockIntentCreator{},
		processor: &MockProcessor{ConfirmResult: domain.IntentResult{Status: domain.IntentSucceeded}},
		orderAPI:  &MockOrderAPI{},
		recurring: &MockRecurringAPI{},
		guard:     guard.New(guard.NewMemoryStore(), time.Minute),
	}
	noSleep := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	f.svc = NewService(Deps{
		Repo:      f.repo,
		Carts:     f.carts,
		Coupons:   f.coupons,
		Shipping:  staticShipping{},
		Calc:      pricing.NewCalculator(pricing.NewConverter("INR", "GBP", decimal.RequireFromString("0.0095"))),
		Payments:  payment.NewCoordinator(f.intents, f.processor, f.guard, poll.Config{MaxAttempts: 3, Sleep: noSleep}),
		Orders:    orders.NewService(f.orderAPI, f.carts),
		Recurring: recurring.NewClient(f.recurring, f.processor, recurring.DefaultWindow()),
		Guard:     f.guard,
	})
	f.svc.now = func() time.Time { return testNow }
	return f
}

func userContext() context.Context {
	return auth.WithSession(context.Background(), auth.Session{Token: "tok", UserID: "user-1"})
}

// readySession returns a session with an address selected.
func (f *fixture) readySession(t *testing.T) *domain.CheckoutSession {
	t.Helper()
	ctx := userContext()
	s, err := f.svc.Begin(ctx, domain.CheckoutRequest{UserID: "user-1", IdempotencyKey: "key-1"})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	s, err = f.svc.SelectAddress(ctx, "user-1", s.ID, "addr-1")
	if err != nil {
		t.Fatalf("select address: %v", err)
	}
	return s
}
