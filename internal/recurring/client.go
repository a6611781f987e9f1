package recurring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/storefront"
	"github.com/fjod/go_checkout/pkg/logger"
	"github.com/go-playground/validator/v10"
)

type DraftState string

const (
	StateDraft                DraftState = "draft"
	StatePaymentMethodPending DraftState = "payment_method_pending"
	StateActive               DraftState = "active"
	StatePaused               DraftState = "paused"
	StateCancelled            DraftState = "cancelled"
)

// Draft is a recurring order being set up at checkout.
type Draft struct {
	State           DraftState
	UserID          string             `validate:"required"`
	AddressID       string             `validate:"required"`
	Items           []domain.OrderItem `validate:"required,min=1,dive"`
	Frequency       domain.Frequency   `validate:"required,oneof=Daily Weekly Monthly"`
	DayOfWeek       *int               `validate:"omitempty,min=0,max=6"`
	ExecutionTime   string             `validate:"required"`
	PaymentMethodID string
	Order           *domain.RecurringOrder `validate:"-"`
}

func NewDraft(userID, addressID string, items []domain.OrderItem) *Draft {
	return &Draft{State: StateDraft, UserID: userID, AddressID: addressID, Items: items}
}

// CancelConfirmation is the user's explicit answer to "cancel this recurring order?".
type CancelConfirmation struct {
	ID        string
	Confirmed bool
}

type API interface {
	CreateRecurring(ctx context.Context, req storefront.CreateRecurringRequest) (*domain.RecurringOrder, error)
	PauseRecurring(ctx context.Context, id string) (*domain.RecurringOrder, error)
	ResumeRecurring(ctx context.Context, id string) (*domain.RecurringOrder, error)
	DeleteRecurring(ctx context.Context, id string) error
	ListRecurring(ctx context.Context) ([]domain.RecurringOrder, error)
}

type PaymentMethodSaver interface {
	CreatePaymentMethod(ctx context.Context, card domain.CardDetails, billing domain.BillingDetails) (string, error)
}

// Client registers and manages recurring orders. Charging is left to the backend
// scheduler; nothing here moves money.
type Client struct {
	api      API
	methods  PaymentMethodSaver
	window   Window
	validate *validator.Validate
	now      func() time.Time
}

func NewClient(api API, methods PaymentMethodSaver, window Window) *Client {
	return &Client{api: api, methods: methods, window: window, validate: validator.New(), now: time.Now}
}

func (c *Client) RegisterPaymentMethod(ctx context.Context, d *Draft, card domain.CardDetails, billing domain.BillingDetails) error {
	if d.State != StateDraft && d.State != StatePaymentMethodPending {
		return ErrInvalidState
	}
	d.State = StatePaymentMethodPending

	id, err := c.methods.CreatePaymentMethod(ctx, card, billing)
	if err != nil {
		return fmt.Errorf("save payment method: %w", err)
	}
	d.PaymentMethodID = id
	return nil
}

func (c *Client) CreateSubscription(ctx context.Context, d *Draft) (*domain.RecurringOrder, error) {
	if d.State != StatePaymentMethodPending {
		if d.State == StateDraft {
			return nil, ErrPaymentMethodMissing
		}
		return nil, ErrInvalidState
	}
	if d.PaymentMethodID == "" {
		return nil, ErrPaymentMethodMissing
	}
	if err := c.Validate(d); err != nil {
		return nil, err
	}

	rec, err := c.api.CreateRecurring(ctx, storefront.CreateRecurringRequest{
		AddressID:       d.AddressID,
		Items:           d.Items,
		Frequency:       d.Frequency,
		DayOfWeek:       d.DayOfWeek,
		ExecutionTime:   d.ExecutionTime,
		PaymentMethodID: d.PaymentMethodID,
	})
	if err != nil {
		return nil, fmt.Errorf("create recurring order: %w", err)
	}

	withNextRun(rec, c.now())
	d.State = StateActive
	d.Order = rec
	logger.FromContext(ctx).Info("recurring order created",
		slog.String("recurring_id", rec.ID),
		slog.String("frequency", string(rec.Frequency)))
	return rec, nil
}

// Validate checks the schedule and items of d without requiring a payment method.
// DayOfWeek is cleared for daily orders.
func (c *Client) Validate(d *Draft) error {
	if d.Frequency == domain.FrequencyDaily {
		d.DayOfWeek = nil
	}
	if err := c.validate.Struct(d); err != nil {
		return domain.NewValidationError("recurringOrder", err.Error())
	}
	if d.Frequency == domain.FrequencyWeekly && d.DayOfWeek == nil {
		return domain.NewValidationError("dayOfWeek", "weekly orders need a day of the week")
	}

	offset, err := parseClock(d.ExecutionTime)
	if err != nil {
		return domain.NewValidationError("executionTime", err.Error())
	}
	if !c.window.Contains(offset) {
		return domain.NewValidationError("executionTime", fmt.Sprintf("execution time must be between %s", c.window))
	}
	return nil
}

// Pause keeps the record but stops future runs.
func (c *Client) Pause(ctx context.Context, id string) (*domain.RecurringOrder, error) {
	rec, err := c.api.PauseRecurring(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pause recurring order %s: %w", id, err)
	}
	rec = acknowledged(rec, id, false)
	rec.NextRunAt = nil
	return rec, nil
}

func (c *Client) Resume(ctx context.Context, id string) (*domain.RecurringOrder, error) {
	rec, err := c.api.ResumeRecurring(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resume recurring order %s: %w", id, err)
	}
	rec = acknowledged(rec, id, true)
	withNextRun(rec, c.now())
	return rec, nil
}

// Cancel deletes the recurring order once the user confirmed this exact id.
func (c *Client) Cancel(ctx context.Context, id string, confirm CancelConfirmation) error {
	if !confirm.Confirmed || confirm.ID != id {
		return ErrCancelNotConfirmed
	}
	if err := c.api.DeleteRecurring(ctx, id); err != nil {
		return fmt.Errorf("cancel recurring order %s: %w", id, err)
	}
	return nil
}

func (c *Client) List(ctx context.Context) ([]domain.RecurringOrder, error) {
	list, err := c.api.ListRecurring(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recurring orders: %w", err)
	}
	now := c.now()
	for i := range list {
		withNextRun(&list[i], now)
	}
	return list, nil
}

func acknowledged(rec *domain.RecurringOrder, id string, active bool) *domain.RecurringOrder {
	if rec == nil {
		rec = &domain.RecurringOrder{ID: id}
	}
	rec.IsActive = active
	return rec
}
