package domain

import (
	"time"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "Daily"
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// RecurringOrder is a standing authorization executed by an external scheduler.
type RecurringOrder struct {
	ID              string      `json:"id" validate:"required"`
	UserID          string      `json:"userId"`
	AddressID       string      `json:"addressId"`
	Items           []OrderItem `json:"items"`
	Frequency       Frequency   `json:"frequency" validate:"required,oneof=Daily Weekly Monthly"`
	DayOfWeek       *int        `json:"dayOfWeek,omitempty" validate:"omitempty,min=0,max=6"`
	ExecutionTime   string      `json:"executionTime"`
	PaymentMethodID string      `json:"paymentMethodId"`
	IsActive        bool        `json:"isActive"`
	NextRunAt       *time.Time  `json:"nextRunAt,omitempty"`
}

// ScheduleDay returns the weekday the order runs on. Daily orders have none and
// DayOfWeek is not consulted for them.
func (r *RecurringOrder) ScheduleDay() (time.Weekday, bool) {
	if r.Frequency == FrequencyDaily || r.DayOfWeek == nil {
		return 0, false
	}
	return time.Weekday(*r.DayOfWeek), true
}
