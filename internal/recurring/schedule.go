package recurring

import (
	"time"

	"github.com/fjod/go_checkout/domain"
)

// NextRun is the first execution strictly after from, in from's location.
func NextRun(r *domain.RecurringOrder, from time.Time) (time.Time, error) {
	offset, err := parseClock(r.ExecutionTime)
	if err != nil {
		return time.Time{}, err
	}

	midnight := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	candidate := midnight.Add(offset)

	switch r.Frequency {
	case domain.FrequencyDaily:
		if !candidate.After(from) {
			candidate = candidate.AddDate(0, 0, 1)
		}
	case domain.FrequencyWeekly:
		day, ok := r.ScheduleDay()
		if !ok {
			day = from.Weekday()
		}
		ahead := (int(day) - int(from.Weekday()) + 7) % 7
		candidate = candidate.AddDate(0, 0, ahead)
		if !candidate.After(from) {
			candidate = candidate.AddDate(0, 0, 7)
		}
	case domain.FrequencyMonthly:
		if !candidate.After(from) {
			candidate = nextMonth(candidate)
		}
	}
	return candidate, nil
}

// nextMonth keeps the day of month, falling back to the month's last day.
func nextMonth(t time.Time) time.Time {
	first := time.Date(t.Year(), t.Month()+1, 1, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

// withNextRun fills NextRunAt for active orders the backend returned without one.
func withNextRun(r *domain.RecurringOrder, from time.Time) {
	if r == nil || !r.IsActive || r.NextRunAt != nil {
		return
	}
	next, err := NextRun(r, from)
	if err != nil {
		return
	}
	r.NextRunAt = &next
}
