package recurring

import (
	"testing"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("07:30", "20:00")
	require.NoError(t, err)
	assert.Equal(t, "07:30-20:00", w.String())
	assert.True(t, w.Contains(7*time.Hour+30*time.Minute))
	assert.False(t, w.Contains(7*time.Hour))

	_, err = ParseWindow("21:00", "20:00")
	assert.Error(t, err)
	_, err = ParseWindow("25:00", "20:00")
	assert.Error(t, err)
}

func TestNextRun(t *testing.T) {
	// Wednesday
	from := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rec  domain.RecurringOrder
		want time.Time
	}{
		{name: "daily later today", rec: domain.RecurringOrder{Frequency: domain.FrequencyDaily, ExecutionTime: "18:00"}, want: time.Date(2026, 6, 10, 18, 0, 0, 0, time.UTC)},
		{name: "daily tomorrow", rec: domain.RecurringOrder{Frequency: domain.FrequencyDaily, ExecutionTime: "09:00"}, want: time.Date(2026, 6, 11, 9, 0, 0, 0, time.UTC)},
		{name: "weekly friday", rec: domain.RecurringOrder{Frequency: domain.FrequencyWeekly, DayOfWeek: intPtr(5), ExecutionTime: "09:00"}, want: time.Date(2026, 6, 12, 9, 0, 0, 0, time.UTC)},
		{name: "weekly same day passed", rec: domain.RecurringOrder{Frequency: domain.FrequencyWeekly, DayOfWeek: intPtr(3), ExecutionTime: "09:00"}, want: time.Date(2026, 6, 17, 9, 0, 0, 0, time.UTC)},
		{name: "monthly", rec: domain.RecurringOrder{Frequency: domain.FrequencyMonthly, ExecutionTime: "08:00"}, want: time.Date(2026, 7, 10, 8, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextRun(&tt.rec, from)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextRun_MonthlyClampsToMonthEnd(t *testing.T) {
	rec := domain.RecurringOrder{Frequency: domain.FrequencyMonthly, ExecutionTime: "08:00"}

	got, err := NextRun(&rec, time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC), got)

	got, err = NextRun(&rec, time.Date(2028, 1, 31, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2028, 2, 29, 8, 0, 0, 0, time.UTC), got)

	got, err = NextRun(&rec, time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 30, 8, 0, 0, 0, time.UTC), got)
}
