package recurring

import (
	"fmt"
	"time"
)

const clockLayout = "15:04"

// Window is the time-of-day range in which scheduled orders may execute. Both ends
// are inclusive.
type Window struct {
	Start time.Duration
	End   time.Duration
}

// DefaultWindow is 06:00–22:00.
func DefaultWindow() Window {
	return Window{Start: 6 * time.Hour, End: 22 * time.Hour}
}

func ParseWindow(start, end string) (Window, error) {
	s, err := parseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("window start: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return Window{}, fmt.Errorf("window end: %w", err)
	}
	if e < s {
		return Window{}, fmt.Errorf("window end %s is before start %s", end, start)
	}
	return Window{Start: s, End: e}, nil
}

func (w Window) Contains(offset time.Duration) bool {
	return offset >= w.Start && offset <= w.End
}

func (w Window) String() string {
	return formatClock(w.Start) + "-" + formatClock(w.End)
}

// parseClock turns "HH:MM" into an offset from midnight.
func parseClock(v string) (time.Duration, error) {
	t, err := time.Parse(clockLayout, v)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", v)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
