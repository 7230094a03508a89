package report

import (
	"fmt"
	"time"

	"github.com/pos/analytics/internal/domain/shared"
)

// DateWindow is an inclusive [Start, End] range.
// A zero Start or End leaves that side unbounded.
type DateWindow struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// NewDateWindow creates a validated window
func NewDateWindow(start, end time.Time) (DateWindow, error) {
	w := DateWindow{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return DateWindow{}, err
	}
	return w, nil
}

// LastDays returns the window covering the n days up to and including now's day.
// The end is the last instant of now's day in now's location.
func LastDays(now time.Time, n int) DateWindow {
	if n < 1 {
		n = 1
	}
	y, m, d := now.Date()
	startOfToday := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return DateWindow{
		Start: startOfToday.AddDate(0, 0, -(n - 1)),
		End:   EndOfDay(now),
	}
}

// EndOfDay returns the last nanosecond of t's calendar day
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Validate returns ErrInvalidWindow when Start is after End
func (w DateWindow) Validate() error {
	if !w.Start.IsZero() && !w.End.IsZero() && w.Start.After(w.End) {
		return fmt.Errorf("window %s..%s: %w", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339), shared.ErrInvalidWindow)
	}
	return nil
}

// Contains reports whether t falls inside the window, bounds included.
// The zero time is undated and falls outside every window.
func (w DateWindow) Contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// Split partitions the window at the given instant into [Start, at) and [at, End].
// Every instant of the original window belongs to exactly one half.
func (w DateWindow) Split(at time.Time) (DateWindow, DateWindow) {
	return DateWindow{Start: w.Start, End: at.Add(-time.Nanosecond)}, DateWindow{Start: at, End: w.End}
}
