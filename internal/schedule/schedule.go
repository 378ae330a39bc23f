// Package schedule holds the calendar arithmetic for contribution cycles.
// Every function is pure and takes time explicitly; nothing here reads the
// global clock.
package schedule

import (
	"fmt"
	"time"

	"github.com/dapoalex/AjoPool/internal/models"
)

// CycleWindow is the calendar span of one cycle.
type CycleWindow struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	PaymentDue time.Time `json:"payment_due"` // cycle midpoint
	PayoutDate time.Time `json:"payout_date"` // one day before cycle end
}

// CycleDates computes the window for a 1-indexed cycle from the group's start
// date and contribution frequency. Monthly arithmetic clamps to the last day
// of the month, so a group started on Jan 31 has its second cycle begin on
// Feb 28 (or 29), never on Mar 2.
func CycleDates(start time.Time, freq models.Frequency, cycleNumber int) (CycleWindow, error) {
	if cycleNumber < 1 {
		return CycleWindow{}, fmt.Errorf("schedule: cycle number must be >= 1, got %d", cycleNumber)
	}

	var cycleStart, cycleEnd time.Time
	switch freq {
	case models.FrequencyDaily:
		cycleStart = start.AddDate(0, 0, cycleNumber-1)
		cycleEnd = start.AddDate(0, 0, cycleNumber)
	case models.FrequencyWeekly:
		cycleStart = start.AddDate(0, 0, 7*(cycleNumber-1))
		cycleEnd = start.AddDate(0, 0, 7*cycleNumber)
	case models.FrequencyMonthly:
		cycleStart = addMonthsClamped(start, cycleNumber-1)
		cycleEnd = addMonthsClamped(start, cycleNumber)
	default:
		return CycleWindow{}, fmt.Errorf("schedule: unknown frequency %q", freq)
	}

	return CycleWindow{
		Start:      cycleStart,
		End:        cycleEnd,
		PaymentDue: cycleStart.Add(cycleEnd.Sub(cycleStart) / 2),
		PayoutDate: cycleEnd.AddDate(0, 0, -1),
	}, nil
}

// addMonthsClamped adds whole calendar months, clamping the day of month to
// the target month's length instead of letting it roll over.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := daysInMonth(firstOfTarget.Year(), firstOfTarget.Month())
	if d > last {
		d = last
	}
	hh, mm, ss := t.Clock()
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsOverdue reports whether now is past the due date by at least one
// calendar day.
func IsOverdue(dueDate, now time.Time) bool {
	return DaysOverdue(dueDate, now) > 0
}

// DaysOverdue is the signed whole-calendar-day count by which now exceeds the
// due date. Negative means the due date is still ahead.
func DaysOverdue(dueDate, now time.Time) int {
	return calendarDays(dueDate, now)
}

// DaysUntilDue is the signed whole-calendar-day count until the due date.
// Negative means it has already passed.
func DaysUntilDue(dueDate, now time.Time) int {
	return calendarDays(now, dueDate)
}

// WithinGracePeriod reports whether a payment against dueDate would still
// escape the overdue classification: either not yet due, or overdue by at
// most graceDays.
func WithinGracePeriod(dueDate time.Time, graceDays int, now time.Time) bool {
	return DaysOverdue(dueDate, now) <= graceDays
}

// calendarDays counts whole calendar days from a to b, truncating both to
// midnight in a's location so partial days never count.
func calendarDays(a, b time.Time) int {
	a = truncateToDay(a)
	b = truncateToDay(b.In(a.Location()))
	return int(b.Sub(a).Hours() / 24)
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
