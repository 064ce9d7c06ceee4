package utils

import (
	"fmt"
	"time"
)

// DefaultCycleDays is the fixed billing cycle length. Every plan, regardless
// of recurrence, charges on a 30-day cadence.
const DefaultCycleDays = 30

// CycleDates holds the computed boundaries of one billing cycle.
// All instants are expressed in the billing timezone.
type CycleDates struct {
	CycleStart time.Time
	CycleEnd   time.Time
	DueDate    time.Time
}

// ComputeCycle derives cycle boundaries from a start instant. The cycle ends
// DefaultCycleDays after the start; the payment due date is one calendar
// month after the start, clamped when the target month is shorter, and set
// to the end of that civil day.
func ComputeCycle(start time.Time) CycleDates {
	start = start.In(brLoc)
	return CycleDates{
		CycleStart: start,
		CycleEnd:   start.AddDate(0, 0, DefaultCycleDays),
		DueDate:    EndOfDay(addCalendarMonth(start)),
	}
}

// addCalendarMonth advances one civil month, clamping the day when the
// target month is shorter (Jan 31 -> Feb 28/29). time.AddDate would
// overflow into March instead.
func addCalendarMonth(t time.Time) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+1, 1, 0, 0, 0, 0, brLoc)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), brLoc)
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.In(brLoc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, brLoc)
}

func EndOfDay(t time.Time) time.Time {
	y, m, d := t.In(brLoc).Date()
	return time.Date(y, m, d, 23, 59, 59, 999_000_000, brLoc)
}

// CycleValidation reports structural problems with a proposed cycle.
// Errors make the cycle unusable; warnings flag suspicious but legal ranges.
type CycleValidation struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ValidateCycle checks a cycle's date ordering and flags unusual lengths.
func ValidateCycle(start, end, due time.Time) CycleValidation {
	v := CycleValidation{Valid: true}

	if start.IsZero() || end.IsZero() {
		v.Valid = false
		v.Errors = append(v.Errors, "cycle start and end are required")
		return v
	}
	if !end.After(start) {
		v.Valid = false
		v.Errors = append(v.Errors, "cycle end must be after cycle start")
	}
	if !due.IsZero() && due.Before(start) {
		v.Valid = false
		v.Errors = append(v.Errors, "due date must not precede cycle start")
	}

	days := int(end.Sub(start).Hours() / 24)
	if days < 7 {
		v.Warnings = append(v.Warnings, fmt.Sprintf("cycle is only %d days long", days))
	}
	if days > 365 {
		v.Warnings = append(v.Warnings, fmt.Sprintf("cycle spans %d days", days))
	}

	return v
}
