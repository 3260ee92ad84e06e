package seed

import (
	"fmt"
	"time"
)

// =============================================================================
// WINDOW - Half-open time interval [From, To)
// =============================================================================

// Window bounds a query over entry creation times. Half-open so adjacent
// windows tile without overlap.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains returns true if t falls within [From, To).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

func (w Window) IsZero() bool { return w.From.IsZero() && w.To.IsZero() }

// Day returns the calendar day containing t, in t's location.
func Day(t time.Time) Window {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return Window{From: start, To: start.AddDate(0, 0, 1)}
}

// Month returns the calendar month containing t.
func Month(t time.Time) Window {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Window{From: start, To: start.AddDate(0, 1, 0)}
}

// Year returns the calendar year containing t.
func Year(t time.Time) Window {
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	return Window{From: start, To: start.AddDate(1, 0, 0)}
}

// MonthOf returns the window for a specific calendar month in local time.
func MonthOf(year int, month time.Month) Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	return Window{From: start, To: start.AddDate(0, 1, 0)}
}

// PreviousDay returns the calendar day before the one containing t.
func PreviousDay(t time.Time) Window { return Day(t.AddDate(0, 0, -1)) }

// PreviousMonth returns the calendar month before the one containing t.
// Computed from the first of the month; subtracting a month from t directly
// would normalize month-end dates (Mar 31 - 1 month = Feb 31 = Mar 3) back
// into the current month.
func PreviousMonth(t time.Time) Window {
	start := Month(t).From
	return Window{From: start.AddDate(0, -1, 0), To: start}
}

// =============================================================================
// YEAR-MONTH SEQUENCES - For trend reports
// =============================================================================

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// String formats the month as YYYY-MM.
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// TrailingMonths returns the n calendar months ending at (and including) the
// month containing now, oldest first. Always exactly n elements.
func TrailingMonths(now time.Time, n int) []YearMonth {
	months := make([]YearMonth, 0, n)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(n - 1), 0)
	for i := 0; i < n; i++ {
		m := first.AddDate(0, i, 0)
		months = append(months, YearMonth{Year: m.Year(), Month: m.Month()})
	}
	return months
}
