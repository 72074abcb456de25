package engine

import (
	"time"
)

// =============================================================================
// DATE - Day-granular point in time
// =============================================================================
// Everything the engine evaluates (training completions, leave spans,
// certification expirations) is dated to the day. Sub-day precision would
// only invite timezone bugs, so Date normalizes to midnight UTC.

type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.normalize().Before(other.normalize()) }
func (d Date) Equal(other Date) bool         { return d.normalize().Equal(other.normalize()) }
func (d Date) After(other Date) bool         { return d.normalize().After(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool { return d.Before(other) || d.Equal(other) }
func (d Date) AfterOrEqual(other Date) bool  { return d.After(other) || d.Equal(other) }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{Time: d.Time.AddDate(0, n, 0)} }
func (d Date) AddYears(n int) Date  { return Date{Time: d.Time.AddDate(n, 0, 0)} }

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// =============================================================================
// CALENDAR UTILITIES
// =============================================================================

// DaysBetween returns the signed number of days from one date to another.
func DaysBetween(from, to Date) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }

func EndOfMonth(year int, month time.Month) Date {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return DateOf(t)
}

func DaysInMonth(year int, month time.Month) int {
	return EndOfMonth(year, month).Day()
}

// MonthKey identifies one calendar month.
type MonthKey struct {
	Year  int
	Month time.Month
}

func (k MonthKey) Start() Date { return StartOfMonth(k.Year, k.Month) }
func (k MonthKey) End() Date   { return EndOfMonth(k.Year, k.Month) }

func (k MonthKey) Next() MonthKey {
	d := k.Start().AddMonths(1)
	return MonthKey{Year: d.Year(), Month: d.Month()}
}

func (k MonthKey) String() string { return k.Start().Time.Format("2006-01") }

// MonthsOverlapping returns every calendar month touched by [from, to],
// in chronological order. An empty slice is returned when to < from.
func MonthsOverlapping(from, to Date) []MonthKey {
	if to.Before(from) {
		return nil
	}
	var months []MonthKey
	current := MonthKey{Year: from.Year(), Month: from.Month()}
	last := MonthKey{Year: to.Year(), Month: to.Month()}
	for {
		months = append(months, current)
		if current == last {
			break
		}
		current = current.Next()
	}
	return months
}
