/*
window.go - Evaluation window resolution

PURPOSE:
  Given a requirement's due-date variant and a reference date (normally
  "today", but callers may supply a historical date for recomputation),
  produce the applicable evaluation window: start, end, whether it is
  currently open, and the month count proration divides by.

WINDOW SEMANTICS:
  calendar_period: the enclosing anchored period containing the reference
                   date; open until the period end passes
  rolling:         [reference − N months, reference]; always open
  certification_period: [issue, expiry] of one credential, resolved via
                   ResolveCertificationWindow, never generically per member
  fixed_date:      [requirement creation, due date]; closed once the
                   reference date passes the due date

MONTH COUNTS:
  Proration is month-granular. Calendar and rolling windows carry their
  configured length; fixed and certification windows count the calendar
  months they overlap. A window confined to a single calendar month carries
  a month count of zero, which the proration calculator treats as
  "no proration" rather than dividing by it.
*/
package engine

// =============================================================================
// WINDOW
// =============================================================================

// Window is a resolved evaluation period.
type Window struct {
	Start Date
	End   Date

	// Open reports whether the window is still accepting progress as of the
	// reference date it was resolved against.
	Open bool

	// TotalMonths is the divisor proration uses. Zero means the window is
	// too short to prorate (same-month window).
	TotalMonths int
}

// Contains returns true if the date is within [Start, End].
func (w Window) Contains(d Date) bool {
	return d.AfterOrEqual(w.Start) && d.BeforeOrEqual(w.End)
}

func (w Window) String() string {
	return "[" + w.Start.String() + ", " + w.End.String() + "]"
}

// =============================================================================
// RESOLVER
// =============================================================================

// ResolveWindow resolves the evaluation window for a requirement at the
// given reference date. Certification-period requirements have no generic
// per-member window; resolve those per credential with
// ResolveCertificationWindow.
func ResolveWindow(req Requirement, ref Date) (Window, error) {
	if err := req.Validate(); err != nil {
		return Window{}, err
	}

	switch dd := req.DueDate.(type) {
	case CalendarPeriod:
		return resolveCalendarPeriod(dd, req.Frequency, ref), nil

	case Rolling:
		start := ref.AddMonths(-dd.Months)
		return Window{Start: start, End: ref, Open: true, TotalMonths: dd.Months}, nil

	case CertPeriod:
		return Window{}, &ConfigurationError{
			RequirementID: req.ID,
			Field:         "due_date",
			Reason:        "certification-period windows are resolved per certification",
		}

	case FixedDate:
		w := Window{
			Start: req.CreatedAt,
			End:   dd.Due,
			Open:  ref.BeforeOrEqual(dd.Due),
		}
		w.TotalMonths = spannedMonths(w.Start, w.End)
		return w, nil
	}

	// Unreachable: DueDate is a closed set and Validate rejects nil.
	return Window{}, &ConfigurationError{RequirementID: req.ID, Field: "due_date", Reason: "unknown due-date variant"}
}

// ResolveCertificationWindow returns the evaluation window for one
// credential: its issue-to-expiry period.
func ResolveCertificationWindow(cert Certification, ref Date) Window {
	w := Window{
		Start: cert.IssuedAt,
		End:   cert.ExpiresAt,
		Open:  ref.BeforeOrEqual(cert.ExpiresAt),
	}
	w.TotalMonths = spannedMonths(w.Start, w.End)
	return w
}

// resolveCalendarPeriod finds the enclosing anchored period containing ref.
// Periods tile the calendar from the anchor in steps of the frequency's
// length, so an annual requirement anchored July 1 runs Jul 1 - Jun 30.
func resolveCalendarPeriod(dd CalendarPeriod, freq Frequency, ref Date) Window {
	length := freq.PeriodMonths()

	// Walk forward from an anchor guaranteed to be at or before ref.
	start := NewDate(ref.Year()-1, dd.AnchorMonth, dd.AnchorDay)
	for {
		next := start.AddMonths(length)
		if next.After(ref) {
			break
		}
		start = next
	}

	return Window{
		Start:       start,
		End:         start.AddMonths(length).AddDays(-1),
		Open:        true, // the enclosing period's end has not passed at ref
		TotalMonths: length,
	}
}

// spannedMonths counts the calendar months a window overlaps. A window that
// begins and ends inside one calendar month spans zero months: proration is
// undefined at that granularity and the calculator passes the base through.
func spannedMonths(start, end Date) int {
	if start.Year() == end.Year() && start.Month() == end.Month() {
		return 0
	}
	return len(MonthsOverlapping(start, end))
}
