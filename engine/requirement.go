/*
requirement.go - Requirement definitions and due-date variants

PURPOSE:
  Defines the Requirement type and its due-date configuration. The due-date
  dispatch (calendar period / rolling / certification period / fixed date)
  is a closed sum type: each variant carries exactly the payload its
  semantics need, so a requirement without the matching payload cannot be
  constructed in the first place.

VARIANTS:
  CalendarPeriod: enclosing year/half/quarter/month anchored at month/day
  Rolling:        [today − N months, today], slides forward daily
  CertPeriod:     [certification issue, certification expiry], per credential
  FixedDate:      [requirement creation, configured due date]

VALIDATION:
  Validate() enforces the invariant that the variant payload is coherent
  with the requirement's kind and frequency. Violations surface as
  ConfigurationError and are never silently defaulted.
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DUE-DATE VARIANTS (closed sum type)
// =============================================================================

type DueDateType string

const (
	DueCalendarPeriod      DueDateType = "calendar_period"
	DueRolling             DueDateType = "rolling"
	DueCertificationPeriod DueDateType = "certification_period"
	DueFixedDate           DueDateType = "fixed_date"
)

// DueDate is the variant interface. The unexported method keeps the set
// closed: only the four types below can implement it.
type DueDate interface {
	Type() DueDateType
	dueDate()
}

// CalendarPeriod evaluates within the enclosing calendar period (length set
// by the requirement's frequency) anchored at AnchorMonth/AnchorDay.
type CalendarPeriod struct {
	AnchorMonth time.Month
	AnchorDay   int
}

func (CalendarPeriod) Type() DueDateType { return DueCalendarPeriod }
func (CalendarPeriod) dueDate()          {}

// Rolling evaluates within the trailing Months-month window ending at the
// reference date. A rolling window has no fixed close; it is always open.
type Rolling struct {
	Months int
}

func (Rolling) Type() DueDateType { return DueRolling }
func (Rolling) dueDate()          {}

// CertPeriod evaluates within [issue date, expiry date] of a certification.
// The window is resolved per credential, not per member generically.
type CertPeriod struct{}

func (CertPeriod) Type() DueDateType { return DueCertificationPeriod }
func (CertPeriod) dueDate()          {}

// FixedDate evaluates within [requirement creation date, Due].
type FixedDate struct {
	Due Date
}

func (FixedDate) Type() DueDateType { return DueFixedDate }
func (FixedDate) dueDate()          {}

// =============================================================================
// REQUIREMENT
// =============================================================================

// Requirement is a configured policy obligation. The engine evaluates
// requirements; it never decides what they should be.
type Requirement struct {
	ID           RequirementID
	Name         string
	Kind         RequirementKind
	BaseRequired decimal.Decimal // irrelevant for binary kinds
	Frequency    Frequency
	DueDate      DueDate
	Categories   []string // which courses/certifications count; empty = all
	Active       bool
	CreatedAt    Date
}

// Validate enforces the one-variant-payload invariant. It is called at
// construction time by the factory and again by the window resolver, so a
// requirement that slipped past construction still fails loudly.
func (r Requirement) Validate() error {
	if r.DueDate == nil {
		return &ConfigurationError{RequirementID: r.ID, Field: "due_date", Reason: "no due-date variant configured"}
	}

	switch dd := r.DueDate.(type) {
	case Rolling:
		if dd.Months <= 0 {
			return &ConfigurationError{RequirementID: r.ID, Field: "rolling_period_months", Reason: "must be a positive month count"}
		}
	case CalendarPeriod:
		if dd.AnchorMonth < time.January || dd.AnchorMonth > time.December {
			return &ConfigurationError{RequirementID: r.ID, Field: "period_start_month", Reason: "must be a calendar month"}
		}
		if dd.AnchorDay < 1 || dd.AnchorDay > 31 {
			return &ConfigurationError{RequirementID: r.ID, Field: "period_start_day", Reason: "must be a calendar day"}
		}
		if r.Frequency.PeriodMonths() == 0 {
			return &ConfigurationError{RequirementID: r.ID, Field: "frequency", Reason: "calendar-period requirements need a recurring frequency"}
		}
	case CertPeriod:
		if r.Kind != KindCertification {
			return &ConfigurationError{RequirementID: r.ID, Field: "due_date", Reason: "certification-period windows only apply to certification requirements"}
		}
	case FixedDate:
		if dd.Due.IsZero() {
			return &ConfigurationError{RequirementID: r.ID, Field: "fixed_due_date", Reason: "must be set"}
		}
		if r.CreatedAt.IsZero() {
			return &ConfigurationError{RequirementID: r.ID, Field: "created_at", Reason: "fixed-date requirements need a creation date"}
		}
	}

	if !r.Kind.Binary() && r.BaseRequired.LessThanOrEqual(decimal.Zero) {
		return &ConfigurationError{RequirementID: r.ID, Field: "base_required", Reason: "must be positive for quantitative kinds"}
	}
	return nil
}
