/*
Package engine implements the compliance evaluation core.

PURPOSE:
  This package contains the arithmetic and state-machine heart of the
  department compliance platform: resolving evaluation windows, prorating
  requirement targets for excused time, aggregating completed work, and
  producing a single reproducible compliance verdict per member and
  requirement.

KEY CONCEPTS IN THIS FILE (types.go):
  - Requirement: a configured obligation (hours, shifts, calls, certification,
    course completion) with a sum-typed due-date configuration
  - ProgressRecord: an immutable unit of completed work
  - Certification: an issued credential with an expiry date
  - ComplianceResult: the derived verdict, recomputed on demand, never mutated

DESIGN PRINCIPLES:
  1. Purity: a ComplianceResult is a function of its inputs at evaluation time
  2. Precision: decimal.Decimal for all requirement arithmetic, never float64
  3. Type safety: strong ID types prevent mixing member/requirement identifiers
  4. Closed variants: due-date configuration is a sum type, so a requirement
     missing its variant payload is a construction-time error

SEE ALSO:
  - window.go: evaluation window resolution per due-date type
  - proration.go: adjusted-requirement arithmetic
  - progress.go: progress aggregation and duplicate detection
  - evaluate.go: the compliance evaluator combining all of the above
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type MemberID string
type RequirementID string
type ProgressID string
type CertificationID string

// =============================================================================
// REQUIREMENT KINDS AND CADENCE
// =============================================================================

// RequirementKind classifies what a requirement counts.
type RequirementKind string

const (
	KindHours            RequirementKind = "hours"
	KindShifts           RequirementKind = "shifts"
	KindCalls            RequirementKind = "calls"
	KindCertification    RequirementKind = "certification"
	KindCourseCompletion RequirementKind = "course_completion"
)

// Binary reports whether the kind is pass/fail rather than quantitative.
// Binary kinds are never prorated and never consult the leave ledger.
func (k RequirementKind) Binary() bool {
	return k == KindCertification || k == KindCourseCompletion
}

// Frequency is the cadence on which a requirement recurs.
type Frequency string

const (
	FreqAnnual    Frequency = "annual"
	FreqBiannual  Frequency = "biannual"
	FreqQuarterly Frequency = "quarterly"
	FreqMonthly   Frequency = "monthly"
	FreqOneTime   Frequency = "one_time"
)

// PeriodMonths returns the calendar-period length for the frequency,
// or 0 when the frequency has no recurring period.
func (f Frequency) PeriodMonths() int {
	switch f {
	case FreqAnnual:
		return 12
	case FreqBiannual:
		return 6
	case FreqQuarterly:
		return 3
	case FreqMonthly:
		return 1
	default:
		return 0
	}
}

// =============================================================================
// OBLIGATION SCOPE - What a waiver or leave excuses
// =============================================================================

// ObligationScope names a category of obligation a member can be excused from.
type ObligationScope string

const (
	ScopeTraining ObligationScope = "training"
	ScopeMeetings ObligationScope = "meetings"
	ScopeShifts   ObligationScope = "shifts"
)

// Scope maps a requirement kind to the obligation scope its proration
// consults. Binary kinds map to training but bypass proration entirely.
func (k RequirementKind) Scope() ObligationScope {
	switch k {
	case KindShifts, KindCalls:
		return ScopeShifts
	default:
		return ScopeTraining
	}
}

// =============================================================================
// PROGRESS RECORD - Atomic unit of completed work
// =============================================================================

// ProgressRecord is one approved unit of completed work attributable to a
// member. Records are immutable once stored; corrections happen upstream.
type ProgressRecord struct {
	ID         ProgressID
	MemberID   MemberID
	Activity   string // course/shift/call name, used for duplicate detection
	Kind       RequirementKind
	Date       Date
	Hours      decimal.Decimal // populated for hours-kind records
	Categories []string        // requirement categories this record counts toward
}

// CountsToward reports whether the record satisfies the requirement's
// category filter. A requirement with no filter accepts every category.
func (p ProgressRecord) CountsToward(categories []string) bool {
	if len(categories) == 0 {
		return true
	}
	for _, want := range categories {
		for _, have := range p.Categories {
			if have == want {
				return true
			}
		}
	}
	return false
}

// =============================================================================
// CERTIFICATION - Issued credential with expiry
// =============================================================================

type Certification struct {
	ID        CertificationID
	MemberID  MemberID
	Name      string
	Category  string
	IssuedAt  Date
	ExpiresAt Date
}

// DaysUntilExpiry is negative once the certification has lapsed.
func (c Certification) DaysUntilExpiry(asOf Date) int {
	return DaysBetween(asOf, c.ExpiresAt)
}

func (c Certification) ExpiredAt(asOf Date) bool {
	return c.DaysUntilExpiry(asOf) <= 0
}

// =============================================================================
// MEMBER - Directory record (owned by an external collaborator)
// =============================================================================

// Member is the slice of the organization directory the engine consumes.
// The engine never writes members; it only needs identity, active status,
// hire date, and tier (tier-based exemptions are decided upstream).
type Member struct {
	ID       MemberID
	Name     string
	Active   bool
	HireDate Date
	Tier     string
}

// =============================================================================
// COMPLIANCE VERDICT
// =============================================================================

type ComplianceStatus string

const (
	StatusCompliant    ComplianceStatus = "compliant"
	StatusAtRisk       ComplianceStatus = "at_risk"
	StatusNonCompliant ComplianceStatus = "non_compliant"
)

// ComplianceResult is the derived verdict for one (member, requirement) pair.
// It is recomputed whenever inputs change and is never mutated in place.
type ComplianceResult struct {
	MemberID      MemberID
	RequirementID RequirementID
	Window        Window

	BaseRequired     decimal.Decimal
	AdjustedRequired decimal.Decimal
	Progress         decimal.Decimal
	Percentage       decimal.Decimal
	Status           ComplianceStatus

	// Excused time, tracked separately and never merged: callers that want a
	// combined denominator adjustment must add these, not take a maximum.
	ExcludedMonths int
	UnitWaivers    int

	// Probable duplicate submissions surfaced for upstream review.
	Duplicates []DuplicateSuspect

	EvaluatedAt Date
}

// Met reports whether the member satisfied the requirement outright.
func (r ComplianceResult) Met() bool { return r.Status == StatusCompliant }
