/*
proration.go - Adjusted-requirement arithmetic

PURPOSE:
  Applies the leave ledger's excluded-month count to a requirement's base
  value:

      adjusted = base × (total_months − excluded_months) / total_months

  The result is rounded per the configured rule. The default rounds up to
  the whole unit meaningful for the kind (whole hours, whole shifts):
  rounding down would silently under-require.

GUARDS:
  - total_months == 0: same-month window, proration undefined; the base
    passes through unmodified rather than dividing by zero
  - binary kinds: certifications and course completions are pass/fail and
    are never prorated
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ROUNDING POLICY
// =============================================================================

// RoundingMode selects how ragged prorated values are settled. The source
// policy only shows examples that divide evenly, so the rule is
// configurable rather than guessed.
type RoundingMode string

const (
	// RoundUp rounds to the next whole unit. Default.
	RoundUp RoundingMode = "round_up"

	// RoundNearest rounds half away from zero to the nearest whole unit.
	RoundNearest RoundingMode = "nearest"

	// RoundNone keeps the exact decimal value.
	RoundNone RoundingMode = "none"
)

func (m RoundingMode) apply(v decimal.Decimal) decimal.Decimal {
	switch m {
	case RoundNearest:
		return v.Round(0)
	case RoundNone:
		return v
	default:
		return v.Ceil()
	}
}

// =============================================================================
// PRORATION
// =============================================================================

// Prorate computes the adjusted requirement value for a quantitative
// requirement given the window's month count and the ledger's excluded
// months. Excluded months are clamped to [0, totalMonths].
func Prorate(base decimal.Decimal, totalMonths, excludedMonths int, mode RoundingMode) decimal.Decimal {
	if totalMonths == 0 {
		// Same-month window: proration is undefined, pass the base through.
		return base
	}
	if excludedMonths <= 0 {
		return base
	}
	if excludedMonths > totalMonths {
		excludedMonths = totalMonths
	}

	active := decimal.NewFromInt(int64(totalMonths - excludedMonths))
	total := decimal.NewFromInt(int64(totalMonths))
	return mode.apply(base.Mul(active).Div(total))
}

// AdjustedRequired resolves the adjusted value for any requirement kind:
// binary kinds keep their base untouched regardless of leave overlap.
func AdjustedRequired(req Requirement, totalMonths, excludedMonths int, mode RoundingMode) decimal.Decimal {
	if req.Kind.Binary() {
		return req.BaseRequired
	}
	return Prorate(req.BaseRequired, totalMonths, excludedMonths, mode)
}
