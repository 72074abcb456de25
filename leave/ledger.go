/*
ledger.go - Excused-time queries over leaves and waivers

PURPOSE:
  Given a member and a date range, report which calendar months are excused
  by active leave and how many per-unit waiver reductions apply. This is
  the engine's ExclusionSource: proration consumes ExcludedMonths, and
  unit-counted requirements additionally subtract UnitWaivers.

THE 15-DAY THRESHOLD:
  A month is excluded (counts as zero active months) if and only if leave
  covers at least 15 days of that calendar month; otherwise the month
  counts fully. This is a deliberate threshold, not a continuous fraction:
  a member is not penalized for time active, and trivial leave overlap
  earns no credit.

DOUBLE-COUNT RULE:
  Leave-based month exclusion and per-unit waivers are tracked and
  reported separately. Callers that want a combined total must add them —
  never take a maximum or otherwise merge. Auto-from-leave waivers mirror
  their owning leave and therefore contribute no unit reductions of their
  own; only manual waivers count as units.

BINARY KINDS:
  Certifications and course completions are pass/fail. The evaluator never
  consults this ledger for them.
*/
package leave

import (
	"context"

	"github.com/stationops/compliance-engine/engine"
)

// exclusionThresholdDays is the minimum leave coverage, in days of one
// calendar month, for that month to be excluded from proration.
const exclusionThresholdDays = 15

// =============================================================================
// LEDGER
// =============================================================================

// Ledger answers excused-time questions from stored leaves and waivers.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Compile-time check that Ledger satisfies the engine's interface.
var _ engine.ExclusionSource = (*Ledger)(nil)

// MonthExclusion describes one calendar month's leave coverage.
type MonthExclusion struct {
	Month       engine.MonthKey
	CoveredDays int
	Excluded    bool
}

// MonthExclusions returns every calendar month the window overlaps,
// annotated with leave coverage and whether it crossed the threshold.
func (l *Ledger) MonthExclusions(ctx context.Context, memberID engine.MemberID, scope engine.ObligationScope, w engine.Window) ([]MonthExclusion, error) {
	leaves, err := l.store.LeavesForMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	var qualifying []LeaveOfAbsence
	for _, leave := range leaves {
		if !leave.Active {
			continue
		}
		if !leave.ExcusesScope(scope) {
			continue
		}
		qualifying = append(qualifying, leave)
	}

	var out []MonthExclusion
	for _, month := range engine.MonthsOverlapping(w.Start, w.End) {
		covered := coveredDaysInMonth(month, qualifying)
		out = append(out, MonthExclusion{
			Month:       month,
			CoveredDays: covered,
			Excluded:    covered >= exclusionThresholdDays,
		})
	}
	return out, nil
}

// ExcludedMonths implements engine.ExclusionSource.
func (l *Ledger) ExcludedMonths(ctx context.Context, memberID engine.MemberID, scope engine.ObligationScope, w engine.Window) (int, error) {
	months, err := l.MonthExclusions(ctx, memberID, scope, w)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range months {
		if m.Excluded {
			count++
		}
	}
	return count, nil
}

// UnitWaivers implements engine.ExclusionSource. Each active manual waiver
// matching the scope and overlapping the window subtracts one unit from
// the denominator, independent of month-boundary logic.
func (l *Ledger) UnitWaivers(ctx context.Context, memberID engine.MemberID, scope engine.ObligationScope, w engine.Window) (int, error) {
	waivers, err := l.store.WaiversForMember(ctx, memberID)
	if err != nil {
		return 0, err
	}

	units := 0
	for _, waiver := range waivers {
		if !waiver.Active || waiver.Source != SourceManual {
			continue
		}
		if !waiver.HasScope(scope) {
			continue
		}
		if !waiver.Overlaps(w.Start, w.End) {
			continue
		}
		units++
	}
	return units, nil
}

// coveredDaysInMonth counts the days of one calendar month covered by at
// least one qualifying leave. Walking days keeps overlapping leaves from
// double counting; a month has at most 31 of them.
func coveredDaysInMonth(month engine.MonthKey, leaves []LeaveOfAbsence) int {
	covered := 0
	day := month.Start()
	end := month.End()
	for day.BeforeOrEqual(end) {
		for _, leave := range leaves {
			if leave.Covers(day) {
				covered++
				break
			}
		}
		day = day.AddDays(1)
	}
	return covered
}
