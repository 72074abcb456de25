/*
progress.go - Progress aggregation and duplicate-submission defense

PURPOSE:
  Sums a member's qualifying completed work within a resolved window:
  hours-kind requirements sum recorded durations, shift/call kinds count
  records, binary kinds are satisfied by at least one qualifying record.

DUPLICATE DEFENSE:
  Two records for the same member with the same activity name
  (case-insensitive) and completion dates within ±1 day of each other are
  probable duplicates. The aggregator surfaces them as warning annotations
  on the result; it never silently drops either record. Exclusion is a
  human decision made upstream.
*/
package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PROGRESS SOURCE - Read interface over the external record stores
// =============================================================================

// ProgressSource reads approved progress records from the training,
// scheduling, and call-log collaborators.
type ProgressSource interface {
	// RecordsInRange returns a member's records with dates in [from, to].
	RecordsInRange(ctx context.Context, memberID MemberID, from, to Date) ([]ProgressRecord, error)
}

// =============================================================================
// AGGREGATION
// =============================================================================

// ProgressSummary is the aggregated progress for one (member, requirement)
// pair within a window.
type ProgressSummary struct {
	Value      decimal.Decimal // summed hours, or record count as decimal
	Count      int             // qualifying record count
	Satisfied  bool            // binary kinds: at least one qualifying record
	Duplicates []DuplicateSuspect
}

// DuplicateSuspect annotates a probable duplicate submission.
type DuplicateSuspect struct {
	Activity string
	First    ProgressID
	Second   ProgressID
	FirstAt  Date
	SecondAt Date
}

// AggregateProgress filters records to the requirement's window and
// category filter, then folds them per the requirement kind. Pure: callers
// fetch records, this function only counts.
func AggregateProgress(req Requirement, w Window, records []ProgressRecord) ProgressSummary {
	var qualifying []ProgressRecord
	for _, rec := range records {
		if !w.Contains(rec.Date) {
			continue
		}
		if rec.Kind != req.Kind {
			continue
		}
		if !rec.CountsToward(req.Categories) {
			continue
		}
		qualifying = append(qualifying, rec)
	}

	summary := ProgressSummary{
		Value:      decimal.Zero,
		Count:      len(qualifying),
		Duplicates: findDuplicates(qualifying),
	}

	switch req.Kind {
	case KindHours:
		for _, rec := range qualifying {
			summary.Value = summary.Value.Add(rec.Hours)
		}
	case KindShifts, KindCalls:
		summary.Value = decimal.NewFromInt(int64(len(qualifying)))
	case KindCertification, KindCourseCompletion:
		summary.Satisfied = len(qualifying) > 0
		if summary.Satisfied {
			summary.Value = decimal.NewFromInt(1)
		}
	}

	return summary
}

// findDuplicates flags record pairs with equal activity names
// (case-insensitive) and dates within one day of each other.
func findDuplicates(records []ProgressRecord) []DuplicateSuspect {
	if len(records) < 2 {
		return nil
	}

	sorted := make([]ProgressRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var suspects []DuplicateSuspect
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			gap := DaysBetween(sorted[i].Date, sorted[j].Date)
			if gap > 1 {
				break // sorted by date: later records are further away
			}
			if !strings.EqualFold(sorted[i].Activity, sorted[j].Activity) {
				continue
			}
			suspects = append(suspects, DuplicateSuspect{
				Activity: sorted[i].Activity,
				First:    sorted[i].ID,
				Second:   sorted[j].ID,
				FirstAt:  sorted[i].Date,
				SecondAt: sorted[j].Date,
			})
		}
	}
	return suspects
}
