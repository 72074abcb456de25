/*
evaluate.go - The compliance evaluator

PURPOSE:
  Combines the window resolver, leave/waiver ledger, proration calculator,
  and progress aggregator into one compliance verdict per (member,
  requirement) pair. The compliance matrix, the member dashboard, and the
  reports all call through this evaluator: the three-tier status rule lives
  here and nowhere else, so the same underlying state can never render as
  different colors on different surfaces.

STATUS RULE:
  compliant:     percentage ≥ 100 (or binary satisfied) and no unresolved
                 certification expiry
  at_risk:       percentage ≥ 50, or a certification expires within the
                 configured horizon (default 90 days)
  non_compliant: otherwise, or any relevant certification already expired

PURITY:
  Evaluate is a pure function of its inputs at evaluation time. There is no
  shared mutable state across evaluations, so batch evaluation is
  parallelized across (member, requirement) pairs bounded only by the read
  concurrency of the underlying stores.
*/
package engine

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// ExclusionSource answers excused-time questions. The leave package's
// Ledger is the production implementation.
type ExclusionSource interface {
	// ExcludedMonths counts calendar months in the window excused by active
	// leave for the given obligation scope.
	ExcludedMonths(ctx context.Context, memberID MemberID, scope ObligationScope, w Window) (int, error)

	// UnitWaivers counts per-unit waiver reductions in the window for the
	// given scope. Reported separately from month exclusions; never merged.
	UnitWaivers(ctx context.Context, memberID MemberID, scope ObligationScope, w Window) (int, error)
}

// CertificationSource reads issued credentials from the certification store.
type CertificationSource interface {
	MemberCertifications(ctx context.Context, memberID MemberID) ([]Certification, error)
}

// Directory reads the member roster from the organization directory.
type Directory interface {
	ActiveMembers(ctx context.Context) ([]Member, error)
	GetMember(ctx context.Context, id MemberID) (*Member, error)
}

// =============================================================================
// THRESHOLDS
// =============================================================================

// StatusThresholds parameterize the three-tier rule. Defaults match the
// organization-wide policy: 100 / 50 / 90 days.
type StatusThresholds struct {
	CompliantPct      decimal.Decimal
	AtRiskPct         decimal.Decimal
	ExpiryHorizonDays int
}

func DefaultThresholds() StatusThresholds {
	return StatusThresholds{
		CompliantPct:      decimal.NewFromInt(100),
		AtRiskPct:         decimal.NewFromInt(50),
		ExpiryHorizonDays: 90,
	}
}

// =============================================================================
// EVALUATOR
// =============================================================================

// Evaluator is the single shared compliance rule. Stateless; safe for
// concurrent use.
type Evaluator struct {
	Progress   ProgressSource
	Exclusions ExclusionSource
	Certs      CertificationSource

	Rounding   RoundingMode
	Thresholds StatusThresholds

	// MatrixWorkers bounds batch evaluation concurrency. Zero means a
	// sensible default.
	MatrixWorkers int
}

func NewEvaluator(progress ProgressSource, exclusions ExclusionSource, certs CertificationSource) *Evaluator {
	return &Evaluator{
		Progress:   progress,
		Exclusions: exclusions,
		Certs:      certs,
		Rounding:   RoundUp,
		Thresholds: DefaultThresholds(),
	}
}

// Evaluate produces the compliance verdict for one (member, requirement)
// pair as of the given date.
func (e *Evaluator) Evaluate(ctx context.Context, member Member, req Requirement, asOf Date) (*ComplianceResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.Kind == KindCertification {
		return e.evaluateCertification(ctx, member, req, asOf)
	}

	w, err := ResolveWindow(req, asOf)
	if err != nil {
		return nil, err
	}

	result := &ComplianceResult{
		MemberID:      member.ID,
		RequirementID: req.ID,
		Window:        w,
		BaseRequired:  req.BaseRequired,
		EvaluatedAt:   asOf,
	}

	if req.Kind.Binary() {
		// Course completions: pass/fail, never prorated, ledger bypassed.
		return e.finishBinary(ctx, result, member, req, w)
	}

	scope := req.Kind.Scope()
	excluded, err := e.Exclusions.ExcludedMonths(ctx, member.ID, scope, w)
	if err != nil {
		return nil, err
	}
	unitWaivers, err := e.Exclusions.UnitWaivers(ctx, member.ID, scope, w)
	if err != nil {
		return nil, err
	}

	adjusted := AdjustedRequired(req, w.TotalMonths, excluded, e.Rounding)

	// Per-unit waivers reduce unit-counted denominators directly; month
	// exclusion and unit waivers are additive, tracked apart.
	if req.Kind == KindShifts || req.Kind == KindCalls {
		adjusted = adjusted.Sub(decimal.NewFromInt(int64(unitWaivers)))
		if adjusted.IsNegative() {
			adjusted = decimal.Zero
		}
	}

	records, err := e.Progress.RecordsInRange(ctx, member.ID, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	summary := AggregateProgress(req, w, records)

	result.AdjustedRequired = adjusted
	result.Progress = summary.Value
	result.ExcludedMonths = excluded
	result.UnitWaivers = unitWaivers
	result.Duplicates = summary.Duplicates
	result.Percentage = percentage(summary.Value, adjusted)
	result.Status = e.statusFor(result.Percentage)
	return result, nil
}

// evaluateCertification handles certification-kind requirements: binary
// satisfaction plus the expiry overlay that feeds the at-risk tier.
func (e *Evaluator) evaluateCertification(ctx context.Context, member Member, req Requirement, asOf Date) (*ComplianceResult, error) {
	certs, err := e.Certs.MemberCertifications(ctx, member.ID)
	if err != nil {
		return nil, err
	}

	var current *Certification
	for i := range certs {
		c := certs[i]
		if len(req.Categories) > 0 && !containsFold(req.Categories, c.Category) {
			continue
		}
		if current == nil || c.ExpiresAt.After(current.ExpiresAt) {
			current = &c
		}
	}

	result := &ComplianceResult{
		MemberID:         member.ID,
		RequirementID:    req.ID,
		BaseRequired:     req.BaseRequired,
		AdjustedRequired: req.BaseRequired, // binary: never prorated
		EvaluatedAt:      asOf,
	}

	if current == nil {
		result.Window = Window{Start: asOf, End: asOf, Open: true}
		result.Percentage = decimal.Zero
		result.Status = StatusNonCompliant
		return result, nil
	}

	result.Window = ResolveCertificationWindow(*current, asOf)

	days := current.DaysUntilExpiry(asOf)
	switch {
	case days <= 0:
		result.Percentage = decimal.Zero
		result.Status = StatusNonCompliant
	case days <= e.Thresholds.ExpiryHorizonDays:
		result.Percentage = decimal.NewFromInt(100)
		result.Status = StatusAtRisk
	default:
		result.Percentage = decimal.NewFromInt(100)
		result.Status = StatusCompliant
	}
	return result, nil
}

// finishBinary completes evaluation for course-completion requirements.
func (e *Evaluator) finishBinary(ctx context.Context, result *ComplianceResult, member Member, req Requirement, w Window) (*ComplianceResult, error) {
	records, err := e.Progress.RecordsInRange(ctx, member.ID, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	summary := AggregateProgress(req, w, records)

	result.AdjustedRequired = req.BaseRequired
	result.Duplicates = summary.Duplicates
	if summary.Satisfied {
		result.Progress = decimal.NewFromInt(1)
		result.Percentage = decimal.NewFromInt(100)
		result.Status = StatusCompliant
	} else {
		result.Progress = decimal.Zero
		result.Percentage = decimal.Zero
		result.Status = StatusNonCompliant
	}
	return result, nil
}

func (e *Evaluator) statusFor(pct decimal.Decimal) ComplianceStatus {
	switch {
	case pct.GreaterThanOrEqual(e.Thresholds.CompliantPct):
		return StatusCompliant
	case pct.GreaterThanOrEqual(e.Thresholds.AtRiskPct):
		return StatusAtRisk
	default:
		return StatusNonCompliant
	}
}

// percentage guards the adjusted == 0 case: a member whose entire
// obligation was excused has nothing left to meet.
func percentage(progress, adjusted decimal.Decimal) decimal.Decimal {
	if adjusted.LessThanOrEqual(decimal.Zero) {
		return decimal.NewFromInt(100)
	}
	return progress.Div(adjusted).Mul(decimal.NewFromInt(100))
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

// =============================================================================
// BATCH EVALUATION - the compliance matrix
// =============================================================================

const defaultMatrixWorkers = 8

// EvaluateMatrix evaluates every active member against every active
// requirement. Pairs are independent, so the work is fanned out across a
// bounded worker pool.
func (e *Evaluator) EvaluateMatrix(ctx context.Context, members []Member, reqs []Requirement, asOf Date) ([]*ComplianceResult, error) {
	type pair struct {
		member Member
		req    Requirement
	}

	var pairs []pair
	for _, m := range members {
		if !m.Active {
			continue
		}
		for _, r := range reqs {
			if !r.Active {
				continue
			}
			pairs = append(pairs, pair{member: m, req: r})
		}
	}

	workers := e.MatrixWorkers
	if workers <= 0 {
		workers = defaultMatrixWorkers
	}

	results := make([]*ComplianceResult, len(pairs))
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				mu.Lock()
				failed := firstErr != nil
				mu.Unlock()
				if failed {
					continue
				}

				res, err := e.Evaluate(ctx, pairs[i].member, pairs[i].req, asOf)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				results[i] = res
			}
		}()
	}

	for i := range pairs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].MemberID != results[j].MemberID {
			return results[i].MemberID < results[j].MemberID
		}
		return results[i].RequirementID < results[j].RequirementID
	})
	return results, nil
}
