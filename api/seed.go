/*
seed.go - Demo data for local development

PURPOSE:
  Seeds a store with a small, internally consistent roster: members,
  requirements covering every due-date type, progress in various states of
  completeness, a leave with its auto-linked waiver, a manual waiver, and
  certifications at different distances from expiry. Loading it gives the
  dashboard something meaningful on first run.

USAGE:
  Invoked from `compliance-engine serve --demo`. Never runs against an
  existing database implicitly.
*/
package api

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stationops/compliance-engine/engine"
	"github.com/stationops/compliance-engine/leave"
)

// SeedDemo loads the demo roster. today anchors all relative dates so the
// data stays interesting regardless of when it is loaded.
func SeedDemo(ctx context.Context, store Backend, mediator *leave.Mediator, today engine.Date) error {
	members := []engine.Member{
		{ID: "m-alvarez", Name: "R. Alvarez", Active: true, HireDate: today.AddYears(-6), Tier: "senior"},
		{ID: "m-chen", Name: "K. Chen", Active: true, HireDate: today.AddYears(-3)},
		{ID: "m-okafor", Name: "D. Okafor", Active: true, HireDate: today.AddYears(-1)},
		{ID: "m-silva", Name: "P. Silva", Active: false, HireDate: today.AddYears(-8)},
	}
	for _, m := range members {
		if err := store.SaveMember(ctx, m); err != nil {
			return fmt.Errorf("seed member %s: %w", m.ID, err)
		}
	}

	year := today.Year()
	reqs := []engine.Requirement{
		{
			ID:           "annual-training-hours",
			Name:         "Annual Training Hours",
			Kind:         engine.KindHours,
			BaseRequired: decimal.NewFromInt(24),
			Frequency:    engine.FreqAnnual,
			DueDate:      engine.CalendarPeriod{AnchorMonth: 1, AnchorDay: 1},
			Active:       true,
			CreatedAt:    engine.NewDate(year-2, 1, 1),
		},
		{
			ID:           "rolling-duty-shifts",
			Name:         "Duty Shifts (rolling 12 months)",
			Kind:         engine.KindShifts,
			BaseRequired: decimal.NewFromInt(36),
			Frequency:    engine.FreqAnnual,
			DueDate:      engine.Rolling{Months: 12},
			Active:       true,
			CreatedAt:    engine.NewDate(year-2, 1, 1),
		},
		{
			ID:           "ems-certification",
			Name:         "EMS Certification",
			Kind:         engine.KindCertification,
			BaseRequired: decimal.NewFromInt(1),
			Frequency:    engine.FreqOneTime,
			DueDate:      engine.CertPeriod{},
			Categories:   []string{"ems"},
			Active:       true,
			CreatedAt:    engine.NewDate(year-2, 1, 1),
		},
		{
			ID:           "hazmat-awareness-course",
			Name:         "Hazmat Awareness Course",
			Kind:         engine.KindCourseCompletion,
			BaseRequired: decimal.NewFromInt(1),
			Frequency:    engine.FreqOneTime,
			DueDate:      engine.FixedDate{Due: today.AddMonths(4)},
			Active:       true,
			CreatedAt:    today.AddMonths(-2),
		},
	}
	for _, r := range reqs {
		if err := store.SaveRequirement(ctx, r); err != nil {
			return fmt.Errorf("seed requirement %s: %w", r.ID, err)
		}
	}

	progress := []engine.ProgressRecord{
		{ID: "p-1", MemberID: "m-alvarez", Activity: "Ladder Ops Drill", Kind: engine.KindHours, Date: today.AddMonths(-4), Hours: decimal.NewFromInt(12)},
		{ID: "p-2", MemberID: "m-alvarez", Activity: "Pump Ops Refresher", Kind: engine.KindHours, Date: today.AddMonths(-2), Hours: decimal.NewFromInt(14)},
		{ID: "p-3", MemberID: "m-chen", Activity: "Ladder Ops Drill", Kind: engine.KindHours, Date: today.AddMonths(-3), Hours: decimal.NewFromInt(6)},
		// Deliberate near-duplicate pair: same activity one day apart.
		{ID: "p-4", MemberID: "m-chen", Activity: "CPR Recert", Kind: engine.KindHours, Date: today.AddMonths(-1), Hours: decimal.NewFromInt(4)},
		{ID: "p-5", MemberID: "m-chen", Activity: "cpr recert", Kind: engine.KindHours, Date: today.AddMonths(-1).AddDays(1), Hours: decimal.NewFromInt(4)},
		{ID: "p-6", MemberID: "m-okafor", Activity: "Hazmat Awareness", Kind: engine.KindCourseCompletion, Date: today.AddDays(-20)},
	}
	for i := 0; i < 20; i++ {
		progress = append(progress, engine.ProgressRecord{
			ID:       engine.ProgressID(fmt.Sprintf("p-shift-%d", i)),
			MemberID: "m-alvarez",
			Activity: fmt.Sprintf("Station Shift %d", i+1),
			Kind:     engine.KindShifts,
			Date:     today.AddDays(-(i*14 + 7)),
		})
	}
	for _, p := range progress {
		if err := store.SaveProgressRecord(ctx, p); err != nil {
			return fmt.Errorf("seed progress %s: %w", p.ID, err)
		}
	}

	certs := []engine.Certification{
		{ID: "c-1", MemberID: "m-alvarez", Name: "EMT-B", Category: "ems", IssuedAt: today.AddYears(-1), ExpiresAt: today.AddYears(1)},
		{ID: "c-2", MemberID: "m-chen", Name: "EMT-B", Category: "ems", IssuedAt: today.AddMonths(-22), ExpiresAt: today.AddDays(45)},
		{ID: "c-3", MemberID: "m-okafor", Name: "EMT-B", Category: "ems", IssuedAt: today.AddYears(-2), ExpiresAt: today.AddDays(-10)},
	}
	for _, c := range certs {
		if err := store.SaveCertification(ctx, c); err != nil {
			return fmt.Errorf("seed certification %s: %w", c.ID, err)
		}
	}

	// One medical leave (auto-links a training waiver) and one manual waiver.
	leaveEnd := today.AddMonths(-1)
	_, err := mediator.CreateLeave(ctx, leave.CreateLeaveParams{
		MemberID: "m-chen",
		Type:     leave.LeaveMedical,
		Start:    today.AddMonths(-3),
		End:      &leaveEnd,
	})
	if err != nil {
		return fmt.Errorf("seed leave: %w", err)
	}

	waiverEnd := today.AddDays(-30)
	_, err = mediator.CreateManualWaiver(ctx, "m-alvarez",
		[]engine.ObligationScope{engine.ScopeShifts}, today.AddDays(-60), &waiverEnd)
	if err != nil {
		return fmt.Errorf("seed waiver: %w", err)
	}
	return nil
}
