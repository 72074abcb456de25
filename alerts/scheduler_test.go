package alerts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationops/compliance-engine/alerts"
	"github.com/stationops/compliance-engine/engine"
	"github.com/stationops/compliance-engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// captureNotifier records every alert and can be told to fail.
type captureNotifier struct {
	sent []alerts.Alert
	fail bool
}

func (n *captureNotifier) Notify(_ context.Context, alert alerts.Alert) error {
	if n.fail {
		return errors.New("smtp unreachable")
	}
	n.sent = append(n.sent, alert)
	return nil
}

func newTestScheduler(t *testing.T) (*alerts.Scheduler, *store.Memory, *captureNotifier) {
	t.Helper()
	mem := store.NewMemory()
	notifier := &captureNotifier{}
	return alerts.NewScheduler(mem, mem, notifier), mem, notifier
}

func saveCert(t *testing.T, mem *store.Memory, id string, expiresAt engine.Date) engine.Certification {
	t.Helper()
	cert := engine.Certification{
		ID:        engine.CertificationID(id),
		MemberID:  "m-1",
		Name:      "EMT-B",
		Category:  "ems",
		IssuedAt:  expiresAt.AddYears(-2),
		ExpiresAt: expiresAt,
	}
	require.NoError(t, mem.SaveCertification(context.Background(), cert))
	return cert
}

// =============================================================================
// TIER MAPPING
// =============================================================================

func TestTierFor_Boundaries(t *testing.T) {
	cases := []struct {
		days int
		want alerts.Tier
	}{
		{120, alerts.TierNone},
		{91, alerts.TierNone},
		{90, alerts.Tier90},
		{61, alerts.Tier90},
		{60, alerts.Tier60},
		{31, alerts.Tier60},
		{30, alerts.Tier30},
		{8, alerts.Tier30},
		{7, alerts.Tier7},
		{1, alerts.Tier7},
		{0, alerts.TierExpired},
		{-5, alerts.TierExpired},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, alerts.TierFor(tc.days), "days=%d", tc.days)
	}
}

func TestRecipients_WidenAsExpiryApproaches(t *testing.T) {
	assert.Equal(t, []alerts.Recipient{alerts.RecipientMember}, alerts.Tier90.Recipients())
	assert.Equal(t, []alerts.Recipient{alerts.RecipientMember}, alerts.Tier60.Recipients())
	assert.Equal(t,
		[]alerts.Recipient{alerts.RecipientMember, alerts.RecipientTrainingOfficer},
		alerts.Tier30.Recipients())
	assert.Equal(t,
		[]alerts.Recipient{alerts.RecipientMember, alerts.RecipientTrainingOfficer, alerts.RecipientComplianceOfficer},
		alerts.Tier7.Recipients())
	assert.Equal(t, alerts.Tier7.Recipients(), alerts.TierExpired.Recipients())
}

// =============================================================================
// SWEEP IDEMPOTENCY
// =============================================================================

func TestRunSweep_SecondRunSendsNothing(t *testing.T) {
	// GIVEN: A certification 45 days from expiry
	// WHEN: Sweeping twice on the same day
	// THEN: The first sweep sends the 60-day alert, the second sends nothing

	sched, mem, notifier := newTestScheduler(t)
	ctx := context.Background()
	asOf := engine.NewDate(2025, time.June, 1)
	saveCert(t, mem, "c-1", asOf.AddDays(45))

	first, err := sched.RunSweep(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Sent)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, alerts.Tier60, notifier.sent[0].Tier)

	second, err := sched.RunSweep(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Sent)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, notifier.sent, 1, "no duplicate delivery")
}

func TestRunSweep_FarFromExpiry_Ignored(t *testing.T) {
	sched, mem, notifier := newTestScheduler(t)
	asOf := engine.NewDate(2025, time.June, 1)
	saveCert(t, mem, "c-1", asOf.AddDays(200))

	summary, err := sched.RunSweep(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Examined)
	assert.Equal(t, 0, summary.Sent)
	assert.Empty(t, notifier.sent)
}

// =============================================================================
// TIER PROGRESSION
// =============================================================================

func TestRunSweep_TierAdvancesAsExpiryNears(t *testing.T) {
	// GIVEN: Sweeps at 80, 50, 20, 5, and -1 days to expiry
	// THEN: Exactly one alert per tier crossed, in order

	sched, mem, notifier := newTestScheduler(t)
	ctx := context.Background()
	expiry := engine.NewDate(2025, time.September, 1)
	saveCert(t, mem, "c-1", expiry)

	for _, daysBefore := range []int{80, 50, 20, 5, -1} {
		_, err := sched.RunSweep(ctx, expiry.AddDays(-daysBefore))
		require.NoError(t, err)
	}

	require.Len(t, notifier.sent, 5)
	assert.Equal(t, alerts.Tier90, notifier.sent[0].Tier)
	assert.Equal(t, alerts.Tier60, notifier.sent[1].Tier)
	assert.Equal(t, alerts.Tier30, notifier.sent[2].Tier)
	assert.Equal(t, alerts.Tier7, notifier.sent[3].Tier)
	assert.Equal(t, alerts.TierExpired, notifier.sent[4].Tier)
}

func TestRunSweep_LateFirstSweep_SkipsIntermediateTiers(t *testing.T) {
	// GIVEN: The first sweep ever runs 5 days before expiry
	// THEN: Exactly one alert fires (the 7-day tier), not a backlog of four

	sched, mem, notifier := newTestScheduler(t)
	asOf := engine.NewDate(2025, time.June, 1)
	saveCert(t, mem, "c-1", asOf.AddDays(5))

	summary, err := sched.RunSweep(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, alerts.Tier7, notifier.sent[0].Tier)
}

func TestRunSweep_TierNeverRegresses(t *testing.T) {
	// A sweep with an earlier as-of date (clock skew, manual re-run) must
	// not re-fire an earlier tier.

	sched, mem, notifier := newTestScheduler(t)
	ctx := context.Background()
	expiry := engine.NewDate(2025, time.September, 1)
	saveCert(t, mem, "c-1", expiry)

	_, err := sched.RunSweep(ctx, expiry.AddDays(-20)) // fires Tier30
	require.NoError(t, err)
	summary, err := sched.RunSweep(ctx, expiry.AddDays(-80)) // back at Tier90 territory
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Sent)
	assert.Len(t, notifier.sent, 1)
}

// =============================================================================
// DELIVERY FAILURE AND RENEWAL
// =============================================================================

func TestRunSweep_FailedDispatch_TierNotAdvanced(t *testing.T) {
	// GIVEN: A notifier outage during the first sweep
	// WHEN: The outage resolves and the sweep re-runs
	// THEN: The alert is retried and delivered exactly once overall

	sched, mem, notifier := newTestScheduler(t)
	ctx := context.Background()
	asOf := engine.NewDate(2025, time.June, 1)
	saveCert(t, mem, "c-1", asOf.AddDays(45))

	notifier.fail = true
	failed, err := sched.RunSweep(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, failed.Failed)
	assert.Equal(t, 0, failed.Sent)

	notifier.fail = false
	retried, err := sched.RunSweep(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, retried.Sent)
	assert.Len(t, notifier.sent, 1)
}

func TestRunSweep_RenewalStartsFreshCycle(t *testing.T) {
	// GIVEN: A certification that alerted down to the 7-day tier, then was
	//        renewed with a later expiry
	// WHEN: The renewed credential approaches its own expiry
	// THEN: The new cycle alerts from the top; the old state is history

	sched, mem, notifier := newTestScheduler(t)
	ctx := context.Background()
	oldExpiry := engine.NewDate(2025, time.June, 10)
	saveCert(t, mem, "c-1", oldExpiry)

	_, err := sched.RunSweep(ctx, oldExpiry.AddDays(-5))
	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, alerts.Tier7, notifier.sent[0].Tier)

	// Renewal: same certification ID, new expiry two years out.
	newExpiry := oldExpiry.AddYears(2)
	saveCert(t, mem, "c-1", newExpiry)

	summary, err := sched.RunSweep(ctx, newExpiry.AddDays(-85))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	require.Len(t, notifier.sent, 2)
	assert.Equal(t, alerts.Tier90, notifier.sent[1].Tier)

	// Both cycles remain queryable.
	states, err := mem.ListAlertStates(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 2)
}

// =============================================================================
// CONDITIONAL ADVANCE
// =============================================================================

func TestAdvanceAlertTier_ForwardOnly(t *testing.T) {
	// The store-level contract the at-most-once guarantee rests on: an
	// advance to an equal or earlier tier reports lost.

	mem := store.NewMemory()
	ctx := context.Background()
	expiry := engine.NewDate(2025, time.September, 1)
	state := alerts.AlertState{
		MemberID:        "m-1",
		CertificationID: "c-1",
		Expiry:          expiry,
		LastTier:        alerts.Tier60,
		UpdatedAt:       engine.NewDate(2025, time.July, 10),
	}

	won, err := mem.AdvanceAlertTier(ctx, state)
	require.NoError(t, err)
	assert.True(t, won)

	// Same tier again: lost.
	won, err = mem.AdvanceAlertTier(ctx, state)
	require.NoError(t, err)
	assert.False(t, won)

	// Regression: lost.
	state.LastTier = alerts.Tier90
	won, err = mem.AdvanceAlertTier(ctx, state)
	require.NoError(t, err)
	assert.False(t, won)

	// Forward: wins.
	state.LastTier = alerts.Tier7
	won, err = mem.AdvanceAlertTier(ctx, state)
	require.NoError(t, err)
	assert.True(t, won)
}
