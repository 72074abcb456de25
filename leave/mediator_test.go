package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationops/compliance-engine/engine"
	"github.com/stationops/compliance-engine/leave"
	"github.com/stationops/compliance-engine/store"
)

func newTestMediator(t *testing.T) (*leave.Mediator, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	mediator := leave.NewMediator(mem)
	mediator.Clock = func() engine.Date { return engine.NewDate(2025, time.January, 1) }
	return mediator, mem
}

// =============================================================================
// AUTO-LINK ON CREATE
// =============================================================================

func TestCreateLeave_AutoLinksTrainingWaiver(t *testing.T) {
	// GIVEN: A non-exempt medical leave
	// WHEN: Creating it
	// THEN: Exactly one waiver exists - scope {training}, auto source,
	//       dates equal to the leave's, linked in both directions

	mediator, mem := newTestMediator(t)
	ctx := context.Background()

	end := engine.NewDate(2025, time.April, 30)
	l, err := mediator.CreateLeave(ctx, leave.CreateLeaveParams{
		MemberID: "m-1",
		Type:     leave.LeaveMedical,
		Start:    engine.NewDate(2025, time.February, 1),
		End:      &end,
	})
	require.NoError(t, err)
	require.NotNil(t, l.LinkedWaiverID)

	waivers, err := mem.WaiversForMember(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, waivers, 1)

	w := waivers[0]
	assert.Equal(t, *l.LinkedWaiverID, w.ID)
	assert.Equal(t, leave.SourceAutoFromLeave, w.Source)
	assert.Equal(t, []engine.ObligationScope{engine.ScopeTraining}, w.Scopes)
	assert.True(t, w.Start.Equal(l.Start))
	require.NotNil(t, w.End)
	assert.True(t, w.End.Equal(*l.End))
	require.NotNil(t, w.LeaveID)
	assert.Equal(t, l.ID, *w.LeaveID)
}

func TestCreateLeave_Exempt_NoWaiver(t *testing.T) {
	// GIVEN: An exempt-service leave
	// THEN: No waiver is created and no link recorded

	mediator, mem := newTestMediator(t)
	ctx := context.Background()

	l, err := mediator.CreateLeave(ctx, leave.CreateLeaveParams{
		MemberID:                 "m-1",
		Type:                     leave.LeaveExemptService,
		Start:                    engine.NewDate(2025, time.February, 1),
		ExemptFromTrainingWaiver: true,
	})
	require.NoError(t, err)
	assert.Nil(t, l.LinkedWaiverID)

	waivers, err := mem.WaiversForMember(ctx, "m-1")
	require.NoError(t, err)
	assert.Empty(t, waivers)
}

func TestCreateLeave_EndBeforeStart_Rejected(t *testing.T) {
	mediator, _ := newTestMediator(t)

	end := engine.NewDate(2025, time.January, 1)
	_, err := mediator.CreateLeave(context.Background(), leave.CreateLeaveParams{
		MemberID: "m-1",
		Type:     leave.LeaveMedical,
		Start:    engine.NewDate(2025, time.February, 1),
		End:      &end,
	})
	assert.ErrorIs(t, err, engine.ErrInvalidWindow)
}

// =============================================================================
// DATE PROPAGATION
// =============================================================================

func TestUpdateLeaveDates_PropagatesToLinkedWaiver(t *testing.T) {
	// GIVEN: A leave with its auto-linked waiver
	// WHEN: Updating the leave's dates
	// THEN: The waiver carries the new dates; the link stays consistent

	mediator, mem := newTestMediator(t)
	ctx := context.Background()

	end := engine.NewDate(2025, time.April, 30)
	l, err := mediator.CreateLeave(ctx, leave.CreateLeaveParams{
		MemberID: "m-1", Type: leave.LeaveMedical,
		Start: engine.NewDate(2025, time.February, 1), End: &end,
	})
	require.NoError(t, err)

	newEnd := engine.NewDate(2025, time.June, 15)
	updated, err := mediator.UpdateLeaveDates(ctx, l.ID, engine.NewDate(2025, time.March, 1), &newEnd)
	require.NoError(t, err)
	assert.True(t, updated.Start.Equal(engine.NewDate(2025, time.March, 1)))

	w, err := mem.GetWaiver(ctx, *l.LinkedWaiverID)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.True(t, w.Start.Equal(engine.NewDate(2025, time.March, 1)))
	require.NotNil(t, w.End)
	assert.True(t, w.End.Equal(newEnd))
}

func TestUpdateLeaveDates_InactiveLeave_Rejected(t *testing.T) {
	mediator, _ := newTestMediator(t)
	ctx := context.Background()

	l, err := mediator.CreateLeave(ctx, leave.CreateLeaveParams{
		MemberID: "m-1", Type: leave.LeaveMedical,
		Start: engine.NewDate(2025, time.February, 1),
	})
	require.NoError(t, err)
	_, err = mediator.DeactivateLeave(ctx, l.ID)
	require.NoError(t, err)

	_, err = mediator.UpdateLeaveDates(ctx, l.ID, engine.NewDate(2025, time.March, 1), nil)
	assert.ErrorIs(t, err, leave.ErrLeaveInactive)
}

func TestUpdateLeaveDates_UnknownLeave_NotFound(t *testing.T) {
	mediator, _ := newTestMediator(t)

	_, err := mediator.UpdateLeaveDates(context.Background(), "loa-missing", engine.NewDate(2025, time.March, 1), nil)
	assert.ErrorIs(t, err, leave.ErrLeaveNotFound)
}

// =============================================================================
// DEACTIVATION
// =============================================================================

func TestDeactivateLeave_DeactivatesWaiverToo(t *testing.T) {
	// GIVEN: A leave with its auto-linked waiver
	// WHEN: The member returns and the leave is deactivated
	// THEN: Both records are inactive but still present (soft deletion)

	mediator, mem := newTestMediator(t)
	ctx := context.Background()

	l, err := mediator.CreateLeave(ctx, leave.CreateLeaveParams{
		MemberID: "m-1", Type: leave.LeaveMedical,
		Start: engine.NewDate(2025, time.February, 1),
	})
	require.NoError(t, err)

	updated, err := mediator.DeactivateLeave(ctx, l.ID)
	require.NoError(t, err)
	assert.False(t, updated.Active)

	w, err := mem.GetWaiver(ctx, *l.LinkedWaiverID)
	require.NoError(t, err)
	require.NotNil(t, w, "waiver must survive deactivation")
	assert.False(t, w.Active)
}

// =============================================================================
// CONSISTENCY ENFORCEMENT
// =============================================================================

func TestMediator_DivergedWaiverDates_RaisesConsistencyError(t *testing.T) {
	// GIVEN: An auto-linked waiver whose dates were corrupted by a bypassed
	//        write path
	// WHEN: The mediator next touches the pair
	// THEN: ConsistencyError - the mediator refuses to auto-heal

	mediator, mem := newTestMediator(t)
	ctx := context.Background()

	l, err := mediator.CreateLeave(ctx, leave.CreateLeaveParams{
		MemberID: "m-1", Type: leave.LeaveMedical,
		Start: engine.NewDate(2025, time.February, 1),
	})
	require.NoError(t, err)

	// Corrupt the waiver behind the mediator's back.
	w, err := mem.GetWaiver(ctx, *l.LinkedWaiverID)
	require.NoError(t, err)
	w.Start = engine.NewDate(2025, time.March, 15)
	require.NoError(t, mem.SaveWaiver(ctx, *w))

	_, err = mediator.UpdateLeaveDates(ctx, l.ID, engine.NewDate(2025, time.April, 1), nil)
	var consistency *leave.ConsistencyError
	require.ErrorAs(t, err, &consistency)
	assert.Equal(t, l.ID, consistency.LeaveID)
}

func TestMediator_MissingLinkedWaiver_RaisesConsistencyError(t *testing.T) {
	mediator, mem := newTestMediator(t)
	ctx := context.Background()

	l, err := mediator.CreateLeave(ctx, leave.CreateLeaveParams{
		MemberID: "m-1", Type: leave.LeaveMedical,
		Start: engine.NewDate(2025, time.February, 1),
	})
	require.NoError(t, err)

	// Point the leave at a waiver that does not exist.
	ghost := leave.WaiverID("wvr-ghost")
	corrupted := *l
	corrupted.LinkedWaiverID = &ghost
	require.NoError(t, mem.SaveLeave(ctx, corrupted))

	_, err = mediator.DeactivateLeave(ctx, l.ID)
	var consistency *leave.ConsistencyError
	assert.ErrorAs(t, err, &consistency)
}

// =============================================================================
// MANUAL WAIVERS
// =============================================================================

func TestCreateManualWaiver_IndependentOfLeaveLifecycle(t *testing.T) {
	// GIVEN: A manual shifts waiver and a separate leave for the same member
	// WHEN: The leave's dates change and it is deactivated
	// THEN: The manual waiver is untouched

	mediator, mem := newTestMediator(t)
	ctx := context.Background()

	wEnd := engine.NewDate(2025, time.August, 1)
	manual, err := mediator.CreateManualWaiver(ctx, "m-1",
		[]engine.ObligationScope{engine.ScopeShifts}, engine.NewDate(2025, time.July, 1), &wEnd)
	require.NoError(t, err)

	l, err := mediator.CreateLeave(ctx, leave.CreateLeaveParams{
		MemberID: "m-1", Type: leave.LeaveMedical,
		Start: engine.NewDate(2025, time.February, 1),
	})
	require.NoError(t, err)
	_, err = mediator.UpdateLeaveDates(ctx, l.ID, engine.NewDate(2025, time.March, 1), nil)
	require.NoError(t, err)
	_, err = mediator.DeactivateLeave(ctx, l.ID)
	require.NoError(t, err)

	after, err := mem.GetWaiver(ctx, manual.ID)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.True(t, after.Active)
	assert.True(t, after.Start.Equal(engine.NewDate(2025, time.July, 1)))
}

func TestCreateManualWaiver_NoScopes_Rejected(t *testing.T) {
	mediator, _ := newTestMediator(t)

	_, err := mediator.CreateManualWaiver(context.Background(), "m-1", nil,
		engine.NewDate(2025, time.July, 1), nil)
	assert.Error(t, err)
}
