package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationops/compliance-engine/engine"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func hoursRequirement(id string, due engine.DueDate, freq engine.Frequency) engine.Requirement {
	return engine.Requirement{
		ID:           engine.RequirementID(id),
		Name:         id,
		Kind:         engine.KindHours,
		BaseRequired: decimal.NewFromInt(24),
		Frequency:    freq,
		DueDate:      due,
		Active:       true,
		CreatedAt:    engine.NewDate(2024, time.January, 1),
	}
}

// =============================================================================
// CALENDAR PERIOD WINDOWS
// =============================================================================

func TestResolveWindow_CalendarPeriod_JanuaryAnchor(t *testing.T) {
	// GIVEN: An annual requirement anchored January 1
	// WHEN: Resolving mid-year
	// THEN: The window is the enclosing calendar year, open, 12 months

	req := hoursRequirement("annual", engine.CalendarPeriod{AnchorMonth: time.January, AnchorDay: 1}, engine.FreqAnnual)

	w, err := engine.ResolveWindow(req, engine.NewDate(2025, time.June, 15))
	require.NoError(t, err)

	assert.Equal(t, engine.NewDate(2025, time.January, 1), w.Start)
	assert.Equal(t, engine.NewDate(2025, time.December, 31), w.End)
	assert.True(t, w.Open)
	assert.Equal(t, 12, w.TotalMonths)
}

func TestResolveWindow_CalendarPeriod_JulyAnchor_StraddlesYears(t *testing.T) {
	// GIVEN: An annual requirement anchored July 1 (fiscal year style)
	// WHEN: Resolving in March, before the anchor month
	// THEN: The window started July 1 of the PREVIOUS year

	req := hoursRequirement("fiscal", engine.CalendarPeriod{AnchorMonth: time.July, AnchorDay: 1}, engine.FreqAnnual)

	w, err := engine.ResolveWindow(req, engine.NewDate(2025, time.March, 10))
	require.NoError(t, err)

	assert.Equal(t, engine.NewDate(2024, time.July, 1), w.Start)
	assert.Equal(t, engine.NewDate(2025, time.June, 30), w.End)
	assert.Equal(t, 12, w.TotalMonths)
}

func TestResolveWindow_CalendarPeriod_Quarterly(t *testing.T) {
	// GIVEN: A quarterly requirement anchored January 1
	// WHEN: Resolving in August
	// THEN: The window is Q3 (Jul 1 - Sep 30), 3 months

	req := hoursRequirement("quarterly", engine.CalendarPeriod{AnchorMonth: time.January, AnchorDay: 1}, engine.FreqQuarterly)

	w, err := engine.ResolveWindow(req, engine.NewDate(2025, time.August, 20))
	require.NoError(t, err)

	assert.Equal(t, engine.NewDate(2025, time.July, 1), w.Start)
	assert.Equal(t, engine.NewDate(2025, time.September, 30), w.End)
	assert.Equal(t, 3, w.TotalMonths)
}

func TestResolveWindow_CalendarPeriod_OnAnchorDay(t *testing.T) {
	// GIVEN: An annual requirement anchored January 1
	// WHEN: Resolving exactly on the anchor day
	// THEN: The new period has just begun

	req := hoursRequirement("annual", engine.CalendarPeriod{AnchorMonth: time.January, AnchorDay: 1}, engine.FreqAnnual)

	w, err := engine.ResolveWindow(req, engine.NewDate(2025, time.January, 1))
	require.NoError(t, err)

	assert.Equal(t, engine.NewDate(2025, time.January, 1), w.Start)
}

// =============================================================================
// ROLLING WINDOWS
// =============================================================================

func TestResolveWindow_Rolling_EndsAtReference(t *testing.T) {
	// GIVEN: A rolling 12-month requirement
	// WHEN: Resolving at any date
	// THEN: The window is [ref - 12 months, ref] and always open

	req := hoursRequirement("rolling", engine.Rolling{Months: 12}, engine.FreqAnnual)
	ref := engine.NewDate(2025, time.September, 1)

	w, err := engine.ResolveWindow(req, ref)
	require.NoError(t, err)

	assert.Equal(t, engine.NewDate(2024, time.September, 1), w.Start)
	assert.Equal(t, ref, w.End)
	assert.True(t, w.Open)
	assert.Equal(t, 12, w.TotalMonths)
}

func TestResolveWindow_Rolling_ZeroMonths_Rejected(t *testing.T) {
	// GIVEN: A rolling requirement with no period length
	// WHEN: Resolving
	// THEN: Configuration error, never a guessed default

	req := hoursRequirement("broken", engine.Rolling{}, engine.FreqAnnual)

	_, err := engine.ResolveWindow(req, engine.NewDate(2025, time.June, 1))
	assert.ErrorIs(t, err, engine.ErrConfiguration)
}

// =============================================================================
// CERTIFICATION PERIOD WINDOWS
// =============================================================================

func TestResolveWindow_CertificationPeriod_NoGenericWindow(t *testing.T) {
	// GIVEN: A certification-period requirement
	// WHEN: Asking for a generic window (not tied to a credential)
	// THEN: Configuration error directing to per-credential resolution

	req := engine.Requirement{
		ID:           "cert",
		Name:         "cert",
		Kind:         engine.KindCertification,
		BaseRequired: decimal.NewFromInt(1),
		Frequency:    engine.FreqOneTime,
		DueDate:      engine.CertPeriod{},
		Active:       true,
		CreatedAt:    engine.NewDate(2024, time.January, 1),
	}

	_, err := engine.ResolveWindow(req, engine.NewDate(2025, time.June, 1))
	assert.ErrorIs(t, err, engine.ErrConfiguration)
}

func TestResolveCertificationWindow_IssueToExpiry(t *testing.T) {
	// GIVEN: A credential issued 2024-03-01, expiring 2026-03-01
	// WHEN: Resolving its window before and after expiry
	// THEN: [issue, expiry]; open flips when the reference passes expiry

	cert := engine.Certification{
		ID:        "c-1",
		MemberID:  "m-1",
		IssuedAt:  engine.NewDate(2024, time.March, 1),
		ExpiresAt: engine.NewDate(2026, time.March, 1),
	}

	open := engine.ResolveCertificationWindow(cert, engine.NewDate(2025, time.June, 1))
	assert.Equal(t, cert.IssuedAt, open.Start)
	assert.Equal(t, cert.ExpiresAt, open.End)
	assert.True(t, open.Open)
	assert.Equal(t, 25, open.TotalMonths) // Mar 2024 through Mar 2026 inclusive

	closed := engine.ResolveCertificationWindow(cert, engine.NewDate(2026, time.April, 1))
	assert.False(t, closed.Open)
}

// =============================================================================
// FIXED-DATE WINDOWS
// =============================================================================

func TestResolveWindow_FixedDate_CreationToDue(t *testing.T) {
	// GIVEN: A requirement created 2025-01-10 and due 2025-06-30
	// WHEN: Resolving before the due date
	// THEN: Window spans creation to due and is open

	req := hoursRequirement("fixed", engine.FixedDate{Due: engine.NewDate(2025, time.June, 30)}, engine.FreqOneTime)
	req.CreatedAt = engine.NewDate(2025, time.January, 10)

	w, err := engine.ResolveWindow(req, engine.NewDate(2025, time.May, 1))
	require.NoError(t, err)

	assert.Equal(t, req.CreatedAt, w.Start)
	assert.Equal(t, engine.NewDate(2025, time.June, 30), w.End)
	assert.True(t, w.Open)
	assert.Equal(t, 6, w.TotalMonths) // Jan through Jun

	closed, err := engine.ResolveWindow(req, engine.NewDate(2025, time.July, 1))
	require.NoError(t, err)
	assert.False(t, closed.Open)
}

func TestResolveWindow_FixedDate_SameMonth_ZeroMonths(t *testing.T) {
	// GIVEN: A requirement created and due within one calendar month
	// WHEN: Resolving its window
	// THEN: TotalMonths is zero so proration passes the base through

	req := hoursRequirement("short", engine.FixedDate{Due: engine.NewDate(2025, time.March, 25)}, engine.FreqOneTime)
	req.CreatedAt = engine.NewDate(2025, time.March, 3)

	w, err := engine.ResolveWindow(req, engine.NewDate(2025, time.March, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, w.TotalMonths)
}

func TestWindow_Contains_InclusiveBounds(t *testing.T) {
	w := engine.Window{Start: engine.NewDate(2025, time.January, 1), End: engine.NewDate(2025, time.March, 31)}

	assert.True(t, w.Contains(engine.NewDate(2025, time.January, 1)))
	assert.True(t, w.Contains(engine.NewDate(2025, time.March, 31)))
	assert.False(t, w.Contains(engine.NewDate(2024, time.December, 31)))
	assert.False(t, w.Contains(engine.NewDate(2025, time.April, 1)))
}
