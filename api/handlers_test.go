package api_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationops/compliance-engine/alerts"
	"github.com/stationops/compliance-engine/api"
	"github.com/stationops/compliance-engine/engine"
	"github.com/stationops/compliance-engine/leave"
	"github.com/stationops/compliance-engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	router http.Handler
	store  *store.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemory()

	ledger := leave.NewLedger(mem)
	evaluator := engine.NewEvaluator(mem, ledger, mem)
	mediator := leave.NewMediator(mem)
	sweeper := alerts.NewScheduler(mem, mem, &silentNotifier{})

	handler := api.NewHandler(mem, evaluator, mediator, sweeper)
	return &testServer{router: api.NewRouter(handler), store: mem}
}

type silentNotifier struct{}

func (silentNotifier) Notify(_ context.Context, _ alerts.Alert) error { return nil }

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

// =============================================================================
// MEMBERS
// =============================================================================

func TestAPI_CreateAndGetMember(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/members", api.CreateMemberRequest{
		ID: "m-1", Name: "R. Alvarez", HireDate: "2020-03-01", Tier: "senior",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/members/m-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	member := decodeBody[api.MemberResponse](t, rec)
	assert.Equal(t, "R. Alvarez", member.Name)
	assert.Equal(t, "2020-03-01", member.HireDate)
	assert.True(t, member.Active)
}

func TestAPI_GetMember_Unknown_404(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/members/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CreateMember_BadDate_400(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/members", api.CreateMemberRequest{
		ID: "m-1", Name: "X", HireDate: "March 1st",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// REQUIREMENTS
// =============================================================================

func TestAPI_CreateRequirement_ValidatedThroughFactory(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/requirements", map[string]any{
		"id": "annual-hours", "name": "Annual Training Hours", "kind": "hours",
		"base_required": 24, "frequency": "annual",
		"due_date_type": "calendar_period", "period_start_month": 1, "period_start_day": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	bad := ts.do(t, http.MethodPost, "/api/requirements", map[string]any{
		"id": "broken", "name": "b", "kind": "shifts", "base_required": 36,
		"frequency": "annual", "due_date_type": "rolling",
	})
	assert.Equal(t, http.StatusBadRequest, bad.Code, "missing rolling period must be rejected")
}

// =============================================================================
// COMPLIANCE MATRIX
// =============================================================================

func TestAPI_ComplianceMatrix_EndToEnd(t *testing.T) {
	// GIVEN: One member, one annual hours requirement, partial progress
	// WHEN: Fetching the matrix
	// THEN: One cell with the expected percentage and status

	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/members", api.CreateMemberRequest{
		ID: "m-1", Name: "K. Chen", HireDate: "2022-01-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/requirements", map[string]any{
		"id": "annual-hours", "name": "Annual Training Hours", "kind": "hours",
		"base_required": 24, "frequency": "annual",
		"due_date_type": "calendar_period", "period_start_month": 1, "period_start_day": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/progress", api.CreateProgressRequest{
		ID: "p-1", MemberID: "m-1", Activity: "Ladder Ops", Kind: "hours",
		Date: "2025-04-10", Hours: 12,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/compliance/matrix?as_of=2025-10-01", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	matrix := decodeBody[[]api.ComplianceResponse](t, rec)
	require.Len(t, matrix, 1)
	cell := matrix[0]
	assert.Equal(t, "m-1", cell.MemberID)
	assert.Equal(t, "annual-hours", cell.RequirementID)
	assert.InDelta(t, 50.0, cell.Percentage, 0.01)
	assert.Equal(t, "at_risk", cell.Status)
	assert.Equal(t, 12, cell.Window.TotalMonths)
}

func TestAPI_ComplianceMatrix_BadAsOf_400(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/compliance/matrix?as_of=soon", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// LEAVE LIFECYCLE
// =============================================================================

func TestAPI_LeaveLifecycle(t *testing.T) {
	ts := newTestServer(t)

	// Create: waiver auto-linked.
	rec := ts.do(t, http.MethodPost, "/api/leaves", api.CreateLeaveRequest{
		MemberID: "m-1", Type: "medical", Start: "2025-05-01", End: "2025-08-31",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[api.LeaveResponse](t, rec)
	require.NotNil(t, created.LinkedWaiverID)

	waivers := decodeBody[[]api.WaiverResponse](t, ts.do(t, http.MethodGet, "/api/waivers", nil))
	require.Len(t, waivers, 1)
	assert.Equal(t, "auto_from_leave", waivers[0].Source)

	// Update dates: propagates to the waiver.
	rec = ts.do(t, http.MethodPost, "/api/leaves/"+created.ID+"/dates", api.UpdateLeaveDatesRequest{
		Start: "2025-05-15", End: "2025-09-15",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	waivers = decodeBody[[]api.WaiverResponse](t, ts.do(t, http.MethodGet, "/api/waivers", nil))
	require.Len(t, waivers, 1)
	assert.Equal(t, "2025-05-15", waivers[0].Start)

	// Deactivate: both soft-deactivated.
	rec = ts.do(t, http.MethodPost, "/api/leaves/"+created.ID+"/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	leaves := decodeBody[[]api.LeaveResponse](t, ts.do(t, http.MethodGet, "/api/leaves", nil))
	require.Len(t, leaves, 1)
	assert.False(t, leaves[0].Active)
	waivers = decodeBody[[]api.WaiverResponse](t, ts.do(t, http.MethodGet, "/api/waivers", nil))
	require.Len(t, waivers, 1)
	assert.False(t, waivers[0].Active)
}

func TestAPI_DeactivateUnknownLeave_404(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/leaves/ghost/deactivate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// ALERTS
// =============================================================================

func TestAPI_AlertSweep_IdempotentAcrossCalls(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/certifications", api.CreateCertificationRequest{
		ID: "c-1", MemberID: "m-1", Name: "EMT-B", Category: "ems",
		IssuedAt: "2024-01-01", ExpiresAt: "2025-07-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/alerts/sweep", api.SweepRequest{AsOf: "2025-06-01"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeBody[alerts.SweepSummary](t, rec)
	assert.Equal(t, 1, first.Sent)

	rec = ts.do(t, http.MethodPost, "/api/alerts/sweep", api.SweepRequest{AsOf: "2025-06-01"})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody[alerts.SweepSummary](t, rec)
	assert.Equal(t, 0, second.Sent)

	states := decodeBody[[]api.AlertStateResponse](t, ts.do(t, http.MethodGet, "/api/alerts/states", nil))
	require.Len(t, states, 1)
	assert.Equal(t, "sent_60", states[0].LastTier)
}
