/*
handlers.go - HTTP handler implementations

PURPOSE:
  Implements the HTTP handlers for the compliance API. Handlers are thin:
  decode, delegate to the engine/leave/alerts collaborators, encode. All
  domain decisions live in those packages.

ERROR MAPPING:
  not-found sentinels        -> 404
  validation/config errors   -> 400
  ledger consistency errors  -> 409 (operator intervention required)
  everything else            -> 500

SEE ALSO:
  - server.go: route wiring
  - dto.go: wire shapes
*/
package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/stationops/compliance-engine/alerts"
	"github.com/stationops/compliance-engine/engine"
	"github.com/stationops/compliance-engine/factory"
	"github.com/stationops/compliance-engine/leave"
)

// Backend is the persistence surface the handlers need. Both the in-memory
// store and the SQLite store satisfy it.
type Backend interface {
	engine.Directory
	engine.ProgressSource
	engine.CertificationSource
	leave.Store
	alerts.CertificationLister
	alerts.StateStore

	SaveMember(ctx context.Context, m engine.Member) error
	ListMembers(ctx context.Context) ([]engine.Member, error)

	SaveRequirement(ctx context.Context, req engine.Requirement) error
	GetRequirement(ctx context.Context, id engine.RequirementID) (*engine.Requirement, error)
	ListRequirements(ctx context.Context) ([]engine.Requirement, error)

	SaveProgressRecord(ctx context.Context, rec engine.ProgressRecord) error
	SaveCertification(ctx context.Context, cert engine.Certification) error

	ListLeaves(ctx context.Context) ([]leave.LeaveOfAbsence, error)
	ListWaivers(ctx context.Context) ([]leave.Waiver, error)
}

// Handler holds the API's collaborators.
type Handler struct {
	Store     Backend
	Evaluator *engine.Evaluator
	Mediator  *leave.Mediator
	Sweeper   *alerts.Scheduler
	Factory   *factory.RequirementFactory

	log *logrus.Entry
}

func NewHandler(store Backend, evaluator *engine.Evaluator, mediator *leave.Mediator, sweeper *alerts.Scheduler) *Handler {
	return &Handler{
		Store:     store,
		Evaluator: evaluator,
		Mediator:  mediator,
		Sweeper:   sweeper,
		Factory:   factory.NewRequirementFactory(),
		log:       logrus.WithField("package", "api"),
	}
}

// =============================================================================
// MEMBERS
// =============================================================================

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ListMembers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberResponse(m))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ID == "" || req.Name == "" {
		h.writeClientError(w, "id and name are required")
		return
	}
	hireDate, err := engine.ParseDate(req.HireDate)
	if err != nil {
		h.writeClientError(w, "hire_date must be YYYY-MM-DD")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	member := engine.Member{
		ID:       engine.MemberID(req.ID),
		Name:     req.Name,
		Active:   active,
		HireDate: hireDate,
		Tier:     req.Tier,
	}
	if err := h.Store.SaveMember(r.Context(), member); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toMemberResponse(member))
}

func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	member, ok := h.loadMember(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, toMemberResponse(*member))
}

// MemberCompliance evaluates one member against every active requirement.
func (h *Handler) MemberCompliance(w http.ResponseWriter, r *http.Request) {
	member, ok := h.loadMember(w, r)
	if !ok {
		return
	}
	asOf, ok := h.asOfParam(w, r)
	if !ok {
		return
	}

	reqs, err := h.Store.ListRequirements(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]ComplianceResponse, 0, len(reqs))
	for _, req := range reqs {
		if !req.Active {
			continue
		}
		result, err := h.Evaluator.Evaluate(r.Context(), *member, req, asOf)
		if err != nil {
			h.writeError(w, err)
			return
		}
		out = append(out, toComplianceResponse(result))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) loadMember(w http.ResponseWriter, r *http.Request) (*engine.Member, bool) {
	id := engine.MemberID(chi.URLParam(r, "id"))
	member, err := h.Store.GetMember(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	if member == nil {
		h.writeError(w, engine.ErrMemberNotFound)
		return nil, false
	}
	return member, true
}

// =============================================================================
// REQUIREMENTS
// =============================================================================

func (h *Handler) ListRequirements(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Store.ListRequirements(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]factory.RequirementJSON, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, h.Factory.ToJSON(req))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// CreateRequirement accepts the requirement configuration document and
// stores it after factory validation.
func (h *Handler) CreateRequirement(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeClientError(w, "failed to read request body")
		return
	}
	req, err := h.Factory.Parse(string(body))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Store.SaveRequirement(r.Context(), *req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, h.Factory.ToJSON(*req))
}

func (h *Handler) GetRequirement(w http.ResponseWriter, r *http.Request) {
	id := engine.RequirementID(chi.URLParam(r, "id"))
	req, err := h.Store.GetRequirement(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if req == nil {
		h.writeError(w, engine.ErrRequirementNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, h.Factory.ToJSON(*req))
}

// =============================================================================
// COMPLIANCE MATRIX
// =============================================================================

// ComplianceMatrix evaluates every active member against every active
// requirement as of the given date (today by default).
func (h *Handler) ComplianceMatrix(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOfParam(w, r)
	if !ok {
		return
	}

	members, err := h.Store.ActiveMembers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	reqs, err := h.Store.ListRequirements(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	results, err := h.Evaluator.EvaluateMatrix(r.Context(), members, reqs, asOf)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]ComplianceResponse, 0, len(results))
	for _, res := range results {
		out = append(out, toComplianceResponse(res))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// PROGRESS
// =============================================================================

func (h *Handler) RecordProgress(w http.ResponseWriter, r *http.Request) {
	var req CreateProgressRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ID == "" || req.MemberID == "" || req.Activity == "" {
		h.writeClientError(w, "id, member_id, and activity are required")
		return
	}
	date, err := engine.ParseDate(req.Date)
	if err != nil {
		h.writeClientError(w, "date must be YYYY-MM-DD")
		return
	}

	rec := engine.ProgressRecord{
		ID:         engine.ProgressID(req.ID),
		MemberID:   engine.MemberID(req.MemberID),
		Activity:   req.Activity,
		Kind:       engine.RequirementKind(req.Kind),
		Date:       date,
		Hours:      decimal.NewFromFloat(req.Hours),
		Categories: req.Categories,
	}
	if err := h.Store.SaveProgressRecord(r.Context(), rec); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

// =============================================================================
// CERTIFICATIONS
// =============================================================================

func (h *Handler) ListCertifications(w http.ResponseWriter, r *http.Request) {
	certs, err := h.Store.ListCertifications(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]CertificationResponse, 0, len(certs))
	for _, c := range certs {
		out = append(out, toCertificationResponse(c))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateCertification(w http.ResponseWriter, r *http.Request) {
	var req CreateCertificationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ID == "" || req.MemberID == "" || req.Name == "" {
		h.writeClientError(w, "id, member_id, and name are required")
		return
	}
	issued, err := engine.ParseDate(req.IssuedAt)
	if err != nil {
		h.writeClientError(w, "issued_at must be YYYY-MM-DD")
		return
	}
	expires, err := engine.ParseDate(req.ExpiresAt)
	if err != nil {
		h.writeClientError(w, "expires_at must be YYYY-MM-DD")
		return
	}
	if expires.Before(issued) {
		h.writeClientError(w, "expires_at precedes issued_at")
		return
	}

	cert := engine.Certification{
		ID:        engine.CertificationID(req.ID),
		MemberID:  engine.MemberID(req.MemberID),
		Name:      req.Name,
		Category:  req.Category,
		IssuedAt:  issued,
		ExpiresAt: expires,
	}
	if err := h.Store.SaveCertification(r.Context(), cert); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toCertificationResponse(cert))
}

// =============================================================================
// LEAVES
// =============================================================================

func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	leaves, err := h.Store.ListLeaves(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]LeaveResponse, 0, len(leaves))
	for _, l := range leaves {
		out = append(out, toLeaveResponse(l))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateLeave(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, err := engine.ParseDate(req.Start)
	if err != nil {
		h.writeClientError(w, "start must be YYYY-MM-DD")
		return
	}
	end, ok := h.optionalDate(w, req.End, "end")
	if !ok {
		return
	}

	created, err := h.Mediator.CreateLeave(r.Context(), leave.CreateLeaveParams{
		MemberID:                 engine.MemberID(req.MemberID),
		Type:                     leave.LeaveType(req.Type),
		Start:                    start,
		End:                      end,
		ExemptFromTrainingWaiver: req.ExemptFromTrainingWaiver,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toLeaveResponse(*created))
}

func (h *Handler) UpdateLeaveDates(w http.ResponseWriter, r *http.Request) {
	var req UpdateLeaveDatesRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, err := engine.ParseDate(req.Start)
	if err != nil {
		h.writeClientError(w, "start must be YYYY-MM-DD")
		return
	}
	end, ok := h.optionalDate(w, req.End, "end")
	if !ok {
		return
	}

	id := leave.LeaveID(chi.URLParam(r, "id"))
	updated, err := h.Mediator.UpdateLeaveDates(r.Context(), id, start, end)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toLeaveResponse(*updated))
}

func (h *Handler) DeactivateLeave(w http.ResponseWriter, r *http.Request) {
	id := leave.LeaveID(chi.URLParam(r, "id"))
	updated, err := h.Mediator.DeactivateLeave(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toLeaveResponse(*updated))
}

// =============================================================================
// WAIVERS
// =============================================================================

func (h *Handler) ListWaivers(w http.ResponseWriter, r *http.Request) {
	waivers, err := h.Store.ListWaivers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]WaiverResponse, 0, len(waivers))
	for _, wv := range waivers {
		out = append(out, toWaiverResponse(wv))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateWaiver(w http.ResponseWriter, r *http.Request) {
	var req CreateWaiverRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, err := engine.ParseDate(req.Start)
	if err != nil {
		h.writeClientError(w, "start must be YYYY-MM-DD")
		return
	}
	end, ok := h.optionalDate(w, req.End, "end")
	if !ok {
		return
	}
	scopes := make([]engine.ObligationScope, 0, len(req.Scopes))
	for _, s := range req.Scopes {
		scopes = append(scopes, engine.ObligationScope(s))
	}

	created, err := h.Mediator.CreateManualWaiver(r.Context(), engine.MemberID(req.MemberID), scopes, start, end)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toWaiverResponse(*created))
}

// =============================================================================
// ALERTS
// =============================================================================

// TriggerSweep runs one certification alert sweep on demand.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if r.ContentLength > 0 && !h.decode(w, r, &req) {
		return
	}
	asOf := engine.Today()
	if req.AsOf != "" {
		var err error
		asOf, err = engine.ParseDate(req.AsOf)
		if err != nil {
			h.writeClientError(w, "as_of must be YYYY-MM-DD")
			return
		}
	}

	summary, err := h.Sweeper.RunSweep(r.Context(), asOf)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) ListAlertStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.Store.ListAlertStates(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]AlertStateResponse, 0, len(states))
	for _, s := range states {
		out = append(out, toAlertStateResponse(s))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeClientError(w, "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) asOfParam(w http.ResponseWriter, r *http.Request) (engine.Date, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return engine.Today(), true
	}
	asOf, err := engine.ParseDate(raw)
	if err != nil {
		h.writeClientError(w, "as_of must be YYYY-MM-DD")
		return engine.Date{}, false
	}
	return asOf, true
}

func (h *Handler) optionalDate(w http.ResponseWriter, raw, field string) (*engine.Date, bool) {
	if raw == "" {
		return nil, true
	}
	d, err := engine.ParseDate(raw)
	if err != nil {
		h.writeClientError(w, field+" must be YYYY-MM-DD")
		return nil, false
	}
	return &d, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Error("failed to encode response")
	}
}

func (h *Handler) writeClientError(w http.ResponseWriter, msg string) {
	h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var consistency *leave.ConsistencyError
	switch {
	case errors.As(err, &consistency):
		// Ledger corruption is surfaced, never auto-healed.
		h.log.WithError(err).Error("ledger consistency violation")
		h.writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case engine.IsNotFound(err),
		errors.Is(err, leave.ErrLeaveNotFound),
		errors.Is(err, leave.ErrWaiverNotFound):
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case engine.IsClientError(err),
		errors.Is(err, leave.ErrLeaveInactive),
		errors.Is(err, leave.ErrManualWaiver):
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		h.log.WithError(err).Error("request failed")
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
