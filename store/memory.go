/*
Package store provides the in-memory Store implementation.

PURPOSE:
  Backs tests, demo scenarios, and development runs with a thread-safe
  in-memory store implementing every persistence interface the engine,
  leave, and alerts packages consume. The production implementation with
  identical semantics lives in store/sqlite.

TRANSACTIONS:
  WithUnit simulates a database transaction with a snapshot: writes inside
  the unit apply directly, and the snapshot is restored if the function
  returns an error. This matches the rollback-on-partial-failure contract
  the waiver auto-link mediator depends on.
*/
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/stationops/compliance-engine/alerts"
	"github.com/stationops/compliance-engine/engine"
	"github.com/stationops/compliance-engine/leave"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	members      map[engine.MemberID]engine.Member
	requirements map[engine.RequirementID]engine.Requirement
	progress     map[engine.ProgressID]engine.ProgressRecord
	certs        map[engine.CertificationID]engine.Certification
	leaves       map[leave.LeaveID]leave.LeaveOfAbsence
	waivers      map[leave.WaiverID]leave.Waiver
	alertStates  map[alertKey]alerts.AlertState
}

type alertKey struct {
	CertID engine.CertificationID
	Expiry string
}

func NewMemory() *Memory {
	return &Memory{
		members:      make(map[engine.MemberID]engine.Member),
		requirements: make(map[engine.RequirementID]engine.Requirement),
		progress:     make(map[engine.ProgressID]engine.ProgressRecord),
		certs:        make(map[engine.CertificationID]engine.Certification),
		leaves:       make(map[leave.LeaveID]leave.LeaveOfAbsence),
		waivers:      make(map[leave.WaiverID]leave.Waiver),
		alertStates:  make(map[alertKey]alerts.AlertState),
	}
}

// Compile-time interface checks.
var (
	_ engine.Directory           = (*Memory)(nil)
	_ engine.ProgressSource      = (*Memory)(nil)
	_ engine.CertificationSource = (*Memory)(nil)
	_ leave.Store                = (*Memory)(nil)
	_ alerts.CertificationLister = (*Memory)(nil)
	_ alerts.StateStore          = (*Memory)(nil)
)

// =============================================================================
// MEMBER DIRECTORY
// =============================================================================

func (m *Memory) SaveMember(_ context.Context, member engine.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[member.ID] = member
	return nil
}

func (m *Memory) GetMember(_ context.Context, id engine.MemberID) (*engine.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member, ok := m.members[id]
	if !ok {
		return nil, nil
	}
	return &member, nil
}

func (m *Memory) ListMembers(_ context.Context) ([]engine.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Member, 0, len(m.members))
	for _, member := range m.members {
		out = append(out, member)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ActiveMembers(ctx context.Context) ([]engine.Member, error) {
	all, err := m.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	var active []engine.Member
	for _, member := range all {
		if member.Active {
			active = append(active, member)
		}
	}
	return active, nil
}

// =============================================================================
// REQUIREMENTS
// =============================================================================

func (m *Memory) SaveRequirement(_ context.Context, req engine.Requirement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requirements[req.ID] = req
	return nil
}

func (m *Memory) GetRequirement(_ context.Context, id engine.RequirementID) (*engine.Requirement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requirements[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (m *Memory) ListRequirements(_ context.Context) ([]engine.Requirement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Requirement, 0, len(m.requirements))
	for _, req := range m.requirements {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// PROGRESS RECORDS (immutable once stored)
// =============================================================================

func (m *Memory) SaveProgressRecord(_ context.Context, rec engine.ProgressRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.progress[rec.ID]; exists {
		return fmt.Errorf("progress record %s already exists (records are immutable)", rec.ID)
	}
	m.progress[rec.ID] = rec
	return nil
}

func (m *Memory) RecordsInRange(_ context.Context, memberID engine.MemberID, from, to engine.Date) ([]engine.ProgressRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.ProgressRecord
	for _, rec := range m.progress {
		if rec.MemberID != memberID {
			continue
		}
		if rec.Date.AfterOrEqual(from) && rec.Date.BeforeOrEqual(to) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// =============================================================================
// CERTIFICATIONS
// =============================================================================

func (m *Memory) SaveCertification(_ context.Context, cert engine.Certification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.certs[cert.ID] = cert
	return nil
}

func (m *Memory) MemberCertifications(_ context.Context, memberID engine.MemberID) ([]engine.Certification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Certification
	for _, cert := range m.certs {
		if cert.MemberID == memberID {
			out = append(out, cert)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListCertifications(_ context.Context) ([]engine.Certification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Certification, 0, len(m.certs))
	for _, cert := range m.certs {
		out = append(out, cert)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// LEAVES AND WAIVERS (leave.Store)
// =============================================================================

func (m *Memory) GetLeave(_ context.Context, id leave.LeaveID) (*leave.LeaveOfAbsence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLeaveLocked(id), nil
}

func (m *Memory) getLeaveLocked(id leave.LeaveID) *leave.LeaveOfAbsence {
	l, ok := m.leaves[id]
	if !ok {
		return nil
	}
	return &l
}

func (m *Memory) LeavesForMember(_ context.Context, memberID engine.MemberID) ([]leave.LeaveOfAbsence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.leavesForMemberLocked(memberID), nil
}

func (m *Memory) leavesForMemberLocked(memberID engine.MemberID) []leave.LeaveOfAbsence {
	var out []leave.LeaveOfAbsence
	for _, l := range m.leaves {
		if l.MemberID == memberID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) ListLeaves(_ context.Context) ([]leave.LeaveOfAbsence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leave.LeaveOfAbsence, 0, len(m.leaves))
	for _, l := range m.leaves {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveLeave(_ context.Context, l leave.LeaveOfAbsence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves[l.ID] = l
	return nil
}

func (m *Memory) GetWaiver(_ context.Context, id leave.WaiverID) (*leave.Waiver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.waivers[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (m *Memory) WaiversForMember(_ context.Context, memberID engine.MemberID) ([]leave.Waiver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []leave.Waiver
	for _, w := range m.waivers {
		if w.MemberID == memberID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListWaivers(_ context.Context) ([]leave.Waiver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leave.Waiver, 0, len(m.waivers))
	for _, w := range m.waivers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveWaiver(_ context.Context, w leave.Waiver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waivers[w.ID] = w
	return nil
}

// WithUnit executes fn against a transactional view. On error the
// pre-unit snapshot is restored, so a leave whose waiver write failed
// never survives as a half-written pair.
func (m *Memory) WithUnit(ctx context.Context, fn func(leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshotLocked()
	view := &unitView{parent: m}

	if err := fn(view); err != nil {
		m.restoreLocked(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	leaves  map[leave.LeaveID]leave.LeaveOfAbsence
	waivers map[leave.WaiverID]leave.Waiver
}

func (m *Memory) snapshotLocked() memorySnapshot {
	leavesCopy := make(map[leave.LeaveID]leave.LeaveOfAbsence, len(m.leaves))
	for k, v := range m.leaves {
		leavesCopy[k] = v
	}
	waiversCopy := make(map[leave.WaiverID]leave.Waiver, len(m.waivers))
	for k, v := range m.waivers {
		waiversCopy[k] = v
	}
	return memorySnapshot{leaves: leavesCopy, waivers: waiversCopy}
}

func (m *Memory) restoreLocked(s memorySnapshot) {
	m.leaves = s.leaves
	m.waivers = s.waivers
}

// unitView is the in-transaction view handed to WithUnit callbacks. The
// parent's lock is already held, so it accesses maps directly.
type unitView struct {
	parent *Memory
}

func (v *unitView) GetLeave(_ context.Context, id leave.LeaveID) (*leave.LeaveOfAbsence, error) {
	return v.parent.getLeaveLocked(id), nil
}

func (v *unitView) LeavesForMember(_ context.Context, memberID engine.MemberID) ([]leave.LeaveOfAbsence, error) {
	return v.parent.leavesForMemberLocked(memberID), nil
}

func (v *unitView) SaveLeave(_ context.Context, l leave.LeaveOfAbsence) error {
	v.parent.leaves[l.ID] = l
	return nil
}

func (v *unitView) GetWaiver(_ context.Context, id leave.WaiverID) (*leave.Waiver, error) {
	w, ok := v.parent.waivers[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (v *unitView) WaiversForMember(_ context.Context, memberID engine.MemberID) ([]leave.Waiver, error) {
	var out []leave.Waiver
	for _, w := range v.parent.waivers {
		if w.MemberID == memberID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *unitView) SaveWaiver(_ context.Context, w leave.Waiver) error {
	v.parent.waivers[w.ID] = w
	return nil
}

func (v *unitView) WithUnit(ctx context.Context, fn func(leave.Store) error) error {
	// Already inside a unit; just run against the same view.
	return fn(v)
}

// =============================================================================
// ALERT STATES (alerts.StateStore)
// =============================================================================

func (m *Memory) GetAlertState(_ context.Context, certID engine.CertificationID, expiry engine.Date) (*alerts.AlertState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.alertStates[alertKey{CertID: certID, Expiry: expiry.String()}]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// AdvanceAlertTier moves the state forward only if the stored tier is
// strictly earlier. The check-and-set runs under the write lock, so
// concurrent sweeps converge and exactly one wins each advance.
func (m *Memory) AdvanceAlertTier(_ context.Context, state alerts.AlertState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := alertKey{CertID: state.CertificationID, Expiry: state.Expiry.String()}
	if existing, ok := m.alertStates[key]; ok && existing.LastTier >= state.LastTier {
		return false, nil
	}
	m.alertStates[key] = state
	return true, nil
}

func (m *Memory) ListAlertStates(_ context.Context) ([]alerts.AlertState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]alerts.AlertState, 0, len(m.alertStates))
	for _, state := range m.alertStates {
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CertificationID != out[j].CertificationID {
			return out[i].CertificationID < out[j].CertificationID
		}
		return out[i].Expiry.Before(out[j].Expiry)
	})
	return out, nil
}
