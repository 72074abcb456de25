// Package leave implements the leave-of-absence and waiver ledger plus the
// mediator that keeps a leave and its auto-linked training waiver in sync.
// It answers the engine's excused-time questions (which calendar months, and
// what fraction of them, are excused for a member between two dates) and owns
// the only write path for the leave↔waiver link.
package leave

import (
	"github.com/stationops/compliance-engine/engine"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type LeaveID string
type WaiverID string

// =============================================================================
// LEAVE OF ABSENCE
// =============================================================================

// LeaveType enumerates why a member is away.
type LeaveType string

const (
	LeaveStandard       LeaveType = "standard"
	LeaveMedical        LeaveType = "medical"
	LeaveMilitary       LeaveType = "military"
	LeavePersonal       LeaveType = "personal"
	LeaveAdministrative LeaveType = "administrative"
	LeaveOther          LeaveType = "other"

	// LeaveExemptService is the long-service variant: the member remains
	// excused from meetings and shifts but keeps full training obligations.
	LeaveExemptService LeaveType = "exempt_service"
)

// LeaveOfAbsence is a formal, dated period during which a member is not
// expected to participate normally. Deactivation is soft: history must
// remain queryable, so leaves are never deleted.
type LeaveOfAbsence struct {
	ID       LeaveID
	MemberID engine.MemberID
	Type     LeaveType
	Start    engine.Date
	End      *engine.Date // nil = open-ended/permanent
	Active   bool

	// ExemptFromTrainingWaiver leaves get no auto-linked waiver; they excuse
	// meetings and shifts only.
	ExemptFromTrainingWaiver bool

	// LinkedWaiverID is the mediator-owned side of the leave↔waiver link.
	// The mediator is the only writer of this field.
	LinkedWaiverID *WaiverID

	CreatedAt engine.Date
}

// Covers reports whether the leave is in effect on the given day.
func (l LeaveOfAbsence) Covers(d engine.Date) bool {
	if d.Before(l.Start) {
		return false
	}
	if l.End != nil && d.After(*l.End) {
		return false
	}
	return true
}

// ExcusesScope reports whether the leave excuses the given obligation
// scope. An exempt-from-training-waiver leave structurally covers meetings
// and shifts only.
func (l LeaveOfAbsence) ExcusesScope(scope engine.ObligationScope) bool {
	if l.ExemptFromTrainingWaiver && scope == engine.ScopeTraining {
		return false
	}
	return true
}

// =============================================================================
// WAIVER
// =============================================================================

// WaiverSource records how a waiver came to exist.
type WaiverSource string

const (
	// SourceAutoFromLeave waivers are created and maintained exclusively by
	// the mediator; their dates always equal the owning leave's dates.
	SourceAutoFromLeave WaiverSource = "auto_from_leave"

	// SourceManual waivers are officer-entered and have independent dates.
	// The mediator never touches them.
	SourceManual WaiverSource = "manual"
)

// Waiver excuses a member from one or more obligation categories for a date
// range. A nil End means a permanent waiver.
type Waiver struct {
	ID       WaiverID
	MemberID engine.MemberID
	Scopes   []engine.ObligationScope // any non-empty subset
	Start    engine.Date
	End      *engine.Date
	Active   bool
	Source   WaiverSource

	// LeaveID back-references the owning leave when Source is
	// auto_from_leave. Informational only: the waiver never independently
	// updates the leave.
	LeaveID *LeaveID

	CreatedAt engine.Date
}

// HasScope reports whether the waiver applies to the obligation scope.
func (w Waiver) HasScope(scope engine.ObligationScope) bool {
	for _, s := range w.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Overlaps reports whether the waiver's date range touches [from, to].
func (w Waiver) Overlaps(from, to engine.Date) bool {
	if to.Before(w.Start) {
		return false
	}
	if w.End != nil && from.After(*w.End) {
		return false
	}
	return true
}
