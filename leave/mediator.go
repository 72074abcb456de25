/*
mediator.go - The waiver auto-link mediator

PURPOSE:
  Keeps a leave of absence and its auto-linked training waiver in sync:
  create, date-update, deactivate. The mediator is the ONLY writer of the
  link in either direction. The waiver never independently decides to
  update the leave; one-directional ownership prevents the inconsistent
  cross-updates a cyclic reference invites.

LIFECYCLE:
  Create:     non-exempt leaves get exactly one waiver with scope
              {training}, source auto_from_leave, dates copied, linked 1:1.
              Exempt leaves get none.
  Update:     new leave dates propagate to the linked waiver.
  Deactivate: the linked waiver deactivates too. Soft — never deleted.

ATOMICITY:
  Every operation runs inside the store's unit of work. A leave created
  whose waiver write failed rolls back entirely; there is no partial pair.

CONSISTENCY:
  An auto-linked waiver found with dates diverging from its owning leave
  indicates a mediator bug or a bypassed write path. That raises
  ConsistencyError rather than auto-healing.
*/
package leave

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/stationops/compliance-engine/engine"
)

// =============================================================================
// MEDIATOR
// =============================================================================

// Mediator intercepts leave lifecycle events and reconciles the ledger.
type Mediator struct {
	store Store

	// Clock supplies "today" for CreatedAt stamps. Overridable in tests.
	Clock func() engine.Date
}

func NewMediator(store Store) *Mediator {
	return &Mediator{store: store, Clock: engine.Today}
}

// CreateLeaveParams carries the officer-entered leave fields.
type CreateLeaveParams struct {
	MemberID                 engine.MemberID
	Type                     LeaveType
	Start                    engine.Date
	End                      *engine.Date // nil = open-ended
	ExemptFromTrainingWaiver bool
}

// CreateLeave records a new leave and, unless exempted, its auto-linked
// training waiver — atomically.
func (m *Mediator) CreateLeave(ctx context.Context, p CreateLeaveParams) (*LeaveOfAbsence, error) {
	if p.End != nil && p.End.Before(p.Start) {
		return nil, engine.ErrInvalidWindow
	}

	leave := LeaveOfAbsence{
		ID:                       newLeaveID(),
		MemberID:                 p.MemberID,
		Type:                     p.Type,
		Start:                    p.Start,
		End:                      p.End,
		Active:                   true,
		ExemptFromTrainingWaiver: p.ExemptFromTrainingWaiver,
		CreatedAt:                m.Clock(),
	}

	err := m.store.WithUnit(ctx, func(s Store) error {
		if !leave.ExemptFromTrainingWaiver {
			waiver := Waiver{
				ID:        newWaiverID(),
				MemberID:  leave.MemberID,
				Scopes:    []engine.ObligationScope{engine.ScopeTraining},
				Start:     leave.Start,
				End:       leave.End,
				Active:    true,
				Source:    SourceAutoFromLeave,
				LeaveID:   &leave.ID,
				CreatedAt: leave.CreatedAt,
			}
			if err := s.SaveWaiver(ctx, waiver); err != nil {
				return err
			}
			leave.LinkedWaiverID = &waiver.ID
		}
		return s.SaveLeave(ctx, leave)
	})
	if err != nil {
		return nil, err
	}
	return &leave, nil
}

// UpdateLeaveDates changes an active leave's date range and propagates the
// new dates to the linked waiver if one exists.
func (m *Mediator) UpdateLeaveDates(ctx context.Context, id LeaveID, start engine.Date, end *engine.Date) (*LeaveOfAbsence, error) {
	if end != nil && end.Before(start) {
		return nil, engine.ErrInvalidWindow
	}

	var updated *LeaveOfAbsence
	err := m.store.WithUnit(ctx, func(s Store) error {
		leave, err := m.loadActiveLeave(ctx, s, id)
		if err != nil {
			return err
		}

		if leave.LinkedWaiverID != nil {
			waiver, err := m.loadLinkedWaiver(ctx, s, *leave)
			if err != nil {
				return err
			}
			waiver.Start = start
			waiver.End = end
			if err := s.SaveWaiver(ctx, *waiver); err != nil {
				return err
			}
		}

		leave.Start = start
		leave.End = end
		if err := s.SaveLeave(ctx, *leave); err != nil {
			return err
		}
		updated = leave
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeactivateLeave soft-deactivates a leave and its linked waiver when the
// member returns. History stays queryable.
func (m *Mediator) DeactivateLeave(ctx context.Context, id LeaveID) (*LeaveOfAbsence, error) {
	var updated *LeaveOfAbsence
	err := m.store.WithUnit(ctx, func(s Store) error {
		leave, err := m.loadActiveLeave(ctx, s, id)
		if err != nil {
			return err
		}

		if leave.LinkedWaiverID != nil {
			waiver, err := m.loadLinkedWaiver(ctx, s, *leave)
			if err != nil {
				return err
			}
			waiver.Active = false
			if err := s.SaveWaiver(ctx, *waiver); err != nil {
				return err
			}
		}

		leave.Active = false
		if err := s.SaveLeave(ctx, *leave); err != nil {
			return err
		}
		updated = leave
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CreateManualWaiver records an officer-entered waiver. Manual waivers
// have independent dates and are never touched by leave lifecycle events.
func (m *Mediator) CreateManualWaiver(ctx context.Context, memberID engine.MemberID, scopes []engine.ObligationScope, start engine.Date, end *engine.Date) (*Waiver, error) {
	if len(scopes) == 0 {
		return nil, fmt.Errorf("waiver needs at least one obligation scope")
	}
	if end != nil && end.Before(start) {
		return nil, engine.ErrInvalidWindow
	}

	waiver := Waiver{
		ID:        newWaiverID(),
		MemberID:  memberID,
		Scopes:    scopes,
		Start:     start,
		End:       end,
		Active:    true,
		Source:    SourceManual,
		CreatedAt: m.Clock(),
	}
	if err := m.store.SaveWaiver(ctx, waiver); err != nil {
		return nil, err
	}
	return &waiver, nil
}

// =============================================================================
// LINK VERIFICATION
// =============================================================================

func (m *Mediator) loadActiveLeave(ctx context.Context, s Store, id LeaveID) (*LeaveOfAbsence, error) {
	leave, err := s.GetLeave(ctx, id)
	if err != nil {
		return nil, err
	}
	if leave == nil {
		return nil, ErrLeaveNotFound
	}
	if !leave.Active {
		return nil, ErrLeaveInactive
	}
	return leave, nil
}

// loadLinkedWaiver fetches the leave's auto-linked waiver and verifies the
// pair is still consistent before any propagation happens.
func (m *Mediator) loadLinkedWaiver(ctx context.Context, s Store, leave LeaveOfAbsence) (*Waiver, error) {
	waiver, err := s.GetWaiver(ctx, *leave.LinkedWaiverID)
	if err != nil {
		return nil, err
	}
	if waiver == nil {
		return nil, &ConsistencyError{LeaveID: leave.ID, WaiverID: *leave.LinkedWaiverID, Detail: "linked waiver missing"}
	}
	if waiver.Source == SourceManual {
		return nil, ErrManualWaiver
	}
	if err := verifyLink(leave, *waiver); err != nil {
		return nil, err
	}
	return waiver, nil
}

// verifyLink checks the auto-link invariant: an auto-from-leave waiver's
// date range always equals its owning leave's date range.
func verifyLink(leave LeaveOfAbsence, waiver Waiver) error {
	if !waiver.Start.Equal(leave.Start) {
		return &ConsistencyError{
			LeaveID:  leave.ID,
			WaiverID: waiver.ID,
			Detail:   fmt.Sprintf("start %s != leave start %s", waiver.Start, leave.Start),
		}
	}
	switch {
	case leave.End == nil && waiver.End != nil:
		return &ConsistencyError{LeaveID: leave.ID, WaiverID: waiver.ID, Detail: "waiver has an end date, leave is open-ended"}
	case leave.End != nil && waiver.End == nil:
		return &ConsistencyError{LeaveID: leave.ID, WaiverID: waiver.ID, Detail: "waiver is open-ended, leave has an end date"}
	case leave.End != nil && waiver.End != nil && !waiver.End.Equal(*leave.End):
		return &ConsistencyError{
			LeaveID:  leave.ID,
			WaiverID: waiver.ID,
			Detail:   fmt.Sprintf("end %s != leave end %s", *waiver.End, *leave.End),
		}
	}
	return nil
}

// =============================================================================
// ID GENERATION
// =============================================================================

var idCounter atomic.Int64

func newLeaveID() LeaveID {
	return LeaveID(fmt.Sprintf("loa-%d-%d", time.Now().UnixNano(), idCounter.Add(1)))
}

func newWaiverID() WaiverID {
	return WaiverID(fmt.Sprintf("wvr-%d-%d", time.Now().UnixNano(), idCounter.Add(1)))
}
