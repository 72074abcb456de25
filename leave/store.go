/*
store.go - Persistence interface for leaves and waivers

PURPOSE:
  Defines the interface between the leave/waiver domain and the database.
  Implementations live in store (in-memory, for tests and demos) and
  store/sqlite (production).

UNIT OF WORK:
  Leave mutations and their mediator propagation must be transactional: a
  leave created whose waiver creation failed is an inconsistent pair. The
  mediator therefore runs every lifecycle operation inside WithUnit, which
  rolls back all writes if the function returns an error.

SOFT DELETION:
  There are no Delete methods. Leaves and waivers are deactivated via
  SaveLeave/SaveWaiver with Active=false so history stays queryable.
*/
package leave

import (
	"context"
	"errors"
	"fmt"

	"github.com/stationops/compliance-engine/engine"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store persists leaves and waivers. Save is an upsert keyed by ID.
type Store interface {
	GetLeave(ctx context.Context, id LeaveID) (*LeaveOfAbsence, error)
	LeavesForMember(ctx context.Context, memberID engine.MemberID) ([]LeaveOfAbsence, error)
	SaveLeave(ctx context.Context, l LeaveOfAbsence) error

	GetWaiver(ctx context.Context, id WaiverID) (*Waiver, error)
	WaiversForMember(ctx context.Context, memberID engine.MemberID) ([]Waiver, error)
	SaveWaiver(ctx context.Context, w Waiver) error

	// WithUnit executes fn within a transaction. If fn returns an error,
	// every write inside it is rolled back.
	WithUnit(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrLeaveNotFound is returned when a referenced leave doesn't exist.
	ErrLeaveNotFound = errors.New("leave not found")

	// ErrWaiverNotFound is returned when a referenced waiver doesn't exist.
	ErrWaiverNotFound = errors.New("waiver not found")

	// ErrLeaveInactive is returned when mutating an already-deactivated leave.
	ErrLeaveInactive = errors.New("leave is not active")

	// ErrManualWaiver is returned when the mediator is asked to touch a
	// manual waiver. Manual waivers have independent dates, always.
	ErrManualWaiver = errors.New("waiver is manual, not mediator-managed")
)

// ConsistencyError reports an auto-linked waiver whose dates diverge from
// its owning leave. This indicates a mediator bug or a bypassed write path;
// it raises loudly at the mutation boundary instead of auto-healing, since
// silent correction could mask data corruption.
type ConsistencyError struct {
	LeaveID  LeaveID
	WaiverID WaiverID
	Detail   string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("leave %s / waiver %s out of sync: %s", e.LeaveID, e.WaiverID, e.Detail)
}
