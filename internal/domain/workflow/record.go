package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/cost-approval/internal/domain/entity"
)

var recordBuilder = newRecordBuilder()

func newRecordBuilder() StateMachineBuilder {
	b := NewBuilder()

	b.Configure(entity.ApprovalWaiting).
		Permit(TriggerActivate, entity.ApprovalPending).
		Permit(TriggerCancel, entity.ApprovalCancelled)

	b.Configure(entity.ApprovalPending).
		Permit(TriggerApprove, entity.ApprovalApproved).
		Permit(TriggerReject, entity.ApprovalRejected).
		Permit(TriggerDelegate, entity.ApprovalDelegated).
		Permit(TriggerCancel, entity.ApprovalCancelled).
		Permit(TriggerExpire, entity.ApprovalExpired)

	// A delegated record is still open, but cannot be delegated again.
	b.Configure(entity.ApprovalDelegated).
		Permit(TriggerApprove, entity.ApprovalApproved).
		Permit(TriggerReject, entity.ApprovalRejected).
		Permit(TriggerCancel, entity.ApprovalCancelled).
		Permit(TriggerExpire, entity.ApprovalExpired)

	// approved, rejected, cancelled and expired have no outgoing transitions

	return b
}

// NewRecordMachine returns a machine for one approval record positioned at state
func NewRecordMachine(state State) StateMachine {
	return recordBuilder.Build(state)
}

// NextState returns where trigger takes a record currently in from.
// Illegal moves are reported as ErrInvalidState.
func NextState(from State, trigger Trigger) (State, error) {
	if !from.IsValid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidState, from)
	}
	m := NewRecordMachine(from)
	if err := m.Fire(context.Background(), trigger); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return m.State(), nil
}
