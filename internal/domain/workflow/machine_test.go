package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/cost-approval/internal/domain/entity"
)

type autoKey struct{}

func TestBuilder_Configure(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(entity.ApprovalWaiting)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	builder.Configure(State("INVALID"))
}

func TestBuilder_BuildPanicsOnInvalidInitialState(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial state")
		}
	}()

	builder.Build(State(""))
}

func TestStateConfiguration_PermitPanicsOnInvalidTarget(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic on invalid target state")
		}
	}()

	builder.Configure(entity.ApprovalWaiting).Permit(TriggerActivate, State("INVALID"))
}

func TestStateConfiguration_PermitIf(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(entity.ApprovalPending).
		PermitIf(TriggerApprove, entity.ApprovalApproved, func(ctx context.Context) bool {
			auto, _ := ctx.Value(autoKey{}).(bool)
			return auto
		}).
		PermitIf(TriggerApprove, entity.ApprovalRejected, func(ctx context.Context) bool {
			auto, _ := ctx.Value(autoKey{}).(bool)
			return !auto
		})

	m1 := builder.Build(entity.ApprovalPending)
	if err := m1.Fire(context.WithValue(context.Background(), autoKey{}, true), TriggerApprove); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if m1.State() != entity.ApprovalApproved {
		t.Errorf("State = %v, want %v", m1.State(), entity.ApprovalApproved)
	}

	m2 := builder.Build(entity.ApprovalPending)
	if err := m2.Fire(context.WithValue(context.Background(), autoKey{}, false), TriggerApprove); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if m2.State() != entity.ApprovalRejected {
		t.Errorf("State = %v, want %v", m2.State(), entity.ApprovalRejected)
	}
}

func TestStateConfiguration_PermitIf_GuardFails(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(entity.ApprovalPending).
		PermitIf(TriggerApprove, entity.ApprovalApproved, func(ctx context.Context) bool { return false })

	machine := builder.Build(entity.ApprovalPending)

	err := machine.Fire(context.Background(), TriggerApprove)
	if !errors.Is(err, ErrGuardFailed) {
		t.Fatalf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}
	if machine.State() != entity.ApprovalPending {
		t.Errorf("State should remain pending after failed Fire(), got %v", machine.State())
	}
}

func TestStateMachine_Immutability(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(entity.ApprovalWaiting).Permit(TriggerActivate, entity.ApprovalPending)

	m1 := builder.Build(entity.ApprovalWaiting)
	m2 := builder.Build(entity.ApprovalWaiting)

	// configuring after Build must not affect built machines
	builder.Configure(entity.ApprovalWaiting).Permit(TriggerCancel, entity.ApprovalCancelled)

	if err := m1.Fire(context.Background(), TriggerActivate); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if m2.State() != entity.ApprovalWaiting {
		t.Errorf("machine2 state = %v, want waiting", m2.State())
	}
	if m2.CanFire(TriggerCancel) {
		t.Error("machine2 should not see transitions configured after Build()")
	}
}

func TestRecordMachine_Transitions(t *testing.T) {
	tests := []struct {
		from    State
		trigger Trigger
		want    State
		wantErr bool
	}{
		{entity.ApprovalWaiting, TriggerActivate, entity.ApprovalPending, false},
		{entity.ApprovalWaiting, TriggerCancel, entity.ApprovalCancelled, false},
		{entity.ApprovalWaiting, TriggerApprove, "", true},
		{entity.ApprovalPending, TriggerApprove, entity.ApprovalApproved, false},
		{entity.ApprovalPending, TriggerReject, entity.ApprovalRejected, false},
		{entity.ApprovalPending, TriggerDelegate, entity.ApprovalDelegated, false},
		{entity.ApprovalPending, TriggerCancel, entity.ApprovalCancelled, false},
		{entity.ApprovalPending, TriggerExpire, entity.ApprovalExpired, false},
		{entity.ApprovalPending, TriggerActivate, "", true},
		{entity.ApprovalDelegated, TriggerApprove, entity.ApprovalApproved, false},
		{entity.ApprovalDelegated, TriggerReject, entity.ApprovalRejected, false},
		{entity.ApprovalDelegated, TriggerDelegate, "", true},
		{entity.ApprovalDelegated, TriggerExpire, entity.ApprovalExpired, false},
		{entity.ApprovalApproved, TriggerApprove, "", true},
		{entity.ApprovalApproved, TriggerCancel, "", true},
		{entity.ApprovalRejected, TriggerCancel, "", true},
		{entity.ApprovalCancelled, TriggerActivate, "", true},
		{entity.ApprovalExpired, TriggerApprove, "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+tt.trigger.String(), func(t *testing.T) {
			got, err := NextState(tt.from, tt.trigger)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidState) {
					t.Fatalf("NextState() error = %v, want %v", err, ErrInvalidState)
				}
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("NextState() error should wrap %v", ErrInvalidTransition)
				}
				return
			}
			if err != nil {
				t.Fatalf("NextState() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NextState() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordMachine_TerminalStatesHaveNoTriggers(t *testing.T) {
	for _, s := range []State{entity.ApprovalApproved, entity.ApprovalRejected, entity.ApprovalCancelled, entity.ApprovalExpired} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
		if got := NewRecordMachine(s).PermittedTriggers(); len(got) != 0 {
			t.Errorf("%s permits %v, want none", s, got)
		}
	}
}

func TestNextState_UnknownStatus(t *testing.T) {
	if _, err := NextState(State("archived"), TriggerApprove); !errors.Is(err, ErrInvalidState) {
		t.Errorf("NextState() error = %v, want %v", err, ErrInvalidState)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNotFound, KindNotFound},
		{ErrForbidden, KindForbidden},
		{ErrValidation, KindValidation},
		{ErrAlreadyStarted, KindAlreadyStarted},
		{ErrInvalidTransition, KindInvalidState},
		{errors.New("boom"), KindInternal},
		{errors.Join(ErrWorkflowCreationFailed, ErrInvalidState), KindWorkflowCreationFailed},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
