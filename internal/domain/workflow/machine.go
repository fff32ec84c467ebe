package workflow

import "context"

// StateMachine tracks the state of one approval record and validates moves
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire reports whether trigger has at least one transition from the current state
	CanFire(trigger Trigger) bool

	// Fire moves to the first transition whose guard passes
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers lists the triggers configured for the current state
	PermittedTriggers() []Trigger
}
