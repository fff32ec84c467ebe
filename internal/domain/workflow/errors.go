package workflow

import "errors"

// State machine errors
var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrGuardFailed       = errors.New("guard condition failed")
)

// Error kinds surfaced by workflow operations. Callers wrap them with %w and
// test with errors.Is.
var (
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidState           = errors.New("invalid state")
	ErrValidation             = errors.New("validation error")
	ErrAlreadyStarted         = errors.New("workflow already started")
	ErrWorkflowCreationFailed = errors.New("workflow creation failed")
)

// Kind names used when reporting an error to a transport layer
const (
	KindNotFound               = "NotFound"
	KindForbidden              = "Forbidden"
	KindInvalidState           = "InvalidState"
	KindValidation             = "ValidationError"
	KindAlreadyStarted         = "AlreadyStarted"
	KindWorkflowCreationFailed = "WorkflowCreationFailed"
	KindInternal               = "Internal"
)

// KindOf classifies err. Creation failures win over the cause they wrap.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrWorkflowCreationFailed):
		return KindWorkflowCreationFailed
	case errors.Is(err, ErrAlreadyStarted):
		return KindAlreadyStarted
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrGuardFailed):
		return KindInvalidState
	default:
		return KindInternal
	}
}
