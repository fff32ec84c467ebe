package workflow

// Trigger is an action that moves an approval record between states
type Trigger string

const (
	TriggerActivate Trigger = "ACTIVATE"
	TriggerApprove  Trigger = "APPROVE"
	TriggerReject   Trigger = "REJECT"
	TriggerDelegate Trigger = "DELEGATE"
	TriggerCancel   Trigger = "CANCEL"
	TriggerExpire   Trigger = "EXPIRE"
)

func (t Trigger) String() string {
	return string(t)
}
