package event

// Type identifies the type of domain event
type Type string

const (
	TypeWorkflowStarted    Type = "workflow.started"
	TypeApprovalApproved   Type = "approval.approved"
	TypeApprovalRejected   Type = "approval.rejected"
	TypeApprovalDelegated  Type = "approval.delegated"
	TypeApprovalExpired    Type = "approval.expired"
	TypeReminderDue        Type = "approval.reminder_due"
	TypeCostTableCompleted Type = "cost_table.completed"
)

func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeWorkflowStarted,
		TypeApprovalApproved,
		TypeApprovalRejected,
		TypeApprovalDelegated,
		TypeApprovalExpired,
		TypeReminderDue,
		TypeCostTableCompleted:
		return true
	default:
		return false
	}
}
