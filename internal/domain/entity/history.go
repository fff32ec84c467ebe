package entity

import "time"

// WorkflowHistory is one entry of a cost table's audit trail
type WorkflowHistory struct {
	ID             int64     `json:"id"`
	CostTableID    int64     `json:"cost_table_id"`
	ApprovalID     *int64    `json:"approval_id,omitempty"`
	ActorUserID    int64     `json:"actor_user_id"`
	ActionType     string    `json:"action_type"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Detail         string    `json:"detail,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
