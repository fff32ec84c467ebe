package entity

import "time"

// Approval is one step of a cost table's workflow.
//
// ApproverID never changes after creation. Delegation only records who is
// acting on the approver's behalf, so both identities may decide.
type Approval struct {
	ID            int64          `json:"id"`
	CostTableID   int64          `json:"cost_table_id"`
	ApproverID    int64          `json:"approver_id"`
	ApprovalType  ApprovalType   `json:"approval_type"`
	Status        ApprovalStatus `json:"status"`
	SequenceOrder int            `json:"sequence_order"`

	// Decision
	DecisionDate    *time.Time `json:"decision_date,omitempty"`
	Comments        string     `json:"comments,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	// Timing
	AssignedAt time.Time  `json:"assigned_at"`
	Deadline   time.Time  `json:"deadline"`
	RemindedAt *time.Time `json:"reminded_at,omitempty"`

	// Delegation
	DelegatedTo      *int64     `json:"delegated_to,omitempty"`
	DelegatedAt      *time.Time `json:"delegated_at,omitempty"`
	DelegationReason string     `json:"delegation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDelegate reports whether userID is the current delegate of the record
func (a *Approval) IsDelegate(userID int64) bool {
	return a.DelegatedTo != nil && *a.DelegatedTo == userID
}

// CanAct reports whether userID has authority to decide on the record
func (a *Approval) CanAct(userID int64) bool {
	return a.ApproverID == userID || a.IsDelegate(userID)
}

// ResponsibleUserID returns the user expected to act next
func (a *Approval) ResponsibleUserID() int64 {
	if a.Status == ApprovalDelegated && a.DelegatedTo != nil {
		return *a.DelegatedTo
	}
	return a.ApproverID
}

// DaysRemaining returns the whole days left before the deadline, never negative
func (a *Approval) DaysRemaining(now time.Time) int {
	return daysUntil(a.Deadline, now)
}

// Clone returns a copy that can be mutated without touching the original
func (a *Approval) Clone() *Approval {
	c := *a
	return &c
}
