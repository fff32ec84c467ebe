package workflow

import (
	"time"

	"github.com/garyjia/cost-approval/internal/domain/entity"
	domainwf "github.com/garyjia/cost-approval/internal/domain/workflow"
)

// UserRef is the display data of an approver or delegate
type UserRef struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role"`
	RoleDisplay string `json:"role_display"`
}

func newUserRef(u *entity.User) *UserRef {
	if u == nil {
		return nil
	}
	return &UserRef{
		ID:          u.ID,
		Name:        u.DisplayName(),
		Email:       u.Email,
		Role:        string(u.Role),
		RoleDisplay: u.Role.DisplayName(),
	}
}

// ApprovalView is an approval record with resolved people and deadline flags
type ApprovalView struct {
	entity.Approval

	ApprovalTypeDisplay string   `json:"approval_type_display"`
	Approver            *UserRef `json:"approver,omitempty"`
	Delegate            *UserRef `json:"delegate,omitempty"`
	IsOverdue           bool     `json:"is_overdue"`
	NeedsReminder       bool     `json:"needs_reminder"`
	DaysRemaining       int      `json:"days_remaining"`
}

// WorkflowView is a cost table together with its ordered approval records
type WorkflowView struct {
	CostTable     *entity.CostTable  `json:"cost_table"`
	ImpactLevel   entity.ImpactLevel `json:"impact_level"`
	DaysRemaining int                `json:"days_remaining"`
	IsOverdue     bool               `json:"is_overdue"`

	// CurrentStep is the sequence of the actionable record, 0 when none is open
	CurrentStep int             `json:"current_step"`
	Approvals   []*ApprovalView `json:"approvals"`
}

// DecisionResult is returned by decide, delegate and expire
type DecisionResult struct {
	Approval        *ApprovalView          `json:"approval"`
	Activated       *ApprovalView          `json:"activated,omitempty"`
	CostTableID     int64                  `json:"cost_table_id"`
	CostTableStatus entity.CostTableStatus `json:"cost_table_status"`
	Cancelled       int64                  `json:"cancelled"`
}

func newApprovalView(a *entity.Approval, users map[int64]*entity.User, now time.Time) *ApprovalView {
	v := &ApprovalView{
		Approval:            *a,
		ApprovalTypeDisplay: a.ApprovalType.DisplayName(),
		Approver:            newUserRef(users[a.ApproverID]),
		DaysRemaining:       a.DaysRemaining(now),
		NeedsReminder:       domainwf.NeedsReminder(a, now),
	}
	if a.DelegatedTo != nil {
		v.Delegate = newUserRef(users[*a.DelegatedTo])
	}
	if !a.Status.IsTerminal() {
		v.IsOverdue = domainwf.IsOverdue(a, now)
	}
	return v
}

func newWorkflowView(ct *entity.CostTable, approvals []*entity.Approval, users map[int64]*entity.User, now time.Time) *WorkflowView {
	v := &WorkflowView{
		CostTable:     ct,
		ImpactLevel:   domainwf.LevelOf(ct.MonthlyImpact),
		DaysRemaining: ct.DaysRemaining(now),
		IsOverdue:     !ct.Status.IsTerminal() && ct.IsOverdue(now),
		Approvals:     make([]*ApprovalView, 0, len(approvals)),
	}
	for _, a := range approvals {
		if a.Status.IsActionable() {
			v.CurrentStep = a.SequenceOrder
		}
		v.Approvals = append(v.Approvals, newApprovalView(a, users, now))
	}
	return v
}

// userIDs collects approver and delegate ids referenced by approvals
func userIDs(approvals ...*entity.Approval) []int64 {
	seen := make(map[int64]bool)
	ids := make([]int64, 0, len(approvals))
	for _, a := range approvals {
		if a == nil {
			continue
		}
		for _, id := range []int64{a.ApproverID, derefID(a.DelegatedTo)} {
			if id != 0 && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
