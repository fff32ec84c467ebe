package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/cost-approval/internal/domain/entity"
	domainwf "github.com/garyjia/cost-approval/internal/domain/workflow"
)

// Action is a decision on an approval record
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// DecisionPayload carries the caller-supplied fields of a decision
type DecisionPayload struct {
	Comments string `json:"comments"`
	Reason   string `json:"reason"`
}

// ListFilter selects open approvals
type ListFilter string

const (
	FilterMine          ListFilter = "mine"
	FilterOverdue       ListFilter = "overdue"
	FilterNeedsReminder ListFilter = "needs_reminder"
)

// ParseListFilter converts a raw value into a ListFilter
func ParseListFilter(s string) (ListFilter, error) {
	switch f := ListFilter(s); f {
	case FilterMine, FilterOverdue, FilterNeedsReminder:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown filter %q", domainwf.ErrValidation, s)
}

// Orchestrator drives cost tables through their approval workflows
type Orchestrator interface {
	// StartWorkflow plans and creates the approval records of a submitted cost table
	StartWorkflow(ctx context.Context, costTableID int64) (*WorkflowView, error)

	// GetWorkflow returns the cost table with its ordered approval records
	GetWorkflow(ctx context.Context, costTableID int64) (*WorkflowView, error)

	// Decide approves or rejects an approval record on behalf of actorID
	Decide(ctx context.Context, approvalID, actorID int64, action Action, payload DecisionPayload) (*DecisionResult, error)

	// Delegate hands an approval record to another user
	Delegate(ctx context.Context, approvalID, actorID, delegateID int64, reason string) (*DecisionResult, error)

	// Expire closes an open approval record administratively
	Expire(ctx context.Context, approvalID, actorID int64, reason string) (*DecisionResult, error)

	// ListOpen returns open approval records ordered by deadline
	ListOpen(ctx context.Context, filter ListFilter, actorID int64) ([]*ApprovalView, error)

	// MarkReminded records that a reminder was delivered for an open record
	MarkReminded(ctx context.Context, approvalID int64) error

	// History returns the audit trail of a cost table
	History(ctx context.Context, costTableID int64) ([]*entity.WorkflowHistory, error)
}
