package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/cost-approval/internal/application/dispatcher"
	"github.com/garyjia/cost-approval/internal/application/port"
	"github.com/garyjia/cost-approval/internal/domain/entity"
	"github.com/garyjia/cost-approval/internal/domain/event"
	domainwf "github.com/garyjia/cost-approval/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// engineImpl is the concrete implementation of Orchestrator
type engineImpl struct {
	costTables port.CostTableRepository
	approvals  port.ApprovalRepository
	users      port.UserRepository
	history    port.HistoryRepository

	ledger     *Ledger
	monitor    *Monitor
	resolver   ApproverResolver
	dispatcher dispatcher.Dispatcher
	clock      port.Clock
	logger     Logger
}

// EngineOption configures the orchestrator
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithClock overrides the wall clock
func WithClock(c port.Clock) EngineOption {
	return func(e *engineImpl) {
		e.clock = c
	}
}

// WithResolver overrides the directory-based approver resolver
func WithResolver(r ApproverResolver) EngineOption {
	return func(e *engineImpl) {
		e.resolver = r
	}
}

// WithLogger sets a logger for the orchestrator
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// NewEngine creates the workflow orchestrator
func NewEngine(
	costTables port.CostTableRepository,
	approvals port.ApprovalRepository,
	users port.UserRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) Orchestrator {
	e := &engineImpl{
		costTables: costTables,
		approvals:  approvals,
		users:      users,
		history:    history,
		clock:      port.SystemClock{},
		logger:     nopLogger{},
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.resolver == nil {
		e.resolver = DirectoryResolver(users)
	}
	e.ledger = NewLedger(costTables, approvals, users, history, txManager, e.clock)
	e.monitor = NewMonitor(approvals, e.clock)

	return e
}

// StartWorkflow plans and creates the approval records of a submitted cost table
func (e *engineImpl) StartWorkflow(ctx context.Context, costTableID int64) (*WorkflowView, error) {
	ct, err := e.getCostTable(ctx, costTableID)
	if err != nil {
		return nil, err
	}

	count, err := e.approvals.CountByCostTableID(ctx, costTableID)
	if err != nil {
		return nil, fmt.Errorf("failed to count approvals: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: cost table %d", domainwf.ErrAlreadyStarted, costTableID)
	}
	if ct.Status != entity.CostTableSubmitted {
		return nil, fmt.Errorf("%w: cost table %d is %s, expected %s",
			domainwf.ErrInvalidState, costTableID, ct.Status, entity.CostTableSubmitted)
	}

	outcome, records, err := e.ledger.Start(ctx, ct, e.resolver)
	if err != nil {
		e.logger.Error("Failed to start workflow", "cost_table_id", costTableID, "error", err)
		return nil, err
	}

	e.logger.Info("Workflow started",
		"cost_table_id", costTableID,
		"impact_level", domainwf.LevelOf(ct.MonthlyImpact),
		"steps", len(records),
	)

	e.publish(ctx, event.NewEvent(event.TypeWorkflowStarted, costTableID, outcome.Activated.ID, map[string]interface{}{
		event.KeyActorID:         ct.SubmittedBy,
		event.KeyApprovalType:    string(outcome.Activated.ApprovalType),
		event.KeyActivatedID:     outcome.Activated.ID,
		event.KeyCostTableStatus: string(outcome.CostTable.Status),
	}))

	users, err := e.lookupUsers(ctx, records...)
	if err != nil {
		return nil, err
	}
	return newWorkflowView(outcome.CostTable, records, users, e.clock.Now()), nil
}

// GetWorkflow returns the cost table with its ordered approval records
func (e *engineImpl) GetWorkflow(ctx context.Context, costTableID int64) (*WorkflowView, error) {
	ct, err := e.getCostTable(ctx, costTableID)
	if err != nil {
		return nil, err
	}

	approvals, err := e.approvals.GetByCostTableID(ctx, costTableID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approvals: %w", err)
	}

	users, err := e.lookupUsers(ctx, approvals...)
	if err != nil {
		return nil, err
	}
	return newWorkflowView(ct, approvals, users, e.clock.Now()), nil
}

// Decide approves or rejects an approval record on behalf of actorID
func (e *engineImpl) Decide(ctx context.Context, approvalID, actorID int64, action Action, payload DecisionPayload) (*DecisionResult, error) {
	var (
		outcome *Outcome
		err     error
		evtType event.Type
	)

	switch action {
	case ActionApprove:
		outcome, err = e.ledger.Approve(ctx, approvalID, actorID, payload.Comments)
		evtType = event.TypeApprovalApproved
	case ActionReject:
		outcome, err = e.ledger.Reject(ctx, approvalID, actorID, payload.Reason, payload.Comments)
		evtType = event.TypeApprovalRejected
	default:
		return nil, fmt.Errorf("%w: unknown action %q", domainwf.ErrValidation, action)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("Approval decided",
		"approval_id", approvalID,
		"actor_id", actorID,
		"action", action,
		"cost_table_status", outcome.CostTable.Status,
	)

	payloadMap := map[string]interface{}{
		event.KeyActorID:         actorID,
		event.KeyApprovalType:    string(outcome.Approval.ApprovalType),
		event.KeyCostTableStatus: string(outcome.CostTable.Status),
	}
	if outcome.Activated != nil {
		payloadMap[event.KeyActivatedID] = outcome.Activated.ID
	}
	if action == ActionReject {
		payloadMap[event.KeyReason] = outcome.Approval.RejectionReason
		payloadMap[event.KeyCancelled] = outcome.Cancelled
	}
	e.publishOutcome(ctx, event.NewEvent(evtType, outcome.CostTable.ID, approvalID, payloadMap), outcome)

	return e.result(ctx, outcome)
}

// Delegate hands an approval record to another user
func (e *engineImpl) Delegate(ctx context.Context, approvalID, actorID, delegateID int64, reason string) (*DecisionResult, error) {
	outcome, err := e.ledger.Delegate(ctx, approvalID, actorID, delegateID, reason)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Approval delegated", "approval_id", approvalID, "actor_id", actorID, "delegated_to", delegateID)

	e.publish(ctx, event.NewEvent(event.TypeApprovalDelegated, outcome.CostTable.ID, approvalID, map[string]interface{}{
		event.KeyActorID:      actorID,
		event.KeyApprovalType: string(outcome.Approval.ApprovalType),
		event.KeyDelegatedTo:  delegateID,
		event.KeyReason:       reason,
	}))

	return e.result(ctx, outcome)
}

// Expire closes an open approval record administratively
func (e *engineImpl) Expire(ctx context.Context, approvalID, actorID int64, reason string) (*DecisionResult, error) {
	outcome, err := e.ledger.Expire(ctx, approvalID, actorID, reason)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Approval expired", "approval_id", approvalID, "actor_id", actorID, "cancelled", outcome.Cancelled)

	e.publishOutcome(ctx, event.NewEvent(event.TypeApprovalExpired, outcome.CostTable.ID, approvalID, map[string]interface{}{
		event.KeyActorID:         actorID,
		event.KeyApprovalType:    string(outcome.Approval.ApprovalType),
		event.KeyCostTableStatus: string(outcome.CostTable.Status),
		event.KeyReason:          reason,
		event.KeyCancelled:       outcome.Cancelled,
	}), outcome)

	return e.result(ctx, outcome)
}

// ListOpen returns open approval records ordered by deadline
func (e *engineImpl) ListOpen(ctx context.Context, filter ListFilter, actorID int64) ([]*ApprovalView, error) {
	var (
		approvals []*entity.Approval
		err       error
	)

	switch filter {
	case FilterMine:
		if actorID == 0 {
			return nil, fmt.Errorf("%w: acting user is required for filter %s", domainwf.ErrValidation, filter)
		}
		approvals, err = e.approvals.ListActionableForUser(ctx, actorID)
	case FilterOverdue:
		approvals, err = e.monitor.Overdue(ctx)
	case FilterNeedsReminder:
		approvals, err = e.monitor.ReminderCandidates(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown filter %q", domainwf.ErrValidation, filter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list open approvals: %w", err)
	}

	users, err := e.lookupUsers(ctx, approvals...)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	views := make([]*ApprovalView, 0, len(approvals))
	for _, a := range approvals {
		views = append(views, newApprovalView(a, users, now))
	}
	return views, nil
}

// MarkReminded records that a reminder was delivered for an open record
func (e *engineImpl) MarkReminded(ctx context.Context, approvalID int64) error {
	return e.monitor.MarkReminded(ctx, approvalID)
}

// History returns the audit trail of a cost table
func (e *engineImpl) History(ctx context.Context, costTableID int64) ([]*entity.WorkflowHistory, error) {
	if _, err := e.getCostTable(ctx, costTableID); err != nil {
		return nil, err
	}
	return e.history.GetByCostTableID(ctx, costTableID)
}

func (e *engineImpl) getCostTable(ctx context.Context, id int64) (*entity.CostTable, error) {
	ct, err := e.costTables.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load cost table: %w", err)
	}
	if ct == nil {
		return nil, fmt.Errorf("%w: cost table %d", domainwf.ErrNotFound, id)
	}
	return ct, nil
}

func (e *engineImpl) lookupUsers(ctx context.Context, approvals ...*entity.Approval) (map[int64]*entity.User, error) {
	ids := userIDs(approvals...)
	if len(ids) == 0 {
		return map[int64]*entity.User{}, nil
	}
	users, err := e.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load approvers: %w", err)
	}
	return users, nil
}

func (e *engineImpl) result(ctx context.Context, outcome *Outcome) (*DecisionResult, error) {
	users, err := e.lookupUsers(ctx, outcome.Approval, outcome.Activated)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	res := &DecisionResult{
		Approval:        newApprovalView(outcome.Approval, users, now),
		CostTableID:     outcome.CostTable.ID,
		CostTableStatus: outcome.CostTable.Status,
		Cancelled:       outcome.Cancelled,
	}
	if outcome.Activated != nil {
		res.Activated = newApprovalView(outcome.Activated, users, now)
	}
	return res, nil
}

// publishOutcome emits evt and, when the workflow finished, a completion
// event in the same correlation chain
func (e *engineImpl) publishOutcome(ctx context.Context, evt *event.Event, outcome *Outcome) {
	e.publish(ctx, evt)
	if !outcome.Completed() {
		return
	}
	e.publish(ctx, event.NewEventWithCorrelation(
		event.TypeCostTableCompleted,
		outcome.CostTable.ID,
		outcome.Approval.ID,
		map[string]interface{}{
			event.KeyPreviousStatus:  string(outcome.PreviousCostTableStatus),
			event.KeyCostTableStatus: string(outcome.CostTable.Status),
			event.KeyReason:          outcome.CostTable.RejectionReason,
		},
		evt.CorrelationID,
	))
}

// publish dispatches evt to subscribers; callers only publish after commit
func (e *engineImpl) publish(ctx context.Context, evt *event.Event) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.DispatchAsync(ctx, evt)
}
