package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/cost-approval/internal/application/port"
	"github.com/garyjia/cost-approval/internal/domain/entity"
	domainwf "github.com/garyjia/cost-approval/internal/domain/workflow"
)

// Outcome describes what one committed ledger operation changed
type Outcome struct {
	CostTable *entity.CostTable
	Approval  *entity.Approval

	// Activated is the record that became pending as a result, if any
	Activated *entity.Approval

	// Cancelled counts siblings closed by a reject or expire cascade
	Cancelled int64

	PreviousCostTableStatus entity.CostTableStatus
}

// Completed reports whether the cost table reached a terminal status
func (o *Outcome) Completed() bool {
	return o.CostTable.Status.IsTerminal()
}

// Ledger owns the approval records of every cost table and all of their
// transitions. Each operation runs in a single transaction: the record change,
// the activation of the next step and the cost table status commit together
// or not at all.
type Ledger struct {
	costTables port.CostTableRepository
	approvals  port.ApprovalRepository
	users      port.UserRepository
	history    port.HistoryRepository
	txManager  port.TransactionManager
	clock      port.Clock
}

// NewLedger creates a ledger over the given stores
func NewLedger(
	costTables port.CostTableRepository,
	approvals port.ApprovalRepository,
	users port.UserRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	clock port.Clock,
) *Ledger {
	if clock == nil {
		clock = port.SystemClock{}
	}
	return &Ledger{
		costTables: costTables,
		approvals:  approvals,
		users:      users,
		history:    history,
		txManager:  txManager,
		clock:      clock,
	}
}

// Start materializes the workflow of ct: one record per planned step, the
// first pending and the rest waiting, and moves ct to under_review.
// Any failure other than AlreadyStarted is reported as WorkflowCreationFailed
// and leaves nothing behind.
func (l *Ledger) Start(ctx context.Context, ct *entity.CostTable, resolve ApproverResolver) (*Outcome, []*entity.Approval, error) {
	var (
		outcome *Outcome
		records []*entity.Approval
	)

	err := l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		count, err := l.approvals.CountByCostTableID(txCtx, ct.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: cost table %d has %d approval records", domainwf.ErrAlreadyStarted, ct.ID, count)
		}
		if ct.Status != entity.CostTableSubmitted {
			return fmt.Errorf("%w: cost table %d is %s", domainwf.ErrInvalidState, ct.ID, ct.Status)
		}

		now := l.clock.Now()
		steps := domainwf.Plan(domainwf.LevelOf(ct.MonthlyImpact))
		records = make([]*entity.Approval, 0, len(steps))

		for _, step := range steps {
			approver, err := resolve(txCtx, step.Type, ct)
			if err != nil {
				return err
			}
			if approver == nil {
				return fmt.Errorf("no eligible %s approver for category %q", step.Type, ct.Category)
			}

			status := entity.ApprovalWaiting
			if step.Sequence == 1 {
				status = entity.ApprovalPending
			}
			records = append(records, &entity.Approval{
				CostTableID:   ct.ID,
				ApproverID:    approver.ID,
				ApprovalType:  step.Type,
				Status:        status,
				SequenceOrder: step.Sequence,
				AssignedAt:    now,
				Deadline:      domainwf.DeadlineFor(step.Type, now),
			})
		}

		if err := l.approvals.CreateBatch(txCtx, records); err != nil {
			return err
		}
		if err := l.costTables.UpdateStatus(txCtx, ct.ID, entity.CostTableSubmitted, entity.CostTableUnderReview); err != nil {
			return err
		}

		after := *ct
		after.Status = entity.CostTableUnderReview
		after.UpdatedAt = now
		outcome = &Outcome{
			CostTable:               &after,
			Approval:                records[0],
			Activated:               records[0],
			PreviousCostTableStatus: ct.Status,
		}

		return l.record(txCtx, ct.ID, nil, ct.SubmittedBy, entity.HistoryActionStart,
			string(ct.Status), string(entity.CostTableUnderReview),
			fmt.Sprintf("planned %d steps", len(records)))
	})
	if err != nil {
		if errors.Is(err, domainwf.ErrAlreadyStarted) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %w", domainwf.ErrWorkflowCreationFailed, err)
	}

	return outcome, records, nil
}

// Approve records an approval by the approver or its delegate, activates the
// next waiting step and advances the cost table status.
func (l *Ledger) Approve(ctx context.Context, approvalID, actorID int64, comments string) (*Outcome, error) {
	var outcome *Outcome

	err := l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		a, ct, err := l.loadForDecision(txCtx, approvalID, actorID, domainwf.TriggerApprove)
		if err != nil {
			return err
		}

		now := l.clock.Now()
		updated := a.Clone()
		updated.Status = entity.ApprovalApproved
		updated.DecisionDate = &now
		updated.Comments = comments
		if err := l.approvals.UpdateIfStatus(txCtx, updated, a.Status); err != nil {
			return err
		}

		next, err := l.nextWaiting(txCtx, a)
		if err != nil {
			return err
		}
		if next != nil {
			if err := l.activate(txCtx, next, actorID); err != nil {
				return err
			}
		}

		status := domainwf.StatusAfter(a.ApprovalType, next == nil)
		after, err := l.moveCostTable(txCtx, ct, status, now)
		if err != nil {
			return err
		}

		outcome = &Outcome{
			CostTable:               after,
			Approval:                updated,
			Activated:               next,
			PreviousCostTableStatus: ct.Status,
		}

		return l.record(txCtx, ct.ID, &a.ID, actorID, entity.HistoryActionApprove,
			string(a.Status), string(updated.Status), comments)
	})
	if err != nil {
		return nil, err
	}

	return outcome, nil
}

// Reject closes the workflow: the record becomes rejected, every other open
// record is cancelled and the cost table is rejected with reason.
func (l *Ledger) Reject(ctx context.Context, approvalID, actorID int64, reason, comments string) (*Outcome, error) {
	var outcome *Outcome

	err := l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		a, ct, err := l.loadForDecision(txCtx, approvalID, actorID, domainwf.TriggerReject)
		if err != nil {
			return err
		}
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return fmt.Errorf("%w: rejection reason is required", domainwf.ErrValidation)
		}

		now := l.clock.Now()
		updated := a.Clone()
		updated.Status = entity.ApprovalRejected
		updated.DecisionDate = &now
		updated.RejectionReason = reason
		updated.Comments = comments
		if err := l.approvals.UpdateIfStatus(txCtx, updated, a.Status); err != nil {
			return err
		}

		cancelled, err := l.approvals.CancelOpen(txCtx, ct.ID, a.ID, now)
		if err != nil {
			return err
		}
		if err := l.costTables.SetRejected(txCtx, ct.ID, ct.Status, reason); err != nil {
			return err
		}

		after := *ct
		after.Status = entity.CostTableRejected
		after.RejectionReason = reason
		after.UpdatedAt = now
		outcome = &Outcome{
			CostTable:               &after,
			Approval:                updated,
			Cancelled:               cancelled,
			PreviousCostTableStatus: ct.Status,
		}

		if err := l.record(txCtx, ct.ID, &a.ID, actorID, entity.HistoryActionReject,
			string(a.Status), string(updated.Status), reason); err != nil {
			return err
		}
		return l.recordCascade(txCtx, ct, actorID, cancelled)
	})
	if err != nil {
		return nil, err
	}

	return outcome, nil
}

// Delegate hands decision authority on a pending record to another user.
// Only the approver may delegate; the approver keeps authority as well.
func (l *Ledger) Delegate(ctx context.Context, approvalID, actorID, delegateID int64, reason string) (*Outcome, error) {
	var outcome *Outcome

	err := l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		a, err := l.approvals.GetByID(txCtx, approvalID)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("%w: approval %d", domainwf.ErrNotFound, approvalID)
		}
		if a.ApproverID != actorID {
			return fmt.Errorf("%w: user %d is not the approver of approval %d", domainwf.ErrForbidden, actorID, approvalID)
		}
		if _, err := domainwf.NextState(a.Status, domainwf.TriggerDelegate); err != nil {
			return fmt.Errorf("approval %d is %s: %w", approvalID, a.Status, err)
		}
		if err := l.validateDelegation(txCtx, actorID, delegateID); err != nil {
			return err
		}

		ct, err := l.costTables.GetByID(txCtx, a.CostTableID)
		if err != nil {
			return err
		}
		if ct == nil {
			return fmt.Errorf("%w: cost table %d", domainwf.ErrNotFound, a.CostTableID)
		}

		now := l.clock.Now()
		updated := a.Clone()
		updated.Status = entity.ApprovalDelegated
		updated.DelegatedTo = &delegateID
		updated.DelegatedAt = &now
		updated.DelegationReason = reason
		if err := l.approvals.UpdateIfStatus(txCtx, updated, a.Status); err != nil {
			return err
		}

		outcome = &Outcome{
			CostTable:               ct,
			Approval:                updated,
			PreviousCostTableStatus: ct.Status,
		}

		return l.record(txCtx, ct.ID, &a.ID, actorID, entity.HistoryActionDelegate,
			string(a.Status), string(updated.Status), fmt.Sprintf("to user %d: %s", delegateID, reason))
	})
	if err != nil {
		return nil, err
	}

	return outcome, nil
}

// Expire is the administrative close of an open record. The record becomes
// expired, the remaining open records are cancelled and the cost table
// expires with it. Nothing calls this automatically.
func (l *Ledger) Expire(ctx context.Context, approvalID, actorID int64, reason string) (*Outcome, error) {
	var outcome *Outcome

	err := l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		a, err := l.approvals.GetByID(txCtx, approvalID)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("%w: approval %d", domainwf.ErrNotFound, approvalID)
		}

		actor, err := l.users.GetByID(txCtx, actorID)
		if err != nil {
			return err
		}
		if actor == nil || !actor.IsActive || actor.Role != entity.RoleAdmin {
			return fmt.Errorf("%w: user %d may not expire approvals", domainwf.ErrForbidden, actorID)
		}
		if _, err := domainwf.NextState(a.Status, domainwf.TriggerExpire); err != nil {
			return fmt.Errorf("approval %d is %s: %w", approvalID, a.Status, err)
		}

		ct, err := l.costTables.GetByID(txCtx, a.CostTableID)
		if err != nil {
			return err
		}
		if ct == nil {
			return fmt.Errorf("%w: cost table %d", domainwf.ErrNotFound, a.CostTableID)
		}

		now := l.clock.Now()
		updated := a.Clone()
		updated.Status = entity.ApprovalExpired
		updated.DecisionDate = &now
		updated.Comments = reason
		if err := l.approvals.UpdateIfStatus(txCtx, updated, a.Status); err != nil {
			return err
		}

		cancelled, err := l.approvals.CancelOpen(txCtx, ct.ID, a.ID, now)
		if err != nil {
			return err
		}
		after, err := l.moveCostTable(txCtx, ct, entity.CostTableExpired, now)
		if err != nil {
			return err
		}

		outcome = &Outcome{
			CostTable:               after,
			Approval:                updated,
			Cancelled:               cancelled,
			PreviousCostTableStatus: ct.Status,
		}

		if err := l.record(txCtx, ct.ID, &a.ID, actorID, entity.HistoryActionExpire,
			string(a.Status), string(updated.Status), reason); err != nil {
			return err
		}
		return l.recordCascade(txCtx, ct, actorID, cancelled)
	})
	if err != nil {
		return nil, err
	}

	return outcome, nil
}

// loadForDecision applies the approve/reject checks in order: the record
// exists, the actor may act on it, and trigger is legal from its status.
func (l *Ledger) loadForDecision(ctx context.Context, approvalID, actorID int64, trigger domainwf.Trigger) (*entity.Approval, *entity.CostTable, error) {
	a, err := l.approvals.GetByID(ctx, approvalID)
	if err != nil {
		return nil, nil, err
	}
	if a == nil {
		return nil, nil, fmt.Errorf("%w: approval %d", domainwf.ErrNotFound, approvalID)
	}
	if !a.CanAct(actorID) {
		return nil, nil, fmt.Errorf("%w: user %d may not decide approval %d", domainwf.ErrForbidden, actorID, approvalID)
	}
	if _, err := domainwf.NextState(a.Status, trigger); err != nil {
		return nil, nil, fmt.Errorf("approval %d is %s: %w", approvalID, a.Status, err)
	}

	ct, err := l.costTables.GetByID(ctx, a.CostTableID)
	if err != nil {
		return nil, nil, err
	}
	if ct == nil {
		return nil, nil, fmt.Errorf("%w: cost table %d", domainwf.ErrNotFound, a.CostTableID)
	}
	return a, ct, nil
}

func (l *Ledger) validateDelegation(ctx context.Context, actorID, delegateID int64) error {
	if delegateID == 0 {
		return fmt.Errorf("%w: delegate is required", domainwf.ErrValidation)
	}
	if delegateID == actorID {
		return fmt.Errorf("%w: cannot delegate to yourself", domainwf.ErrValidation)
	}

	actor, err := l.users.GetByID(ctx, actorID)
	if err != nil {
		return err
	}
	if actor == nil || !actor.CanDelegate {
		return fmt.Errorf("%w: user %d may not delegate", domainwf.ErrValidation, actorID)
	}

	target, err := l.users.GetByID(ctx, delegateID)
	if err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("%w: delegate %d not found", domainwf.ErrValidation, delegateID)
	}
	if !target.IsActive {
		return fmt.Errorf("%w: delegate %d is inactive", domainwf.ErrValidation, delegateID)
	}
	return nil
}

// nextWaiting returns the waiting record with the lowest sequence after a
func (l *Ledger) nextWaiting(ctx context.Context, a *entity.Approval) (*entity.Approval, error) {
	siblings, err := l.approvals.GetByCostTableID(ctx, a.CostTableID)
	if err != nil {
		return nil, err
	}
	var next *entity.Approval
	for _, s := range siblings {
		if s.SequenceOrder <= a.SequenceOrder || s.Status != entity.ApprovalWaiting {
			continue
		}
		if next == nil || s.SequenceOrder < next.SequenceOrder {
			next = s
		}
	}
	return next, nil
}

func (l *Ledger) activate(ctx context.Context, next *entity.Approval, actorID int64) error {
	status, err := domainwf.NextState(next.Status, domainwf.TriggerActivate)
	if err != nil {
		return err
	}
	previous := next.Status
	next.Status = status
	if err := l.approvals.UpdateIfStatus(ctx, next, previous); err != nil {
		return err
	}
	return l.record(ctx, next.CostTableID, &next.ID, actorID, entity.HistoryActionActivate,
		string(previous), string(status), "")
}

func (l *Ledger) moveCostTable(ctx context.Context, ct *entity.CostTable, status entity.CostTableStatus, now time.Time) (*entity.CostTable, error) {
	after := *ct
	if ct.Status == status {
		return &after, nil
	}
	if err := l.costTables.UpdateStatus(ctx, ct.ID, ct.Status, status); err != nil {
		return nil, err
	}
	after.Status = status
	after.UpdatedAt = now
	return &after, nil
}

func (l *Ledger) recordCascade(ctx context.Context, ct *entity.CostTable, actorID int64, cancelled int64) error {
	if cancelled == 0 {
		return nil
	}
	return l.record(ctx, ct.ID, nil, actorID, entity.HistoryActionCancel,
		"", string(entity.ApprovalCancelled), fmt.Sprintf("cancelled %d open approvals", cancelled))
}

func (l *Ledger) record(ctx context.Context, costTableID int64, approvalID *int64, actorID int64, action, from, to, detail string) error {
	return l.history.Create(ctx, &entity.WorkflowHistory{
		CostTableID:    costTableID,
		ApprovalID:     approvalID,
		ActorUserID:    actorID,
		ActionType:     action,
		PreviousStatus: from,
		NewStatus:      to,
		Detail:         detail,
		Timestamp:      l.clock.Now(),
	})
}
