package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/cost-approval/internal/application/port"
	"github.com/garyjia/cost-approval/internal/domain/entity"
	"github.com/garyjia/cost-approval/internal/infrastructure/persistence/sqlite"
)

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sqlite.DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

const approvalColumns = `
	id, cost_table_id, approver_id, approval_type, status, sequence_order,
	decision_date, comments, rejection_reason, assigned_at, deadline, reminded_at,
	delegated_to, delegated_at, delegation_reason, created_at, updated_at`

// actionable lists the statuses in which a record is still waiting on a decision
const actionable = `status IN ('pending', 'delegated')`

// CreateBatch inserts the records of one workflow and fills in their ids.
// Callers run it inside a transaction so a failure leaves no partial workflow.
func (r *ApprovalRepository) CreateBatch(ctx context.Context, approvals []*entity.Approval) error {
	query := `
		INSERT INTO approvals (
			cost_table_id, approver_id, approval_type, status, sequence_order,
			assigned_at, deadline, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	exec := r.db.Executor(ctx)
	now := time.Now().UTC()
	for _, a := range approvals {
		result, err := exec.ExecContext(ctx, query,
			a.CostTableID,
			a.ApproverID,
			a.ApprovalType,
			a.Status,
			a.SequenceOrder,
			a.AssignedAt.UTC(),
			a.Deadline.UTC(),
			now,
			now,
		)
		if err != nil {
			r.logger.Error("Failed to create approval",
				zap.Int64("cost_table_id", a.CostTableID),
				zap.Int("sequence_order", a.SequenceOrder),
				zap.Error(err))
			return fmt.Errorf("failed to create approval: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		a.ID = id
		a.CreatedAt = now
		a.UpdatedAt = now
	}
	return nil
}

// GetByID retrieves an approval by ID
func (r *ApprovalRepository) GetByID(ctx context.Context, id int64) (*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE id = ?`

	a, err := scanApproval(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return a, nil
}

// GetByCostTableID returns the workflow of a cost table ordered by sequence
func (r *ApprovalRepository) GetByCostTableID(ctx context.Context, costTableID int64) ([]*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE cost_table_id = ? ORDER BY sequence_order ASC`
	return r.list(ctx, "cost table approvals", query, costTableID)
}

// CountByCostTableID counts the approval records of a cost table
func (r *ApprovalRepository) CountByCostTableID(ctx context.Context, costTableID int64) (int, error) {
	var count int
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM approvals WHERE cost_table_id = ?`, costTableID,
	).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count approvals", zap.Int64("cost_table_id", costTableID), zap.Error(err))
		return 0, fmt.Errorf("failed to count approvals: %w", err)
	}
	return count, nil
}

// UpdateIfStatus writes a's mutable fields if the stored status still equals expected
func (r *ApprovalRepository) UpdateIfStatus(ctx context.Context, a *entity.Approval, expected entity.ApprovalStatus) error {
	query := `
		UPDATE approvals
		SET status = ?, decision_date = ?, comments = ?, rejection_reason = ?,
			reminded_at = ?, delegated_to = ?, delegated_at = ?, delegation_reason = ?,
			updated_at = ?
		WHERE id = ? AND status = ?
	`

	now := time.Now().UTC()
	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		a.Status,
		nullTime(a.DecisionDate),
		a.Comments,
		a.RejectionReason,
		nullTime(a.RemindedAt),
		nullInt64(a.DelegatedTo),
		nullTime(a.DelegatedAt),
		a.DelegationReason,
		now,
		a.ID,
		expected,
	)
	if err != nil {
		r.logger.Error("Failed to update approval",
			zap.Int64("id", a.ID),
			zap.String("status", string(a.Status)),
			zap.Error(err))
		return fmt.Errorf("failed to update approval: %w", err)
	}
	if err := expectOneRow(result, "approval", a.ID); err != nil {
		return err
	}
	a.UpdatedAt = now
	return nil
}

// CancelOpen cancels every non-terminal record of a workflow except exceptID
func (r *ApprovalRepository) CancelOpen(ctx context.Context, costTableID, exceptID int64, at time.Time) (int64, error) {
	query := `
		UPDATE approvals
		SET status = 'cancelled', updated_at = ?
		WHERE cost_table_id = ? AND id != ? AND status IN ('waiting', 'pending', 'delegated')
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, at.UTC(), costTableID, exceptID)
	if err != nil {
		r.logger.Error("Failed to cancel open approvals", zap.Int64("cost_table_id", costTableID), zap.Error(err))
		return 0, fmt.Errorf("failed to cancel approvals: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

// ListActionable returns pending and delegated records ordered by deadline
func (r *ApprovalRepository) ListActionable(ctx context.Context) ([]*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE ` + actionable + ` ORDER BY deadline ASC, id ASC`
	return r.list(ctx, "actionable approvals", query)
}

// ListActionableForUser returns open records the user may decide, ordered by deadline
func (r *ApprovalRepository) ListActionableForUser(ctx context.Context, userID int64) ([]*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals
		WHERE ` + actionable + ` AND (approver_id = ? OR delegated_to = ?)
		ORDER BY deadline ASC, id ASC`
	return r.list(ctx, "user approvals", query, userID, userID)
}

// ListOverdue returns open records whose deadline is before now
func (r *ApprovalRepository) ListOverdue(ctx context.Context, now time.Time) ([]*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals
		WHERE ` + actionable + `
		ORDER BY deadline ASC, id ASC`

	open, err := r.list(ctx, "overdue approvals", query)
	if err != nil {
		return nil, err
	}

	// deadlines are stored as text, so the cut-off is applied after scanning
	overdue := open[:0]
	for _, a := range open {
		if now.After(a.Deadline) {
			overdue = append(overdue, a)
		}
	}
	return overdue, nil
}

// MarkReminded stamps reminded_at if the record is still actionable
func (r *ApprovalRepository) MarkReminded(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE approvals
		SET reminded_at = ?, updated_at = ?
		WHERE id = ? AND ` + actionable

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, at.UTC(), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark approval reminded", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to mark reminded: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *ApprovalRepository) list(ctx context.Context, what, query string, args ...interface{}) ([]*entity.Approval, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list "+what, zap.Error(err))
		return nil, fmt.Errorf("failed to list %s: %w", what, err)
	}
	defer rows.Close()

	var approvals []*entity.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}

func scanApproval(row scanner) (*entity.Approval, error) {
	var a entity.Approval
	var (
		decisionDate, remindedAt, delegatedAt sql.NullTime
		delegatedTo                           sql.NullInt64
	)

	err := row.Scan(
		&a.ID,
		&a.CostTableID,
		&a.ApproverID,
		&a.ApprovalType,
		&a.Status,
		&a.SequenceOrder,
		&decisionDate,
		&a.Comments,
		&a.RejectionReason,
		&a.AssignedAt,
		&a.Deadline,
		&remindedAt,
		&delegatedTo,
		&delegatedAt,
		&a.DelegationReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.DecisionDate = timePtr(decisionDate)
	a.RemindedAt = timePtr(remindedAt)
	a.DelegatedAt = timePtr(delegatedAt)
	a.DelegatedTo = int64Ptr(delegatedTo)
	a.AssignedAt = a.AssignedAt.UTC()
	a.Deadline = a.Deadline.UTC()
	return &a, nil
}
