package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/garyjia/cost-approval/internal/application/port"
	"github.com/garyjia/cost-approval/internal/domain/entity"
)

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{db: db, logger: logger}
}

const approvalColumns = `
	id, cost_table_id, approver_id, approval_type, status, sequence_order,
	decision_date, comments, rejection_reason, assigned_at, deadline, reminded_at,
	delegated_to, delegated_at, delegation_reason, created_at, updated_at`

const actionable = `status IN ('pending', 'delegated')`

// CreateBatch inserts the records of one workflow in a single round trip
func (r *ApprovalRepository) CreateBatch(ctx context.Context, approvals []*entity.Approval) error {
	query := `
		INSERT INTO approvals (
			cost_table_id, approver_id, approval_type, status, sequence_order,
			assigned_at, deadline, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id
	`

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, a := range approvals {
		batch.Queue(query,
			a.CostTableID,
			a.ApproverID,
			string(a.ApprovalType),
			string(a.Status),
			a.SequenceOrder,
			a.AssignedAt.UTC(),
			a.Deadline.UTC(),
			now,
		)
	}

	results := r.db.Querier(ctx).SendBatch(ctx, batch)
	defer results.Close()

	for _, a := range approvals {
		if err := results.QueryRow().Scan(&a.ID); err != nil {
			r.logger.Error("Failed to create approval",
				zap.Int64("cost_table_id", a.CostTableID),
				zap.Int("sequence_order", a.SequenceOrder),
				zap.Error(err))
			return fmt.Errorf("failed to create approval: %w", err)
		}
		a.CreatedAt = now
		a.UpdatedAt = now
	}
	return nil
}

// GetByID retrieves an approval by ID, locking it when called inside a transaction
func (r *ApprovalRepository) GetByID(ctx context.Context, id int64) (*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE id = $1` + lockClause(ctx)

	a, err := scanApproval(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if isNoRows(err) {
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
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE cost_table_id = $1 ORDER BY sequence_order ASC`
	return r.list(ctx, "cost table approvals", query, costTableID)
}

// CountByCostTableID counts the approval records of a cost table
func (r *ApprovalRepository) CountByCostTableID(ctx context.Context, costTableID int64) (int, error) {
	var count int
	err := r.db.Querier(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM approvals WHERE cost_table_id = $1`, costTableID,
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
		SET status = $1, decision_date = $2, comments = $3, rejection_reason = $4,
			reminded_at = $5, delegated_to = $6, delegated_at = $7, delegation_reason = $8,
			updated_at = $9
		WHERE id = $10 AND status = $11
	`

	now := time.Now().UTC()
	tag, err := r.db.Querier(ctx).Exec(ctx, query,
		string(a.Status),
		utc(a.DecisionDate),
		a.Comments,
		a.RejectionReason,
		utc(a.RemindedAt),
		a.DelegatedTo,
		utc(a.DelegatedAt),
		a.DelegationReason,
		now,
		a.ID,
		string(expected),
	)
	if err != nil {
		r.logger.Error("Failed to update approval",
			zap.Int64("id", a.ID),
			zap.String("status", string(a.Status)),
			zap.Error(err))
		return fmt.Errorf("failed to update approval: %w", err)
	}
	if err := expectOneRow(tag, "approval", a.ID); err != nil {
		return err
	}
	a.UpdatedAt = now
	return nil
}

// CancelOpen cancels every non-terminal record of a workflow except exceptID
func (r *ApprovalRepository) CancelOpen(ctx context.Context, costTableID, exceptID int64, at time.Time) (int64, error) {
	query := `
		UPDATE approvals
		SET status = 'cancelled', updated_at = $1
		WHERE cost_table_id = $2 AND id <> $3 AND status IN ('waiting', 'pending', 'delegated')
	`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, at.UTC(), costTableID, exceptID)
	if err != nil {
		r.logger.Error("Failed to cancel open approvals", zap.Int64("cost_table_id", costTableID), zap.Error(err))
		return 0, fmt.Errorf("failed to cancel approvals: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListActionable returns pending and delegated records ordered by deadline
func (r *ApprovalRepository) ListActionable(ctx context.Context) ([]*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE ` + actionable + ` ORDER BY deadline ASC, id ASC`
	return r.list(ctx, "actionable approvals", query)
}

// ListActionableForUser returns open records the user may decide, ordered by deadline
func (r *ApprovalRepository) ListActionableForUser(ctx context.Context, userID int64) ([]*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals
		WHERE ` + actionable + ` AND (approver_id = $1 OR delegated_to = $1)
		ORDER BY deadline ASC, id ASC`
	return r.list(ctx, "user approvals", query, userID)
}

// ListOverdue returns open records whose deadline is before now
func (r *ApprovalRepository) ListOverdue(ctx context.Context, now time.Time) ([]*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals
		WHERE ` + actionable + ` AND deadline < $1
		ORDER BY deadline ASC, id ASC`
	return r.list(ctx, "overdue approvals", query, now.UTC())
}

// MarkReminded stamps reminded_at if the record is still actionable
func (r *ApprovalRepository) MarkReminded(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `UPDATE approvals SET reminded_at = $1, updated_at = $2 WHERE id = $3 AND ` + actionable

	tag, err := r.db.Querier(ctx).Exec(ctx, query, at.UTC(), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark approval reminded", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to mark reminded: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ApprovalRepository) list(ctx context.Context, what, query string, args ...any) ([]*entity.Approval, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, query, args...)
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

func scanApproval(row pgx.Row) (*entity.Approval, error) {
	var a entity.Approval
	var approvalType, status string

	err := row.Scan(
		&a.ID,
		&a.CostTableID,
		&a.ApproverID,
		&approvalType,
		&status,
		&a.SequenceOrder,
		&a.DecisionDate,
		&a.Comments,
		&a.RejectionReason,
		&a.AssignedAt,
		&a.Deadline,
		&a.RemindedAt,
		&a.DelegatedTo,
		&a.DelegatedAt,
		&a.DelegationReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ApprovalType = entity.ApprovalType(approvalType)
	a.Status = entity.ApprovalStatus(status)
	a.AssignedAt = a.AssignedAt.UTC()
	a.Deadline = a.Deadline.UTC()
	a.DecisionDate = utc(a.DecisionDate)
	a.RemindedAt = utc(a.RemindedAt)
	a.DelegatedAt = utc(a.DelegatedAt)
	return &a, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
