package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/cost-approval/internal/application/port"
	"github.com/garyjia/cost-approval/internal/domain/entity"
	"github.com/garyjia/cost-approval/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqlite.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new history record
func (r *HistoryRepository) Create(ctx context.Context, h *entity.WorkflowHistory) error {
	query := `
		INSERT INTO workflow_history (
			cost_table_id, approval_id, actor_user_id, action_type,
			previous_status, new_status, detail, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		h.CostTableID,
		nullInt64(h.ApprovalID),
		h.ActorUserID,
		h.ActionType,
		h.PreviousStatus,
		h.NewStatus,
		h.Detail,
		h.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create history record",
			zap.Int64("cost_table_id", h.CostTableID),
			zap.String("action_type", h.ActionType),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	h.ID = id
	return nil
}

// GetByCostTableID retrieves the trail of a cost table in insertion order
func (r *HistoryRepository) GetByCostTableID(ctx context.Context, costTableID int64) ([]*entity.WorkflowHistory, error) {
	query := `
		SELECT id, cost_table_id, approval_id, actor_user_id, action_type,
			previous_status, new_status, detail, timestamp
		FROM workflow_history
		WHERE cost_table_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, costTableID)
	if err != nil {
		r.logger.Error("Failed to get history by cost table ID", zap.Int64("cost_table_id", costTableID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.WorkflowHistory
	for rows.Next() {
		var h entity.WorkflowHistory
		var approvalID sql.NullInt64
		if err := rows.Scan(
			&h.ID,
			&h.CostTableID,
			&approvalID,
			&h.ActorUserID,
			&h.ActionType,
			&h.PreviousStatus,
			&h.NewStatus,
			&h.Detail,
			&h.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		h.ApprovalID = int64Ptr(approvalID)
		records = append(records, &h)
	}

	return records, rows.Err()
}
