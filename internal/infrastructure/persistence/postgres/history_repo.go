package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/cost-approval/internal/application/port"
	"github.com/garyjia/cost-approval/internal/domain/entity"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Create appends an entry to the audit trail
func (r *HistoryRepository) Create(ctx context.Context, h *entity.WorkflowHistory) error {
	query := `
		INSERT INTO workflow_history (
			cost_table_id, approval_id, actor_user_id, action_type,
			previous_status, new_status, detail, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		h.CostTableID,
		h.ApprovalID,
		h.ActorUserID,
		h.ActionType,
		h.PreviousStatus,
		h.NewStatus,
		h.Detail,
		h.Timestamp.UTC(),
	).Scan(&h.ID)
	if err != nil {
		r.logger.Error("Failed to create history record",
			zap.Int64("cost_table_id", h.CostTableID),
			zap.String("action_type", h.ActionType),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}
	return nil
}

// GetByCostTableID returns the audit trail of a cost table in insertion order
func (r *HistoryRepository) GetByCostTableID(ctx context.Context, costTableID int64) ([]*entity.WorkflowHistory, error) {
	query := `
		SELECT id, cost_table_id, approval_id, actor_user_id, action_type,
			previous_status, new_status, detail, timestamp
		FROM workflow_history
		WHERE cost_table_id = $1
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.db.Querier(ctx).Query(ctx, query, costTableID)
	if err != nil {
		r.logger.Error("Failed to get history", zap.Int64("cost_table_id", costTableID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var history []*entity.WorkflowHistory
	for rows.Next() {
		var h entity.WorkflowHistory
		if err := rows.Scan(
			&h.ID,
			&h.CostTableID,
			&h.ApprovalID,
			&h.ActorUserID,
			&h.ActionType,
			&h.PreviousStatus,
			&h.NewStatus,
			&h.Detail,
			&h.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		h.Timestamp = h.Timestamp.UTC()
		history = append(history, &h)
	}
	return history, rows.Err()
}
