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

// CostTableRepository implements port.CostTableRepository
type CostTableRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewCostTableRepository creates a new cost table repository
func NewCostTableRepository(db *sqlite.DB, logger *zap.Logger) port.CostTableRepository {
	return &CostTableRepository{
		db:     db,
		logger: logger,
	}
}

const costTableColumns = `
	id, supplier_id, version, category, currency, status,
	monthly_impact, total_value, submitted_by, submitted_at, deadline,
	comments, rejection_reason, created_at, updated_at`

// Create inserts a new cost table
func (r *CostTableRepository) Create(ctx context.Context, ct *entity.CostTable) error {
	query := `
		INSERT INTO cost_tables (
			supplier_id, version, category, currency, status,
			monthly_impact, total_value, submitted_by, submitted_at, deadline,
			comments, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		ct.SupplierID,
		ct.Version,
		ct.Category,
		ct.Currency,
		ct.Status,
		ct.MonthlyImpact.String(),
		ct.TotalValue.String(),
		ct.SubmittedBy,
		ct.SubmittedAt.UTC(),
		ct.Deadline.UTC(),
		ct.Comments,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create cost table", zap.Int64("supplier_id", ct.SupplierID), zap.Error(err))
		return fmt.Errorf("failed to create cost table: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	ct.ID = id
	ct.CreatedAt = now
	ct.UpdatedAt = now
	return nil
}

// GetByID retrieves a cost table by ID
func (r *CostTableRepository) GetByID(ctx context.Context, id int64) (*entity.CostTable, error) {
	query := `SELECT ` + costTableColumns + ` FROM cost_tables WHERE id = ?`

	ct, err := scanCostTable(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get cost table by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get cost table: %w", err)
	}
	return ct, nil
}

// UpdateStatus moves the cost table from expected to status
func (r *CostTableRepository) UpdateStatus(ctx context.Context, id int64, expected, status entity.CostTableStatus) error {
	query := `
		UPDATE cost_tables
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, status, time.Now().UTC(), id, expected)
	if err != nil {
		r.logger.Error("Failed to update cost table status",
			zap.Int64("id", id),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to update cost table status: %w", err)
	}
	return expectOneRow(result, "cost table", id)
}

// SetRejected moves the cost table from expected to rejected with a reason
func (r *CostTableRepository) SetRejected(ctx context.Context, id int64, expected entity.CostTableStatus, reason string) error {
	query := `
		UPDATE cost_tables
		SET status = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		entity.CostTableRejected, reason, time.Now().UTC(), id, expected)
	if err != nil {
		r.logger.Error("Failed to reject cost table", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to reject cost table: %w", err)
	}
	return expectOneRow(result, "cost table", id)
}

// List returns cost tables, newest first
func (r *CostTableRepository) List(ctx context.Context, limit, offset int) ([]*entity.CostTable, error) {
	query := `SELECT ` + costTableColumns + ` FROM cost_tables ORDER BY id DESC LIMIT ? OFFSET ?`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list cost tables", zap.Error(err))
		return nil, fmt.Errorf("failed to list cost tables: %w", err)
	}
	defer rows.Close()

	var tables []*entity.CostTable
	for rows.Next() {
		ct, err := scanCostTable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cost table: %w", err)
		}
		tables = append(tables, ct)
	}
	return tables, rows.Err()
}

func scanCostTable(row scanner) (*entity.CostTable, error) {
	var ct entity.CostTable
	var monthlyImpact, totalValue string

	err := row.Scan(
		&ct.ID,
		&ct.SupplierID,
		&ct.Version,
		&ct.Category,
		&ct.Currency,
		&ct.Status,
		&monthlyImpact,
		&totalValue,
		&ct.SubmittedBy,
		&ct.SubmittedAt,
		&ct.Deadline,
		&ct.Comments,
		&ct.RejectionReason,
		&ct.CreatedAt,
		&ct.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if ct.MonthlyImpact, err = parseDecimal(monthlyImpact); err != nil {
		return nil, err
	}
	if ct.TotalValue, err = parseDecimal(totalValue); err != nil {
		return nil, err
	}
	ct.SubmittedAt = ct.SubmittedAt.UTC()
	ct.Deadline = ct.Deadline.UTC()
	return &ct, nil
}
