package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/cost-approval/internal/application/port"
	"github.com/garyjia/cost-approval/internal/domain/entity"
)

// CostTableRepository implements port.CostTableRepository
type CostTableRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCostTableRepository creates a new cost table repository
func NewCostTableRepository(db *DB, logger *zap.Logger) port.CostTableRepository {
	return &CostTableRepository{db: db, logger: logger}
}

const costTableColumns = `
	id, supplier_id, version, category, currency, status,
	monthly_impact::text, total_value::text, submitted_by, submitted_at, deadline,
	comments, rejection_reason, created_at, updated_at`

// Create inserts a new cost table
func (r *CostTableRepository) Create(ctx context.Context, ct *entity.CostTable) error {
	query := `
		INSERT INTO cost_tables (
			supplier_id, version, category, currency, status,
			monthly_impact, total_value, submitted_by, submitted_at, deadline,
			comments, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $12)
		RETURNING id
	`

	now := time.Now().UTC()
	err := r.db.Querier(ctx).QueryRow(ctx, query,
		ct.SupplierID,
		ct.Version,
		ct.Category,
		ct.Currency,
		string(ct.Status),
		ct.MonthlyImpact.String(),
		ct.TotalValue.String(),
		ct.SubmittedBy,
		ct.SubmittedAt.UTC(),
		ct.Deadline.UTC(),
		ct.Comments,
		now,
	).Scan(&ct.ID)
	if err != nil {
		r.logger.Error("Failed to create cost table", zap.Int64("supplier_id", ct.SupplierID), zap.Error(err))
		return fmt.Errorf("failed to create cost table: %w", err)
	}

	ct.CreatedAt = now
	ct.UpdatedAt = now
	return nil
}

// GetByID retrieves a cost table by ID, locking it when called inside a transaction
func (r *CostTableRepository) GetByID(ctx context.Context, id int64) (*entity.CostTable, error) {
	query := `SELECT ` + costTableColumns + ` FROM cost_tables WHERE id = $1` + lockClause(ctx)

	ct, err := scanCostTable(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if isNoRows(err) {
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
	tag, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE cost_tables SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(status), time.Now().UTC(), id, string(expected))
	if err != nil {
		r.logger.Error("Failed to update cost table status",
			zap.Int64("id", id),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to update cost table status: %w", err)
	}
	return expectOneRow(tag, "cost table", id)
}

// SetRejected moves the cost table to rejected and stores the reason
func (r *CostTableRepository) SetRejected(ctx context.Context, id int64, expected entity.CostTableStatus, reason string) error {
	tag, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE cost_tables SET status = $1, rejection_reason = $2, updated_at = $3 WHERE id = $4 AND status = $5`,
		string(entity.CostTableRejected), reason, time.Now().UTC(), id, string(expected))
	if err != nil {
		r.logger.Error("Failed to reject cost table", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to reject cost table: %w", err)
	}
	return expectOneRow(tag, "cost table", id)
}

// List returns cost tables newest first
func (r *CostTableRepository) List(ctx context.Context, limit, offset int) ([]*entity.CostTable, error) {
	query := `SELECT ` + costTableColumns + ` FROM cost_tables ORDER BY id DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Querier(ctx).Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list cost tables", zap.Error(err))
		return nil, fmt.Errorf("failed to list cost tables: %w", err)
	}
	defer rows.Close()

	var list []*entity.CostTable
	for rows.Next() {
		ct, err := scanCostTable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cost table: %w", err)
		}
		list = append(list, ct)
	}
	return list, rows.Err()
}

func scanCostTable(row pgx.Row) (*entity.CostTable, error) {
	var ct entity.CostTable
	var status, impact, total string

	err := row.Scan(
		&ct.ID,
		&ct.SupplierID,
		&ct.Version,
		&ct.Category,
		&ct.Currency,
		&status,
		&impact,
		&total,
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

	ct.Status = entity.CostTableStatus(status)
	if ct.MonthlyImpact, err = decimal.NewFromString(impact); err != nil {
		return nil, fmt.Errorf("invalid monthly impact %q: %w", impact, err)
	}
	if ct.TotalValue, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("invalid total value %q: %w", total, err)
	}
	ct.SubmittedAt = ct.SubmittedAt.UTC()
	ct.Deadline = ct.Deadline.UTC()
	return &ct, nil
}
