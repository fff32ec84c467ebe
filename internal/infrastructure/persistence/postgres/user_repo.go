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

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{db: db, logger: logger}
}

const userColumns = `
	id, username, email, full_name, role, approval_limit::text, can_delegate,
	categories, is_active, lark_open_id, created_at, updated_at`

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	query := `
		INSERT INTO users (
			username, email, full_name, role, approval_limit, can_delegate,
			categories, is_active, lark_open_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $10)
		RETURNING id
	`

	categories := u.Categories
	if categories == nil {
		categories = []string{}
	}

	now := time.Now().UTC()
	err := r.db.Querier(ctx).QueryRow(ctx, query,
		u.Username,
		u.Email,
		u.FullName,
		string(u.Role),
		u.ApprovalLimit.String(),
		u.CanDelegate,
		categories,
		u.IsActive,
		u.LarkOpenID,
		now,
	).Scan(&u.ID)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("username", u.Username), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByIDs retrieves the users that exist among ids, keyed by id
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*entity.User, error) {
	users := make(map[int64]*entity.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	list, err := r.query(ctx, query, ids)
	if err != nil {
		r.logger.Error("Failed to get users by IDs", zap.Int64s("ids", ids), zap.Error(err))
		return nil, err
	}
	for _, u := range list {
		users[u.ID] = u
	}
	return users, nil
}

// FindActiveByRole returns active users holding role, ordered by id
func (r *UserRepository) FindActiveByRole(ctx context.Context, role entity.UserRole) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 AND is_active ORDER BY id ASC`

	users, err := r.query(ctx, query, string(role))
	if err != nil {
		r.logger.Error("Failed to find users by role", zap.String("role", string(role)), zap.Error(err))
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) query(ctx context.Context, query string, args ...any) ([]*entity.User, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*entity.User, error) {
	var u entity.User
	var role, limit string

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&role,
		&limit,
		&u.CanDelegate,
		&u.Categories,
		&u.IsActive,
		&u.LarkOpenID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Role = entity.UserRole(role)
	if u.ApprovalLimit, err = decimal.NewFromString(limit); err != nil {
		return nil, fmt.Errorf("invalid approval limit %q: %w", limit, err)
	}
	return &u, nil
}
