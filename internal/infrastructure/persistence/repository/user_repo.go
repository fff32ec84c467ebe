package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/cost-approval/internal/application/port"
	"github.com/garyjia/cost-approval/internal/domain/entity"
	"github.com/garyjia/cost-approval/internal/infrastructure/persistence/sqlite"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlite.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `
	id, username, email, full_name, role, approval_limit, can_delegate,
	categories, is_active, lark_open_id, created_at, updated_at`

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	categories, err := json.Marshal(nonNil(u.Categories))
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}

	query := `
		INSERT INTO users (
			username, email, full_name, role, approval_limit, can_delegate,
			categories, is_active, lark_open_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		u.Username,
		u.Email,
		u.FullName,
		u.Role,
		u.ApprovalLimit.String(),
		u.CanDelegate,
		string(categories),
		u.IsActive,
		u.LarkOpenID,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("username", u.Username), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	u, err := scanUser(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
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

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id IN (` + placeholders + `)`
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to get users by IDs", zap.Int64s("ids", ids), zap.Error(err))
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users[u.ID] = u
	}
	return users, rows.Err()
}

// FindActiveByRole returns active users holding role, ordered by id
func (r *UserRepository) FindActiveByRole(ctx context.Context, role entity.UserRole) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = ? AND is_active = 1 ORDER BY id ASC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, role)
	if err != nil {
		r.logger.Error("Failed to find users by role", zap.String("role", string(role)), zap.Error(err))
		return nil, fmt.Errorf("failed to find users: %w", err)
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

func scanUser(row scanner) (*entity.User, error) {
	var u entity.User
	var limit, categories string

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.Role,
		&limit,
		&u.CanDelegate,
		&categories,
		&u.IsActive,
		&u.LarkOpenID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if u.ApprovalLimit, err = parseDecimal(limit); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(categories), &u.Categories); err != nil {
		return nil, fmt.Errorf("invalid categories for user %d: %w", u.ID, err)
	}
	return &u, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
