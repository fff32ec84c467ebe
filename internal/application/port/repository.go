package port

import (
	"context"
	"time"

	"github.com/garyjia/cost-approval/internal/domain/entity"
)

// Repositories return (nil, nil) from single-row lookups when the row does not
// exist. Conditional updates return workflow.ErrInvalidState when the row is
// no longer in the expected status.

// CostTableRepository defines persistence operations for CostTable
type CostTableRepository interface {
	Create(ctx context.Context, ct *entity.CostTable) error
	GetByID(ctx context.Context, id int64) (*entity.CostTable, error)

	// UpdateStatus moves the cost table from expected to status
	UpdateStatus(ctx context.Context, id int64, expected, status entity.CostTableStatus) error

	// SetRejected moves the cost table from expected to rejected and stores the reason
	SetRejected(ctx context.Context, id int64, expected entity.CostTableStatus, reason string) error

	List(ctx context.Context, limit, offset int) ([]*entity.CostTable, error)
}

// ApprovalRepository defines persistence operations for Approval records
type ApprovalRepository interface {
	// CreateBatch inserts the records of one workflow and fills in their ids
	CreateBatch(ctx context.Context, approvals []*entity.Approval) error

	GetByID(ctx context.Context, id int64) (*entity.Approval, error)

	// GetByCostTableID returns the workflow ordered by sequence
	GetByCostTableID(ctx context.Context, costTableID int64) ([]*entity.Approval, error)

	CountByCostTableID(ctx context.Context, costTableID int64) (int, error)

	// UpdateIfStatus persists a's status, decision, delegation and reminder
	// fields only if the stored status still equals expected
	UpdateIfStatus(ctx context.Context, a *entity.Approval, expected entity.ApprovalStatus) error

	// CancelOpen cancels every non-terminal record of the workflow except exceptID
	CancelOpen(ctx context.Context, costTableID, exceptID int64, at time.Time) (int64, error)

	// ListActionable returns pending and delegated records ordered by deadline
	ListActionable(ctx context.Context) ([]*entity.Approval, error)

	// ListActionableForUser returns open records the user may decide on, ordered by deadline
	ListActionableForUser(ctx context.Context, userID int64) ([]*entity.Approval, error)

	// ListOverdue returns open records whose deadline is before now, ordered by deadline
	ListOverdue(ctx context.Context, now time.Time) ([]*entity.Approval, error)

	// MarkReminded stamps reminded_at if the record is still actionable.
	// It reports whether a row was updated.
	MarkReminded(ctx context.Context, id int64, at time.Time) (bool, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*entity.User, error)

	// FindActiveByRole returns active users holding role, ordered by id
	FindActiveByRole(ctx context.Context, role entity.UserRole) ([]*entity.User, error)
}

// HistoryRepository defines persistence operations for WorkflowHistory
type HistoryRepository interface {
	Create(ctx context.Context, h *entity.WorkflowHistory) error
	GetByCostTableID(ctx context.Context, costTableID int64) ([]*entity.WorkflowHistory, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
