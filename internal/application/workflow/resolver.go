package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/cost-approval/internal/application/port"
	"github.com/garyjia/cost-approval/internal/domain/entity"
)

// ApproverResolver picks the user responsible for one planned step.
// It returns (nil, nil) when nobody is eligible.
type ApproverResolver func(ctx context.Context, t entity.ApprovalType, ct *entity.CostTable) (*entity.User, error)

// DirectoryResolver resolves approvers from the user directory: the active
// user with the lowest id whose role matches the step and whose category
// allow-list admits the cost table's category.
func DirectoryResolver(users port.UserRepository) ApproverResolver {
	return func(ctx context.Context, t entity.ApprovalType, ct *entity.CostTable) (*entity.User, error) {
		candidates, err := users.FindActiveByRole(ctx, t.Role())
		if err != nil {
			return nil, fmt.Errorf("failed to look up %s approvers: %w", t, err)
		}
		for _, u := range candidates {
			if u.CanApproveCategory(ct.Category) {
				return u, nil
			}
		}
		return nil, nil
	}
}

// StaticResolver resolves every step from a fixed table, for fixtures and tooling
func StaticResolver(byType map[entity.ApprovalType]*entity.User) ApproverResolver {
	return func(_ context.Context, t entity.ApprovalType, _ *entity.CostTable) (*entity.User, error) {
		return byType[t], nil
	}
}
