package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/cost-approval/internal/application/port"
	"github.com/garyjia/cost-approval/internal/application/workflow"
	"github.com/garyjia/cost-approval/internal/domain/entity"
	domainwf "github.com/garyjia/cost-approval/internal/domain/workflow"
	"github.com/garyjia/cost-approval/internal/infrastructure/persistence/persistencetest"
	"github.com/garyjia/cost-approval/internal/infrastructure/persistence/repository"
)

// scenario runs the orchestrator against a migrated sqlite database
type scenario struct {
	t          *testing.T
	now        time.Time
	engine     workflow.Orchestrator
	users      port.UserRepository
	costTables port.CostTableRepository
	approvals  port.ApprovalRepository
	byRole     map[entity.UserRole]*entity.User
}

func newScenario(t *testing.T, skip ...entity.UserRole) *scenario {
	t.Helper()
	db := persistencetest.NewSQLite(t)
	logger := zap.NewNop()

	s := &scenario{
		t:          t,
		now:        time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
		users:      repository.NewUserRepository(db, logger),
		costTables: repository.NewCostTableRepository(db, logger),
		approvals:  repository.NewApprovalRepository(db, logger),
		byRole:     make(map[entity.UserRole]*entity.User),
	}
	history := repository.NewHistoryRepository(db, logger)
	clock := port.ClockFunc(func() time.Time { return s.now })
	s.engine = workflow.NewEngine(s.costTables, s.approvals, s.users, history, db, workflow.WithClock(clock))

	roles := []entity.UserRole{
		entity.RoleSupplier,
		entity.RoleCategoryBuyer,
		entity.RolePricingAnalyst,
		entity.RoleCommercialManager,
		entity.RoleCommercialDirector,
		entity.RolePricingDirector,
		entity.RoleVPCommercial,
		entity.RoleAdmin,
	}
	skipped := make(map[entity.UserRole]bool)
	for _, r := range skip {
		skipped[r] = true
	}
	for _, role := range roles {
		if skipped[role] {
			continue
		}
		u := &entity.User{
			Username:    string(role),
			Email:       string(role) + "@example.com",
			Role:        role,
			CanDelegate: true,
			IsActive:    true,
		}
		require.NoError(t, s.users.Create(context.Background(), u))
		s.byRole[role] = u
	}
	return s
}

func (s *scenario) submit(impact string) *entity.CostTable {
	s.t.Helper()
	ct := &entity.CostTable{
		SupplierID:    s.byRole[entity.RoleSupplier].ID,
		Version:       "v1",
		Category:      "Resin",
		Currency:      "USD",
		Status:        entity.CostTableSubmitted,
		MonthlyImpact: decimal.RequireFromString(impact),
		TotalValue:    decimal.RequireFromString(impact).Mul(decimal.NewFromInt(12)),
		SubmittedBy:   s.byRole[entity.RoleSupplier].ID,
		SubmittedAt:   s.now,
		Deadline:      s.now.Add(entity.CostTableReviewWindow),
	}
	require.NoError(s.t, s.costTables.Create(context.Background(), ct))
	return ct
}

func (s *scenario) approve(approvalID int64, role entity.UserRole) *workflow.DecisionResult {
	s.t.Helper()
	res, err := s.engine.Decide(context.Background(), approvalID, s.byRole[role].ID, workflow.ActionApprove, workflow.DecisionPayload{})
	require.NoError(s.t, err)
	return res
}

func TestScenario_MissingApproverRollsBack(t *testing.T) {
	s := newScenario(t, entity.RoleVPCommercial)
	ctx := context.Background()
	ct := s.submit("600000")

	_, err := s.engine.StartWorkflow(ctx, ct.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainwf.ErrWorkflowCreationFailed)

	count, err := s.approvals.CountByCostTableID(ctx, ct.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	stored, err := s.costTables.GetByID(ctx, ct.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.CostTableSubmitted, stored.Status)

	history, err := s.engine.History(ctx, ct.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestScenario_ManagerLevelApprovedEndToEnd(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()
	ct := s.submit("30000")

	view, err := s.engine.StartWorkflow(ctx, ct.ID)
	require.NoError(t, err)
	require.Len(t, view.Approvals, 3)
	assert.Equal(t, entity.ImpactManager, view.ImpactLevel)

	steps := []struct {
		role   entity.UserRole
		status entity.CostTableStatus
	}{
		{entity.RoleCategoryBuyer, entity.CostTablePricingAnalysis},
		{entity.RolePricingAnalyst, entity.CostTableCommercialReview},
		{entity.RoleCommercialManager, entity.CostTableApproved},
	}
	for i, step := range steps {
		s.now = s.now.Add(time.Hour)
		res := s.approve(view.Approvals[i].ID, step.role)
		assert.Equal(t, step.status, res.CostTableStatus, "step %d", i+1)
	}

	got, err := s.engine.GetWorkflow(ctx, ct.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.CostTableApproved, got.CostTable.Status)
	assert.Zero(t, got.CurrentStep)
	for _, a := range got.Approvals {
		assert.Equal(t, entity.ApprovalApproved, a.Status)
		require.NotNil(t, a.DecisionDate)
	}

	history, err := s.engine.History(ctx, ct.ID)
	require.NoError(t, err)
	// start, then approve and activate for the first two steps, then the final approve
	assert.Len(t, history, 6)
}

func TestScenario_RejectAtThirdStepOfFullChain(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()
	ct := s.submit("600000")

	view, err := s.engine.StartWorkflow(ctx, ct.ID)
	require.NoError(t, err)
	require.Len(t, view.Approvals, 6)
	assert.Equal(t, entity.ImpactFullChain, view.ImpactLevel)

	s.approve(view.Approvals[0].ID, entity.RoleCategoryBuyer)
	s.approve(view.Approvals[1].ID, entity.RolePricingAnalyst)

	res, err := s.engine.Decide(ctx, view.Approvals[2].ID, s.byRole[entity.RoleCommercialManager].ID,
		workflow.ActionReject, workflow.DecisionPayload{Reason: "Resin index does not support this increase"})
	require.NoError(t, err)
	assert.Equal(t, entity.CostTableRejected, res.CostTableStatus)
	assert.Equal(t, int64(3), res.Cancelled)

	stored, err := s.costTables.GetByID(ctx, ct.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.CostTableRejected, stored.Status)
	assert.Equal(t, "Resin index does not support this increase", stored.RejectionReason)

	records, err := s.approvals.GetByCostTableID(ctx, ct.ID)
	require.NoError(t, err)
	want := []entity.ApprovalStatus{
		entity.ApprovalApproved,
		entity.ApprovalApproved,
		entity.ApprovalRejected,
		entity.ApprovalCancelled,
		entity.ApprovalCancelled,
		entity.ApprovalCancelled,
	}
	for i, a := range records {
		assert.Equal(t, want[i], a.Status, "record %d", i+1)
	}
}

func TestScenario_DoubleApproveIsRejected(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()
	ct := s.submit("20000")

	view, err := s.engine.StartWorkflow(ctx, ct.ID)
	require.NoError(t, err)

	first := view.Approvals[0].ID
	s.approve(first, entity.RoleCategoryBuyer)

	_, err = s.engine.Decide(ctx, first, s.byRole[entity.RoleCategoryBuyer].ID, workflow.ActionApprove, workflow.DecisionPayload{})
	assert.ErrorIs(t, err, domainwf.ErrInvalidState)

	records, err := s.approvals.GetByCostTableID(ctx, ct.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalPending, records[1].Status, "second step activated exactly once")
	assert.Equal(t, entity.ApprovalWaiting, records[2].Status)
}

func TestScenario_ReminderWindow(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()
	ct := s.submit("30000")

	view, err := s.engine.StartWorkflow(ctx, ct.ID)
	require.NoError(t, err)
	first := view.Approvals[0]

	due, err := s.engine.ListOpen(ctx, workflow.FilterNeedsReminder, 0)
	require.NoError(t, err)
	assert.Empty(t, due)

	// category buyer budget is 48h, the reminder window opens 24h before
	s.now = s.now.Add(25 * time.Hour)
	due, err = s.engine.ListOpen(ctx, workflow.FilterNeedsReminder, 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, first.ID, due[0].ID)
	assert.Equal(t, 0, due[0].DaysRemaining)

	require.NoError(t, s.engine.MarkReminded(ctx, first.ID))
	due, err = s.engine.ListOpen(ctx, workflow.FilterNeedsReminder, 0)
	require.NoError(t, err)
	assert.Empty(t, due)

	s.now = s.now.Add(24 * time.Hour)
	overdue, err := s.engine.ListOpen(ctx, workflow.FilterOverdue, 0)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.True(t, overdue[0].IsOverdue)
}
