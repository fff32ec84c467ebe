package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnums(t *testing.T) {
	typ, err := ParseApprovalType("pricing_director")
	require.NoError(t, err)
	assert.Equal(t, ApprovalTypePricingDirector, typ)

	_, err = ParseApprovalType("legal")
	assert.Error(t, err)

	_, err = ParseApprovalStatus("PENDING")
	assert.Error(t, err, "statuses are case sensitive")

	st, err := ParseCostTableStatus("vp_review")
	require.NoError(t, err)
	assert.Equal(t, CostTableVPReview, st)

	_, err = ParseUserRole("auditor")
	assert.Error(t, err)
	role, err := ParseUserRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)
}

func TestApprovalStatus_Predicates(t *testing.T) {
	tests := []struct {
		status     ApprovalStatus
		terminal   bool
		actionable bool
	}{
		{ApprovalWaiting, false, false},
		{ApprovalPending, false, true},
		{ApprovalDelegated, false, true},
		{ApprovalApproved, true, false},
		{ApprovalRejected, true, false},
		{ApprovalCancelled, true, false},
		{ApprovalExpired, true, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.terminal, tt.status.IsTerminal(), "%s terminal", tt.status)
		assert.Equal(t, tt.actionable, tt.status.IsActionable(), "%s actionable", tt.status)
	}
}

func TestCostTableStatus_IsTerminal(t *testing.T) {
	assert.True(t, CostTableApproved.IsTerminal())
	assert.True(t, CostTableRejected.IsTerminal())
	assert.True(t, CostTableExpired.IsTerminal())
	assert.False(t, CostTableSubmitted.IsTerminal())
	assert.False(t, CostTableDirectorReview.IsTerminal())
}

func TestApproval_CanAct(t *testing.T) {
	delegate := int64(9)
	a := &Approval{ApproverID: 3, Status: ApprovalPending}

	assert.True(t, a.CanAct(3))
	assert.False(t, a.CanAct(9))
	assert.Equal(t, int64(3), a.ResponsibleUserID())

	a.Status = ApprovalDelegated
	a.DelegatedTo = &delegate
	assert.True(t, a.CanAct(3))
	assert.True(t, a.CanAct(9))
	assert.False(t, a.CanAct(4))
	assert.Equal(t, int64(9), a.ResponsibleUserID())
}

func TestApproval_DaysRemaining(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	a := &Approval{Deadline: now.Add(50 * time.Hour)}
	assert.Equal(t, 2, a.DaysRemaining(now))

	a.Deadline = now.Add(-50 * time.Hour)
	assert.Equal(t, 0, a.DaysRemaining(now))
}

func TestCostTable_Overdue(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	ct := &CostTable{Deadline: now.Add(-time.Minute)}
	assert.True(t, ct.IsOverdue(now))
	assert.Equal(t, 0, ct.DaysRemaining(now))

	ct.Deadline = time.Time{}
	assert.False(t, ct.IsOverdue(now))
}

func TestUser_Capabilities(t *testing.T) {
	u := &User{ApprovalLimit: decimal.NewFromInt(50_000), Categories: []string{"Packaging", "Logistics"}}

	assert.True(t, u.CanApproveValue(decimal.NewFromInt(50_000)))
	assert.False(t, u.CanApproveValue(decimal.NewFromInt(50_001)))
	assert.True(t, u.CanApproveCategory("packaging"))
	assert.False(t, u.CanApproveCategory("Electronics"))

	u.Categories = nil
	assert.True(t, u.CanApproveCategory("Electronics"))
}
