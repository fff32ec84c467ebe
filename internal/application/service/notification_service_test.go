package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/cost-approval/internal/application/dispatcher"
	"github.com/garyjia/cost-approval/internal/application/port"
	"github.com/garyjia/cost-approval/internal/domain/entity"
	"github.com/garyjia/cost-approval/internal/domain/event"
)

var now = time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

type notificationFixture struct {
	svc       NotificationService
	sender    *mockMessageSender
	logger    *mockLogger
	approvals *mockApprovalRepo
	tables    *mockCostTableRepo
}

func newNotificationFixture() *notificationFixture {
	delegate := int64(4)
	f := &notificationFixture{
		sender: &mockMessageSender{},
		logger: &mockLogger{},
		tables: &mockCostTableRepo{tables: map[int64]*entity.CostTable{
			10: {
				ID: 10, Category: "Steel", Currency: "USD", SubmittedBy: 1,
				MonthlyImpact: decimal.NewFromInt(42000), Status: entity.CostTablePricingAnalysis,
			},
		}},
		approvals: &mockApprovalRepo{approvals: map[int64]*entity.Approval{
			20: {
				ID: 20, CostTableID: 10, ApproverID: 2, ApprovalType: entity.ApprovalTypePricingAnalyst,
				Status: entity.ApprovalPending, Deadline: now.Add(30 * time.Hour),
			},
			21: {
				ID: 21, CostTableID: 10, ApproverID: 3, ApprovalType: entity.ApprovalTypeCommercialManager,
				Status: entity.ApprovalDelegated, DelegatedTo: &delegate, DelegationReason: "travel",
				Deadline: now.Add(10 * time.Hour),
			},
			22: {
				ID: 22, CostTableID: 10, ApproverID: 5, ApprovalType: entity.ApprovalTypeCommercialDirector,
				Status: entity.ApprovalCancelled, Deadline: now,
			},
		}},
	}
	users := &mockUserRepo{users: map[int64]*entity.User{
		1: {ID: 1, Username: "supplier", LarkOpenID: "ou_supplier"},
		2: {ID: 2, Username: "analyst", LarkOpenID: "ou_analyst"},
		3: {ID: 3, Username: "manager", LarkOpenID: "ou_manager"},
		4: {ID: 4, Username: "deputy", LarkOpenID: "ou_deputy"},
		5: {ID: 5, Username: "director"},
	}}
	clock := port.ClockFunc(func() time.Time { return now })
	f.svc = NewNotificationService(f.tables, f.approvals, users, f.sender, clock, f.logger)
	return f
}

func TestNotificationService_NotifyAssigned(t *testing.T) {
	f := newNotificationFixture()

	require.NoError(t, f.svc.NotifyAssigned(context.Background(), 20))

	sent := f.sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "ou_analyst", sent[0].openID)
	assert.Contains(t, sent[0].content, "Cost table #10")
	assert.Contains(t, sent[0].content, "42000.00 USD")
	assert.Contains(t, sent[0].content, "Pricing Analyst")
}

func TestNotificationService_DelegatedRecordsGoToDelegate(t *testing.T) {
	f := newNotificationFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.NotifyDelegated(ctx, 21))
	require.NoError(t, f.svc.SendReminder(ctx, 21))

	sent := f.sender.messages()
	require.Len(t, sent, 2)
	for _, m := range sent {
		assert.Equal(t, "ou_deputy", m.openID)
	}
	assert.Contains(t, sent[0].content, "travel")
	assert.Contains(t, sent[1].content, "due in 10h0m0s")
}

func TestNotificationService_SkipsClosedRecordsAndUnknownRecipients(t *testing.T) {
	f := newNotificationFixture()
	ctx := context.Background()

	// cancelled record
	require.NoError(t, f.svc.SendReminder(ctx, 22))
	// director has no Lark identity
	f.approvals.approvals[22].Status = entity.ApprovalPending
	require.NoError(t, f.svc.SendReminder(ctx, 22))

	assert.Empty(t, f.sender.messages())
	assert.Contains(t, f.logger.infos, "Recipient has no Lark identity, notification skipped")

	assert.Error(t, f.svc.NotifyAssigned(ctx, 999))
}

func TestNotificationService_NotifyCompleted(t *testing.T) {
	tests := []struct {
		name   string
		status entity.CostTableStatus
		reason string
		want   string
	}{
		{name: "approved", status: entity.CostTableApproved, want: "has been approved"},
		{name: "rejected", status: entity.CostTableRejected, reason: "price too high", want: "Reason: price too high"},
		{name: "expired", status: entity.CostTableExpired, want: "expired without a decision"},
		{name: "still open", status: entity.CostTableVPReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newNotificationFixture()
			f.tables.tables[10].Status = tt.status
			f.tables.tables[10].RejectionReason = tt.reason

			require.NoError(t, f.svc.NotifyCompleted(context.Background(), 10))

			sent := f.sender.messages()
			if tt.want == "" {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			assert.Equal(t, "ou_supplier", sent[0].openID)
			assert.Contains(t, sent[0].content, tt.want)
		})
	}
}

func TestNotificationService_SendFailure(t *testing.T) {
	f := newNotificationFixture()
	f.sender.sendErr = errors.New("lark unavailable")

	err := f.svc.NotifyAssigned(context.Background(), 20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lark unavailable")
	assert.Contains(t, f.logger.errors, "Failed to send notification")
}

func TestNotificationService_Register(t *testing.T) {
	f := newNotificationFixture()
	d := dispatcher.NewDispatcher()
	f.svc.Register(d)

	for _, typ := range []event.Type{
		event.TypeWorkflowStarted,
		event.TypeApprovalApproved,
		event.TypeApprovalDelegated,
		event.TypeCostTableCompleted,
		event.TypeReminderDue,
	} {
		assert.Len(t, d.ListHandlers(typ), 1, typ)
	}

	ctx := context.Background()
	started := event.NewEvent(event.TypeWorkflowStarted, 10, 20, map[string]interface{}{
		event.KeyActivatedID: int64(20),
	})
	require.NoError(t, d.Dispatch(ctx, started))

	// the final approval activates nothing
	final := event.NewEvent(event.TypeApprovalApproved, 10, 21, nil)
	require.NoError(t, d.Dispatch(ctx, final))

	require.NoError(t, d.Dispatch(ctx, event.NewEvent(event.TypeReminderDue, 10, 21, nil)))

	sent := f.sender.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, "ou_analyst", sent[0].openID)
	assert.Equal(t, "ou_deputy", sent[1].openID)
}
