package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/cost-approval/internal/application/dispatcher"
	"github.com/garyjia/cost-approval/internal/application/workflow"
	"github.com/garyjia/cost-approval/internal/domain/entity"
	"github.com/garyjia/cost-approval/internal/domain/event"
	domainwf "github.com/garyjia/cost-approval/internal/domain/workflow"
)

type mockReminderSource struct {
	mu         sync.Mutex
	due        []*workflow.ApprovalView
	listErr    error
	markErrs   map[int64]error
	marked     []int64
	listCalls  int
	lastFilter workflow.ListFilter
}

func (m *mockReminderSource) ListOpen(ctx context.Context, filter workflow.ListFilter, actorID int64) ([]*workflow.ApprovalView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.due, nil
}

func (m *mockReminderSource) MarkReminded(ctx context.Context, approvalID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.markErrs[approvalID]; err != nil {
		return err
	}
	m.marked = append(m.marked, approvalID)
	return nil
}

func (m *mockReminderSource) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func dueView(id int64) *workflow.ApprovalView {
	return &workflow.ApprovalView{Approval: entity.Approval{
		ID:           id,
		CostTableID:  7,
		ApproverID:   3,
		ApprovalType: entity.ApprovalTypeCommercialManager,
		Status:       entity.ApprovalPending,
		Deadline:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
}

func TestReminderWorker_RunOnce(t *testing.T) {
	source := &mockReminderSource{
		due: []*workflow.ApprovalView{dueView(1), dueView(2), dueView(3)},
		markErrs: map[int64]error{
			2: fmt.Errorf("%w: approval 2 is approved", domainwf.ErrInvalidState),
		},
	}

	d := dispatcher.NewDispatcher()
	var seen []*event.Event
	d.Subscribe(event.TypeReminderDue, func(ctx context.Context, evt *event.Event) error {
		seen = append(seen, evt)
		return nil
	})

	w := NewReminderWorker(source, d, ReminderConfig{}, zap.NewNop())
	marked, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, marked)
	assert.Equal(t, []int64{1, 3}, source.marked)
	assert.Equal(t, workflow.FilterNeedsReminder, source.lastFilter)

	require.Len(t, seen, 3)
	assert.Equal(t, int64(7), seen[0].CostTableID)
	assert.Equal(t, int64(1), seen[0].ApprovalID)
	assert.Equal(t, "commercial_manager", seen[0].Payload[event.KeyApprovalType])
	assert.Equal(t, int64(3), seen[0].Payload["responsible_user_id"])
}

func TestReminderWorker_FailedDeliveryStaysUnmarked(t *testing.T) {
	source := &mockReminderSource{due: []*workflow.ApprovalView{dueView(1), dueView(2)}}

	d := dispatcher.NewDispatcher()
	d.Subscribe(event.TypeReminderDue, func(ctx context.Context, evt *event.Event) error {
		if evt.ApprovalID == 1 {
			return errors.New("lark unavailable")
		}
		return nil
	})

	w := NewReminderWorker(source, d, ReminderConfig{}, zap.NewNop())
	marked, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
	assert.Equal(t, []int64{2}, source.marked)
}

func TestReminderWorker_BatchSize(t *testing.T) {
	source := &mockReminderSource{}
	for i := int64(1); i <= 5; i++ {
		source.due = append(source.due, dueView(i))
	}

	w := NewReminderWorker(source, dispatcher.NewDispatcher(), ReminderConfig{BatchSize: 2}, zap.NewNop())
	marked, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, marked)
	assert.Equal(t, []int64{1, 2}, source.marked)
}

func TestReminderWorker_ListError(t *testing.T) {
	source := &mockReminderSource{listErr: errors.New("db closed")}

	w := NewReminderWorker(source, dispatcher.NewDispatcher(), ReminderConfig{}, zap.NewNop())
	_, err := w.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db closed")
}

func TestReminderWorker_StartStop(t *testing.T) {
	source := &mockReminderSource{}
	w := NewReminderWorker(source, dispatcher.NewDispatcher(), ReminderConfig{PollInterval: 20 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	assert.Error(t, w.Start(ctx), "second start must fail")

	assert.Eventually(t, func() bool { return source.calls() >= 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop())
	assert.False(t, w.isRunning)
	// stopping twice is a no-op
	require.NoError(t, w.Stop())
}

func TestNewReminderWorker_Defaults(t *testing.T) {
	w := NewReminderWorker(&mockReminderSource{}, dispatcher.NewDispatcher(), ReminderConfig{}, zap.NewNop())
	assert.Equal(t, 5*time.Minute, w.pollInterval)
	assert.Equal(t, 100, w.batchSize)
	assert.Equal(t, "ReminderWorker", w.Name())
}
