package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/cost-approval/internal/application/dispatcher"
	"github.com/garyjia/cost-approval/internal/domain/entity"
	"github.com/garyjia/cost-approval/internal/domain/event"
	domainwf "github.com/garyjia/cost-approval/internal/domain/workflow"
)

// Mock implementations. The store keeps copies so callers can never mutate
// stored rows without going through a repository method.

type memStore struct {
	mu         sync.Mutex
	costTables map[int64]*entity.CostTable
	approvals  map[int64]*entity.Approval
	users      map[int64]*entity.User
	history    []*entity.WorkflowHistory
	nextID     int64

	// error injection
	createBatchErr error
	historyErr     error
}

func newMemStore() *memStore {
	return &memStore{
		costTables: make(map[int64]*entity.CostTable),
		approvals:  make(map[int64]*entity.Approval),
		users:      make(map[int64]*entity.User),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

// cost tables

type memCostTables struct{ s *memStore }

func (r memCostTables) Create(ctx context.Context, ct *entity.CostTable) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ct.ID = r.s.id()
	c := *ct
	r.s.costTables[ct.ID] = &c
	return nil
}

func (r memCostTables) GetByID(ctx context.Context, id int64) (*entity.CostTable, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ct, ok := r.s.costTables[id]
	if !ok {
		return nil, nil
	}
	c := *ct
	return &c, nil
}

func (r memCostTables) UpdateStatus(ctx context.Context, id int64, expected, status entity.CostTableStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ct, ok := r.s.costTables[id]
	if !ok || ct.Status != expected {
		return domainwf.ErrInvalidState
	}
	ct.Status = status
	return nil
}

func (r memCostTables) SetRejected(ctx context.Context, id int64, expected entity.CostTableStatus, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ct, ok := r.s.costTables[id]
	if !ok || ct.Status != expected {
		return domainwf.ErrInvalidState
	}
	ct.Status = entity.CostTableRejected
	ct.RejectionReason = reason
	return nil
}

func (r memCostTables) List(ctx context.Context, limit, offset int) ([]*entity.CostTable, error) {
	return nil, nil
}

// approvals

type memApprovals struct{ s *memStore }

func (r memApprovals) CreateBatch(ctx context.Context, approvals []*entity.Approval) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createBatchErr != nil {
		return r.s.createBatchErr
	}
	for _, a := range approvals {
		a.ID = r.s.id()
		r.s.approvals[a.ID] = a.Clone()
	}
	return nil
}

func (r memApprovals) GetByID(ctx context.Context, id int64) (*entity.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.approvals[id]
	if !ok {
		return nil, nil
	}
	return a.Clone(), nil
}

func (r memApprovals) GetByCostTableID(ctx context.Context, costTableID int64) ([]*entity.Approval, error) {
	return r.filter(func(a *entity.Approval) bool { return a.CostTableID == costTableID }, func(a, b *entity.Approval) bool {
		return a.SequenceOrder < b.SequenceOrder
	}), nil
}

func (r memApprovals) CountByCostTableID(ctx context.Context, costTableID int64) (int, error) {
	list, _ := r.GetByCostTableID(ctx, costTableID)
	return len(list), nil
}

func (r memApprovals) UpdateIfStatus(ctx context.Context, a *entity.Approval, expected entity.ApprovalStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.approvals[a.ID]
	if !ok || stored.Status != expected {
		return domainwf.ErrInvalidState
	}
	r.s.approvals[a.ID] = a.Clone()
	return nil
}

func (r memApprovals) CancelOpen(ctx context.Context, costTableID, exceptID int64, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, a := range r.s.approvals {
		if a.CostTableID == costTableID && a.ID != exceptID && !a.Status.IsTerminal() {
			a.Status = entity.ApprovalCancelled
			a.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (r memApprovals) ListActionable(ctx context.Context) ([]*entity.Approval, error) {
	return r.filter(func(a *entity.Approval) bool { return a.Status.IsActionable() }, byDeadline), nil
}

func (r memApprovals) ListActionableForUser(ctx context.Context, userID int64) ([]*entity.Approval, error) {
	return r.filter(func(a *entity.Approval) bool { return a.Status.IsActionable() && a.CanAct(userID) }, byDeadline), nil
}

func (r memApprovals) ListOverdue(ctx context.Context, now time.Time) ([]*entity.Approval, error) {
	return r.filter(func(a *entity.Approval) bool { return a.Status.IsActionable() && now.After(a.Deadline) }, byDeadline), nil
}

func (r memApprovals) MarkReminded(ctx context.Context, id int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.approvals[id]
	if !ok || !a.Status.IsActionable() {
		return false, nil
	}
	a.RemindedAt = &at
	return true, nil
}

func (r memApprovals) filter(keep func(*entity.Approval) bool, less func(a, b *entity.Approval) bool) []*entity.Approval {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Approval
	for _, a := range r.s.approvals {
		if keep(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func byDeadline(a, b *entity.Approval) bool {
	if a.Deadline.Equal(b.Deadline) {
		return a.ID < b.ID
	}
	return a.Deadline.Before(b.Deadline)
}

// users

type memUsers struct{ s *memStore }

func (r memUsers) Create(ctx context.Context, u *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u.ID = r.s.id()
	c := *u
	r.s.users[u.ID] = &c
	return nil
}

func (r memUsers) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (r memUsers) GetByIDs(ctx context.Context, ids []int64) (map[int64]*entity.User, error) {
	out := make(map[int64]*entity.User)
	for _, id := range ids {
		if u, _ := r.GetByID(ctx, id); u != nil {
			out[id] = u
		}
	}
	return out, nil
}

func (r memUsers) FindActiveByRole(ctx context.Context, role entity.UserRole) ([]*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.User
	for _, u := range r.s.users {
		if u.Role == role && u.IsActive {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// history

type memHistory struct{ s *memStore }

func (r memHistory) Create(ctx context.Context, h *entity.WorkflowHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.historyErr != nil {
		return r.s.historyErr
	}
	h.ID = r.s.id()
	r.s.history = append(r.s.history, h)
	return nil
}

func (r memHistory) GetByCostTableID(ctx context.Context, costTableID int64) ([]*entity.WorkflowHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.WorkflowHistory
	for _, h := range r.s.history {
		if h.CostTableID == costTableID {
			out = append(out, h)
		}
	}
	return out, nil
}

// passTxManager runs fn directly; rollback is covered by the SQLite scenarios
type passTxManager struct{}

func (passTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *mockDispatcher) Close() error {
	return nil
}

func (m *mockDispatcher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Type, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

// fakeClock is a settable clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixture wires an orchestrator over a memStore with one approver per role

type fixture struct {
	store      *memStore
	clock      *fakeClock
	dispatcher *mockDispatcher
	engine     Orchestrator

	supplier  *entity.User
	admin     *entity.User
	approvers map[entity.ApprovalType]*entity.User
}

func newFixture() *fixture {
	f := &fixture{
		store:      newMemStore(),
		clock:      &fakeClock{now: time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)},
		dispatcher: &mockDispatcher{},
		approvers:  make(map[entity.ApprovalType]*entity.User),
	}

	users := memUsers{f.store}
	f.supplier = f.addUser(entity.RoleSupplier, "supplier")
	f.admin = f.addUser(entity.RoleAdmin, "admin")
	for _, t := range []entity.ApprovalType{
		entity.ApprovalTypeCategoryBuyer,
		entity.ApprovalTypePricingAnalyst,
		entity.ApprovalTypeCommercialManager,
		entity.ApprovalTypeCommercialDirector,
		entity.ApprovalTypePricingDirector,
		entity.ApprovalTypeVPCommercial,
	} {
		f.approvers[t] = f.addUser(t.Role(), string(t))
	}

	f.engine = NewEngine(
		memCostTables{f.store},
		memApprovals{f.store},
		users,
		memHistory{f.store},
		passTxManager{},
		WithClock(f.clock),
		WithDispatcher(f.dispatcher),
	)
	return f
}

func (f *fixture) addUser(role entity.UserRole, name string) *entity.User {
	u := &entity.User{
		Username:      name,
		Email:         name + "@example.com",
		Role:          role,
		ApprovalLimit: decimal.NewFromInt(1_000_000),
		CanDelegate:   true,
		IsActive:      true,
	}
	_ = memUsers{f.store}.Create(context.Background(), u)
	return u
}

func (f *fixture) addCostTable(impact int64) *entity.CostTable {
	ct := &entity.CostTable{
		SupplierID:    1,
		Version:       "v1",
		Category:      "Packaging",
		Currency:      "USD",
		Status:        entity.CostTableSubmitted,
		MonthlyImpact: decimal.NewFromInt(impact),
		TotalValue:    decimal.NewFromInt(impact * 12),
		SubmittedBy:   f.supplier.ID,
		SubmittedAt:   f.clock.Now(),
		Deadline:      f.clock.Now().Add(entity.CostTableReviewWindow),
	}
	_ = memCostTables{f.store}.Create(context.Background(), ct)
	return ct
}

func (f *fixture) costTable(id int64) *entity.CostTable {
	ct, _ := memCostTables{f.store}.GetByID(context.Background(), id)
	return ct
}

func (f *fixture) approval(id int64) *entity.Approval {
	a, _ := memApprovals{f.store}.GetByID(context.Background(), id)
	return a
}
