package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/cost-approval/internal/domain/entity"
)

type mockCostTableRepo struct {
	tables  map[int64]*entity.CostTable
	created []*entity.CostTable
}

func (m *mockCostTableRepo) Create(ctx context.Context, ct *entity.CostTable) error {
	ct.ID = int64(len(m.created) + 100)
	m.created = append(m.created, ct)
	return nil
}

func (m *mockCostTableRepo) GetByID(ctx context.Context, id int64) (*entity.CostTable, error) {
	return m.tables[id], nil
}

func (m *mockCostTableRepo) UpdateStatus(ctx context.Context, id int64, expected, status entity.CostTableStatus) error {
	return nil
}

func (m *mockCostTableRepo) SetRejected(ctx context.Context, id int64, expected entity.CostTableStatus, reason string) error {
	return nil
}

func (m *mockCostTableRepo) List(ctx context.Context, limit, offset int) ([]*entity.CostTable, error) {
	return nil, fmt.Errorf("list called with limit=%d offset=%d", limit, offset)
}

type mockApprovalRepo struct {
	approvals map[int64]*entity.Approval
}

func (m *mockApprovalRepo) CreateBatch(ctx context.Context, approvals []*entity.Approval) error {
	return nil
}

func (m *mockApprovalRepo) GetByID(ctx context.Context, id int64) (*entity.Approval, error) {
	return m.approvals[id], nil
}

func (m *mockApprovalRepo) GetByCostTableID(ctx context.Context, costTableID int64) ([]*entity.Approval, error) {
	return nil, nil
}

func (m *mockApprovalRepo) CountByCostTableID(ctx context.Context, costTableID int64) (int, error) {
	return 0, nil
}

func (m *mockApprovalRepo) UpdateIfStatus(ctx context.Context, a *entity.Approval, expected entity.ApprovalStatus) error {
	return nil
}

func (m *mockApprovalRepo) CancelOpen(ctx context.Context, costTableID, exceptID int64, at time.Time) (int64, error) {
	return 0, nil
}

func (m *mockApprovalRepo) ListActionable(ctx context.Context) ([]*entity.Approval, error) {
	return nil, nil
}

func (m *mockApprovalRepo) ListActionableForUser(ctx context.Context, userID int64) ([]*entity.Approval, error) {
	return nil, nil
}

func (m *mockApprovalRepo) ListOverdue(ctx context.Context, now time.Time) ([]*entity.Approval, error) {
	return nil, nil
}

func (m *mockApprovalRepo) MarkReminded(ctx context.Context, id int64, at time.Time) (bool, error) {
	return true, nil
}

type mockUserRepo struct {
	users     map[int64]*entity.User
	createErr error
	created   []*entity.User
}

func (m *mockUserRepo) Create(ctx context.Context, user *entity.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = int64(len(m.created) + 1)
	m.created = append(m.created, user)
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]*entity.User, error) {
	out := make(map[int64]*entity.User)
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (m *mockUserRepo) FindActiveByRole(ctx context.Context, role entity.UserRole) ([]*entity.User, error) {
	return nil, nil
}

type sentMessage struct {
	openID  string
	content string
}

type mockMessageSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	sendErr error
}

func (m *mockMessageSender) SendMessage(ctx context.Context, openID string, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMessage{openID: openID, content: content})
	return nil
}

func (m *mockMessageSender) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (l *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}
