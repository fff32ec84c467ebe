package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/cost-approval/internal/application/port"
	"github.com/garyjia/cost-approval/internal/domain/entity"
	domainwf "github.com/garyjia/cost-approval/internal/domain/workflow"
)

// Monitor scans open approval records for overdue items and due reminders.
// It never changes a record's status.
type Monitor struct {
	approvals port.ApprovalRepository
	clock     port.Clock
}

// NewMonitor creates a deadline monitor
func NewMonitor(approvals port.ApprovalRepository, clock port.Clock) *Monitor {
	if clock == nil {
		clock = port.SystemClock{}
	}
	return &Monitor{approvals: approvals, clock: clock}
}

// IsOverdue reports whether a is past its deadline now
func (m *Monitor) IsOverdue(a *entity.Approval) bool {
	return domainwf.IsOverdue(a, m.clock.Now())
}

// NeedsReminder reports whether a reminder is due for a now
func (m *Monitor) NeedsReminder(a *entity.Approval) bool {
	return domainwf.NeedsReminder(a, m.clock.Now())
}

// Overdue returns open records past their deadline, earliest deadline first
func (m *Monitor) Overdue(ctx context.Context) ([]*entity.Approval, error) {
	return m.approvals.ListOverdue(ctx, m.clock.Now())
}

// ReminderCandidates returns open records whose reminder is due
func (m *Monitor) ReminderCandidates(ctx context.Context) ([]*entity.Approval, error) {
	open, err := m.approvals.ListActionable(ctx)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	due := make([]*entity.Approval, 0, len(open))
	for _, a := range open {
		if domainwf.NeedsReminder(a, now) {
			due = append(due, a)
		}
	}
	return due, nil
}

// MarkReminded stamps reminded_at on a record that is still open. A record
// that was decided in the meantime is reported as InvalidState.
func (m *Monitor) MarkReminded(ctx context.Context, approvalID int64) error {
	updated, err := m.approvals.MarkReminded(ctx, approvalID, m.clock.Now())
	if err != nil {
		return err
	}
	if updated {
		return nil
	}

	a, err := m.approvals.GetByID(ctx, approvalID)
	if err != nil {
		return err
	}
	if a == nil {
		return fmt.Errorf("%w: approval %d", domainwf.ErrNotFound, approvalID)
	}
	return fmt.Errorf("%w: approval %d is %s", domainwf.ErrInvalidState, approvalID, a.Status)
}
