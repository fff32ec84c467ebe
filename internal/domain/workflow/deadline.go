package workflow

import (
	"time"

	"github.com/garyjia/cost-approval/internal/domain/entity"
)

const day = 24 * time.Hour

// DefaultBudget applies to approval types without an explicit budget
const DefaultBudget = 3 * day

// ReminderLead is how long before the deadline a reminder becomes due
const ReminderLead = 24 * time.Hour

var budgets = map[entity.ApprovalType]time.Duration{
	entity.ApprovalTypeCategoryBuyer:      2 * day,
	entity.ApprovalTypePricingAnalyst:     5 * day,
	entity.ApprovalTypeCommercialManager:  3 * day,
	entity.ApprovalTypeCommercialDirector: 5 * day,
	entity.ApprovalTypePricingDirector:    5 * day,
	entity.ApprovalTypeVPCommercial:       7 * day,
}

// BudgetFor returns the response time allowed for an approval type
func BudgetFor(t entity.ApprovalType) time.Duration {
	if b, ok := budgets[t]; ok {
		return b
	}
	return DefaultBudget
}

// DeadlineFor returns the absolute deadline of a record assigned at assignedAt
func DeadlineFor(t entity.ApprovalType, assignedAt time.Time) time.Time {
	return assignedAt.Add(BudgetFor(t))
}

// IsOverdue reports whether now is past the record's deadline
func IsOverdue(a *entity.Approval, now time.Time) bool {
	return now.After(a.Deadline)
}

// ReminderBoundary is the start of the reminder window for a record
func ReminderBoundary(a *entity.Approval) time.Time {
	return a.Deadline.Add(-ReminderLead)
}

// NeedsReminder reports whether an open record entered its reminder window
// without having been reminded inside that window. A mark taken at or after
// the boundary silences the record for the rest of its life, since the
// deadline is never recomputed.
func NeedsReminder(a *entity.Approval, now time.Time) bool {
	if !a.Status.IsActionable() {
		return false
	}
	boundary := ReminderBoundary(a)
	if now.Before(boundary) {
		return false
	}
	return a.RemindedAt == nil || a.RemindedAt.Before(boundary)
}
