package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostTableReviewWindow is how long a submitted cost table has to clear review
const CostTableReviewWindow = 30 * 24 * time.Hour

// CostTable is a supplier's proposed cost change undergoing review
type CostTable struct {
	ID              int64           `json:"id"`
	SupplierID      int64           `json:"supplier_id"`
	Version         string          `json:"version"`
	Category        string          `json:"category"`
	Currency        string          `json:"currency"`
	Status          CostTableStatus `json:"status"`
	MonthlyImpact   decimal.Decimal `json:"monthly_impact"`
	TotalValue      decimal.Decimal `json:"total_value"`
	SubmittedBy     int64           `json:"submitted_by"`
	SubmittedAt     time.Time       `json:"submitted_at"`
	Deadline        time.Time       `json:"deadline"`
	Comments        string          `json:"comments,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DaysRemaining returns the whole days left before the review deadline, never negative
func (c *CostTable) DaysRemaining(now time.Time) int {
	return daysUntil(c.Deadline, now)
}

// IsOverdue reports whether the review deadline has passed
func (c *CostTable) IsOverdue(now time.Time) bool {
	return !c.Deadline.IsZero() && now.After(c.Deadline)
}

func daysUntil(deadline, now time.Time) int {
	if deadline.IsZero() {
		return 0
	}
	days := int(deadline.Sub(now).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
