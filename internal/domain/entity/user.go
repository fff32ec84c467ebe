package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// User is a directory entry with its approval capability
type User struct {
	ID            int64           `json:"id"`
	Username      string          `json:"username"`
	Email         string          `json:"email"`
	FullName      string          `json:"full_name"`
	Role          UserRole        `json:"role"`
	ApprovalLimit decimal.Decimal `json:"approval_limit"`
	CanDelegate   bool            `json:"can_delegate"`
	Categories    []string        `json:"categories,omitempty"`
	IsActive      bool            `json:"is_active"`
	LarkOpenID    string          `json:"lark_open_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DisplayName prefers the full name and falls back to the username
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// CanApproveValue reports whether amount is within the user's approval limit
func (u *User) CanApproveValue(amount decimal.Decimal) bool {
	return amount.LessThanOrEqual(u.ApprovalLimit)
}

// CanApproveCategory reports whether the user may review the category.
// An empty allow-list admits every category.
func (u *User) CanApproveCategory(category string) bool {
	if len(u.Categories) == 0 {
		return true
	}
	for _, c := range u.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}
