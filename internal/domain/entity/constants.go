package entity

import "fmt"

// ApprovalType is the role category that owns one step of a workflow
type ApprovalType string

const (
	ApprovalTypeCategoryBuyer      ApprovalType = "category_buyer"
	ApprovalTypePricingAnalyst     ApprovalType = "pricing_analyst"
	ApprovalTypeCommercialManager  ApprovalType = "commercial_manager"
	ApprovalTypeCommercialDirector ApprovalType = "commercial_director"
	ApprovalTypePricingDirector    ApprovalType = "pricing_director"
	ApprovalTypeVPCommercial       ApprovalType = "vp_commercial"
)

var approvalTypeNames = map[ApprovalType]string{
	ApprovalTypeCategoryBuyer:      "Category Buyer",
	ApprovalTypePricingAnalyst:     "Pricing Analyst",
	ApprovalTypeCommercialManager:  "Commercial Manager",
	ApprovalTypeCommercialDirector: "Commercial Director",
	ApprovalTypePricingDirector:    "Pricing Director",
	ApprovalTypeVPCommercial:       "VP Commercial",
}

// IsValid reports whether t is one of the known approval types
func (t ApprovalType) IsValid() bool {
	_, ok := approvalTypeNames[t]
	return ok
}

// DisplayName returns the human readable label for the approval type
func (t ApprovalType) DisplayName() string {
	if name, ok := approvalTypeNames[t]; ok {
		return name
	}
	return string(t)
}

func (t ApprovalType) String() string {
	return string(t)
}

// Role returns the user role that is allowed to own steps of this type
func (t ApprovalType) Role() UserRole {
	return UserRole(t)
}

// ParseApprovalType converts a raw value into an ApprovalType
func ParseApprovalType(s string) (ApprovalType, error) {
	t := ApprovalType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown approval type: %q", s)
	}
	return t, nil
}

// ApprovalStatus is the lifecycle state of a single approval record
type ApprovalStatus string

const (
	ApprovalWaiting   ApprovalStatus = "waiting"
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalDelegated ApprovalStatus = "delegated"
	ApprovalCancelled ApprovalStatus = "cancelled"
	ApprovalExpired   ApprovalStatus = "expired"
)

var validApprovalStatuses = map[ApprovalStatus]bool{
	ApprovalWaiting:   true,
	ApprovalPending:   true,
	ApprovalApproved:  true,
	ApprovalRejected:  true,
	ApprovalDelegated: true,
	ApprovalCancelled: true,
	ApprovalExpired:   true,
}

// IsValid reports whether s is a known approval status
func (s ApprovalStatus) IsValid() bool {
	return validApprovalStatuses[s]
}

// IsTerminal reports whether no further transition can leave s
func (s ApprovalStatus) IsTerminal() bool {
	switch s {
	case ApprovalApproved, ApprovalRejected, ApprovalCancelled, ApprovalExpired:
		return true
	}
	return false
}

// IsActionable reports whether a decision can currently be recorded.
// Delegated records stay actionable for both the approver and the delegate.
func (s ApprovalStatus) IsActionable() bool {
	return s == ApprovalPending || s == ApprovalDelegated
}

func (s ApprovalStatus) String() string {
	return string(s)
}

// ParseApprovalStatus converts a raw value into an ApprovalStatus
func ParseApprovalStatus(s string) (ApprovalStatus, error) {
	st := ApprovalStatus(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown approval status: %q", s)
	}
	return st, nil
}

// CostTableStatus is the externally visible state of a cost table
type CostTableStatus string

const (
	CostTableSubmitted        CostTableStatus = "submitted"
	CostTableUnderReview      CostTableStatus = "under_review"
	CostTablePricingAnalysis  CostTableStatus = "pricing_analysis"
	CostTableCommercialReview CostTableStatus = "commercial_review"
	CostTableDirectorReview   CostTableStatus = "director_review"
	CostTableVPReview         CostTableStatus = "vp_review"
	CostTableApproved         CostTableStatus = "approved"
	CostTableRejected         CostTableStatus = "rejected"
	CostTableExpired          CostTableStatus = "expired"
)

var validCostTableStatuses = map[CostTableStatus]bool{
	CostTableSubmitted:        true,
	CostTableUnderReview:      true,
	CostTablePricingAnalysis:  true,
	CostTableCommercialReview: true,
	CostTableDirectorReview:   true,
	CostTableVPReview:         true,
	CostTableApproved:         true,
	CostTableRejected:         true,
	CostTableExpired:          true,
}

// IsValid reports whether s is a known cost table status
func (s CostTableStatus) IsValid() bool {
	return validCostTableStatuses[s]
}

// IsTerminal reports whether the cost table has left review for good
func (s CostTableStatus) IsTerminal() bool {
	return s == CostTableApproved || s == CostTableRejected || s == CostTableExpired
}

func (s CostTableStatus) String() string {
	return string(s)
}

// ParseCostTableStatus converts a raw value into a CostTableStatus
func ParseCostTableStatus(s string) (CostTableStatus, error) {
	st := CostTableStatus(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown cost table status: %q", s)
	}
	return st, nil
}

// ImpactLevel buckets the monthly impact of a cost table
type ImpactLevel string

const (
	ImpactManager   ImpactLevel = "manager"
	ImpactDirector  ImpactLevel = "director"
	ImpactVP        ImpactLevel = "vp"
	ImpactFullChain ImpactLevel = "full_chain"
)

// IsValid reports whether l is a known impact level
func (l ImpactLevel) IsValid() bool {
	switch l {
	case ImpactManager, ImpactDirector, ImpactVP, ImpactFullChain:
		return true
	}
	return false
}

// UserRole is the directory role of a user
type UserRole string

const (
	RoleSupplier           UserRole = "supplier"
	RoleCategoryBuyer      UserRole = "category_buyer"
	RolePricingAnalyst     UserRole = "pricing_analyst"
	RoleCommercialManager  UserRole = "commercial_manager"
	RoleCommercialDirector UserRole = "commercial_director"
	RolePricingDirector    UserRole = "pricing_director"
	RoleVPCommercial       UserRole = "vp_commercial"
	RoleAdmin              UserRole = "admin"
)

// IsValid reports whether r is a known user role
func (r UserRole) IsValid() bool {
	if r == RoleSupplier || r == RoleAdmin {
		return true
	}
	return ApprovalType(r).IsValid()
}

// DisplayName returns the human readable label for the role
func (r UserRole) DisplayName() string {
	switch r {
	case RoleSupplier:
		return "Supplier"
	case RoleAdmin:
		return "Administrator"
	}
	return ApprovalType(r).DisplayName()
}

// ParseUserRole converts a raw value into a UserRole
func ParseUserRole(s string) (UserRole, error) {
	r := UserRole(s)
	if !r.IsValid() {
		return "", fmt.Errorf("unknown user role: %q", s)
	}
	return r, nil
}

// History action constants
const (
	HistoryActionStart    = "START"
	HistoryActionActivate = "ACTIVATE"
	HistoryActionApprove  = "APPROVE"
	HistoryActionReject   = "REJECT"
	HistoryActionDelegate = "DELEGATE"
	HistoryActionCancel   = "CANCEL"
	HistoryActionExpire   = "EXPIRE"
)
