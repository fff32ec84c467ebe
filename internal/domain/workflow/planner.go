package workflow

import (
	"github.com/shopspring/decimal"

	"github.com/garyjia/cost-approval/internal/domain/entity"
)

// Impact thresholds, inclusive upper bounds
var (
	ManagerLimit  = decimal.NewFromInt(50_000)
	DirectorLimit = decimal.NewFromInt(200_000)
	VPLimit       = decimal.NewFromInt(500_000)
)

// Step is one planned approval
type Step struct {
	Type     entity.ApprovalType `json:"approval_type"`
	Sequence int                 `json:"sequence_order"`
}

// LevelOf buckets a monthly impact into an impact level
func LevelOf(monthlyImpact decimal.Decimal) entity.ImpactLevel {
	switch {
	case monthlyImpact.LessThanOrEqual(ManagerLimit):
		return entity.ImpactManager
	case monthlyImpact.LessThanOrEqual(DirectorLimit):
		return entity.ImpactDirector
	case monthlyImpact.LessThanOrEqual(VPLimit):
		return entity.ImpactVP
	default:
		return entity.ImpactFullChain
	}
}

// Plan returns the ordered approval steps required for level.
// Higher levels always extend the chain of lower ones.
func Plan(level entity.ImpactLevel) []Step {
	types := []entity.ApprovalType{
		entity.ApprovalTypeCategoryBuyer,
		entity.ApprovalTypePricingAnalyst,
		entity.ApprovalTypeCommercialManager,
	}

	if level == entity.ImpactDirector || level == entity.ImpactVP || level == entity.ImpactFullChain {
		types = append(types, entity.ApprovalTypeCommercialDirector, entity.ApprovalTypePricingDirector)
	}
	if level == entity.ImpactVP || level == entity.ImpactFullChain {
		types = append(types, entity.ApprovalTypeVPCommercial)
	}

	steps := make([]Step, len(types))
	for i, t := range types {
		steps[i] = Step{Type: t, Sequence: i + 1}
	}
	return steps
}

var statusAfter = map[entity.ApprovalType]entity.CostTableStatus{
	entity.ApprovalTypeCategoryBuyer:      entity.CostTablePricingAnalysis,
	entity.ApprovalTypePricingAnalyst:     entity.CostTableCommercialReview,
	entity.ApprovalTypeCommercialManager:  entity.CostTableDirectorReview,
	entity.ApprovalTypeCommercialDirector: entity.CostTableDirectorReview,
	entity.ApprovalTypePricingDirector:    entity.CostTableVPReview,
	entity.ApprovalTypeVPCommercial:       entity.CostTableApproved,
}

// StatusAfter returns the cost table status once a step of type t is approved.
// last marks the final step of the chain, which always yields approved.
func StatusAfter(t entity.ApprovalType, last bool) entity.CostTableStatus {
	if last {
		return entity.CostTableApproved
	}
	if s, ok := statusAfter[t]; ok {
		return s
	}
	return entity.CostTableUnderReview
}
