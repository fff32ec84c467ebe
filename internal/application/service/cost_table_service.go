package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/cost-approval/internal/application/port"
	"github.com/garyjia/cost-approval/internal/domain/entity"
	domainwf "github.com/garyjia/cost-approval/internal/domain/workflow"
	"github.com/garyjia/cost-approval/pkg/utils"
)

// CreateCostTableInput is the data needed to submit a cost table
type CreateCostTableInput struct {
	SupplierID    int64           `json:"supplier_id"`
	Version       string          `json:"version"`
	Category      string          `json:"category"`
	Currency      string          `json:"currency"`
	MonthlyImpact decimal.Decimal `json:"monthly_impact"`
	TotalValue    decimal.Decimal `json:"total_value"`
	Comments      string          `json:"comments"`
}

// CostTableService creates and reads cost tables
type CostTableService interface {
	Submit(ctx context.Context, submittedBy int64, input CreateCostTableInput) (*entity.CostTable, error)
	Get(ctx context.Context, id int64) (*entity.CostTable, error)
	List(ctx context.Context, limit, offset int) ([]*entity.CostTable, error)
}

type costTableServiceImpl struct {
	costTables port.CostTableRepository
	users      port.UserRepository
	clock      port.Clock
	logger     Logger
}

// NewCostTableService creates a new CostTableService
func NewCostTableService(costTables port.CostTableRepository, users port.UserRepository, clock port.Clock, logger Logger) CostTableService {
	if clock == nil {
		clock = port.SystemClock{}
	}
	return &costTableServiceImpl{
		costTables: costTables,
		users:      users,
		clock:      clock,
		logger:     logger,
	}
}

// Submit stores a new cost table in the submitted state
func (s *costTableServiceImpl) Submit(ctx context.Context, submittedBy int64, input CreateCostTableInput) (*entity.CostTable, error) {
	submitter, err := s.users.GetByID(ctx, submittedBy)
	if err != nil {
		return nil, fmt.Errorf("get submitter: %w", err)
	}
	if submitter == nil || !submitter.IsActive {
		return nil, fmt.Errorf("%w: submitter %d is not an active user", domainwf.ErrValidation, submittedBy)
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}
	if err := utils.ValidateCurrency(currency); err != nil {
		return nil, fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}
	if err := utils.ValidateNonNegative("monthly_impact", input.MonthlyImpact); err != nil {
		return nil, fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}
	if err := utils.ValidateNonNegative("total_value", input.TotalValue); err != nil {
		return nil, fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}

	category := utils.SanitizeString(strings.TrimSpace(input.Category))
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", domainwf.ErrValidation)
	}

	supplierID := input.SupplierID
	if supplierID == 0 {
		supplierID = submittedBy
	}

	now := s.clock.Now()
	ct := &entity.CostTable{
		SupplierID:    supplierID,
		Version:       utils.SanitizeString(input.Version),
		Category:      category,
		Currency:      currency,
		Status:        entity.CostTableSubmitted,
		MonthlyImpact: input.MonthlyImpact,
		TotalValue:    input.TotalValue,
		SubmittedBy:   submittedBy,
		SubmittedAt:   now,
		Deadline:      now.Add(entity.CostTableReviewWindow),
		Comments:      utils.SanitizeString(input.Comments),
	}
	if err := s.costTables.Create(ctx, ct); err != nil {
		s.logger.Error("Failed to create cost table", "error", err, "submitted_by", submittedBy)
		return nil, fmt.Errorf("create cost table: %w", err)
	}

	s.logger.Info("Cost table submitted",
		"cost_table_id", ct.ID,
		"category", ct.Category,
		"monthly_impact", ct.MonthlyImpact.String(),
	)
	return ct, nil
}

// Get returns a cost table or NotFound
func (s *costTableServiceImpl) Get(ctx context.Context, id int64) (*entity.CostTable, error) {
	ct, err := s.costTables.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get cost table: %w", err)
	}
	if ct == nil {
		return nil, fmt.Errorf("%w: cost table %d", domainwf.ErrNotFound, id)
	}
	return ct, nil
}

// List returns cost tables newest first
func (s *costTableServiceImpl) List(ctx context.Context, limit, offset int) ([]*entity.CostTable, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.costTables.List(ctx, limit, offset)
}
