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

// CreateUserInput is the data needed to register a directory user
type CreateUserInput struct {
	Username      string          `json:"username"`
	Email         string          `json:"email"`
	FullName      string          `json:"full_name"`
	Role          string          `json:"role"`
	ApprovalLimit decimal.Decimal `json:"approval_limit"`
	CanDelegate   bool            `json:"can_delegate"`
	Categories    []string        `json:"categories"`
	LarkOpenID    string          `json:"lark_open_id"`
}

// UserService manages the approver directory
type UserService interface {
	Create(ctx context.Context, input CreateUserInput) (*entity.User, error)
	Get(ctx context.Context, id int64) (*entity.User, error)
}

type userServiceImpl struct {
	users  port.UserRepository
	logger Logger
}

// NewUserService creates a new UserService
func NewUserService(users port.UserRepository, logger Logger) UserService {
	return &userServiceImpl{users: users, logger: logger}
}

// Create validates and stores an active user
func (s *userServiceImpl) Create(ctx context.Context, input CreateUserInput) (*entity.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domainwf.ErrValidation)
	}
	if err := utils.ValidateEmail(input.Email); err != nil {
		return nil, fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}
	role, err := entity.ParseUserRole(input.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}
	if err := utils.ValidateNonNegative("approval_limit", input.ApprovalLimit); err != nil {
		return nil, fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}

	categories := make([]string, 0, len(input.Categories))
	for _, c := range input.Categories {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}

	user := &entity.User{
		Username:      username,
		Email:         input.Email,
		FullName:      utils.SanitizeString(input.FullName),
		Role:          role,
		ApprovalLimit: input.ApprovalLimit,
		CanDelegate:   input.CanDelegate,
		Categories:    categories,
		IsActive:      true,
		LarkOpenID:    strings.TrimSpace(input.LarkOpenID),
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Error("Failed to create user", "error", err, "username", username)
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("User created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Get returns a user or NotFound
func (s *userServiceImpl) Get(ctx context.Context, id int64) (*entity.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", domainwf.ErrNotFound, id)
	}
	return user, nil
}
