package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type userAdminRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error
}

type roleAdminRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.UserRole, error)
	Replace(ctx context.Context, userID string, role models.UserRole) error
}

// UserService provides administrative user management.
type UserService struct {
	users     userAdminRepository
	roles     roleAdminRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the user service.
func NewUserService(users userAdminRepository, roles roleAdminRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, roles: roles, validator: validate, logger: logger}
}

// List returns users with their effective role resolved from the role rows.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.UserWithRole, *models.Pagination, error) {
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	result := make([]models.UserWithRole, 0, len(users))
	for _, user := range users {
		roles, err := s.roles.ListByUser(ctx, user.ID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve roles")
		}
		result = append(result, models.UserWithRole{User: user, Role: models.EffectiveRole(roles)})
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	return result, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a single user with their effective role.
func (s *UserService) Get(ctx context.Context, id string) (*models.UserWithRole, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	roles, err := s.roles.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve roles")
	}

	return &models.UserWithRole{User: *user, Role: models.EffectiveRole(roles)}, nil
}

// SetRoleRequest is the role replacement payload.
type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin user"`
}

// SetRole replaces the target user's role set with the single given role.
func (s *UserService) SetRole(ctx context.Context, actorID, targetID string, req SetRoleRequest) (*models.UserWithRole, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role payload")
	}

	if _, err := s.users.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	role := models.UserRole(req.Role)
	if err := s.roles.Replace(ctx, targetID, role); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role")
	}

	s.logger.Info("role updated",
		zap.String("actor_id", actorID),
		zap.String("target_id", targetID),
		zap.String("role", string(role)),
	)

	return s.Get(ctx, targetID)
}

// SetActive toggles the target account's active flag.
func (s *UserService) SetActive(ctx context.Context, actorID, targetID string, active bool) error {
	if _, err := s.users.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := s.users.SetActive(ctx, targetID, active, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account")
	}

	s.logger.Info("account toggled",
		zap.String("actor_id", actorID),
		zap.String("target_id", targetID),
		zap.Bool("active", active),
	)
	return nil
}
