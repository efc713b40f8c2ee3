package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "festival/internal/errors"
	"festival/internal/external"
	"festival/internal/logger"
	"festival/internal/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

var (
	errInvalidPhone    = errors.New("phone number is not valid")
	errEmptyName       = errors.New("name must not be empty")
	errRevokeOwnAdmin  = errors.New("admins cannot revoke their own admin role")
	errInvalidPageSize = errors.New("limit must be between 1 and 200")
)

type userStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Update(ctx context.Context, user *models.User) (bool, error)
	List(ctx context.Context, limit, offset int) ([]models.AdminUser, error)
	GrantRole(ctx context.Context, userID int64, role string) error
	RevokeRole(ctx context.Context, userID int64, role string) (bool, error)
}

// UserService - профиль посетителя и управление ролями в админке
type UserService struct {
	users userStore
}

func NewUserService(users userStore) *UserService {
	return &UserService{users: users}
}

// UpdateProfile меняет только переданные поля. Телефон хранится в E.164,
// пустая строка удаляет телефон и отключает уведомления.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, req *models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, apperrors.ErrNotFound
	}

	if req.FirstName != nil {
		name := strings.TrimSpace(*req.FirstName)
		if name == "" {
			return nil, apperrors.Invalid(errEmptyName)
		}
		user.FirstName = name
	}
	if req.LastName != nil {
		name := strings.TrimSpace(*req.LastName)
		if name == "" {
			return nil, apperrors.Invalid(errEmptyName)
		}
		user.LastName = name
	}
	if req.Phone != nil {
		phone, err := normalizeOptionalPhone(*req.Phone)
		if err != nil {
			return nil, err
		}
		user.Phone = phone
	}

	ok, err := s.users.Update(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	logger.WithContext(ctx).Info("Profile updated", "user_id", userID)
	return user, nil
}

func normalizeOptionalPhone(raw string) (*string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	phone := external.NormalizePhone(raw)
	if phone == "" {
		return nil, apperrors.Invalid(errInvalidPhone)
	}
	return &phone, nil
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]models.AdminUser, error) {
	limit, offset, err := page(limit, offset)
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// SetAdmin выдает или снимает роль admin. Снять роль с самого себя нельзя,
// иначе бэк-офис может остаться без администраторов.
func (s *UserService) SetAdmin(ctx context.Context, actorID, userID int64, admin bool) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return apperrors.ErrNotFound
	}

	log := logger.WithContext(ctx)
	if admin {
		if err := s.users.GrantRole(ctx, userID, models.RoleAdmin); err != nil {
			return fmt.Errorf("failed to grant role: %w", err)
		}
		log.Info("Admin role granted", "user_id", userID, "by", actorID)
		return nil
	}

	if actorID == userID {
		return apperrors.Invalid(errRevokeOwnAdmin)
	}
	if _, err := s.users.RevokeRole(ctx, userID, models.RoleAdmin); err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	log.Info("Admin role revoked", "user_id", userID, "by", actorID)
	return nil
}

// page проверяет пагинацию админских списков; limit = 0 - размер по умолчанию
func page(limit, offset int) (int, int, error) {
	if limit == 0 {
		limit = defaultPageSize
	}
	if limit < 1 || limit > maxPageSize {
		return 0, 0, apperrors.Invalid(errInvalidPageSize)
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset, nil
}
