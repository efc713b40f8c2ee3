package service

import (
	"context"
	"fmt"
	"strings"

	"festival/internal/auth"
	"festival/internal/database"
	apperrors "festival/internal/errors"
	"festival/internal/models"
	"festival/internal/repository"
)

type AuthService struct {
	users      *repository.UserRepository
	tokens     *auth.TokenIssuer
	bcryptCost int
}

func NewAuthService(users *repository.UserRepository, tokens *auth.TokenIssuer, bcryptCost int) *AuthService {
	return &AuthService{users: users, tokens: tokens, bcryptCost: bcryptCost}
}

func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.TokenResponse, error) {
	var phone *string
	if req.Phone != nil {
		var err error
		if phone, err = normalizeOptionalPhone(*req.Phone); err != nil {
			return nil, err
		}
	}

	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        phone,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.issue(user)
}

// Login не различает неизвестный email и неверный пароль
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !auth.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, apperrors.ErrUnauthorized
	}

	return s.issue(user)
}

func (s *AuthService) Me(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, apperrors.ErrNotFound
	}
	return user, nil
}

// IsAdmin читает роль из базы на каждый запрос
func (s *AuthService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	return s.users.HasRole(ctx, userID, models.RoleAdmin)
}

func (s *AuthService) issue(user *models.User) (*models.TokenResponse, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &models.TokenResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		UserID:      user.ID,
	}, nil
}
