package services

import (
	"context"
	"errors"
	"strings"

	"docvault_backend/internal/auth"
	"docvault_backend/internal/logger"
	"docvault_backend/internal/models"
	"docvault_backend/internal/quota"
	"docvault_backend/internal/repositories"
	"docvault_backend/internal/services/dto"
	"docvault_backend/pkg/apperrors"

	"gorm.io/gorm"
)

type AuthService interface {
	// Register создаёт пользователя и его free подписку в одной транзакции
	Register(ctx context.Context, db *gorm.DB, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, db *gorm.DB, req *dto.LoginRequest) (*dto.AuthResponse, error)
	Me(ctx context.Context, db *gorm.DB, userID string) (*models.User, error)
}

type authService struct {
	policy   *quota.Policy
	userRepo repositories.UserRepository
	subRepo  repositories.SubscriptionRepository
	tokens   *auth.TokenIssuer
}

func NewAuthService(
	policy *quota.Policy,
	userRepo repositories.UserRepository,
	subRepo repositories.SubscriptionRepository,
	tokens *auth.TokenIssuer,
) AuthService {
	return &authService{policy: policy, userRepo: userRepo, subRepo: subRepo, tokens: tokens}
}

func (s *authService) Register(ctx context.Context, db *gorm.DB, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.ErrInvalidInput("auth", err.Error())
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	user := &models.User{
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	if err := s.userRepo.Create(tx, user); err != nil {
		return nil, handleRepoError("auth", err)
	}
	sub := newFreeSubscription(s.policy, user.ID)
	if err := s.subRepo.Create(tx, sub); err != nil {
		return nil, handleRepoError("auth", err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	user.Subscription = sub
	logger.CtxInfo(ctx, "User registered", "user_id", user.ID)
	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, db *gorm.DB, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(db, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.NewUnauthorizedError("invalid email or password")
		}
		return nil, handleRepoError("auth", err)
	}
	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, apperrors.NewUnauthorizedError("invalid email or password")
	}

	logger.CtxInfo(ctx, "User logged in", "user_id", user.ID)
	return s.issue(user)
}

func (s *authService) Me(ctx context.Context, db *gorm.DB, userID string) (*models.User, error) {
	user, err := s.userRepo.FindByID(db, userID)
	if err != nil {
		return nil, handleRepoError("auth", err)
	}
	return user, nil
}

func (s *authService) issue(user *models.User) (*dto.AuthResponse, error) {
	token, expires, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &dto.AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expires,
		User:        user,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
