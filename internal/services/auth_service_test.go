package services_test

import (
	"context"
	"testing"
	"time"

	"docvault_backend/internal/auth"
	"docvault_backend/internal/quota"
	"docvault_backend/internal/repositories"
	"docvault_backend/internal/services"
	"docvault_backend/internal/services/dto"
	"docvault_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T, env *testEnv) (services.AuthService, *auth.TokenIssuer) {
	t.Helper()
	issuer, err := auth.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	return services.NewAuthService(env.policy, repositories.NewUserRepository(), env.subRepo, issuer), issuer
}

func TestRegister_CreatesUserWithFreeSubscription(t *testing.T) {
	env := newTestEnv(t)
	svc, issuer := newAuthService(t, env)

	resp, err := svc.Register(context.Background(), env.db, &dto.RegisterRequest{
		Email: "  New@Example.com ", Password: "password123", FullName: "New User",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", resp.User.Email)
	assert.Equal(t, "Bearer", resp.TokenType)

	claims, err := issuer.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID())

	sub := env.subscription(t, resp.User.ID)
	assert.Equal(t, quota.PlanFree, sub.Plan)
	env.requireConsistentLimit(t, sub)

	_, err = svc.Register(context.Background(), env.db, &dto.RegisterRequest{Email: "new@example.com", Password: "password456"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDuplicateRequest), "got %v", err)
}

func TestRegister_RejectsWeakPassword(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newAuthService(t, env)

	_, err := svc.Register(context.Background(), env.db, &dto.RegisterRequest{Email: "a@b.c", Password: "short"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput), "got %v", err)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newAuthService(t, env)

	_, err := svc.Register(context.Background(), env.db, &dto.RegisterRequest{Email: "user@example.com", Password: "password123"})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), env.db, &dto.LoginRequest{Email: "USER@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)

	_, err = svc.Login(context.Background(), env.db, &dto.LoginRequest{Email: "user@example.com", Password: "wrong-password"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized), "got %v", err)

	_, err = svc.Login(context.Background(), env.db, &dto.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized), "got %v", err)
}
