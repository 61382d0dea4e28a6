package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"docvault_backend/internal/billing"
	"docvault_backend/internal/models"
	"docvault_backend/internal/quota"
	"docvault_backend/internal/repositories"
	"docvault_backend/internal/services"
	"docvault_backend/pkg/apperrors"
	"docvault_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBilling struct {
	mock.Mock
}

func (m *mockBilling) CreateSubscription(ctx context.Context, userID, email, customerID, priceID string) (*billing.CreatedSubscription, error) {
	args := m.Called(ctx, userID, email, customerID, priceID)
	created, _ := args.Get(0).(*billing.CreatedSubscription)
	return created, args.Error(1)
}

func (m *mockBilling) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

var testPrices = billing.PriceBook{quota.PlanBasic: "price_basic", quota.PlanPremium: "price_premium"}

func newSubscriptionService(env *testEnv, provider billing.Provider) services.SubscriptionService {
	return services.NewSubscriptionService(env.policy, env.subRepo, repositories.NewUserRepository(),
		env.quota, env.entitlement, provider, testPrices)
}

func TestSubscriptionGet_CreatesFreeRowLazily(t *testing.T) {
	env := newTestEnv(t)
	svc := newSubscriptionService(env, &mockBilling{})
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")

	sub, err := svc.Get(context.Background(), env.db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanFree, sub.Plan)
	assert.Equal(t, 100*quota.MiB, sub.StorageLimitBytes)

	again, err := svc.Get(context.Background(), env.db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, again.ID)

	usage, err := svc.Usage(context.Background(), env.db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), usage.DocumentLimit)
}

func TestSubscribe_ActiveStripeSubscriptionGrantsPlan(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockBilling{}
	svc := newSubscriptionService(env, provider)
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")

	periodEnd := time.Unix(1800000000, 0).UTC()
	provider.On("CreateSubscription", mock.Anything, user.ID, "u@example.com", "", "price_premium").
		Return(&billing.CreatedSubscription{
			CustomerID:       "cus_1",
			SubscriptionID:   "sub_1",
			Status:           models.SubscriptionStatusActive,
			CurrentPeriodEnd: &periodEnd,
		}, nil).Once()

	sub, err := svc.Subscribe(context.Background(), env.db, user.ID, quota.PlanPremium)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanPremium, sub.Plan)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.ProviderSubscriptionID)
	assert.Equal(t, "sub_1", *sub.ProviderSubscriptionID)
	env.requireConsistentLimit(t, env.subscription(t, user.ID))

	_, err = svc.Subscribe(context.Background(), env.db, user.ID, quota.PlanBasic)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDuplicateRequest), "got %v", err)
	provider.AssertExpectations(t)
}

func TestSubscribe_IncompleteSubscriptionWaitsForWebhook(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockBilling{}
	svc := newSubscriptionService(env, provider)
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")

	provider.On("CreateSubscription", mock.Anything, user.ID, mock.Anything, "", "price_basic").
		Return(&billing.CreatedSubscription{CustomerID: "cus_2", SubscriptionID: "sub_2", Status: models.SubscriptionStatusInactive}, nil).Once()

	sub, err := svc.Subscribe(context.Background(), env.db, user.ID, quota.PlanBasic)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanFree, sub.Plan)
	assert.Equal(t, models.SubscriptionStatusInactive, sub.Status)
}

func TestSubscribe_Errors(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockBilling{}
	svc := newSubscriptionService(env, provider)
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")

	_, err := svc.Subscribe(context.Background(), env.db, user.ID, quota.PlanEnterprise)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput), "no price: %v", err)

	_, err = svc.Subscribe(context.Background(), env.db, user.ID, quota.Plan("gold"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput), "unknown plan: %v", err)

	provider.On("CreateSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("stripe is down")).Once()
	_, err = svc.Subscribe(context.Background(), env.db, user.ID, quota.PlanBasic)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeGatewayUnavailable), "provider down: %v", err)
	assert.Equal(t, quota.PlanFree, env.subscription(t, user.ID).Plan)

	disabled := newSubscriptionService(env, nil)
	_, err = disabled.Subscribe(context.Background(), env.db, user.ID, quota.PlanBasic)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeGatewayUnavailable), "disabled: %v", err)
}

func TestCancel_CancelsProviderAndDegrades(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockBilling{}
	svc := newSubscriptionService(env, provider)
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")
	sub := helpers.CreateSubscription(t, env.db, user.ID, quota.PlanPremium)
	providerID := "sub_live"
	require.NoError(t, env.db.Model(sub).Update("provider_subscription_id", providerID).Error)

	provider.On("CancelSubscription", mock.Anything, "sub_live").Return(nil).Once()

	canceled, err := svc.Cancel(context.Background(), env.db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanFree, canceled.Plan)
	assert.Equal(t, models.SubscriptionStatusCanceled, canceled.Status)
	assert.Nil(t, canceled.ProviderSubscriptionID)
	env.requireConsistentLimit(t, env.subscription(t, user.ID))
	provider.AssertExpectations(t)
}

func TestCancel_ProviderFailureKeepsPlan(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockBilling{}
	svc := newSubscriptionService(env, provider)
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")
	sub := helpers.CreateSubscription(t, env.db, user.ID, quota.PlanPremium)
	require.NoError(t, env.db.Model(sub).Update("provider_subscription_id", "sub_live").Error)

	provider.On("CancelSubscription", mock.Anything, "sub_live").Return(errors.New("timeout")).Once()

	_, err := svc.Cancel(context.Background(), env.db, user.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeGatewayUnavailable), "got %v", err)
	assert.Equal(t, quota.PlanPremium, env.subscription(t, user.ID).Plan)
}
