package services_test

import (
	"context"
	"testing"
	"time"

	"docvault_backend/internal/models"
	"docvault_backend/internal/quota"
	"docvault_backend/internal/repositories"
	"docvault_backend/internal/services"
	"docvault_backend/internal/services/dto"
	"docvault_backend/pkg/apperrors"
	"docvault_backend/test/helpers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func successfulPayment(t *testing.T, env *testEnv, userID, ref, amount string) *models.Payment {
	t.Helper()
	p := &models.Payment{
		ReferenceID:         ref + "_1",
		ProviderReferenceID: ref,
		UserID:              userID,
		Amount:              decimal.RequireFromString(amount),
		Currency:            "XAF",
		PhoneNumber:         "237612345678",
		Provider:            models.PaymentProviderMTNMoMo,
		Status:              models.PaymentStatusSuccessful,
	}
	require.NoError(t, env.paymentRepo.Create(env.db, p))
	return p
}

func TestApplyPlan_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")
	helpers.CreateSubscription(t, env.db, user.ID, quota.PlanFree)

	first, err := env.entitlement.ApplyPlan(context.Background(), env.db, user.ID, quota.PlanPremium)
	require.NoError(t, err)
	second, err := env.entitlement.ApplyPlan(context.Background(), env.db, user.ID, quota.PlanPremium)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	stored := env.subscription(t, user.ID)
	assert.Equal(t, quota.PlanPremium, stored.Plan)
	assert.Equal(t, 5*quota.GiB, stored.StorageLimitBytes)
	assert.Equal(t, first.StorageLimitBytes, second.StorageLimitBytes)
	env.requireConsistentLimit(t, stored)

	var rows int64
	require.NoError(t, env.db.Model(&models.Subscription{}).Where("user_id = ?", user.ID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestApplyPlan_CreatesMissingSubscription(t *testing.T) {
	env := newTestEnv(t)

	sub, err := env.entitlement.ApplyPlan(context.Background(), env.db, "fresh-user", quota.PlanBasic)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanBasic, sub.Plan)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	env.requireConsistentLimit(t, env.subscription(t, "fresh-user"))
}

func TestApplyPlan_RejectsUnknownPlan(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.entitlement.ApplyPlan(context.Background(), env.db, "u", quota.Plan("gold"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput), "got %v", err)
}

func TestEntitlePayment_NeverDowngradesActivePlan(t *testing.T) {
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")
	helpers.CreateSubscription(t, env.db, user.ID, quota.PlanEnterprise)
	payment := successfulPayment(t, env, user.ID, "prov-small", "12.50")

	sub, err := env.entitlement.EntitlePayment(context.Background(), env.db, payment)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanEnterprise, sub.Plan)
	assert.NotNil(t, payment.EntitledAt)

	stored, err := env.paymentRepo.FindByReferenceID(env.db, payment.ReferenceID)
	require.NoError(t, err)
	assert.NotNil(t, stored.EntitledAt)
	env.requireConsistentLimit(t, env.subscription(t, user.ID))
}

func TestEntitlePayment_IsAppliedOnce(t *testing.T) {
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")
	helpers.CreateSubscription(t, env.db, user.ID, quota.PlanFree)
	payment := successfulPayment(t, env, user.ID, "prov-once", "5")

	_, err := env.entitlement.EntitlePayment(context.Background(), env.db, payment)
	require.NoError(t, err)
	firstEntitled := *payment.EntitledAt

	// после выдачи тариф меняют вручную; повторная выдача его не трогает
	_, err = env.entitlement.ApplyPlan(context.Background(), env.db, user.ID, quota.PlanFree)
	require.NoError(t, err)

	stale := *payment
	stale.EntitledAt = nil
	sub, err := env.entitlement.EntitlePayment(context.Background(), env.db, &stale)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanFree, sub.Plan)
	assert.Nil(t, stale.EntitledAt)

	stored, err := env.paymentRepo.FindByReferenceID(env.db, payment.ReferenceID)
	require.NoError(t, err)
	require.NotNil(t, stored.EntitledAt)
	assert.WithinDuration(t, firstEntitled, *stored.EntitledAt, time.Second)
}

func TestEntitlePayment_RejectsNonSuccessful(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.entitlement.EntitlePayment(context.Background(), env.db, &models.Payment{Status: models.PaymentStatusPending})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput), "got %v", err)
}

func TestReconcile_ReplaysUnentitledPayments(t *testing.T) {
	env := newTestEnv(t)
	alice := helpers.CreateUser(t, env.db, "alice@example.com", "password123")
	bob := helpers.CreateUser(t, env.db, "bob@example.com", "password123")
	helpers.CreateSubscription(t, env.db, alice.ID, quota.PlanFree)

	successfulPayment(t, env, alice.ID, "prov-a", "9.99")
	successfulPayment(t, env, bob.ID, "prov-b", "100")

	repaired, err := env.entitlement.Reconcile(context.Background(), env.db, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, repaired)

	assert.Equal(t, quota.PlanBasic, env.subscription(t, alice.ID).Plan)
	assert.Equal(t, quota.PlanEnterprise, env.subscription(t, bob.ID).Plan)

	again, err := env.entitlement.Reconcile(context.Background(), env.db, 10)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestUpdateProviderSubscription(t *testing.T) {
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")
	helpers.CreateSubscription(t, env.db, user.ID, quota.PlanFree)
	premium := quota.PlanPremium
	periodEnd := time.Unix(1800000000, 0).UTC()

	sub, err := env.entitlement.UpdateProviderSubscription(context.Background(), env.db, dto.ProviderSubscriptionUpdate{
		SubscriptionID:   "sub_1",
		CustomerID:       "cus_1",
		UserID:           user.ID,
		Status:           models.SubscriptionStatusActive,
		Plan:             &premium,
		CurrentPeriodEnd: &periodEnd,
	})
	require.NoError(t, err)
	assert.Equal(t, quota.PlanPremium, sub.Plan)
	require.NotNil(t, sub.ProviderSubscriptionID)
	assert.Equal(t, "sub_1", *sub.ProviderSubscriptionID)
	env.requireConsistentLimit(t, env.subscription(t, user.ID))

	// второе событие находит подписку по provider id, без user id
	sub, err = env.entitlement.UpdateProviderSubscription(context.Background(), env.db, dto.ProviderSubscriptionUpdate{
		SubscriptionID: "sub_1",
		Status:         models.SubscriptionStatusCanceled,
	})
	require.NoError(t, err)
	assert.Equal(t, quota.PlanFree, sub.Plan)
	assert.Equal(t, models.SubscriptionStatusCanceled, sub.Status)
	assert.Nil(t, sub.ProviderSubscriptionID)

	stored := env.subscription(t, user.ID)
	assert.Equal(t, 100*quota.MiB, stored.StorageLimitBytes)
	require.NotNil(t, stored.ProviderCustomerID)
	assert.Equal(t, "cus_1", *stored.ProviderCustomerID)

	_, err = env.entitlement.UpdateProviderSubscription(context.Background(), env.db, dto.ProviderSubscriptionUpdate{
		SubscriptionID: "sub_unknown",
		Status:         models.SubscriptionStatusActive,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)
}

func TestCancelPlan_DegradesToFree(t *testing.T) {
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, "u@example.com", "password123")
	helpers.CreateSubscription(t, env.db, user.ID, quota.PlanPremium)

	sub, err := env.entitlement.CancelPlan(context.Background(), env.db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanFree, sub.Plan)
	assert.Equal(t, models.SubscriptionStatusCanceled, sub.Status)
	env.requireConsistentLimit(t, env.subscription(t, user.ID))
}

// racingSubscriptions вставляет чужую строку прямо перед вставкой сервиса,
// как это сделал бы параллельный первый платёж
type racingSubscriptions struct {
	repositories.SubscriptionRepository
	plan quota.Plan
}

func (r *racingSubscriptions) CreateIfAbsent(db *gorm.DB, sub *models.Subscription) (bool, error) {
	competing := &models.Subscription{
		UserID:            sub.UserID,
		Plan:              r.plan,
		StorageLimitBytes: quota.DefaultPolicy().StorageLimit(r.plan),
		Status:            models.SubscriptionStatusActive,
	}
	if err := r.SubscriptionRepository.Create(db, competing); err != nil {
		return false, err
	}
	return r.SubscriptionRepository.CreateIfAbsent(db, sub)
}

func TestApplyPlan_ConcurrentFirstRowIsReused(t *testing.T) {
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, "first@example.com", "password123")

	racing := &racingSubscriptions{SubscriptionRepository: env.subRepo, plan: quota.PlanBasic}
	entitlement := services.NewEntitlementService(env.policy, racing, env.paymentRepo,
		repositories.NewUserRepository(), env.metrics, nil)

	sub, err := entitlement.ApplyPlan(context.Background(), env.db, user.ID, quota.PlanPremium)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanPremium, sub.Plan)

	stored := env.subscription(t, user.ID)
	assert.Equal(t, quota.PlanPremium, stored.Plan)
	env.requireConsistentLimit(t, stored)

	var n int64
	require.NoError(t, env.db.Model(&models.Subscription{}).Where("user_id = ?", user.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
