package services_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"docvault_backend/internal/metrics"
	"docvault_backend/internal/models"
	"docvault_backend/internal/momo"
	"docvault_backend/internal/quota"
	"docvault_backend/internal/repositories"
	"docvault_backend/internal/services"
	"docvault_backend/test/helpers"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.UnixMilli(1700000000000)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) InitiateTransfer(ctx context.Context, tr momo.TransferRequest) (string, error) {
	args := m.Called(ctx, tr)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) TransferStatus(ctx context.Context, providerRef string) (*momo.TransferStatus, error) {
	args := m.Called(ctx, providerRef)
	status, _ := args.Get(0).(*momo.TransferStatus)
	return status, args.Error(1)
}

func providerStatus(status string) *momo.TransferStatus {
	raw, _ := json.Marshal(map[string]string{"status": status})
	return &momo.TransferStatus{Status: status, Raw: raw}
}

type testEnv struct {
	db          *gorm.DB
	policy      *quota.Policy
	metrics     *metrics.Metrics
	gateway     *mockGateway
	paymentRepo repositories.PaymentRepository
	subRepo     repositories.SubscriptionRepository
	docRepo     repositories.DocumentRepository
	quota       services.QuotaService
	entitlement services.EntitlementService
	payments    services.PaymentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		db:          helpers.NewTestDB(t),
		policy:      quota.DefaultPolicy(),
		metrics:     metrics.New(prometheus.NewRegistry()),
		gateway:     &mockGateway{},
		paymentRepo: repositories.NewPaymentRepository(),
		subRepo:     repositories.NewSubscriptionRepository(),
		docRepo:     repositories.NewDocumentRepository(),
	}
	env.quota = services.NewQuotaService(env.policy, env.subRepo, env.docRepo, env.metrics)
	env.entitlement = services.NewEntitlementService(env.policy, env.subRepo, env.paymentRepo,
		repositories.NewUserRepository(), env.metrics, nil)
	env.payments = env.newPaymentService(env.entitlement)
	return env
}

func (e *testEnv) newPaymentService(entitlement services.EntitlementService) services.PaymentService {
	return services.NewPaymentService(
		services.PaymentServiceConfig{DefaultCurrency: "EUR", Clock: func() time.Time { return fixedNow }},
		e.gateway, e.paymentRepo, entitlement, e.metrics,
	)
}

func (e *testEnv) countPayments(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Payment{}).Count(&n).Error)
	return n
}

func (e *testEnv) subscription(t *testing.T, userID string) *models.Subscription {
	t.Helper()
	sub, err := e.subRepo.FindByUserID(e.db, userID)
	require.NoError(t, err)
	return sub
}

// requireConsistentLimit - лимит строки всегда соответствует тарифу
func (e *testEnv) requireConsistentLimit(t *testing.T, sub *models.Subscription) {
	t.Helper()
	require.Equal(t, e.policy.StorageLimit(sub.Plan), sub.StorageLimitBytes)
}
