package workers_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"docvault_backend/internal/services"
	"docvault_backend/internal/workers"
	"docvault_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakePayments struct {
	services.PaymentService
	calls     atomic.Int32
	olderThan time.Duration
	limit     int
}

func (f *fakePayments) PollPending(ctx context.Context, db *gorm.DB, olderThan time.Duration, limit int) (int, error) {
	f.calls.Add(1)
	f.olderThan = olderThan
	f.limit = limit
	return 3, nil
}

type fakeEntitlement struct {
	services.EntitlementService
	calls atomic.Int32
}

func (f *fakeEntitlement) Reconcile(ctx context.Context, db *gorm.DB, limit int) (int, error) {
	f.calls.Add(1)
	return 1, nil
}

func TestPaymentWorker_SinglePasses(t *testing.T) {
	db := helpers.NewTestDB(t)
	payments := &fakePayments{}
	entitlement := &fakeEntitlement{}
	w := workers.NewPaymentWorker(db, payments, entitlement, workers.PaymentWorkerConfig{
		PendingOlderThan: 2 * time.Minute,
		BatchSize:        10,
	})

	assert.Equal(t, 3, w.PollPending(context.Background()))
	assert.Equal(t, 2*time.Minute, payments.olderThan)
	assert.Equal(t, 10, payments.limit)
	assert.Equal(t, 1, w.Reconcile(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Zero(t, w.PollPending(ctx))
	assert.Equal(t, int32(1), payments.calls.Load())
}

func TestPaymentWorker_RunsOnSchedule(t *testing.T) {
	db := helpers.NewTestDB(t)
	payments := &fakePayments{}
	entitlement := &fakeEntitlement{}
	w := workers.NewPaymentWorker(db, payments, entitlement, workers.PaymentWorkerConfig{
		PollSchedule:      "@every 1s",
		ReconcileSchedule: "@every 1s",
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		return payments.calls.Load() > 0 && entitlement.calls.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestPaymentWorker_InvalidSchedule(t *testing.T) {
	w := workers.NewPaymentWorker(helpers.NewTestDB(t), &fakePayments{}, &fakeEntitlement{}, workers.PaymentWorkerConfig{
		PollSchedule: "not a schedule",
	})
	assert.Error(t, w.Run(context.Background()))
}
