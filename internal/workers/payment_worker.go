package workers

import (
	"context"
	"fmt"
	"time"

	"docvault_backend/internal/logger"
	"docvault_backend/internal/services"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// PaymentWorkerConfig - расписания в формате cron ("@every 1m", "*/5 * * * *")
type PaymentWorkerConfig struct {
	PollSchedule      string
	ReconcileSchedule string
	PendingOlderThan  time.Duration
	BatchSize         int
	JobTimeout        time.Duration
}

// PaymentWorker опрашивает зависшие pending-платежи и догоняет
// невыданные тарифы по успешным платежам
type PaymentWorker struct {
	db          *gorm.DB
	payments    services.PaymentService
	entitlement services.EntitlementService
	cfg         PaymentWorkerConfig
}

func NewPaymentWorker(db *gorm.DB, payments services.PaymentService, entitlement services.EntitlementService, cfg PaymentWorkerConfig) *PaymentWorker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PendingOlderThan <= 0 {
		cfg.PendingOlderThan = time.Minute
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	return &PaymentWorker{db: db, payments: payments, entitlement: entitlement, cfg: cfg}
}

// Run блокируется до отмены ctx и ждёт завершения выполняющихся задач
func (w *PaymentWorker) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	if w.cfg.PollSchedule != "" {
		if _, err := c.AddFunc(w.cfg.PollSchedule, func() { w.PollPending(ctx) }); err != nil {
			return fmt.Errorf("schedule payment poll %q: %w", w.cfg.PollSchedule, err)
		}
	}
	if w.cfg.ReconcileSchedule != "" {
		if _, err := c.AddFunc(w.cfg.ReconcileSchedule, func() { w.Reconcile(ctx) }); err != nil {
			return fmt.Errorf("schedule reconciliation %q: %w", w.cfg.ReconcileSchedule, err)
		}
	}

	c.Start()
	logger.Info("Payment worker started",
		"poll_schedule", w.cfg.PollSchedule,
		"reconcile_schedule", w.cfg.ReconcileSchedule,
	)

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("Payment worker stopped")
	return nil
}

// PollPending - один проход опроса; возвращает число проверенных платежей
func (w *PaymentWorker) PollPending(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	checked, err := w.payments.PollPending(ctx, w.db.WithContext(ctx), w.cfg.PendingOlderThan, w.cfg.BatchSize)
	logger.WorkerLog("poll_pending", checked, err)
	return checked
}

// Reconcile - один проход догоняющей выдачи тарифов
func (w *PaymentWorker) Reconcile(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	repaired, err := w.entitlement.Reconcile(ctx, w.db.WithContext(ctx), w.cfg.BatchSize)
	logger.WorkerLog("reconcile", repaired, err)
	return repaired
}
