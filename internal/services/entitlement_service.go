package services

import (
	"context"
	"errors"
	"time"

	"docvault_backend/internal/email"
	"docvault_backend/internal/logger"
	"docvault_backend/internal/metrics"
	"docvault_backend/internal/models"
	"docvault_backend/internal/quota"
	"docvault_backend/internal/repositories"
	"docvault_backend/internal/services/dto"
	"docvault_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// ReceiptSender отправляет квитанцию после применения оплаты
type ReceiptSender interface {
	SendReceipt(ctx context.Context, r email.Receipt) error
}

// EntitlementService - единственное место, где меняются тариф и лимит подписки.
// Тариф и storage_limit_bytes всегда меняются вместе, в одной транзакции.
type EntitlementService interface {
	// ApplyPlan выставляет тариф ровно в plan; повторный вызов ничего не меняет
	ApplyPlan(ctx context.Context, db *gorm.DB, userID string, plan quota.Plan) (*models.Subscription, error)
	// EntitlePayment применяет успешный платёж и отмечает entitled_at
	EntitlePayment(ctx context.Context, db *gorm.DB, payment *models.Payment) (*models.Subscription, error)
	// Reconcile повторяет EntitlePayment для успешных платежей без entitled_at
	Reconcile(ctx context.Context, db *gorm.DB, limit int) (int, error)
	UpdateProviderSubscription(ctx context.Context, db *gorm.DB, upd dto.ProviderSubscriptionUpdate) (*models.Subscription, error)
	// CancelPlan переводит подписку на free со статусом canceled и отвязывает провайдера
	CancelPlan(ctx context.Context, db *gorm.DB, userID string) (*models.Subscription, error)
}

type entitlementService struct {
	policy      *quota.Policy
	subRepo     repositories.SubscriptionRepository
	paymentRepo repositories.PaymentRepository
	userRepo    repositories.UserRepository
	metrics     *metrics.Metrics
	receipts    ReceiptSender
	now         func() time.Time
}

func NewEntitlementService(
	policy *quota.Policy,
	subRepo repositories.SubscriptionRepository,
	paymentRepo repositories.PaymentRepository,
	userRepo repositories.UserRepository,
	m *metrics.Metrics,
	receipts ReceiptSender,
) EntitlementService {
	return &entitlementService{
		policy:      policy,
		subRepo:     subRepo,
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		metrics:     m,
		receipts:    receipts,
		now:         time.Now,
	}
}

func (s *entitlementService) ApplyPlan(ctx context.Context, db *gorm.DB, userID string, plan quota.Plan) (*models.Subscription, error) {
	if !plan.Valid() {
		return nil, apperrors.ErrInvalidInput("subscription", "unknown plan")
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	sub, err := s.lockOrCreate(tx, userID)
	if err != nil {
		return nil, handleRepoError("subscription", err)
	}

	s.setPlan(sub, plan)
	sub.Status = models.SubscriptionStatusActive

	if err := s.subRepo.Save(tx, sub); err != nil {
		return nil, handleRepoError("subscription", err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "Plan applied", "user_id", userID, "plan", plan)
	return sub, nil
}

func (s *entitlementService) EntitlePayment(ctx context.Context, db *gorm.DB, payment *models.Payment) (*models.Subscription, error) {
	if payment.Status != models.PaymentStatusSuccessful {
		return nil, apperrors.ErrInvalidInput("subscription", "only successful payments can be entitled")
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	now := s.now()
	marked, err := s.paymentRepo.MarkEntitled(tx, payment.ID, now)
	if err != nil {
		return nil, handleRepoError("subscription", err)
	}

	if !marked {
		// уже применён другим вызовом
		tx.Rollback()
		sub, err := s.subRepo.FindByUserID(db, payment.UserID)
		if err != nil {
			return nil, handleRepoError("subscription", err)
		}
		return sub, nil
	}

	sub, err := s.lockOrCreate(tx, payment.UserID)
	if err != nil {
		return nil, handleRepoError("subscription", err)
	}

	purchased := s.policy.PlanForAmount(payment.Amount)
	keep := sub.Status == models.SubscriptionStatusActive && sub.Plan.Rank() > purchased.Rank()
	if !keep {
		s.setPlan(sub, purchased)
	}
	sub.Status = models.SubscriptionStatusActive

	if err := s.subRepo.Save(tx, sub); err != nil {
		return nil, handleRepoError("subscription", err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	payment.EntitledAt = &now
	logger.CtxInfo(ctx, "Payment entitled",
		"reference_id", payment.ReferenceID,
		"purchased_plan", purchased,
		"plan", sub.Plan,
	)
	s.sendReceipt(ctx, db, payment, sub)
	return sub, nil
}

func (s *entitlementService) Reconcile(ctx context.Context, db *gorm.DB, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	payments, err := s.paymentRepo.FindUnentitledSuccessful(db, limit)
	if err != nil {
		return 0, handleRepoError("subscription", err)
	}

	repaired := 0
	for i := range payments {
		if ctx.Err() != nil {
			break
		}
		payment := &payments[i]
		if _, err := s.EntitlePayment(ctx, db, payment); err != nil {
			s.metrics.EntitlementFailed()
			logger.CtxWithError(ctx, "Reconciliation failed for payment", err, "reference_id", payment.ReferenceID)
			continue
		}
		if payment.EntitledAt != nil {
			repaired++
		}
	}

	s.metrics.ReconciliationRepaired(repaired)
	if repaired > 0 {
		logger.CtxInfo(ctx, "Reconciliation repaired payments", "count", repaired)
	}
	return repaired, nil
}

func (s *entitlementService) UpdateProviderSubscription(ctx context.Context, db *gorm.DB, upd dto.ProviderSubscriptionUpdate) (*models.Subscription, error) {
	if upd.SubscriptionID == "" {
		return nil, apperrors.ErrInvalidInput("subscription", "provider subscription id is required")
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	userID := upd.UserID
	linked, err := s.subRepo.FindByProviderSubscriptionID(tx, upd.SubscriptionID)
	switch {
	case err == nil:
		userID = linked.UserID
	case !errors.Is(err, repositories.ErrSubscriptionNotFound):
		return nil, handleRepoError("subscription", err)
	case userID == "":
		return nil, apperrors.ErrNotFound("subscription", "subscription")
	}

	sub, err := s.subRepo.FindByUserIDForUpdate(tx, userID)
	if err != nil {
		return nil, handleRepoError("subscription", err)
	}

	switch upd.Status {
	case models.SubscriptionStatusCanceled:
		s.setPlan(sub, quota.PlanFree)
		sub.ProviderSubscriptionID = nil
	case models.SubscriptionStatusActive:
		if upd.Plan != nil {
			s.setPlan(sub, *upd.Plan)
		}
		sub.ProviderSubscriptionID = &upd.SubscriptionID
	default:
		sub.ProviderSubscriptionID = &upd.SubscriptionID
	}
	sub.Status = upd.Status
	if upd.CustomerID != "" {
		sub.ProviderCustomerID = &upd.CustomerID
	}
	if upd.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = upd.CurrentPeriodEnd
	}

	if err := s.subRepo.Save(tx, sub); err != nil {
		return nil, handleRepoError("subscription", err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "Provider subscription updated",
		"user_id", sub.UserID,
		"status", sub.Status,
		"plan", sub.Plan,
	)
	return sub, nil
}

func (s *entitlementService) CancelPlan(ctx context.Context, db *gorm.DB, userID string) (*models.Subscription, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	sub, err := s.lockOrCreate(tx, userID)
	if err != nil {
		return nil, handleRepoError("subscription", err)
	}

	s.setPlan(sub, quota.PlanFree)
	sub.Status = models.SubscriptionStatusCanceled
	sub.ProviderSubscriptionID = nil

	if err := s.subRepo.Save(tx, sub); err != nil {
		return nil, handleRepoError("subscription", err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "Subscription canceled", "user_id", userID)
	return sub, nil
}

// lockOrCreate возвращает подписку под блокировкой строки; при отсутствии создаёт free
func (s *entitlementService) lockOrCreate(tx *gorm.DB, userID string) (*models.Subscription, error) {
	sub, err := s.subRepo.FindByUserIDForUpdate(tx, userID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, repositories.ErrSubscriptionNotFound) {
		return nil, err
	}

	sub = newFreeSubscription(s.policy, userID)
	created, err := s.subRepo.CreateIfAbsent(tx, sub)
	if err != nil {
		return nil, err
	}
	if !created {
		// строку успел вставить параллельный вызов
		return s.subRepo.FindByUserIDForUpdate(tx, userID)
	}
	return sub, nil
}

func (s *entitlementService) setPlan(sub *models.Subscription, plan quota.Plan) {
	sub.Plan = plan
	sub.StorageLimitBytes = s.policy.StorageLimit(plan)
}

func (s *entitlementService) sendReceipt(ctx context.Context, db *gorm.DB, payment *models.Payment, sub *models.Subscription) {
	if s.receipts == nil {
		return
	}
	user, err := s.userRepo.FindByID(db, payment.UserID)
	if err != nil {
		logger.CtxWithError(ctx, "Receipt skipped: user lookup failed", err, "reference_id", payment.ReferenceID)
		return
	}

	receipt := email.Receipt{
		To:           user.Email,
		FullName:     user.FullName,
		ReferenceID:  payment.ReferenceID,
		Amount:       payment.Amount.StringFixed(2),
		Currency:     payment.Currency,
		Plan:         sub.Plan.String(),
		StorageLimit: email.FormatBytes(sub.StorageLimitBytes),
	}
	go func(ctx context.Context) {
		if err := s.receipts.SendReceipt(ctx, receipt); err != nil {
			logger.CtxWithError(ctx, "Failed to send payment receipt", err, "reference_id", receipt.ReferenceID)
		}
	}(context.WithoutCancel(ctx))
}

func newFreeSubscription(policy *quota.Policy, userID string) *models.Subscription {
	return &models.Subscription{
		UserID:            userID,
		Plan:              quota.PlanFree,
		StorageLimitBytes: policy.StorageLimit(quota.PlanFree),
		Status:            models.SubscriptionStatusActive,
	}
}
