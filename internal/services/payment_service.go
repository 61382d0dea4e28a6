package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"docvault_backend/database"
	"docvault_backend/internal/logger"
	"docvault_backend/internal/metrics"
	"docvault_backend/internal/models"
	"docvault_backend/internal/momo"
	"docvault_backend/internal/repositories"
	"docvault_backend/internal/services/dto"
	"docvault_backend/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxPaymentNoteLength = 160
	defaultCheckTimeout  = 30 * time.Second
)

// PaymentGateway - операции шлюза, нужные оркестратору
type PaymentGateway interface {
	InitiateTransfer(ctx context.Context, tr momo.TransferRequest) (string, error)
	TransferStatus(ctx context.Context, providerRef string) (*momo.TransferStatus, error)
}

// providerStatusTable - словарь статусов MoMo; всё, чего нет в таблице, считается pending
var providerStatusTable = map[string]models.PaymentStatus{
	"SUCCESSFUL": models.PaymentStatusSuccessful,
	"FAILED":     models.PaymentStatusFailed,
	"CANCELLED":  models.PaymentStatusCancelled,
	"PENDING":    models.PaymentStatusPending,
}

// MapProviderStatus переводит статус шлюза в локальный.
// Сравнение точное: "successful" или " SUCCESSFUL" остаются pending.
func MapProviderStatus(providerStatus string) models.PaymentStatus {
	if status, ok := providerStatusTable[providerStatus]; ok {
		return status
	}
	return models.PaymentStatusPending
}

// PaymentService - оркестратор платежей: запрос, проверка статуса, выдача тарифа
type PaymentService interface {
	RequestPayment(ctx context.Context, db *gorm.DB, userID string, req *dto.PaymentRequest) (*models.Payment, error)
	CheckPaymentStatus(ctx context.Context, db *gorm.DB, referenceID string) (*models.Payment, error)
	// CheckUserPaymentStatus - то же, но платёж чужого пользователя не виден
	CheckUserPaymentStatus(ctx context.Context, db *gorm.DB, userID, referenceID string) (*models.Payment, error)
	ListPayments(ctx context.Context, db *gorm.DB, userID string, page, pageSize int) (*dto.PaymentListResponse, error)
	// PollPending проверяет зависшие pending-платежи; возвращает число проверенных
	PollPending(ctx context.Context, db *gorm.DB, olderThan time.Duration, limit int) (int, error)
}

// PaymentServiceConfig - настройки оркестратора
type PaymentServiceConfig struct {
	DefaultCurrency string
	Provider        models.PaymentProvider
	// Clock задаёт время для reference_id; nil - time.Now
	Clock func() time.Time
	// CheckTimeout ограничивает одну проверку статуса у шлюза
	CheckTimeout time.Duration
}

type paymentService struct {
	cfg         PaymentServiceConfig
	gateway     PaymentGateway
	paymentRepo repositories.PaymentRepository
	entitlement EntitlementService
	metrics     *metrics.Metrics
	sanitizer   *bluemonday.Policy
	group       singleflight.Group
	now         func() time.Time
}

func NewPaymentService(
	cfg PaymentServiceConfig,
	gateway PaymentGateway,
	paymentRepo repositories.PaymentRepository,
	entitlement EntitlementService,
	m *metrics.Metrics,
) PaymentService {
	if cfg.Provider == "" {
		cfg.Provider = models.PaymentProviderMTNMoMo
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = defaultCheckTimeout
	}
	return &paymentService{
		cfg:         cfg,
		gateway:     gateway,
		paymentRepo: paymentRepo,
		entitlement: entitlement,
		metrics:     m,
		sanitizer:   bluemonday.StrictPolicy(),
		now:         cfg.Clock,
	}
}

func (s *paymentService) RequestPayment(ctx context.Context, db *gorm.DB, userID string, req *dto.PaymentRequest) (*models.Payment, error) {
	currency, err := s.validateRequest(req)
	if err != nil {
		s.metrics.PaymentRequested("invalid")
		return nil, err
	}

	meta := models.PaymentMetadata{
		PayerMessage: s.cleanNote(req.PayerMessage),
		PayeeNote:    s.cleanNote(req.PayeeNote),
	}

	providerRef, err := s.gateway.InitiateTransfer(ctx, momo.TransferRequest{
		Amount:       req.Amount,
		Currency:     currency,
		PayerMSISDN:  req.PhoneNumber,
		PayerMessage: meta.PayerMessage,
		PayeeNote:    meta.PayeeNote,
		ExternalID:   uuid.NewString(),
	})
	if err != nil {
		s.metrics.PaymentRequested("gateway_error")
		logger.CtxWithError(ctx, "Payment initiation failed", err, "user_id", userID)
		return nil, handleGatewayError(err)
	}

	referenceID := fmt.Sprintf("%s_%d", providerRef, s.now().UnixMilli())
	ctx = logger.WithReferenceID(ctx, referenceID)

	snapshot, err := json.Marshal(map[string]string{
		"reference_id":          referenceID,
		"provider_reference_id": providerRef,
		"status":                "PENDING",
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	metadata, err := json.Marshal(meta)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	payment := &models.Payment{
		ReferenceID:         referenceID,
		ProviderReferenceID: providerRef,
		UserID:              userID,
		Amount:              req.Amount,
		Currency:            currency,
		PhoneNumber:         req.PhoneNumber,
		Provider:            s.cfg.Provider,
		Status:              models.PaymentStatusPending,
		ProviderResponse:    datatypes.JSON(snapshot),
		Metadata:            datatypes.JSON(metadata),
	}

	if err := s.recordPayment(db, payment); err != nil {
		if apperrors.HasCode(err, apperrors.CodeDuplicateRequest) {
			s.metrics.PaymentRequested("duplicate")
			logger.CtxWarn(ctx, "Duplicate payment request")
		}
		return nil, err
	}

	s.metrics.PaymentRequested("created")
	logger.CtxInfo(ctx, "Payment requested",
		"amount", payment.Amount.String(),
		"currency", payment.Currency,
	)
	return payment, nil
}

// recordPayment - проверка дубля и вставка в одной короткой транзакции
func (s *paymentService) recordPayment(db *gorm.DB, payment *models.Payment) error {
	tx := db.Begin()
	if tx.Error != nil {
		return apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	exists, err := s.paymentRepo.ExistsByReferenceID(tx, payment.ReferenceID)
	if err != nil {
		return handleRepoError("payment", err)
	}
	if exists {
		return apperrors.ErrDuplicateRequest("payment", "payment request already recorded")
	}

	if err := s.paymentRepo.Create(tx, payment); err != nil {
		return handleRepoError("payment", err)
	}
	if err := tx.Commit().Error; err != nil {
		if database.IsDuplicateKey(err) {
			return apperrors.ErrDuplicateRequest("payment", "payment request already recorded")
		}
		return apperrors.InternalError(err)
	}
	return nil
}

func (s *paymentService) validateRequest(req *dto.PaymentRequest) (string, error) {
	if err := momo.ValidateMSISDN(req.PhoneNumber); err != nil {
		return "", apperrors.ErrInvalidInput("payment", err.Error())
	}
	if !req.Amount.IsPositive() {
		return "", apperrors.ErrInvalidInput("payment", "amount must be a positive number")
	}
	if req.Amount.Exponent() < -2 && !req.Amount.Equal(req.Amount.Round(2)) {
		return "", apperrors.ErrInvalidInput("payment", "amount must have at most two decimal places")
	}
	if req.Amount.GreaterThanOrEqual(decimal.New(1, 10)) {
		return "", apperrors.ErrInvalidInput("payment", "amount is too large")
	}
	currency, err := momo.NormalizeCurrency(req.Currency, s.cfg.DefaultCurrency)
	if err != nil {
		return "", apperrors.ErrInvalidInput("payment", err.Error())
	}
	return currency, nil
}

// cleanNote убирает разметку и обрезает до лимита MoMo
func (s *paymentService) cleanNote(note string) string {
	cleaned := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(note)))
	if runes := []rune(cleaned); len(runes) > maxPaymentNoteLength {
		cleaned = string(runes[:maxPaymentNoteLength])
	}
	return cleaned
}

func (s *paymentService) CheckUserPaymentStatus(ctx context.Context, db *gorm.DB, userID, referenceID string) (*models.Payment, error) {
	payment, err := s.paymentRepo.FindByReferenceID(db, referenceID)
	if err != nil {
		return nil, handleRepoError("payment", err)
	}
	if payment.UserID != userID {
		return nil, apperrors.ErrNotFound("payment", "payment")
	}
	return s.CheckPaymentStatus(ctx, db, referenceID)
}

func (s *paymentService) CheckPaymentStatus(ctx context.Context, db *gorm.DB, referenceID string) (*models.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.ErrGatewayUnavailable(err)
	}

	ch := s.group.DoChan(referenceID, func() (interface{}, error) {
		flightCtx, cancel := s.flightContext(ctx)
		defer cancel()
		return s.checkPaymentStatus(logger.WithReferenceID(flightCtx, referenceID), db.WithContext(flightCtx), referenceID)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		// отменивший уходит сразу; по дедлайну проверка завершится вместе с ним
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, apperrors.ErrGatewayUnavailable(ctx.Err())
		}
		res = <-ch
	}
	if res.Err != nil {
		return nil, res.Err
	}
	payment := *res.Val.(*models.Payment)
	return &payment, nil
}

// flightContext отвязывает общую проверку от отмены первого вызывающего,
// сохраняя его дедлайн и общий лимит CheckTimeout
func (s *paymentService) flightContext(ctx context.Context) (context.Context, context.CancelFunc) {
	flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CheckTimeout)
	deadline, ok := ctx.Deadline()
	if !ok {
		return flightCtx, cancel
	}
	flightCtx, cancelDeadline := context.WithDeadline(flightCtx, deadline)
	return flightCtx, func() {
		cancelDeadline()
		cancel()
	}
}

func (s *paymentService) checkPaymentStatus(ctx context.Context, db *gorm.DB, referenceID string) (*models.Payment, error) {
	payment, err := s.paymentRepo.FindByReferenceID(db, referenceID)
	if err != nil {
		return nil, handleRepoError("payment", err)
	}

	if payment.Status.IsTerminal() {
		s.repairEntitlement(ctx, db, payment)
		return payment, nil
	}

	status, err := s.gateway.TransferStatus(ctx, payment.ProviderReferenceID)
	if err != nil {
		return nil, s.failOnGatewayError(ctx, db, payment, err)
	}

	newStatus := MapProviderStatus(status.Status)
	upd := repositories.PaymentStatusUpdate{Status: newStatus}
	if len(status.Raw) > 0 {
		upd.ProviderResponse = datatypes.JSON(status.Raw)
	}
	if newStatus == models.PaymentStatusFailed || newStatus == models.PaymentStatusCancelled {
		if reason := status.ReasonText(); reason != "" {
			upd.ErrorMessage = &reason
		}
	}

	updated, err := s.paymentRepo.UpdateStatusIfPending(db, referenceID, upd)
	if err != nil {
		return nil, handleRepoError("payment", err)
	}

	payment, err = s.paymentRepo.FindByReferenceID(db, referenceID)
	if err != nil {
		return nil, handleRepoError("payment", err)
	}

	if updated && newStatus != models.PaymentStatusPending {
		s.metrics.PaymentTransition(string(newStatus))
		logger.CtxInfo(ctx, "Payment status changed", "status", newStatus)
	}

	// при гонке строка могла уйти в терминальный статус другим путём
	s.repairEntitlement(ctx, db, payment)
	return payment, nil
}

// failOnGatewayError помечает платёж failed, если шлюз не ответил, в том
// числе по истечении дедлайна. Только отмена оставляет платёж pending.
func (s *paymentService) failOnGatewayError(ctx context.Context, db *gorm.DB, payment *models.Payment, gatewayErr error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(gatewayErr, context.Canceled) {
		return apperrors.ErrGatewayUnavailable(gatewayErr)
	}

	// запись не должна зависеть от истёкшего дедлайна проверки
	db = db.WithContext(context.WithoutCancel(ctx))
	msg := "Status check failed: " + gatewayErr.Error()
	updated, err := s.paymentRepo.UpdateStatusIfPending(db, payment.ReferenceID, repositories.PaymentStatusUpdate{
		Status:       models.PaymentStatusFailed,
		ErrorMessage: &msg,
	})
	if err != nil {
		logger.CtxWithError(ctx, "Failed to mark payment as failed", err)
	} else if updated {
		s.metrics.PaymentTransition(string(models.PaymentStatusFailed))
	}

	logger.CtxWithError(ctx, "Payment status check failed", gatewayErr)
	return apperrors.ErrGatewayUnavailable(gatewayErr)
}

// repairEntitlement выдаёт тариф успешному платежу, если он ещё не выдан.
// Ошибка не возвращается: платёж остаётся successful, сверка повторит попытку.
func (s *paymentService) repairEntitlement(ctx context.Context, db *gorm.DB, payment *models.Payment) {
	if payment.Status != models.PaymentStatusSuccessful || payment.EntitledAt != nil {
		return
	}
	if _, err := s.entitlement.EntitlePayment(ctx, db, payment); err != nil {
		s.metrics.EntitlementFailed()
		logger.CtxWithError(ctx, "Entitlement failed, left for reconciliation", err)
	}
}

func (s *paymentService) ListPayments(ctx context.Context, db *gorm.DB, userID string, page, pageSize int) (*dto.PaymentListResponse, error) {
	page, pageSize, offset := dto.NormalizePage(page, pageSize)
	payments, total, err := s.paymentRepo.FindByUser(db, userID, pageSize, offset)
	if err != nil {
		return nil, handleRepoError("payment", err)
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	return &dto.PaymentListResponse{Payments: payments, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *paymentService) PollPending(ctx context.Context, db *gorm.DB, olderThan time.Duration, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}
	pending, err := s.paymentRepo.FindPendingOlderThan(db, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, handleRepoError("payment", err)
	}

	checked := 0
	for _, payment := range pending {
		if ctx.Err() != nil {
			return checked, ctx.Err()
		}
		if _, err := s.CheckPaymentStatus(ctx, db, payment.ReferenceID); err != nil {
			logger.CtxWithError(ctx, "Pending payment check failed", err, "reference_id", payment.ReferenceID)
		}
		checked++
	}
	return checked, nil
}
