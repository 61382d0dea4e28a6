package services

import (
	"context"
	"errors"
	"time"

	"docvault_backend/internal/billing"
	"docvault_backend/internal/logger"
	"docvault_backend/internal/metrics"
	"docvault_backend/internal/models"
	"docvault_backend/internal/repositories"
	"docvault_backend/internal/services/dto"
	"docvault_backend/pkg/apperrors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"

	webhookProviderStripe = "stripe"
)

// WebhookService принимает события провайдера подписок.
// До проверки подписи ничего не пишется в БД.
type WebhookService interface {
	HandleStripeEvent(ctx context.Context, db *gorm.DB, payload []byte, signature string) (string, error)
}

type webhookService struct {
	verifier    billing.WebhookVerifier
	prices      billing.PriceBook
	eventRepo   repositories.WebhookEventRepository
	entitlement EntitlementService
	metrics     *metrics.Metrics
}

func NewWebhookService(
	verifier billing.WebhookVerifier,
	prices billing.PriceBook,
	eventRepo repositories.WebhookEventRepository,
	entitlement EntitlementService,
	m *metrics.Metrics,
) WebhookService {
	return &webhookService{
		verifier:    verifier,
		prices:      prices,
		eventRepo:   eventRepo,
		entitlement: entitlement,
		metrics:     m,
	}
}

func (s *webhookService) HandleStripeEvent(ctx context.Context, db *gorm.DB, payload []byte, signature string) (string, error) {
	ev, err := s.verifier.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			s.metrics.WebhookEvent("unknown", "invalid_signature")
			logger.CtxWarn(ctx, "Webhook signature rejected", "error", err.Error())
			return "", apperrors.ErrInvalidSignature(err)
		}
		s.metrics.WebhookEvent("unknown", "malformed")
		return "", apperrors.ErrInvalidInput("webhook", err.Error())
	}

	record, duplicate, err := s.record(db, ev, payload)
	if err != nil {
		return "", err
	}
	if duplicate {
		s.metrics.WebhookEvent(ev.Type, WebhookDuplicate)
		logger.CtxInfo(ctx, "Webhook event already processed", "event_id", ev.ID)
		return WebhookDuplicate, nil
	}

	result, err := s.process(ctx, db, ev)
	if err != nil {
		s.metrics.WebhookEvent(ev.Type, "error")
		return "", err
	}

	if err := s.eventRepo.MarkProcessed(db, record.ID, time.Now()); err != nil {
		return "", handleRepoError("webhook", err)
	}

	s.metrics.WebhookEvent(ev.Type, result)
	logger.CtxInfo(ctx, "Webhook event handled", "event_id", ev.ID, "type", ev.Type, "result", result)
	return result, nil
}

// record сохраняет событие; принятое, но не обработанное событие обрабатывается повторно
func (s *webhookService) record(db *gorm.DB, ev *billing.Event, payload []byte) (*models.WebhookEvent, bool, error) {
	record := &models.WebhookEvent{
		Provider:  webhookProviderStripe,
		EventID:   ev.ID,
		EventType: ev.Type,
		Payload:   datatypes.JSON(payload),
	}
	err := s.eventRepo.Create(db, record)
	if err == nil {
		return record, false, nil
	}
	if !errors.Is(err, repositories.ErrWebhookEventExists) {
		return nil, false, handleRepoError("webhook", err)
	}

	existing, err := s.eventRepo.FindByProviderEvent(db, webhookProviderStripe, ev.ID)
	if err != nil {
		return nil, false, handleRepoError("webhook", err)
	}
	return existing, existing.ProcessedAt != nil, nil
}

func (s *webhookService) process(ctx context.Context, db *gorm.DB, ev *billing.Event) (string, error) {
	change := ev.Subscription
	if change == nil {
		return WebhookIgnored, nil
	}

	upd := dto.ProviderSubscriptionUpdate{
		SubscriptionID:   change.SubscriptionID,
		CustomerID:       change.CustomerID,
		UserID:           change.UserID,
		Status:           change.Status,
		CurrentPeriodEnd: change.CurrentPeriodEnd,
	}

	switch ev.Type {
	case billing.EventSubscriptionDeleted:
		upd.Status = models.SubscriptionStatusCanceled
	case billing.EventSubscriptionUpdated:
		if upd.Status == models.SubscriptionStatusActive {
			if plan, ok := s.prices.PlanFor(change.PriceID); ok {
				upd.Plan = &plan
			} else {
				logger.CtxWarn(ctx, "Webhook price is not mapped to a plan", "price_id", change.PriceID)
			}
		}
	default:
		return WebhookIgnored, nil
	}

	if _, err := s.entitlement.UpdateProviderSubscription(ctx, db, upd); err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			logger.CtxWarn(ctx, "Webhook for unknown subscription", "provider_subscription_id", change.SubscriptionID)
			return WebhookIgnored, nil
		}
		return "", err
	}
	return WebhookProcessed, nil
}
