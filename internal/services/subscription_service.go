package services

import (
	"context"
	"errors"
	"net/http"

	"docvault_backend/internal/billing"
	"docvault_backend/internal/logger"
	"docvault_backend/internal/models"
	"docvault_backend/internal/quota"
	"docvault_backend/internal/repositories"
	"docvault_backend/internal/services/dto"
	"docvault_backend/pkg/apperrors"

	"gorm.io/gorm"
)

type SubscriptionService interface {
	// Get возвращает подписку, создавая free при первом обращении
	Get(ctx context.Context, db *gorm.DB, userID string) (*models.Subscription, error)
	Usage(ctx context.Context, db *gorm.DB, userID string) (*dto.UsageResponse, error)
	Subscribe(ctx context.Context, db *gorm.DB, userID string, plan quota.Plan) (*models.Subscription, error)
	Cancel(ctx context.Context, db *gorm.DB, userID string) (*models.Subscription, error)
}

type subscriptionService struct {
	policy      *quota.Policy
	subRepo     repositories.SubscriptionRepository
	userRepo    repositories.UserRepository
	quota       QuotaService
	entitlement EntitlementService
	billing     billing.Provider
	prices      billing.PriceBook
}

func NewSubscriptionService(
	policy *quota.Policy,
	subRepo repositories.SubscriptionRepository,
	userRepo repositories.UserRepository,
	quotaService QuotaService,
	entitlement EntitlementService,
	provider billing.Provider,
	prices billing.PriceBook,
) SubscriptionService {
	if provider == nil {
		provider = billing.DisabledProvider{}
	}
	return &subscriptionService{
		policy:      policy,
		subRepo:     subRepo,
		userRepo:    userRepo,
		quota:       quotaService,
		entitlement: entitlement,
		billing:     provider,
		prices:      prices,
	}
}

func (s *subscriptionService) Get(ctx context.Context, db *gorm.DB, userID string) (*models.Subscription, error) {
	sub, err := s.subRepo.FindByUserID(db, userID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, repositories.ErrSubscriptionNotFound) {
		return nil, handleRepoError("subscription", err)
	}

	sub = newFreeSubscription(s.policy, userID)
	if err := s.subRepo.Create(db, sub); err != nil {
		if errors.Is(err, repositories.ErrSubscriptionExists) {
			existing, findErr := s.subRepo.FindByUserID(db, userID)
			if findErr != nil {
				return nil, handleRepoError("subscription", findErr)
			}
			return existing, nil
		}
		return nil, handleRepoError("subscription", err)
	}
	logger.CtxInfo(ctx, "Free subscription created on first access", "user_id", userID)
	return sub, nil
}

func (s *subscriptionService) Usage(ctx context.Context, db *gorm.DB, userID string) (*dto.UsageResponse, error) {
	if _, err := s.Get(ctx, db, userID); err != nil {
		return nil, err
	}
	return s.quota.Usage(ctx, db, userID)
}

func (s *subscriptionService) Subscribe(ctx context.Context, db *gorm.DB, userID string, plan quota.Plan) (*models.Subscription, error) {
	if !plan.Valid() {
		return nil, apperrors.ErrInvalidInput("subscription", "unknown plan")
	}

	sub, err := s.Get(ctx, db, userID)
	if err != nil {
		return nil, err
	}

	if plan == quota.PlanFree {
		if sub.ProviderSubscriptionID != nil {
			return s.Cancel(ctx, db, userID)
		}
		return s.entitlement.ApplyPlan(ctx, db, userID, quota.PlanFree)
	}

	priceID, ok := s.prices.PriceFor(plan)
	if !ok {
		return nil, apperrors.ErrInvalidInput("subscription", "plan is not available for recurring billing")
	}
	if sub.ProviderSubscriptionID != nil && sub.Status == models.SubscriptionStatusActive {
		return nil, apperrors.ErrDuplicateRequest("subscription", "a recurring subscription is already active, cancel it first")
	}

	user, err := s.userRepo.FindByID(db, userID)
	if err != nil {
		return nil, handleRepoError("subscription", err)
	}

	customerID := ""
	if sub.ProviderCustomerID != nil {
		customerID = *sub.ProviderCustomerID
	}

	created, err := s.billing.CreateSubscription(ctx, userID, user.Email, customerID, priceID)
	if err != nil {
		return nil, handleBillingError(err)
	}

	upd := dto.ProviderSubscriptionUpdate{
		SubscriptionID:   created.SubscriptionID,
		CustomerID:       created.CustomerID,
		UserID:           userID,
		Status:           created.Status,
		CurrentPeriodEnd: created.CurrentPeriodEnd,
	}
	if created.Status == models.SubscriptionStatusActive {
		upd.Plan = &plan
	}

	logger.CtxInfo(ctx, "Recurring subscription created",
		"plan", plan,
		"provider_subscription_id", created.SubscriptionID,
		"status", created.Status,
	)
	return s.entitlement.UpdateProviderSubscription(ctx, db, upd)
}

func (s *subscriptionService) Cancel(ctx context.Context, db *gorm.DB, userID string) (*models.Subscription, error) {
	sub, err := s.Get(ctx, db, userID)
	if err != nil {
		return nil, err
	}

	if sub.ProviderSubscriptionID != nil {
		if err := s.billing.CancelSubscription(ctx, *sub.ProviderSubscriptionID); err != nil {
			return nil, handleBillingError(err)
		}
	}
	return s.entitlement.CancelPlan(ctx, db, userID)
}

func handleBillingError(err error) error {
	if errors.Is(err, billing.ErrNotConfigured) {
		return apperrors.Wrap(err, apperrors.CodeGatewayUnavailable, "subscription",
			"Recurring billing is not configured", http.StatusServiceUnavailable)
	}
	return apperrors.ErrGatewayUnavailable(err)
}
