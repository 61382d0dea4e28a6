package services

import (
	"context"
	"fmt"

	"docvault_backend/internal/logger"
	"docvault_backend/internal/metrics"
	"docvault_backend/internal/quota"
	"docvault_backend/internal/repositories"
	"docvault_backend/internal/services/dto"
	"docvault_backend/pkg/apperrors"

	"gorm.io/gorm"
)

const (
	QuotaStorage   = "storage"
	QuotaDocuments = "documents"
)

// QuotaService проверяет лимиты по текущим строкам БД, без кеша.
// Для записи документа вызывающий держит блокировку пользователя.
type QuotaService interface {
	CheckStorage(ctx context.Context, db *gorm.DB, userID string, incoming int64) error
	CheckDocumentCount(ctx context.Context, db *gorm.DB, userID string) error
	Usage(ctx context.Context, db *gorm.DB, userID string) (*dto.UsageResponse, error)
}

type quotaService struct {
	policy  *quota.Policy
	subRepo repositories.SubscriptionRepository
	docRepo repositories.DocumentRepository
	metrics *metrics.Metrics
}

func NewQuotaService(
	policy *quota.Policy,
	subRepo repositories.SubscriptionRepository,
	docRepo repositories.DocumentRepository,
	m *metrics.Metrics,
) QuotaService {
	return &quotaService{policy: policy, subRepo: subRepo, docRepo: docRepo, metrics: m}
}

func (s *quotaService) CheckStorage(ctx context.Context, db *gorm.DB, userID string, incoming int64) error {
	if incoming < 0 {
		return apperrors.ErrInvalidInput("quota", "file size must not be negative")
	}

	sub, err := s.subRepo.FindByUserID(db, userID)
	if err != nil {
		return handleRepoError("quota", err)
	}

	limit := sub.StorageLimitBytes
	if quota.IsUnlimited(limit) {
		return nil
	}

	used, err := s.docRepo.SumFileSize(db, userID)
	if err != nil {
		return handleRepoError("quota", err)
	}

	if !quota.Fits(used, incoming, limit) {
		s.metrics.QuotaRejected(QuotaStorage)
		logger.CtxInfo(ctx, "Storage quota exceeded", "used", used, "incoming", incoming, "limit", limit)
		return apperrors.ErrQuotaExceeded(QuotaStorage,
			fmt.Sprintf("storage quota exceeded: %d of %d bytes used, %d more requested", used, limit, incoming))
	}
	return nil
}

func (s *quotaService) CheckDocumentCount(ctx context.Context, db *gorm.DB, userID string) error {
	sub, err := s.subRepo.FindByUserID(db, userID)
	if err != nil {
		return handleRepoError("quota", err)
	}

	limit := s.policy.DocumentLimit(sub.Plan)
	if quota.IsUnlimited(limit) {
		return nil
	}

	count, err := s.docRepo.CountByUser(db, userID)
	if err != nil {
		return handleRepoError("quota", err)
	}

	if count >= limit {
		s.metrics.QuotaRejected(QuotaDocuments)
		logger.CtxInfo(ctx, "Document quota exceeded", "count", count, "limit", limit)
		return apperrors.ErrQuotaExceeded(QuotaDocuments,
			fmt.Sprintf("document quota exceeded: %d of %d documents stored", count, limit))
	}
	return nil
}

func (s *quotaService) Usage(ctx context.Context, db *gorm.DB, userID string) (*dto.UsageResponse, error) {
	sub, err := s.subRepo.FindByUserID(db, userID)
	if err != nil {
		return nil, handleRepoError("quota", err)
	}
	used, err := s.docRepo.SumFileSize(db, userID)
	if err != nil {
		return nil, handleRepoError("quota", err)
	}
	count, err := s.docRepo.CountByUser(db, userID)
	if err != nil {
		return nil, handleRepoError("quota", err)
	}

	docLimit := s.policy.DocumentLimit(sub.Plan)
	return &dto.UsageResponse{
		Plan:              sub.Plan,
		Status:            sub.Status,
		StorageLimitBytes: sub.StorageLimitBytes,
		StorageUsedBytes:  used,
		DocumentLimit:     docLimit,
		DocumentCount:     count,
		Unlimited:         quota.IsUnlimited(docLimit),
	}, nil
}
