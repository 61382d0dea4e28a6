package dto

import (
	"time"

	"docvault_backend/internal/models"
	"docvault_backend/internal/quota"
)

// SubscribeRequest - тело POST /subscriptions
type SubscribeRequest struct {
	Plan string `json:"plan" validate:"required,plan" example:"premium"`
}

// UsageResponse - текущее потребление и лимиты пользователя
type UsageResponse struct {
	Plan              quota.Plan                `json:"plan"`
	Status            models.SubscriptionStatus `json:"status"`
	StorageLimitBytes int64                     `json:"storage_limit_bytes"`
	StorageUsedBytes  int64                     `json:"storage_used_bytes"`
	DocumentLimit     int64                     `json:"document_limit"`
	DocumentCount     int64                     `json:"document_count"`
	Unlimited         bool                      `json:"unlimited_documents"`
}

// ProviderSubscriptionUpdate - изменение подписки у провайдера рекуррентных платежей
type ProviderSubscriptionUpdate struct {
	SubscriptionID   string
	CustomerID       string
	UserID           string
	Status           models.SubscriptionStatus
	Plan             *quota.Plan
	CurrentPeriodEnd *time.Time
}
