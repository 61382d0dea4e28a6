package models

import (
	"time"

	"docvault_backend/internal/quota"
)

// Subscription - одна строка на пользователя. Не удаляется: отмена
// переводит её на бесплатный тариф.
type Subscription struct {
	BaseModel
	UserID                 string             `gorm:"type:varchar(36);uniqueIndex;not null" json:"user_id"`
	Plan                   quota.Plan         `gorm:"type:varchar(20);not null" json:"plan"`
	StorageLimitBytes      int64              `gorm:"not null" json:"storage_limit_bytes"`
	Status                 SubscriptionStatus `gorm:"type:varchar(20);not null" json:"status"`
	CurrentPeriodEnd       *time.Time         `json:"current_period_end,omitempty"`
	ProviderCustomerID     *string            `gorm:"type:varchar(255)" json:"provider_customer_id,omitempty"`
	ProviderSubscriptionID *string            `gorm:"type:varchar(255);index" json:"provider_subscription_id,omitempty"`
}
