package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent - журнал входящих событий провайдера; (provider, event_id)
// уникальна, повторная доставка распознаётся по ней.
type WebhookEvent struct {
	ID          uint           `gorm:"primaryKey"`
	Provider    string         `gorm:"type:varchar(32);not null;uniqueIndex:idx_webhook_provider_event"`
	EventID     string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_webhook_provider_event"`
	EventType   string         `gorm:"type:varchar(128);not null"`
	Payload     datatypes.JSON `gorm:"not null"`
	ProcessedAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// All возвращает модели для AutoMigrate
func All() []interface{} {
	return []interface{}{
		&User{},
		&Subscription{},
		&Payment{},
		&Document{},
		&WebhookEvent{},
	}
}
