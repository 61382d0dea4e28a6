package repositories

import (
	"errors"
	"time"

	"docvault_backend/database"
	"docvault_backend/internal/models"

	"gorm.io/gorm"
)

// ErrWebhookEventExists - событие с таким (provider, event_id) уже принято
var ErrWebhookEventExists = errors.New("webhook event already recorded")

type WebhookEventRepository interface {
	Create(db *gorm.DB, event *models.WebhookEvent) error
	FindByProviderEvent(db *gorm.DB, provider, eventID string) (*models.WebhookEvent, error)
	MarkProcessed(db *gorm.DB, id uint, at time.Time) error
}

type webhookEventRepository struct{}

func NewWebhookEventRepository() WebhookEventRepository {
	return &webhookEventRepository{}
}

func (r *webhookEventRepository) Create(db *gorm.DB, event *models.WebhookEvent) error {
	if err := db.Create(event).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return ErrWebhookEventExists
		}
		return err
	}
	return nil
}

func (r *webhookEventRepository) FindByProviderEvent(db *gorm.DB, provider, eventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := db.Where("provider = ? AND event_id = ?", provider, eventID).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *webhookEventRepository) MarkProcessed(db *gorm.DB, id uint, at time.Time) error {
	return db.Model(&models.WebhookEvent{}).Where("id = ?", id).Update("processed_at", at).Error
}
