package repositories

import (
	"errors"

	"docvault_backend/database"
	"docvault_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSubscriptionExists   = errors.New("subscription already exists")
)

type SubscriptionRepository interface {
	Create(db *gorm.DB, sub *models.Subscription) error
	// CreateIfAbsent вставляет строку через ON CONFLICT DO NOTHING и не
	// обрывает транзакцию, если подписка пользователя уже есть
	CreateIfAbsent(db *gorm.DB, sub *models.Subscription) (bool, error)
	FindByUserID(db *gorm.DB, userID string) (*models.Subscription, error)
	// FindByUserIDForUpdate берёт строку под SELECT ... FOR UPDATE; вызывать внутри транзакции
	FindByUserIDForUpdate(db *gorm.DB, userID string) (*models.Subscription, error)
	FindByProviderSubscriptionID(db *gorm.DB, providerSubscriptionID string) (*models.Subscription, error)
	Save(db *gorm.DB, sub *models.Subscription) error
}

type subscriptionRepository struct{}

func NewSubscriptionRepository() SubscriptionRepository {
	return &subscriptionRepository{}
}

func (r *subscriptionRepository) Create(db *gorm.DB, sub *models.Subscription) error {
	if err := db.Create(sub).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return ErrSubscriptionExists
		}
		return err
	}
	return nil
}

func (r *subscriptionRepository) CreateIfAbsent(db *gorm.DB, sub *models.Subscription) (bool, error) {
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(sub)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *subscriptionRepository) FindByUserID(db *gorm.DB, userID string) (*models.Subscription, error) {
	return r.findOne(db.Where("user_id = ?", userID))
}

func (r *subscriptionRepository) FindByUserIDForUpdate(db *gorm.DB, userID string) (*models.Subscription, error) {
	return r.findOne(db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID))
}

func (r *subscriptionRepository) FindByProviderSubscriptionID(db *gorm.DB, providerSubscriptionID string) (*models.Subscription, error) {
	return r.findOne(db.Where("provider_subscription_id = ?", providerSubscriptionID))
}

func (r *subscriptionRepository) Save(db *gorm.DB, sub *models.Subscription) error {
	return db.Save(sub).Error
}

func (r *subscriptionRepository) findOne(query *gorm.DB) (*models.Subscription, error) {
	var sub models.Subscription
	if err := query.First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}
