package repositories

import (
	"errors"
	"time"

	"docvault_backend/database"
	"docvault_backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrPaymentDuplicate = errors.New("payment with this reference already exists")
)

// PaymentStatusUpdate - поля, меняющиеся при сверке со шлюзом
type PaymentStatusUpdate struct {
	Status           models.PaymentStatus
	ProviderResponse datatypes.JSON
	ErrorMessage     *string
}

// PaymentRepository - журнал платежей. Строки никогда не удаляются.
type PaymentRepository interface {
	Create(db *gorm.DB, payment *models.Payment) error
	ExistsByReferenceID(db *gorm.DB, referenceID string) (bool, error)
	FindByReferenceID(db *gorm.DB, referenceID string) (*models.Payment, error)

	// UpdateStatusIfPending меняет статус только у платежа в pending.
	// false означает, что платёж уже терминальный и строка не тронута.
	UpdateStatusIfPending(db *gorm.DB, referenceID string, upd PaymentStatusUpdate) (bool, error)

	// MarkEntitled фиксирует применение тарифа; повторный вызов ничего не меняет
	MarkEntitled(db *gorm.DB, paymentID uint, at time.Time) (bool, error)

	FindByUser(db *gorm.DB, userID string, limit, offset int) ([]models.Payment, int64, error)
	FindPendingOlderThan(db *gorm.DB, before time.Time, limit int) ([]models.Payment, error)
	FindUnentitledSuccessful(db *gorm.DB, limit int) ([]models.Payment, error)
}

type paymentRepository struct{}

func NewPaymentRepository() PaymentRepository {
	return &paymentRepository{}
}

func (r *paymentRepository) Create(db *gorm.DB, payment *models.Payment) error {
	if err := db.Create(payment).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return ErrPaymentDuplicate
		}
		return err
	}
	return nil
}

func (r *paymentRepository) ExistsByReferenceID(db *gorm.DB, referenceID string) (bool, error) {
	var count int64
	err := db.Model(&models.Payment{}).Where("reference_id = ?", referenceID).Count(&count).Error
	return count > 0, err
}

func (r *paymentRepository) FindByReferenceID(db *gorm.DB, referenceID string) (*models.Payment, error) {
	var payment models.Payment
	if err := db.Where("reference_id = ?", referenceID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) UpdateStatusIfPending(db *gorm.DB, referenceID string, upd PaymentStatusUpdate) (bool, error) {
	fields := map[string]interface{}{
		"status":     upd.Status,
		"updated_at": time.Now(),
	}
	if upd.ProviderResponse != nil {
		fields["provider_response"] = upd.ProviderResponse
	}
	if upd.ErrorMessage != nil {
		fields["error_message"] = *upd.ErrorMessage
	}

	result := db.Model(&models.Payment{}).
		Where("reference_id = ? AND status = ?", referenceID, models.PaymentStatusPending).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *paymentRepository) MarkEntitled(db *gorm.DB, paymentID uint, at time.Time) (bool, error) {
	result := db.Model(&models.Payment{}).
		Where("id = ? AND status = ? AND entitled_at IS NULL", paymentID, models.PaymentStatusSuccessful).
		Updates(map[string]interface{}{"entitled_at": at, "updated_at": at})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *paymentRepository) FindByUser(db *gorm.DB, userID string, limit, offset int) ([]models.Payment, int64, error) {
	var total int64
	query := db.Model(&models.Payment{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []models.Payment
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&payments).Error
	return payments, total, err
}

func (r *paymentRepository) FindPendingOlderThan(db *gorm.DB, before time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := db.Where("status = ? AND created_at < ?", models.PaymentStatusPending, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) FindUnentitledSuccessful(db *gorm.DB, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := db.Where("status = ? AND entitled_at IS NULL", models.PaymentStatusSuccessful).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
