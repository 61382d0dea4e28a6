package repositories

import (
	"errors"

	"docvault_backend/internal/models"

	"gorm.io/gorm"
)

var ErrDocumentNotFound = errors.New("document not found")

type DocumentRepository interface {
	Create(db *gorm.DB, doc *models.Document) error
	FindByIDForUser(db *gorm.DB, id, userID string) (*models.Document, error)
	FindByUser(db *gorm.DB, userID string, limit, offset int) ([]models.Document, int64, error)
	Delete(db *gorm.DB, id, userID string) error

	// Агрегаты для квот. Всегда считаются по текущим строкам.
	SumFileSize(db *gorm.DB, userID string) (int64, error)
	CountByUser(db *gorm.DB, userID string) (int64, error)
}

type documentRepository struct{}

func NewDocumentRepository() DocumentRepository {
	return &documentRepository{}
}

func (r *documentRepository) Create(db *gorm.DB, doc *models.Document) error {
	return db.Create(doc).Error
}

func (r *documentRepository) FindByIDForUser(db *gorm.DB, id, userID string) (*models.Document, error) {
	var doc models.Document
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) FindByUser(db *gorm.DB, userID string, limit, offset int) ([]models.Document, int64, error) {
	var total int64
	if err := db.Model(&models.Document{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var docs []models.Document
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&docs).Error
	return docs, total, err
}

func (r *documentRepository) Delete(db *gorm.DB, id, userID string) error {
	result := db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Document{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *documentRepository) SumFileSize(db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.Model(&models.Document{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(file_size), 0)").
		Scan(&total).Error
	return total, err
}

func (r *documentRepository) CountByUser(db *gorm.DB, userID string) (int64, error) {
	var count int64
	err := db.Model(&models.Document{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
