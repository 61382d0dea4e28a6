package helpers

import (
	"fmt"
	"testing"

	"docvault_backend/database"
	"docvault_backend/internal/models"
	"docvault_backend/internal/quota"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewTestDB поднимает изолированную in-memory SQLite с мигрированной схемой.
// Одно соединение: SQLite в shared-cache не любит параллельных писателей.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Options{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		LogLevel:     gormlogger.Silent,
	})
	require.NoError(t, err, "Не удалось открыть тестовую БД")
	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateUser создает пользователя с захешированным паролем
func CreateUser(t *testing.T, db *gorm.DB, email, password string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{Email: email, PasswordHash: string(hash)}
	require.NoError(t, db.Create(user).Error, "Не удалось создать пользователя %s", email)
	return user
}

// CreateSubscription создает строку подписки с лимитом, согласованным с политикой
func CreateSubscription(t *testing.T, db *gorm.DB, userID string, plan quota.Plan) *models.Subscription {
	t.Helper()

	sub := &models.Subscription{
		UserID:            userID,
		Plan:              plan,
		StorageLimitBytes: quota.DefaultPolicy().StorageLimit(plan),
		Status:            models.SubscriptionStatusActive,
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

// CreateDocuments добавляет строки документов заданных размеров без файлов в хранилище
func CreateDocuments(t *testing.T, db *gorm.DB, userID string, sizes ...int64) {
	t.Helper()

	for _, size := range sizes {
		doc := &models.Document{
			UserID:     userID,
			Filename:   "seed.bin",
			FileSize:   size,
			MimeType:   "application/octet-stream",
			StorageKey: userID + "/" + uuid.NewString(),
		}
		require.NoError(t, db.Create(doc).Error)
	}
}
