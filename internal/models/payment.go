package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment - одна попытка оплаты. Строки никогда не удаляются.
type Payment struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	ReferenceID         string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"reference_id"`
	ProviderReferenceID string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"provider_reference_id"`
	UserID              string          `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Amount              decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency            string          `gorm:"type:varchar(3);not null" json:"currency"`
	PhoneNumber         string          `gorm:"type:varchar(20);not null" json:"phone_number"`
	Provider            PaymentProvider `gorm:"type:varchar(20);not null" json:"provider"`
	Status              PaymentStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	ProviderResponse    datatypes.JSON  `json:"provider_response,omitempty"`
	ErrorMessage        *string         `json:"error_message,omitempty"`
	Metadata            datatypes.JSON  `json:"metadata,omitempty"`
	// EntitledAt выставляется в той же транзакции, что применяет тариф
	EntitledAt *time.Time `gorm:"index" json:"entitled_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// PaymentMetadata - содержимое колонки metadata
type PaymentMetadata struct {
	PayerMessage string `json:"payer_message"`
	PayeeNote    string `json:"payee_note"`
}
