package dto

import (
	"docvault_backend/internal/models"

	"github.com/shopspring/decimal"
)

// PaymentRequest - тело POST /payments
type PaymentRequest struct {
	Amount       decimal.Decimal `json:"amount" swaggertype:"string" example:"12.50"`
	Currency     string          `json:"currency,omitempty" validate:"omitempty,payment_currency" example:"XAF"`
	PhoneNumber  string          `json:"phone_number" validate:"required,msisdn" example:"237612345678"`
	PayerMessage string          `json:"payer_message,omitempty" validate:"max=160"`
	PayeeNote    string          `json:"payee_note,omitempty" validate:"max=160"`
}

type PaymentListResponse struct {
	Payments []models.Payment `json:"payments"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}
