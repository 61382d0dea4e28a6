package services

import (
	"errors"

	"docvault_backend/internal/momo"
	"docvault_backend/internal/repositories"
	"docvault_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// handleRepoError переводит ошибки репозиториев в AppError
func handleRepoError(domain string, err error) error {
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repositories.ErrPaymentNotFound):
		return apperrors.ErrNotFound(domain, "payment")
	case errors.Is(err, repositories.ErrSubscriptionNotFound):
		return apperrors.ErrNotFound(domain, "subscription")
	case errors.Is(err, repositories.ErrDocumentNotFound):
		return apperrors.ErrNotFound(domain, "document")
	case errors.Is(err, repositories.ErrUserNotFound):
		return apperrors.ErrNotFound(domain, "user")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.ErrNotFound(domain, "record")
	case errors.Is(err, repositories.ErrPaymentDuplicate):
		return apperrors.ErrDuplicateRequest(domain, "payment request already recorded")
	case errors.Is(err, repositories.ErrUserAlreadyExists):
		return apperrors.ErrDuplicateRequest(domain, "user with this email already exists")
	}
	return apperrors.ErrInternal(domain, "database error", err)
}

// handleGatewayError - ошибки MoMo по их классу
func handleGatewayError(err error) error {
	switch momo.KindOf(err) {
	case momo.KindUnavailable:
		return apperrors.ErrGatewayUnavailable(err)
	case momo.KindRejected:
		return apperrors.ErrInvalidInput("payment", "payment rejected by gateway: "+err.Error())
	default:
		return apperrors.ErrInternal("payment", "payment gateway error", err)
	}
}
