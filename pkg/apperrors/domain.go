package apperrors

import (
	"fmt"
	"net/http"
)

/*
Фабрики доменных ошибок. Каждая возвращает новый экземпляр:
общие переменные с WithDetails портили бы друг другу детали.
*/

// ErrInvalidInput - ошибка вызывающей стороны, ядро её не повторяет (400)
func ErrInvalidInput(domain, message string) *AppError {
	return New(CodeInvalidInput, domain, message, http.StatusBadRequest)
}

// ErrNotFound - платёж, подписка, документ или пользователь не найдены (404)
func ErrNotFound(domain, resource string) *AppError {
	return New(CodeNotFound, domain, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// ErrDuplicateRequest - сработала защита идемпотентности (409)
func ErrDuplicateRequest(domain, message string) *AppError {
	return New(CodeDuplicateRequest, domain, message, http.StatusConflict)
}

// ErrGatewayUnavailable - временный сбой платёжного шлюза, операцию можно повторить целиком (503)
func ErrGatewayUnavailable(err error) *AppError {
	return Wrap(err, CodeGatewayUnavailable, "payment", "Payment gateway unavailable", http.StatusServiceUnavailable)
}

// ErrQuotaExceeded - отказ политики квот, а не баг (403)
func ErrQuotaExceeded(kind, message string) *AppError {
	return New(CodeQuotaExceeded, "quota", message, http.StatusForbidden).
		WithDetails(map[string]string{"quota": kind})
}

// ErrInvalidSignature - подпись вебхука не прошла проверку (400)
func ErrInvalidSignature(err error) *AppError {
	return Wrap(err, CodeInvalidSignature, "webhook", "Webhook signature verification failed", http.StatusBadRequest)
}

// ErrInternal - внутренняя ошибка с понятным сообщением для логов и клиента (500)
func ErrInternal(domain, message string, err error) *AppError {
	return Wrap(err, CodeInternalError, domain, message, http.StatusInternalServerError)
}
