package apperrors

// ErrorCode - тип для кодов ошибок
type ErrorCode string

// Коды, которые видит клиент. Набор стабилен: хэндлеры и тесты опираются на него.
const (
	// Ядро платежей и квот
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeDuplicateRequest   ErrorCode = "DUPLICATE_REQUEST"
	CodeGatewayUnavailable ErrorCode = "GATEWAY_UNAVAILABLE"
	CodeQuotaExceeded      ErrorCode = "QUOTA_EXCEEDED"
	CodeInternalError      ErrorCode = "INTERNAL_ERROR"

	// Транспорт
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodeForbidden        ErrorCode = "FORBIDDEN"
	CodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"
)
