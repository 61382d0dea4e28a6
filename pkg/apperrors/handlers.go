package apperrors

import (
	"docvault_backend/internal/logger"

	"github.com/gin-gonic/gin"
)

// ErrorResponse - стандартный ответ об ошибке
type ErrorResponse struct {
	Error *AppError `json:"error"`
}

// GinErrorHandler - обработчик ошибок для Gin
type GinErrorHandler struct {
	Debug bool
}

// HandleGinError - основная логика обработки ошибок для Gin
func (h *GinErrorHandler) HandleGinError(c *gin.Context, err error) {
	appErr, ok := AsAppError(err)
	if !ok {
		appErr = InternalError(err)
	}
	if appErr.HTTPCode >= 500 {
		logger.CtxError(c.Request.Context(), "Server error", "error", err, "path", c.Request.URL.Path)
		if !h.Debug {
			// В продакшене не раскрываем детали внутренних ошибок
			appErr = &AppError{Code: appErr.Code, Domain: appErr.Domain, Message: appErr.Message, HTTPCode: appErr.HTTPCode}
		}
	}

	c.AbortWithStatusJSON(appErr.HTTPCode, ErrorResponse{Error: appErr})
}

// debugErrors переключается из app.Run в зависимости от окружения
var debugErrors = true

// SetDebug включает или выключает вывод деталей 5xx
func SetDebug(debug bool) {
	debugErrors = debug
}

// HandleError - быстрая функция-помощник для Gin
func HandleError(c *gin.Context, err error) {
	handler := &GinErrorHandler{Debug: debugErrors}
	handler.HandleGinError(c, err)
}
