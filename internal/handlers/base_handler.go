package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"docvault_backend/internal/logger"
	"docvault_backend/internal/validator"
	"docvault_backend/pkg/apperrors"
	"docvault_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type BaseHandler struct {
	validator *validator.Validator
	// RequireAuth - middleware проверки JWT для защищённых групп
	RequireAuth gin.HandlerFunc
}

func NewBaseHandler(v *validator.Validator, requireAuth gin.HandlerFunc) *BaseHandler {
	return &BaseHandler{
		validator:   v,
		RequireAuth: requireAuth,
	}
}

// GetDB извлекает *gorm.DB (пул или транзакцию) из gin.Context.
// Без DBMiddleware приложение сконфигурировано неверно, поэтому паника.
func (h *BaseHandler) GetDB(c *gin.Context) *gorm.DB {
	dbKey := string(contextkeys.DBContextKey)

	val, ok := c.Get(dbKey)
	if !ok {
		logger.CtxError(c.Request.Context(), "critical error: db key not found in context", "key", dbKey)
		panic("critical error: DBMiddleware did not set the db key")
	}

	db, ok := val.(*gorm.DB)
	if !ok {
		logger.CtxError(c.Request.Context(), "critical error: db in context is not *gorm.DB", "key", dbKey, "type", fmt.Sprintf("%T", val))
		panic("critical error: db in context has incorrect type")
	}

	return db
}

func (h *BaseHandler) BindAndValidate_JSON(c *gin.Context, obj interface{}) bool {
	ctx := c.Request.Context()

	if err := c.ShouldBindJSON(obj); err != nil {
		logger.CtxWarn(ctx, "Failed to bind JSON body", "error", err.Error(), "path", c.Request.URL.Path)
		apperrors.HandleError(c, apperrors.ErrInvalidInput("request", "Invalid request body: "+err.Error()))
		return false
	}
	return h.validate(c, obj)
}

func (h *BaseHandler) validate(c *gin.Context, obj interface{}) bool {
	ctx := c.Request.Context()

	err := h.validator.Validate(obj)
	if err == nil {
		return true
	}

	var vErr *validator.ValidationError
	if errors.As(err, &vErr) {
		logger.CtxWarn(ctx, "Validation failed", "errors", vErr.Errors, "path", c.Request.URL.Path)
		apperrors.HandleError(c, apperrors.ValidationError(vErr.Errors))
	} else {
		logger.CtxWithError(ctx, "Internal validator error", err, "path", c.Request.URL.Path)
		apperrors.HandleError(c, apperrors.InternalError(err))
	}
	return false
}

func (h *BaseHandler) HandleServiceError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		if appErr.HTTPCode < 500 {
			logger.CtxWarn(ctx, "Service error",
				"code", appErr.Code,
				"error", appErr.Message,
				"path", c.Request.URL.Path,
			)
		}
		apperrors.HandleError(c, appErr)
		return
	}
	apperrors.HandleError(c, apperrors.InternalError(err))
}

func (h *BaseHandler) GetAndAuthorizeUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(contextkeys.UserIDKey)
	if userID == "" {
		logger.CtxWarn(c.Request.Context(), "Unauthorized access: userID not found in context",
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
		)
		apperrors.HandleError(c, apperrors.NewUnauthorizedError("User not authenticated"))
		return "", false
	}
	return userID, true
}

func ParseQueryInt(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// ParsePagination; нормализация границ делается в сервисах
func ParsePagination(c *gin.Context) (page int, pageSize int) {
	return ParseQueryInt(c, "page", 1), ParseQueryInt(c, "page_size", 20)
}
