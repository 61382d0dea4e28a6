package middleware

import (
	"strings"

	"docvault_backend/internal/auth"
	"docvault_backend/internal/logger"
	"docvault_backend/pkg/apperrors"
	"docvault_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware проверяет Bearer JWT и кладёт ID пользователя в контекст
func AuthMiddleware(issuer *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			apperrors.HandleError(c, apperrors.NewUnauthorizedError("Authorization header missing or invalid"))
			return
		}

		claims, err := issuer.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			apperrors.HandleError(c, apperrors.NewUnauthorizedError("Invalid token"))
			return
		}

		userID := claims.UserID()
		c.Set(contextkeys.UserIDKey, userID)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// GetUserID извлекает ID пользователя из контекста
func GetUserID(c *gin.Context) string {
	return c.GetString(contextkeys.UserIDKey)
}
