package routes

import (
	"context"
	"net/http"
	"time"

	_ "docvault_backend/docs"
	"docvault_backend/internal/handlers"
	"docvault_backend/internal/logger"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Service - служебные маршруты вне /api/v1
type Service struct {
	DB      *gorm.DB
	Metrics http.Handler
	Swagger bool
}

// RegisterRoutes регистрирует API v1 и служебные маршруты
func RegisterRoutes(
	ginRouter *gin.Engine,
	appHandlers *handlers.AppHandlers,
	svc Service,
) {
	api := ginRouter.Group("/api/v1")
	{
		appHandlers.AuthHandler.RegisterRoutes(api)
		appHandlers.PaymentHandler.RegisterRoutes(api)
		appHandlers.SubscriptionHandler.RegisterRoutes(api)
		appHandlers.DocumentHandler.RegisterRoutes(api)
		appHandlers.WebhookHandler.RegisterRoutes(api)
		if appHandlers.FileHandler != nil {
			appHandlers.FileHandler.RegisterRoutes(api)
		}
	}

	ginRouter.GET("/health", healthHandler(svc.DB))
	if svc.Metrics != nil {
		ginRouter.GET("/metrics", gin.WrapH(svc.Metrics))
	}
	if svc.Swagger {
		ginRouter.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		logger.Info("Swagger UI registered", "path", "/swagger/index.html")
	}
}

// healthHandler godoc
// @Summary Проверка состояния
// @Tags service
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			logger.CtxWarn(c.Request.Context(), "Health check failed", "error", err.Error())
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up"})
	}
}
