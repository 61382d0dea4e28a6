package handlers

import (
	"net/http"

	"docvault_backend/internal/quota"
	"docvault_backend/internal/services"
	"docvault_backend/internal/services/dto"
	"docvault_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	*BaseHandler
	subscriptionService services.SubscriptionService
}

func NewSubscriptionHandler(base *BaseHandler, subscriptionService services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		BaseHandler:         base,
		subscriptionService: subscriptionService,
	}
}

func (h *SubscriptionHandler) RegisterRoutes(r *gin.RouterGroup) {
	subscription := r.Group("/subscription")
	subscription.Use(h.RequireAuth)
	{
		subscription.GET("", h.GetSubscription)
		subscription.GET("/usage", h.GetUsage)
		subscription.POST("", h.Subscribe)
		subscription.POST("/cancel", h.Cancel)
	}
}

// GetSubscription godoc
// @Summary Текущая подписка
// @Tags subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Subscription
// @Router /subscription [get]
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	sub, err := h.subscriptionService.Get(c.Request.Context(), h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// GetUsage godoc
// @Summary Использование квоты
// @Tags subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.UsageResponse
// @Router /subscription/usage [get]
func (h *SubscriptionHandler) GetUsage(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	usage, err := h.subscriptionService.Usage(c.Request.Context(), h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

// Subscribe godoc
// @Summary Оформить регулярную подписку
// @Description Платные тарифы оформляются через Stripe; тариф выдаётся, когда Stripe сообщает активный статус
// @Tags subscription
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.SubscribeRequest true "Тариф"
// @Success 200 {object} models.Subscription
// @Failure 400 {object} apperrors.ErrorResponse
// @Failure 409 {object} apperrors.ErrorResponse
// @Failure 503 {object} apperrors.ErrorResponse
// @Router /subscription [post]
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.SubscribeRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}
	plan, err := quota.ParsePlan(req.Plan)
	if err != nil {
		h.HandleServiceError(c, apperrors.ErrInvalidInput("subscription", err.Error()))
		return
	}

	sub, err := h.subscriptionService.Subscribe(c.Request.Context(), h.GetDB(c), userID, plan)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// Cancel godoc
// @Summary Отменить подписку
// @Tags subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Subscription
// @Failure 503 {object} apperrors.ErrorResponse
// @Router /subscription/cancel [post]
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	sub, err := h.subscriptionService.Cancel(c.Request.Context(), h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}
