package handlers

import (
	"errors"
	"io"
	"net/http"

	"docvault_backend/internal/services"
	"docvault_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

const (
	// MaxWebhookBodyBytes - события Stripe заметно меньше
	MaxWebhookBodyBytes   = 65536
	stripeSignatureHeader = "Stripe-Signature"
)

type WebhookHandler struct {
	*BaseHandler
	webhookService services.WebhookService
}

func NewWebhookHandler(base *BaseHandler, webhookService services.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler:    base,
		webhookService: webhookService,
	}
}

// RegisterRoutes: без JWT, подлинность проверяется подписью
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/stripe", h.HandleStripe)
	}
}

// HandleStripe godoc
// @Summary Webhook Stripe
// @Description Принимает customer.subscription.updated / deleted. Повторная доставка подтверждается без повторной обработки.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Подпись Stripe"
// @Success 200 {object} map[string]string
// @Failure 400 {object} apperrors.ErrorResponse "Неверная подпись"
// @Failure 413 {object} apperrors.ErrorResponse
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apperrors.HandleError(c, apperrors.New(apperrors.CodeInvalidInput, "webhook", "payload too large", http.StatusRequestEntityTooLarge))
			return
		}
		apperrors.HandleError(c, apperrors.ErrInvalidInput("webhook", "failed to read body"))
		return
	}

	result, err := h.webhookService.HandleStripeEvent(c.Request.Context(), h.GetDB(c), body, c.GetHeader(stripeSignatureHeader))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": result})
}
