package handlers

import (
	"net/http"

	"docvault_backend/internal/logger"
	"docvault_backend/internal/services"
	"docvault_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	*BaseHandler
	paymentService services.PaymentService
}

func NewPaymentHandler(base *BaseHandler, paymentService services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler:    base,
		paymentService: paymentService,
	}
}

func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/payments")
	payments.Use(h.RequireAuth)
	{
		payments.POST("", h.RequestPayment)
		payments.GET("", h.ListPayments)
		payments.GET("/:referenceId", h.CheckPaymentStatus)
	}
}

// RequestPayment godoc
// @Summary Запросить оплату через MTN MoMo
// @Description Отправляет request-to-pay на кошелёк плательщика и сохраняет платёж в статусе pending
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.PaymentRequest true "Сумма и номер плательщика"
// @Success 201 {object} models.Payment
// @Failure 400 {object} apperrors.ErrorResponse
// @Failure 409 {object} apperrors.ErrorResponse "Повторный запрос"
// @Failure 503 {object} apperrors.ErrorResponse "Шлюз недоступен"
// @Router /payments [post]
func (h *PaymentHandler) RequestPayment(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.PaymentRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	payment, err := h.paymentService.RequestPayment(c.Request.Context(), h.GetDB(c), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

// ListPayments godoc
// @Summary История платежей
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param page query int false "Страница" default(1)
// @Param page_size query int false "Размер страницы" default(20)
// @Success 200 {object} dto.PaymentListResponse
// @Router /payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	page, pageSize := ParsePagination(c)
	resp, err := h.paymentService.ListPayments(c.Request.Context(), h.GetDB(c), userID, page, pageSize)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CheckPaymentStatus godoc
// @Summary Проверить статус платежа
// @Description Опрашивает шлюз для pending-платежа; при успехе применяет тариф
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param referenceId path string true "reference_id платежа"
// @Success 200 {object} models.Payment
// @Failure 404 {object} apperrors.ErrorResponse
// @Failure 503 {object} apperrors.ErrorResponse
// @Router /payments/{referenceId} [get]
func (h *PaymentHandler) CheckPaymentStatus(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	referenceID := c.Param("referenceId")
	ctx := logger.WithReferenceID(c.Request.Context(), referenceID)

	payment, err := h.paymentService.CheckUserPaymentStatus(ctx, h.GetDB(c), userID, referenceID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}
