package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ieltsprediction/payment-server/internal/model/dto"
	"github.com/ieltsprediction/payment-server/internal/service"
)

type WebhookHandler struct {
	webhookService *service.WebhookService
	log            *slog.Logger
}

func NewWebhookHandler(webhookService *service.WebhookService, log *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		log:            log,
	}
}

// BankTransfer 银行转账回调
// POST /api/webhooks/bank-transfer
func (h *WebhookHandler) BankTransfer(c *gin.Context) {
	var payload dto.BankTransferWebhook
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.Warn("malformed webhook body", "error", err)
		c.JSON(http.StatusBadRequest, dto.WebhookErrorResponse{
			Error:   "invalid payload",
			Message: err.Error(),
		})
		return
	}

	result, err := h.webhookService.Process(c.Request.Context(), &payload)
	status := result.HTTPStatus(err)

	if err == nil {
		c.JSON(http.StatusOK, dto.WebhookSuccessResponse{
			Success:        true,
			OrderReference: result.Order.OrderReference,
			Status:         result.Order.Status,
			Amount:         result.Order.Amount,
		})
		return
	}

	resp := dto.WebhookErrorResponse{Error: err.Error()}
	switch {
	case errors.Is(err, service.ErrAmountMismatch):
		expected, received := result.Order.Amount, result.Received
		resp.OrderReference = result.Order.OrderReference
		resp.Expected = &expected
		resp.Received = &received
	case errors.Is(err, service.ErrNoMatchingOrder):
		resp.Error = "order not found"
		resp.OrderReference = result.Reference
	case errors.Is(err, service.ErrOrderCancelled):
		resp.OrderReference = result.Order.OrderReference
	case status >= http.StatusInternalServerError:
		resp.Error = "internal error"
		resp.Message = err.Error()
	}

	c.JSON(status, resp)
}

// MethodNotAllowed 非 POST 请求
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
}
