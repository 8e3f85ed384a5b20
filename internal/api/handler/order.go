package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/ieltsprediction/payment-server/internal/api/middleware"
	"github.com/ieltsprediction/payment-server/internal/model/dto"
	"github.com/ieltsprediction/payment-server/internal/pkg/response"
	"github.com/ieltsprediction/payment-server/internal/service"
)

type OrderHandler struct {
	orderService *service.OrderService
	cookieName   string
}

func NewOrderHandler(orderService *service.OrderService, cookieName string) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		cookieName:   cookieName,
	}
}

// Create 创建待支付订单，返回转账信息
// POST /api/v1/orders
func (h *OrderHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	referrer, _ := c.Cookie(h.cookieName)

	info, err := h.orderService.Create(c.Request.Context(), userID, &req, referrer)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSkillRequired),
			errors.Is(err, service.ErrSkillNotAllowed),
			errors.Is(err, service.ErrPackageUnavailable):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "订单已创建", info)
}

// Get 查看自己的订单
// GET /api/v1/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	info, err := h.orderService.GetOrder(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrOrderPermission):
			response.PermissionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, info)
}
