package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ieltsprediction/payment-server/internal/pkg/response"
	"github.com/ieltsprediction/payment-server/internal/service"
)

type AdminHandler struct {
	affiliateService *service.AffiliateService
	webhookService   *service.WebhookService
}

func NewAdminHandler(affiliateService *service.AffiliateService, webhookService *service.WebhookService) *AdminHandler {
	return &AdminHandler{
		affiliateService: affiliateService,
		webhookService:   webhookService,
	}
}

// ApproveAffiliate 审核通过
// POST /api/v1/admin/affiliates/:id/approve
func (h *AdminHandler) ApproveAffiliate(c *gin.Context) {
	info, err := h.affiliateService.ApproveAffiliate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.reviewError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已通过", info)
}

// RejectAffiliate 审核拒绝
// POST /api/v1/admin/affiliates/:id/reject
func (h *AdminHandler) RejectAffiliate(c *gin.Context) {
	info, err := h.affiliateService.RejectAffiliate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.reviewError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已拒绝", info)
}

func (h *AdminHandler) reviewError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAffiliateNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrAffiliateNotPending):
		response.ConflictError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}

// ListCommissions 推广者佣金明细
// GET /api/v1/admin/affiliates/:id/commissions
func (h *AdminHandler) ListCommissions(c *gin.Context) {
	summary, err := h.affiliateService.ListCommissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrAffiliateNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}
	response.Success(c, summary)
}

// PayCommission 标记佣金已支付
// POST /api/v1/admin/commissions/:id/pay
func (h *AdminHandler) PayCommission(c *gin.Context) {
	info, err := h.affiliateService.MarkCommissionPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCommissionNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrCommissionAlreadyPaid):
			response.DuplicateError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}
	response.SuccessWithMessage(c, "已标记支付", info)
}

// ListDeliveries 最近的银行回调
// GET /api/v1/admin/webhook-deliveries?outcome=rejected&limit=50
func (h *AdminHandler) ListDeliveries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	deliveries, err := h.webhookService.RecentDeliveries(c.Request.Context(), c.Query("outcome"), limit)
	if err != nil {
		response.ServerError(c, "")
		return
	}
	response.Success(c, deliveries)
}
