package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ieltsprediction/payment-server/config"
	"github.com/ieltsprediction/payment-server/internal/api/handler"
	"github.com/ieltsprediction/payment-server/internal/api/middleware"
)

type Router struct {
	webhookHandler  *handler.WebhookHandler
	referralHandler *handler.ReferralHandler
	orderHandler    *handler.OrderHandler
	adminHandler    *handler.AdminHandler
	eventsHandler   *handler.PaymentEventsHandler
	cfg             *config.Config
}

func NewRouter(
	webhookHandler *handler.WebhookHandler,
	referralHandler *handler.ReferralHandler,
	orderHandler *handler.OrderHandler,
	adminHandler *handler.AdminHandler,
	eventsHandler *handler.PaymentEventsHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		webhookHandler:  webhookHandler,
		referralHandler: referralHandler,
		orderHandler:    orderHandler,
		adminHandler:    adminHandler,
		eventsHandler:   eventsHandler,
		cfg:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))
	engine.HandleMethodNotAllowed = true
	engine.NoMethod(handler.MethodNotAllowed)

	webhookAuth := middleware.WebhookSecret(r.cfg.Payment.SecretHeader, r.cfg.Payment.WebhookSecret)

	// 银行回调
	engine.POST("/api/webhooks/bank-transfer", webhookAuth, r.webhookHandler.BankTransfer)

	// 推广链接
	engine.GET("/r/:code", r.referralHandler.Click)

	api := engine.Group("/api/v1")
	api.POST("/webhooks/bank-transfer", webhookAuth, r.webhookHandler.BankTransfer)

	// 到账推送（token 在 query 中校验）
	if r.eventsHandler != nil {
		api.GET("/ws", r.eventsHandler.Handle)
	}

	// 需要认证的接口
	authenticated := api.Group("")
	authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
	{
		orders := authenticated.Group("/orders")
		{
			orders.POST("", r.orderHandler.Create)
			orders.GET("/:id", r.orderHandler.Get)
		}

		// 管理后台
		admin := authenticated.Group("/admin")
		admin.Use(middleware.AdminOnly(r.cfg.Admin))
		{
			admin.POST("/affiliates/:id/approve", r.adminHandler.ApproveAffiliate)
			admin.POST("/affiliates/:id/reject", r.adminHandler.RejectAffiliate)
			admin.GET("/affiliates/:id/commissions", r.adminHandler.ListCommissions)
			admin.POST("/commissions/:id/pay", r.adminHandler.PayCommission)
			admin.GET("/webhook-deliveries", r.adminHandler.ListDeliveries)
		}
	}

	return engine
}
