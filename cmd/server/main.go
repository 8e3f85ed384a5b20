package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ieltsprediction/payment-server/config"
	"github.com/ieltsprediction/payment-server/internal/api"
	"github.com/ieltsprediction/payment-server/internal/api/handler"
	"github.com/ieltsprediction/payment-server/internal/database"
	"github.com/ieltsprediction/payment-server/internal/pkg/cron"
	"github.com/ieltsprediction/payment-server/internal/pkg/email"
	"github.com/ieltsprediction/payment-server/internal/pkg/logger"
	"github.com/ieltsprediction/payment-server/internal/pkg/profile"
	"github.com/ieltsprediction/payment-server/internal/pkg/pubsub"
	"github.com/ieltsprediction/payment-server/internal/pkg/queue"
	"github.com/ieltsprediction/payment-server/internal/pkg/ws"
	"github.com/ieltsprediction/payment-server/internal/repository"
	"github.com/ieltsprediction/payment-server/internal/service"
	"github.com/ieltsprediction/payment-server/internal/store"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	if cfg.Payment.WebhookSecret == "" {
		slogger.Warn("payment.webhook_secret is empty, all bank webhooks will be rejected")
	}

	// 初始化数据库（对账日志）
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis（文档存储 / 邮件队列）
	var rdb *redis.Client
	if cfg.Store.Driver != "file" || cfg.Email.Async {
		rdb, err = database.NewRedis(&cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect redis: %v", err)
		}
		log.Println("Redis connected")
	}

	docs, err := store.Open(cfg.Store, rdb)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}

	// 邮件：同步 SMTP 或写入队列
	var sender service.Sender = email.NewService(&cfg.Email)
	if cfg.Email.Async {
		sender = queue.NewMailQueue(rdb, cfg.Queue.MailQueue)
		log.Printf("Mail delivery via queue %s", cfg.Queue.MailQueue)
	}

	// 初始化 Repository
	orderRepo := repository.NewOrderRepository(docs, slogger)
	affiliateRepo := repository.NewAffiliateRepository(docs, slogger)
	logRepo := repository.NewReconciliationLogRepository(db)

	// 初始化 Service
	affiliateService := service.NewAffiliateService(affiliateRepo, &cfg.Affiliate, slogger)
	orderService := service.NewOrderService(orderRepo, affiliateService, cfg, slogger)
	notificationService := service.NewNotificationService(sender, cfg.Email.AdminEmail, cfg.Email.Timeout, slogger)
	webhookService := service.NewWebhookService(
		orderRepo,
		logRepo,
		affiliateService,
		notificationService,
		profile.NewClient(&cfg.Profile),
		cfg,
		slogger,
	)

	// 到账推送：回调写入 redis 频道，订阅后转发到用户的 websocket 连接
	wsHub := ws.NewHub(slogger)
	eventsCtx, stopEvents := context.WithCancel(context.Background())
	defer stopEvents()
	if rdb != nil {
		webhookService.SetEventPublisher(pubsub.NewPublisher(rdb))
		go func() {
			err := pubsub.NewSubscriber(rdb).Subscribe(eventsCtx, func(evt *pubsub.PaymentEvent) {
				_ = wsHub.SendToUser(evt.UserID, &ws.Message{Type: evt.Type, Data: evt})
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				slogger.Error("payment event subscription stopped", "error", err)
			}
		}()
		log.Println("Payment event hub started")
	}

	// 定时清理回调记录
	cronService := cron.NewService(logRepo, cfg.Payment.DeliveryRetentionDays, cfg.Subscription.Location(), slogger)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Handler
	webhookHandler := handler.NewWebhookHandler(webhookService, slogger)
	referralHandler := handler.NewReferralHandler(affiliateService, cfg.Affiliate, slogger)
	orderHandler := handler.NewOrderHandler(orderService, cfg.Affiliate.CookieName)
	adminHandler := handler.NewAdminHandler(affiliateService, webhookService)
	eventsHandler := handler.NewPaymentEventsHandler(wsHub, cfg.JWT.Secret, cfg.CORS.AllowedOrigins, slogger)

	// 初始化 Router
	router := api.NewRouter(
		webhookHandler,
		referralHandler,
		orderHandler,
		adminHandler,
		eventsHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal")

	// 正在处理的回调需要跑完
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slogger.Error("server shutdown failed", "error", err)
	}
	log.Println("Server shutdown complete")
}
