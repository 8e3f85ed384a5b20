package main

import (
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/ieltsprediction/payment-server/config"
	"github.com/ieltsprediction/payment-server/internal/database"
	"github.com/ieltsprediction/payment-server/internal/pkg/email"
	"github.com/ieltsprediction/payment-server/internal/pkg/logger"
	"github.com/ieltsprediction/payment-server/internal/pkg/profile"
	"github.com/ieltsprediction/payment-server/internal/pkg/pubsub"
	"github.com/ieltsprediction/payment-server/internal/pkg/queue"
	"github.com/ieltsprediction/payment-server/internal/repository"
	"github.com/ieltsprediction/payment-server/internal/service"
	"github.com/ieltsprediction/payment-server/internal/store"
)

// deps 命令行共用的依赖，与 server 使用同一份配置
type deps struct {
	cfg      *config.Config
	log      *slog.Logger
	orders   *service.OrderService
	webhooks *service.WebhookService
	logRepo  *repository.ReconciliationLogRepository
}

func loadDeps() (*deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	slogger, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Store.Driver != "file" || cfg.Email.Async {
		rdb, err = database.NewRedis(&cfg.Redis)
		if err != nil {
			return nil, err
		}
	}

	docs, err := store.Open(cfg.Store, rdb)
	if err != nil {
		return nil, err
	}

	var sender service.Sender = email.NewService(&cfg.Email)
	if cfg.Email.Async {
		sender = queue.NewMailQueue(rdb, cfg.Queue.MailQueue)
	}

	orderRepo := repository.NewOrderRepository(docs, slogger)
	logRepo := repository.NewReconciliationLogRepository(db)
	affiliateService := service.NewAffiliateService(repository.NewAffiliateRepository(docs, slogger), &cfg.Affiliate, slogger)

	webhookService := service.NewWebhookService(
		orderRepo,
		logRepo,
		affiliateService,
		service.NewNotificationService(sender, cfg.Email.AdminEmail, cfg.Email.Timeout, slogger),
		profile.NewClient(&cfg.Profile),
		cfg,
		slogger,
	)
	if rdb != nil {
		webhookService.SetEventPublisher(pubsub.NewPublisher(rdb))
	}

	return &deps{
		cfg:      cfg,
		log:      slogger,
		orders:   service.NewOrderService(orderRepo, affiliateService, cfg, slogger),
		webhooks: webhookService,
		logRepo:  logRepo,
	}, nil
}
