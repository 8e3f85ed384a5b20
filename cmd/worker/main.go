package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ieltsprediction/payment-server/config"
	"github.com/ieltsprediction/payment-server/internal/database"
	"github.com/ieltsprediction/payment-server/internal/pkg/email"
	"github.com/ieltsprediction/payment-server/internal/pkg/logger"
	"github.com/ieltsprediction/payment-server/internal/pkg/queue"
	"github.com/ieltsprediction/payment-server/internal/worker"
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

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	mailQueue := queue.NewMailQueue(rdb, cfg.Queue.MailQueue)
	processor := worker.NewProcessor(mailQueue, email.NewService(&cfg.Email), cfg.Email.Timeout, slogger)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	log.Printf("Mail worker started, queue: %s, max workers: %d", cfg.Queue.MailQueue, cfg.Queue.MaxWorkers)

	// 阻塞直到所有 worker 退出
	processor.Run(ctx, cfg.Queue.MaxWorkers)
	log.Println("Worker shutdown complete")
}
