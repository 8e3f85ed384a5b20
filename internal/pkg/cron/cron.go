package cron

import (
	"context"
	"log/slog"
	"time"
)

// DeliveryPruner 回调记录清理
type DeliveryPruner interface {
	PruneDeliveries(ctx context.Context, before time.Time) (int64, error)
}

// Service 定时清理过期的回调记录
type Service struct {
	pruner        DeliveryPruner
	retentionDays int
	loc           *time.Location
	log           *slog.Logger
	now           func() time.Time
	stopChan      chan struct{}
}

func NewService(pruner DeliveryPruner, retentionDays int, loc *time.Location, log *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		pruner:        pruner,
		retentionDays: retentionDays,
		loc:           loc,
		log:           log,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
}

// Start 启动定时任务，retentionDays <= 0 时不启动
func (s *Service) Start() {
	if s.retentionDays <= 0 {
		s.log.Info("webhook delivery pruning disabled")
		return
	}
	go s.runDailyPrune()
	s.log.Info("cron service started", "retention_days", s.retentionDays)
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	s.log.Info("cron service stopped")
}

// runDailyPrune 每天业务时区凌晨执行一次
func (s *Service) runDailyPrune() {
	timer := time.NewTimer(s.untilNextMidnight())

	for {
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			if _, err := s.RunNow(context.Background()); err != nil {
				s.log.Error("prune webhook deliveries failed", "error", err)
			}
			timer.Reset(s.untilNextMidnight())
		}
	}
}

func (s *Service) untilNextMidnight() time.Duration {
	now := s.now().In(s.loc)
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, s.loc)
	return next.Sub(now)
}

// RunNow 立即清理（用于测试或手动触发）
func (s *Service) RunNow(ctx context.Context) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	n, err := s.pruner.PruneDeliveries(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("pruned webhook deliveries", "count", n, "before", cutoff.Format(time.RFC3339))
	}
	return n, nil
}
