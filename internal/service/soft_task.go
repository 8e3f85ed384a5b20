package service

import (
	"context"
	"log/slog"
	"time"
)

// runSoft 同步执行一个非关键步骤：带超时，失败只记录日志，返回是否成功
func runSoft(ctx context.Context, log *slog.Logger, name string, timeout time.Duration, fn func(ctx context.Context) error) bool {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	if err := fn(ctx); err != nil {
		log.Warn("soft task failed",
			"task", name,
			"error", err,
			"elapsed", time.Since(start),
		)
		return false
	}
	return true
}
