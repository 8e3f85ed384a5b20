package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ieltsprediction/payment-server/internal/pkg/email"
)

const (
	defaultMaxAttempts = 3
	popTimeout         = 5 * time.Second
)

// Queue 邮件队列
type Queue interface {
	Push(ctx context.Context, msg *email.Message) error
	Pop(ctx context.Context, timeout time.Duration) (*email.Message, error)
}

// Sender 实际发送方，生产环境为 email.Service
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Processor 消费邮件队列并通过 SMTP 发送
type Processor struct {
	queue       Queue
	sender      Sender
	timeout     time.Duration
	maxAttempts int
	log         *slog.Logger
}

// NewProcessor 创建邮件处理器
func NewProcessor(queue Queue, sender Sender, timeout time.Duration, log *slog.Logger) *Processor {
	return &Processor{
		queue:       queue,
		sender:      sender,
		timeout:     timeout,
		maxAttempts: defaultMaxAttempts,
		log:         log,
	}
}

// Process 发送一封邮件，失败时重新入队，超过次数后丢弃
func (p *Processor) Process(ctx context.Context, msg *email.Message) error {
	sendCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	err := p.sender.Send(sendCtx, msg.To, msg.Subject, msg.HTML)
	if err == nil {
		p.log.Info("mail sent", "to", msg.To, "subject", msg.Subject, "attempts", msg.Attempts+1)
		return nil
	}

	msg.Attempts++
	if msg.Attempts >= p.maxAttempts {
		p.log.Error("mail dropped after retries",
			"alert", true,
			"to", msg.To,
			"subject", msg.Subject,
			"attempts", msg.Attempts,
			"error", err,
		)
		return err
	}

	p.log.Warn("mail send failed, requeueing", "to", msg.To, "attempts", msg.Attempts, "error", err)
	if pushErr := p.queue.Push(context.WithoutCancel(ctx), msg); pushErr != nil {
		p.log.Error("requeue mail failed", "to", msg.To, "error", pushErr)
	}
	return err
}

// Run 启动 workers 个消费协程，ctx 取消后等待全部退出
func (p *Processor) Run(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.loop(ctx, workerID)
		}(i)
	}
	wg.Wait()
}

func (p *Processor) loop(ctx context.Context, workerID int) {
	log := p.log.With("worker", workerID)
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			return
		default:
		}

		msg, err := p.queue.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("pop mail failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if msg == nil {
			continue // 超时，继续等待
		}

		_ = p.Process(ctx, msg)
	}
}
