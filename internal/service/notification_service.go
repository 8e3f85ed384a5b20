package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ieltsprediction/payment-server/internal/pkg/email"
)

// Sender 邮件发送方：email.Service 直接走 SMTP，queue.MailQueue 写入队列
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// NotificationService 付款确认（客户）和新付款通知（管理员）两封邮件
type NotificationService struct {
	sender     Sender
	adminEmail string
	timeout    time.Duration
	log        *slog.Logger
}

func NewNotificationService(sender Sender, adminEmail string, timeout time.Duration, log *slog.Logger) *NotificationService {
	return &NotificationService{
		sender:     sender,
		adminEmail: adminEmail,
		timeout:    timeout,
		log:        log,
	}
}

// NotifyCustomer 没有客户邮箱时跳过
func (s *NotificationService) NotifyCustomer(ctx context.Context, facts email.PaymentFacts) bool {
	if facts.CustomerEmail == "" {
		s.log.Info("customer email unknown, skipping confirmation", "order_reference", facts.OrderReference)
		return false
	}

	subject, body := email.CustomerConfirmation(facts)
	ok := runSoft(ctx, s.log, "customer_email", s.timeout, func(ctx context.Context) error {
		return s.sender.Send(ctx, facts.CustomerEmail, subject, body)
	})
	if ok {
		s.log.Info("customer confirmation sent", "order_reference", facts.OrderReference, "to", facts.CustomerEmail)
	}
	return ok
}

func (s *NotificationService) NotifyAdmin(ctx context.Context, facts email.PaymentFacts) bool {
	if s.adminEmail == "" {
		s.log.Warn("admin email not configured, skipping payment notice", "order_reference", facts.OrderReference)
		return false
	}

	subject, body := email.AdminPaymentNotice(facts)
	ok := runSoft(ctx, s.log, "admin_email", s.timeout, func(ctx context.Context) error {
		return s.sender.Send(ctx, s.adminEmail, subject, body)
	})
	if ok {
		s.log.Info("admin payment notice sent", "order_reference", facts.OrderReference)
	}
	return ok
}
