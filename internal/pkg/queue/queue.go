package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ieltsprediction/payment-server/internal/pkg/email"
)

// MailQueue 异步邮件队列（redis list），worker 负责真正发送
type MailQueue struct {
	client    *redis.Client
	queueName string
}

func NewMailQueue(client *redis.Client, queueName string) *MailQueue {
	return &MailQueue{
		client:    client,
		queueName: queueName,
	}
}

// Send 入队即视为成功
func (q *MailQueue) Send(ctx context.Context, to, subject, html string) error {
	if to == "" {
		return fmt.Errorf("empty recipient")
	}
	return q.Push(ctx, &email.Message{
		To:      to,
		Subject: subject,
		HTML:    html,
	})
}

// Push 将邮件加入队列
func (q *MailQueue) Push(ctx context.Context, msg *email.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return q.client.LPush(ctx, q.queueName, data).Err()
}

// Pop 从队列获取邮件（阻塞）
func (q *MailQueue) Pop(ctx context.Context, timeout time.Duration) (*email.Message, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 超时，无邮件
		}
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}

	if len(result) < 2 {
		return nil, nil
	}

	var msg email.Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	return &msg, nil
}

// Length 获取队列长度
func (q *MailQueue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName).Result()
}
