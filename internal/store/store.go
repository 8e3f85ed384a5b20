// Package store 提供按命名空间划分的 JSON 文档读写，后端可以是 Redis 或本地文件系统。
package store

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/ieltsprediction/payment-server/config"
)

// 命名空间与文档键
const (
	NamespaceOrders    = "orders"
	NamespaceAffiliate = "affiliate"

	KeyOrders      = "orders"
	KeyAffiliates  = "affiliates"
	KeyLinks       = "links"
	KeyCommissions = "commissions"
	KeyVisits      = "visits"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrCorruptDocument = errors.New("document is not a JSON array")
)

// Store 文档存储，整份读取、整份写回，不提供事务
type Store interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, doc []byte) error
}

// Open 按配置选择后端，redis 驱动需要传入已连接的 client
func Open(cfg config.StoreConfig, client *redis.Client) (Store, error) {
	switch cfg.Driver {
	case "", "redis":
		if client == nil {
			return nil, errors.New("redis store requires a redis client")
		}
		return NewRedisStore(client, cfg.KeyPrefix), nil
	case "file":
		return NewOSFileStore(cfg.Root), nil
	default:
		return nil, errors.Errorf("unknown store driver: %s", cfg.Driver)
	}
}
