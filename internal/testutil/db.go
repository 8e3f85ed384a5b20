package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/afero"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ieltsprediction/payment-server/internal/model"
	"github.com/ieltsprediction/payment-server/internal/store"
)

// SetupTestDB 创建测试数据库（SQLite 内存模式）
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect test database: %v", err)
	}

	// 内存库每个连接独立，限制为单连接
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get underlying DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&model.ReconciliationEffect{},
		&model.WebhookDelivery{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("Warning: Failed to get underlying DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		t.Logf("Warning: Failed to close test database: %v", err)
	}
}

// SetupTestRedis 启动 miniredis
func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return mr, client, cleanup
}

// NewMemStore 内存文件系统上的文档存储
func NewMemStore() store.Store {
	return store.NewFileStore(afero.NewMemMapFs(), "/data")
}

// FailingStore 所有读写都返回 Err，用于模拟存储故障
type FailingStore struct {
	Err error
}

func (s *FailingStore) Get(_ context.Context, _, _ string) ([]byte, error) {
	return nil, s.Err
}

func (s *FailingStore) Set(_ context.Context, _, _ string, _ []byte) error {
	return s.Err
}

// FlakyStore 包装 Store，可以让指定命名空间的写入失败
type FlakyStore struct {
	store.Store

	mu      sync.Mutex
	failSet map[string]error
}

func NewFlakyStore(inner store.Store) *FlakyStore {
	return &FlakyStore{
		Store:   inner,
		failSet: make(map[string]error),
	}
}

// FailSets 之后该命名空间的 Set 返回 err
func (s *FlakyStore) FailSets(namespace string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSet[namespace] = err
}

// Heal 恢复正常写入
func (s *FlakyStore) Heal(namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failSet, namespace)
}

func (s *FlakyStore) Set(ctx context.Context, namespace, key string, doc []byte) error {
	s.mu.Lock()
	err := s.failSet[namespace]
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Set(ctx, namespace, key, doc)
}
