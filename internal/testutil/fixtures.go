package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ieltsprediction/payment-server/internal/model"
	"github.com/ieltsprediction/payment-server/internal/store"
)

// TestOrder 写入一笔待支付订单
func TestOrder(t *testing.T, st store.Store, opts ...func(*model.Order)) *model.Order {
	t.Helper()

	ref := fmt.Sprintf("IELTS PREDICTION %d", time.Now().UnixNano())
	order := &model.Order{
		ID:             uuid.NewString(),
		OrderReference: ref,
		UserID:         "user-" + uuid.NewString()[:8],
		PackageKind:    model.PackageBundle,
		DurationMonths: 1,
		Amount:         200000,
		Status:         model.OrderStatusPending,
		PaymentMethod:  "bank_transfer",
		TransferMemo:   ref,
		CreatedAt:      time.Now(),
	}

	for _, opt := range opts {
		opt(order)
	}

	appendRecord(t, st, store.NamespaceOrders, store.KeyOrders, order)
	return order
}

// WithReference 设置订单号（同时作为转账备注）
func WithReference(ref string) func(*model.Order) {
	return func(o *model.Order) {
		o.OrderReference = ref
		o.TransferMemo = ref
	}
}

// WithTransferMemo 单独设置转账备注
func WithTransferMemo(memo string) func(*model.Order) {
	return func(o *model.Order) {
		o.TransferMemo = memo
	}
}

// WithAmount 设置金额
func WithAmount(amount int64) func(*model.Order) {
	return func(o *model.Order) {
		o.Amount = amount
	}
}

// WithOrderStatus 设置状态
func WithOrderStatus(status string) func(*model.Order) {
	return func(o *model.Order) {
		o.Status = status
	}
}

// WithReferrer 设置推广码
func WithReferrer(code string) func(*model.Order) {
	return func(o *model.Order) {
		o.ReferrerCode = code
	}
}

// WithUserID 设置用户
func WithUserID(userID string) func(*model.Order) {
	return func(o *model.Order) {
		o.UserID = userID
	}
}

// WithDuration 设置购买月数
func WithDuration(months int) func(*model.Order) {
	return func(o *model.Order) {
		o.DurationMonths = months
	}
}

// TestAffiliate 写入一个推广者
func TestAffiliate(t *testing.T, st store.Store, status, customLink string) *model.Affiliate {
	t.Helper()

	now := time.Now()
	affiliate := &model.Affiliate{
		ID:         uuid.NewString(),
		UserID:     "aff-user-" + uuid.NewString()[:8],
		Status:     status,
		CustomLink: customLink,
		CreatedAt:  now,
	}
	if status == model.AffiliateStatusApproved {
		affiliate.ApprovedAt = &now
	}

	appendRecord(t, st, store.NamespaceAffiliate, store.KeyAffiliates, affiliate)
	return affiliate
}

// TestLink 写入一条推广链接
func TestLink(t *testing.T, st store.Store, affiliateID, code string) *model.Link {
	t.Helper()

	link := &model.Link{
		ID:          uuid.NewString(),
		AffiliateID: affiliateID,
		CustomLink:  code,
		CreatedAt:   time.Now(),
	}

	appendRecord(t, st, store.NamespaceAffiliate, store.KeyLinks, link)
	return link
}

// TestVisit 写入一次未转化的点击
func TestVisit(t *testing.T, st store.Store, affiliateID, linkID string) *model.Visit {
	t.Helper()

	visit := &model.Visit{
		ID:          uuid.NewString(),
		AffiliateID: affiliateID,
		LinkID:      linkID,
		CreatedAt:   time.Now(),
	}

	appendRecord(t, st, store.NamespaceAffiliate, store.KeyVisits, visit)
	return visit
}

func appendRecord[T any](t *testing.T, st store.Store, namespace, key string, item *T) {
	t.Helper()

	ctx := context.Background()
	c, err := store.Load[T](ctx, st, namespace, key)
	if err != nil {
		t.Fatalf("Failed to load %s/%s: %v", namespace, key, err)
	}
	c.Append(item)
	if err := c.Save(ctx); err != nil {
		t.Fatalf("Failed to save %s/%s: %v", namespace, key, err)
	}
}
