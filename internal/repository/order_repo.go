package repository

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/ieltsprediction/payment-server/internal/model"
	"github.com/ieltsprediction/payment-server/internal/store"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderExists       = errors.New("order already exists")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// OrderRepository 订单列表，存放在文档存储的 orders/orders 中
type OrderRepository struct {
	store store.Store
	log   *slog.Logger
}

func NewOrderRepository(st store.Store, log *slog.Logger) *OrderRepository {
	return &OrderRepository{
		store: st,
		log:   log,
	}
}

func (r *OrderRepository) load(ctx context.Context) (*store.Collection[model.Order], error) {
	orders, err := store.Load[model.Order](ctx, r.store, store.NamespaceOrders, store.KeyOrders)
	if err != nil {
		return nil, errors.Wrap(err, "load orders")
	}
	if orders.Corrupt() {
		r.log.Error("orders document is corrupt, treating as empty", "alert", true)
	} else if n := orders.Skipped(); n > 0 {
		r.log.Warn("skipped malformed order records", "count", n)
	}
	return orders, nil
}

func (r *OrderRepository) Create(ctx context.Context, order *model.Order) error {
	orders, err := r.load(ctx)
	if err != nil {
		return err
	}

	if orders.Find(func(o *model.Order) bool { return o.ID == order.ID }) != nil {
		return ErrOrderExists
	}

	orders.Append(order)
	return orders.Save(ctx)
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	orders, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	order := orders.Find(func(o *model.Order) bool { return o.ID == id })
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListByStatus 按存储顺序返回指定状态的订单
func (r *OrderRepository) ListByStatus(ctx context.Context, status string) ([]*model.Order, error) {
	orders, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	var result []*model.Order
	for _, o := range orders.Items {
		if o.Status == status {
			result = append(result, o)
		}
	}
	return result, nil
}

// FindByReference 根据转账备注查找订单。
// 先精确匹配 orderReference / transferMemo，再做空白归一化后的双向子串匹配，
// 多个命中时取存储顺序中的第一个（最早创建）。
func (r *OrderRepository) FindByReference(ctx context.Context, memo string) (*model.Order, error) {
	if strings.TrimSpace(memo) == "" {
		return nil, ErrOrderNotFound
	}

	orders, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	if order := orders.Find(func(o *model.Order) bool {
		return o.OrderReference == memo || (o.TransferMemo != "" && o.TransferMemo == memo)
	}); order != nil {
		return order, nil
	}

	needle := normalizeWhitespace(memo)
	if order := orders.Find(func(o *model.Order) bool {
		return relaxedMatch(needle, o.OrderReference) || relaxedMatch(needle, o.TransferMemo)
	}); order != nil {
		r.log.Info("order matched by relaxed reference", "memo", memo, "order_reference", order.OrderReference)
		return order, nil
	}

	return nil, ErrOrderNotFound
}

// MarkCompleted pending -> completed，已完成时直接返回当前订单
func (r *OrderRepository) MarkCompleted(ctx context.Context, id string) (*model.Order, error) {
	return r.transition(ctx, id, model.OrderStatusCompleted)
}

// Cancel pending -> cancelled
func (r *OrderRepository) Cancel(ctx context.Context, id string) (*model.Order, error) {
	return r.transition(ctx, id, model.OrderStatusCancelled)
}

func (r *OrderRepository) transition(ctx context.Context, id, target string) (*model.Order, error) {
	// 写之前重新读取最新列表
	orders, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	order := orders.Find(func(o *model.Order) bool { return o.ID == id })
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if order.Status == target {
		return order, nil
	}
	if order.Status != model.OrderStatusPending {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s -> %s", order.Status, target)
	}

	order.Status = target
	if err := orders.Save(ctx); err != nil {
		return nil, errors.Wrapf(err, "save order %s", id)
	}
	return order, nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func relaxedMatch(needle, candidate string) bool {
	c := normalizeWhitespace(candidate)
	if needle == "" || c == "" {
		return false
	}
	return strings.Contains(needle, c) || strings.Contains(c, needle)
}
