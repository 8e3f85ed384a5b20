package repository

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/ieltsprediction/payment-server/internal/model"
	"github.com/ieltsprediction/payment-server/internal/store"
)

var (
	ErrAffiliateNotFound  = errors.New("affiliate not found")
	ErrCommissionNotFound = errors.New("commission not found")
	ErrCommissionExists   = errors.New("commission already exists")
	ErrLinkExists         = errors.New("link code already taken")
)

// AffiliateRepository 推广者、链接、佣金、点击四个列表。
// 每个方法都重新读取最新文档后再修改写回。
type AffiliateRepository struct {
	store store.Store
	log   *slog.Logger
}

func NewAffiliateRepository(st store.Store, log *slog.Logger) *AffiliateRepository {
	return &AffiliateRepository{
		store: st,
		log:   log,
	}
}

func loadList[T any](ctx context.Context, r *AffiliateRepository, key string) (*store.Collection[T], error) {
	c, err := store.Load[T](ctx, r.store, store.NamespaceAffiliate, key)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", key)
	}
	if c.Corrupt() {
		r.log.Error("affiliate document is corrupt, treating as empty", "key", key, "alert", true)
	} else if n := c.Skipped(); n > 0 {
		r.log.Warn("skipped malformed affiliate records", "key", key, "count", n)
	}
	return c, nil
}

// ---- Affiliate ----

func (r *AffiliateRepository) CreateAffiliate(ctx context.Context, a *model.Affiliate) error {
	list, err := loadList[model.Affiliate](ctx, r, store.KeyAffiliates)
	if err != nil {
		return err
	}
	list.Append(a)
	return list.Save(ctx)
}

func (r *AffiliateRepository) GetAffiliate(ctx context.Context, id string) (*model.Affiliate, error) {
	list, err := loadList[model.Affiliate](ctx, r, store.KeyAffiliates)
	if err != nil {
		return nil, err
	}
	a := list.Find(func(a *model.Affiliate) bool { return a.ID == id })
	if a == nil {
		return nil, ErrAffiliateNotFound
	}
	return a, nil
}

func (r *AffiliateRepository) FindAffiliateByCustomLink(ctx context.Context, code string) (*model.Affiliate, error) {
	if code == "" {
		return nil, ErrAffiliateNotFound
	}
	list, err := loadList[model.Affiliate](ctx, r, store.KeyAffiliates)
	if err != nil {
		return nil, err
	}
	a := list.Find(func(a *model.Affiliate) bool { return a.CustomLink == code })
	if a == nil {
		return nil, ErrAffiliateNotFound
	}
	return a, nil
}

// UpdateAffiliate 用 mutate 修改指定推广者后写回
func (r *AffiliateRepository) UpdateAffiliate(ctx context.Context, id string, mutate func(*model.Affiliate) error) (*model.Affiliate, error) {
	list, err := loadList[model.Affiliate](ctx, r, store.KeyAffiliates)
	if err != nil {
		return nil, err
	}
	a := list.Find(func(a *model.Affiliate) bool { return a.ID == id })
	if a == nil {
		return nil, ErrAffiliateNotFound
	}
	if err := mutate(a); err != nil {
		return nil, err
	}
	if err := list.Save(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// ---- Link ----

func (r *AffiliateRepository) FindLinkByCode(ctx context.Context, code string) (*model.Link, error) {
	if code == "" {
		return nil, nil
	}
	list, err := loadList[model.Link](ctx, r, store.KeyLinks)
	if err != nil {
		return nil, err
	}
	return list.Find(func(l *model.Link) bool { return l.CustomLink == code }), nil
}

// FirstLinkOf 推广者的第一条链接，没有时返回 nil
func (r *AffiliateRepository) FirstLinkOf(ctx context.Context, affiliateID string) (*model.Link, error) {
	list, err := loadList[model.Link](ctx, r, store.KeyLinks)
	if err != nil {
		return nil, err
	}
	return list.Find(func(l *model.Link) bool { return l.AffiliateID == affiliateID }), nil
}

// CreateLink 写入新链接；同一推广者已有链接时返回已有的那条
func (r *AffiliateRepository) CreateLink(ctx context.Context, link *model.Link) (*model.Link, error) {
	list, err := loadList[model.Link](ctx, r, store.KeyLinks)
	if err != nil {
		return nil, err
	}
	if existing := list.Find(func(l *model.Link) bool { return l.AffiliateID == link.AffiliateID }); existing != nil {
		return existing, nil
	}
	if list.Find(func(l *model.Link) bool { return l.CustomLink == link.CustomLink }) != nil {
		return nil, ErrLinkExists
	}
	list.Append(link)
	if err := list.Save(ctx); err != nil {
		return nil, err
	}
	return link, nil
}

// ---- Commission ----

func (r *AffiliateRepository) FindCommission(ctx context.Context, affiliateID, orderID string) (*model.Commission, error) {
	list, err := loadList[model.Commission](ctx, r, store.KeyCommissions)
	if err != nil {
		return nil, err
	}
	return list.Find(func(c *model.Commission) bool {
		return c.AffiliateID == affiliateID && c.OrderID == orderID
	}), nil
}

// CreateCommission 写入前在最新列表上再检查一次 (affiliateId, orderId)
func (r *AffiliateRepository) CreateCommission(ctx context.Context, c *model.Commission) error {
	list, err := loadList[model.Commission](ctx, r, store.KeyCommissions)
	if err != nil {
		return err
	}
	if list.Find(func(e *model.Commission) bool {
		return e.AffiliateID == c.AffiliateID && e.OrderID == c.OrderID
	}) != nil {
		return ErrCommissionExists
	}
	list.Append(c)
	return list.Save(ctx)
}

func (r *AffiliateRepository) UpdateCommission(ctx context.Context, id string, mutate func(*model.Commission) error) (*model.Commission, error) {
	list, err := loadList[model.Commission](ctx, r, store.KeyCommissions)
	if err != nil {
		return nil, err
	}
	c := list.Find(func(c *model.Commission) bool { return c.ID == id })
	if c == nil {
		return nil, ErrCommissionNotFound
	}
	if err := mutate(c); err != nil {
		return nil, err
	}
	if err := list.Save(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *AffiliateRepository) ListCommissions(ctx context.Context, affiliateID string) ([]*model.Commission, error) {
	list, err := loadList[model.Commission](ctx, r, store.KeyCommissions)
	if err != nil {
		return nil, err
	}
	var result []*model.Commission
	for _, c := range list.Items {
		if c.AffiliateID == affiliateID {
			result = append(result, c)
		}
	}
	return result, nil
}

// ---- Visit ----

func (r *AffiliateRepository) CreateVisit(ctx context.Context, v *model.Visit) error {
	list, err := loadList[model.Visit](ctx, r, store.KeyVisits)
	if err != nil {
		return err
	}
	list.Append(v)
	return list.Save(ctx)
}

// ConvertFirstVisit 把该推广者/链接下第一条未转化的点击标记为已转化
func (r *AffiliateRepository) ConvertFirstVisit(ctx context.Context, affiliateID, linkID, orderID string) (*model.Visit, error) {
	list, err := loadList[model.Visit](ctx, r, store.KeyVisits)
	if err != nil {
		return nil, err
	}
	v := list.Find(func(v *model.Visit) bool {
		return v.AffiliateID == affiliateID && v.LinkID == linkID && !v.Converted
	})
	if v == nil {
		return nil, nil
	}
	v.Converted = true
	v.OrderID = orderID
	if err := list.Save(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *AffiliateRepository) ListVisits(ctx context.Context, affiliateID string) ([]*model.Visit, error) {
	list, err := loadList[model.Visit](ctx, r, store.KeyVisits)
	if err != nil {
		return nil, err
	}
	var result []*model.Visit
	for _, v := range list.Items {
		if v.AffiliateID == affiliateID {
			result = append(result, v)
		}
	}
	return result, nil
}
