package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ieltsprediction/payment-server/internal/model"
)

// ReconciliationLogRepository 对账副作用与回调记录（MySQL）
type ReconciliationLogRepository struct {
	db *gorm.DB
}

func NewReconciliationLogRepository(db *gorm.DB) *ReconciliationLogRepository {
	return &ReconciliationLogRepository{db: db}
}

func (r *ReconciliationLogRepository) HasEffect(ctx context.Context, orderID, effect string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ReconciliationEffect{}).
		Where("order_id = ? AND effect = ?", orderID, effect).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "count reconciliation effect")
	}
	return count > 0, nil
}

// RecordEffect 重复写入同一 (order_id, effect) 不报错
func (r *ReconciliationLogRepository) RecordEffect(ctx context.Context, orderID, effect, detail string) error {
	row := &model.ReconciliationEffect{
		OrderID: orderID,
		Effect:  effect,
		Detail:  detail,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
	return errors.Wrap(err, "record reconciliation effect")
}

func (r *ReconciliationLogRepository) ListEffects(ctx context.Context, orderID string) ([]*model.ReconciliationEffect, error) {
	var effects []*model.ReconciliationEffect
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&effects).Error
	return effects, errors.Wrap(err, "list reconciliation effects")
}

func (r *ReconciliationLogRepository) RecordDelivery(ctx context.Context, d *model.WebhookDelivery) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(d).Error, "record webhook delivery")
}

// RecentDeliveries 最近的回调记录，outcome 为空时不过滤
func (r *ReconciliationLogRepository) RecentDeliveries(ctx context.Context, outcome string, limit int) ([]*model.WebhookDelivery, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if outcome != "" {
		query = query.Where("outcome = ?", outcome)
	}

	var deliveries []*model.WebhookDelivery
	err := query.Find(&deliveries).Error
	return deliveries, errors.Wrap(err, "list webhook deliveries")
}

// PruneDeliveries 删除 before 之前的回调记录，副作用记录永久保留
func (r *ReconciliationLogRepository) PruneDeliveries(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&model.WebhookDelivery{})
	return result.RowsAffected, errors.Wrap(result.Error, "prune webhook deliveries")
}
