package model

import (
	"time"
)

// 已执行的副作用类型
const (
	EffectProfileExtended  = "profile_extended"
	EffectCustomerNotified = "customer_notified"
	EffectAdminNotified    = "admin_notified"
)

// ReconciliationEffect 记录某订单已成功执行的副作用，重试时跳过
type ReconciliationEffect struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	OrderID   string    `gorm:"size:64;not null;uniqueIndex:idx_order_effect" json:"order_id"`
	Effect    string    `gorm:"size:40;not null;uniqueIndex:idx_order_effect" json:"effect"`
	Detail    string    `gorm:"size:255" json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (ReconciliationEffect) TableName() string {
	return "reconciliation_effects"
}

// WebhookDelivery 每次银行转账回调的处理记录
type WebhookDelivery struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	Memo           string    `gorm:"size:500" json:"memo"`
	TransferAmount int64     `json:"transfer_amount"`
	Reference      string    `gorm:"size:200;index" json:"reference"`
	LowConfidence  bool      `json:"low_confidence"`
	OrderID        string    `gorm:"size:64;index" json:"order_id,omitempty"`
	Outcome        string    `gorm:"size:20;index" json:"outcome"` // completed, replayed, rejected, deferred
	HTTPStatus     int       `json:"http_status"`
	ErrorMessage   string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}
