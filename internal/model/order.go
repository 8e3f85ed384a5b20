package model

import (
	"time"
)

// 订单状态
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// 套餐类型
const (
	PackageBundle      = "bundle"
	PackageSingleSkill = "single-skill"
)

// Order 一次购买（银行转账）
type Order struct {
	ID             string    `json:"id" validate:"required"`
	OrderReference string    `json:"orderReference" validate:"required"`
	UserID         string    `json:"userId" validate:"required"`
	PackageKind    string    `json:"packageKind" validate:"required,oneof=bundle single-skill"`
	DurationMonths int       `json:"durationMonths" validate:"gt=0"`
	Skill          string    `json:"skill,omitempty" validate:"omitempty,oneof=listening reading writing speaking"`
	Amount         int64     `json:"amount" validate:"gt=0"`
	Status         string    `json:"status" validate:"required,oneof=pending completed cancelled"`
	PaymentMethod  string    `json:"paymentMethod"`
	TransferMemo   string    `json:"transferMemo"`
	CreatedAt      time.Time `json:"createdAt"`
	ReferrerCode   string    `json:"referrerCode,omitempty"`
}

func (o *Order) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}
