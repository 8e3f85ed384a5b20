package model

import (
	"time"
)

// 推广者状态
const (
	AffiliateStatusPending  = "pending"
	AffiliateStatusApproved = "approved"
	AffiliateStatusRejected = "rejected"
)

// 佣金状态
const (
	CommissionStatusPending = "pending"
	CommissionStatusPaid    = "paid"
)

// Affiliate 推广者
type Affiliate struct {
	ID         string     `json:"id" validate:"required"`
	UserID     string     `json:"userId" validate:"required"`
	Status     string     `json:"status" validate:"required,oneof=pending approved rejected"`
	CustomLink string     `json:"customLink,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
	RejectedAt *time.Time `json:"rejectedAt,omitempty"`
}

func (a *Affiliate) IsApproved() bool {
	return a.Status == AffiliateStatusApproved
}

// Link 推广链接，一个推广者可以有多个
type Link struct {
	ID          string    `json:"id" validate:"required"`
	AffiliateID string    `json:"affiliateId" validate:"required"`
	CustomLink  string    `json:"customLink" validate:"required"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Commission 一笔订单对应的推广佣金
type Commission struct {
	ID               string     `json:"id" validate:"required"`
	AffiliateID      string     `json:"affiliateId" validate:"required"`
	OrderID          string     `json:"orderId" validate:"required"`
	UserID           string     `json:"userId"`
	Amount           int64      `json:"amount" validate:"gte=0"`
	CommissionRate   float64    `json:"commissionRate"`
	CommissionAmount int64      `json:"commissionAmount" validate:"gte=0"`
	Status           string     `json:"status" validate:"required,oneof=pending paid"`
	CreatedAt        time.Time  `json:"createdAt"`
	PaidAt           *time.Time `json:"paidAt,omitempty"`
}

// Visit 一次推广点击
type Visit struct {
	ID          string    `json:"id" validate:"required"`
	AffiliateID string    `json:"affiliateId" validate:"required"`
	LinkID      string    `json:"linkId"`
	Converted   bool      `json:"converted"`
	OrderID     string    `json:"orderId,omitempty"`
	LandingPath string    `json:"landingPath,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
