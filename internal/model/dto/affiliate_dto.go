package dto

// AffiliateInfo 推广者信息
type AffiliateInfo struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Status     string `json:"status"`
	CustomLink string `json:"custom_link,omitempty"`
	ApprovedAt string `json:"approved_at,omitempty"`
	RejectedAt string `json:"rejected_at,omitempty"`
}

// CommissionInfo 佣金信息
type CommissionInfo struct {
	ID               string  `json:"id"`
	AffiliateID      string  `json:"affiliate_id"`
	OrderID          string  `json:"order_id"`
	Amount           int64   `json:"amount"`
	CommissionRate   float64 `json:"commission_rate"`
	CommissionAmount int64   `json:"commission_amount"`
	Status           string  `json:"status"`
	CreatedAt        string  `json:"created_at"`
	PaidAt           string  `json:"paid_at,omitempty"`
}

// CommissionSummary 佣金汇总
type CommissionSummary struct {
	Items        []*CommissionInfo `json:"items"`
	TotalPending int64             `json:"total_pending"`
	TotalPaid    int64             `json:"total_paid"`
	TotalOrders  int               `json:"total_orders"`
}
