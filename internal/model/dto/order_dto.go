package dto

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	PackageKind    string `json:"package_kind" binding:"required,oneof=bundle single-skill"`
	DurationMonths int    `json:"duration_months" binding:"required,min=1,max=24"`
	Skill          string `json:"skill" binding:"omitempty,oneof=listening reading writing speaking"`
	PaymentMethod  string `json:"payment_method"`
}

// TransferInstructions 银行转账指引
type TransferInstructions struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	Amount        int64  `json:"amount"`
	Memo          string `json:"memo"`
}

// OrderInfo 订单信息（返回给前端）
type OrderInfo struct {
	ID             string                `json:"id"`
	OrderReference string                `json:"order_reference"`
	PackageKind    string                `json:"package_kind"`
	DurationMonths int                   `json:"duration_months"`
	Skill          string                `json:"skill,omitempty"`
	Amount         int64                 `json:"amount"`
	Status         string                `json:"status"`
	CreatedAt      string                `json:"created_at"`
	Transfer       *TransferInstructions `json:"transfer,omitempty"`
}
