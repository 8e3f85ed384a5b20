package dto

// BankTransferWebhook 银行转账回调载荷，其余字段忽略
type BankTransferWebhook struct {
	TransferAmount *float64 `json:"transferAmount"`
	Content        *string  `json:"content"`
	Gateway        string   `json:"gateway,omitempty"`
	TransactionID  any      `json:"id,omitempty"`
	ReferenceCode  string   `json:"referenceCode,omitempty"`
}

// WebhookSuccessResponse 处理成功或重复投递
type WebhookSuccessResponse struct {
	Success        bool   `json:"success"`
	OrderReference string `json:"orderReference"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
}

// WebhookErrorResponse 失败响应
type WebhookErrorResponse struct {
	Error          string `json:"error"`
	Message        string `json:"message,omitempty"`
	OrderReference string `json:"orderReference,omitempty"`
	Expected       *int64 `json:"expected,omitempty"`
	Received       *int64 `json:"received,omitempty"`
}
