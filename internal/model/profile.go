package model

// Profile 用户资料目录中的订阅状态
type Profile struct {
	UserID         string `json:"userId"`
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	IsPro          bool   `json:"isPro"`
	ExpirationDate string `json:"expirationDate,omitempty"` // YYYY-MM-DD
}

// ProfileUpdate 写回资料目录的字段
type ProfileUpdate struct {
	IsPro          bool   `json:"isPro"`
	ExpirationDate string `json:"expirationDate"`
}
