package models

import "time"

// PromoCode is the domain view of a promo row. The store keeps is_active as text and
// converts it at the boundary.
type PromoCode struct {
	Code           string     `json:"code"`
	IsActive       bool       `json:"is_active"`
	Description    string     `json:"description"`
	DiscountAmount int64      `json:"discount_amount"`
	UsageLimit     int        `json:"usage_limit"`
	TimesUsed      int        `json:"times_used"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type PromoCodeRequest struct {
	Code           string     `json:"code"`
	Description    string     `json:"description"`
	DiscountAmount int64      `json:"discount_amount"`
	UsageLimit     int        `json:"usage_limit"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IsActive       *bool      `json:"is_active,omitempty"`
}
