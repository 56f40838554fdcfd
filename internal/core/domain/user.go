package domain

import (
	"time"

	"github.com/google/uuid"
)

// RateLimits holds request quotas across the three sliding windows.
type RateLimits struct {
	PerMinute int `json:"requests_per_minute"`
	PerHour   int `json:"requests_per_hour"`
	PerDay    int `json:"requests_per_day"`
}

// User represents a registered account holding a prepaid token balance.
type User struct {
	ID           uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose
	CreatedAt    time.Time `json:"created_at"`
	IsActive     bool      `json:"is_active"`
	IsVerified   bool      `json:"is_verified"`

	// Balance trio. Invariant: TotalPurchased - TotalUsed == TokenBalance,
	// modulo administrative adjustments.
	TokenBalance   float64 `json:"token_balance"`
	TotalPurchased float64 `json:"total_tokens_purchased"`
	TotalUsed      float64 `json:"total_tokens_used"`

	// Default quotas inherited by newly minted keys.
	Limits RateLimits `json:"limits"`
}
