package domain

import (
	"time"

	"github.com/google/uuid"
)

// APIKey represents a revocable bearer credential. The plaintext key exists
// only at mint time; only HashedKey (SHA-256 of plaintext plus the server
// pepper) is ever stored.
type APIKey struct {
	ID        int64      `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	HashedKey string     `json:"-"` // Never expose
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	IsActive  bool       `json:"is_active"`

	// Optional per-key quota overrides; nil means inherit the owner's default.
	PerMinute *int `json:"requests_per_minute,omitempty"`
	PerHour   *int `json:"requests_per_hour,omitempty"`
	PerDay    *int `json:"requests_per_day,omitempty"`
}

// IsExpired reports whether the key's expiry, if set, has passed.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// HasOverrides reports whether any per-key quota override is set. Keys with
// overrides are rate-limited per key rather than per user.
func (k *APIKey) HasOverrides() bool {
	return k.PerMinute != nil || k.PerHour != nil || k.PerDay != nil
}

// EffectiveLimits resolves the quotas for this key: each window uses the
// key override when present, else the owner's default.
func (k *APIKey) EffectiveLimits(userDefaults RateLimits) RateLimits {
	limits := userDefaults
	if k.PerMinute != nil {
		limits.PerMinute = *k.PerMinute
	}
	if k.PerHour != nil {
		limits.PerHour = *k.PerHour
	}
	if k.PerDay != nil {
		limits.PerDay = *k.PerDay
	}
	return limits
}
