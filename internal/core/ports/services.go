package ports

import (
	"context"

	"scoring-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// KeyService mints and digests opaque bearer API keys. Both operations mix
// in the process-wide pepper, so rotating the pepper invalidates every key.
type KeyService interface {
	// Mint returns a fresh plaintext key and its stored digest. The
	// plaintext must be handed to the caller exactly once and never
	// persisted.
	Mint() (plaintext string, hashedKey string, err error)
	// Digest computes the stored digest of a presented bearer key.
	Digest(plaintext string) string
}

// Principal is the authenticated identity attached to a request after key
// validation. Limits are resolved at validation time: key overrides where
// present, the owner's defaults otherwise. PerKeyScope marks keys whose
// quota is counted per key instead of per user.
type Principal struct {
	UserID      uuid.UUID
	APIKeyID    int64
	Limits      domain.RateLimits
	PerKeyScope bool
}

// IdentityService defines registration, login, and API key lifecycle.
type IdentityService interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	// Authenticate returns a single Unauthenticated error for unknown
	// username, inactive user, and password mismatch alike.
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	// GenerateKey mints a key for the user. expiresInDays nil applies the
	// configured default. The returned plaintext is shown exactly once.
	GenerateKey(ctx context.Context, user *domain.User, name string, expiresInDays *int) (string, *domain.APIKey, error)
	// ValidateKey resolves a presented bearer key to a principal. A key
	// found expired is deactivated as a side effect; that write commits
	// even though the request is rejected.
	ValidateKey(ctx context.Context, plaintext string) (*Principal, error)
	ListKeys(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error)
	RevokeKey(ctx context.Context, userID uuid.UUID, name string) error
}

// RateLimitDecision is the outcome of a sliding-window quota check. When
// denied, Window/Current/Limit identify the first exceeded window.
type RateLimitDecision struct {
	Allowed bool
	Window  string
	Current int
	Limit   int
}

// RateLimitStatus reports quota consumption across the three windows,
// keyed by window name (minute, hour, day).
type RateLimitStatus struct {
	Limits       map[string]int `json:"limits"`
	CurrentUsage map[string]int `json:"current_usage"`
	Remaining    map[string]int `json:"remaining"`
}

// RateLimitService checks sliding-window quotas derived from the usage
// ledger. Only committed successful calls count toward any window.
type RateLimitService interface {
	Check(ctx context.Context, p Principal) (*RateLimitDecision, error)
	Status(ctx context.Context, p Principal) (*RateLimitStatus, error)
}

// ConsumeRequest carries everything the debit transaction records.
type ConsumeRequest struct {
	UserID           uuid.UUID
	APIKeyID         int64
	Endpoint         string
	Amount           float64
	RequestSize      int
	ResponseSize     int
	ProcessingTimeMs float64
}

// ConsumeResult reports a committed debit.
type ConsumeResult struct {
	TokensConsumed   float64
	RemainingBalance float64
}

// FailureRecord captures a request that must be ledgered but not billed.
type FailureRecord struct {
	UserID           uuid.UUID
	APIKeyID         *int64
	Endpoint         string
	RequestSize      int
	ProcessingTimeMs float64
	ErrorMessage     string
}

// CreditRequest carries a balance top-up (purchase, adjustment, or refund).
type CreditRequest struct {
	UserID      uuid.UUID
	Amount      float64
	Type        domain.TransactionType
	Description string
	ReferenceID string
}

// CreditResult reports a committed credit.
type CreditResult struct {
	TokensAdded   float64
	NewBalance    float64
	TransactionID int64
}

// UsageStats is the billing aggregate for a trailing period.
type UsageStats struct {
	PeriodDays          int             `json:"period_days"`
	CurrentBalance      float64         `json:"current_balance"`
	TotalRequests       int             `json:"total_requests"`
	TotalTokensConsumed float64         `json:"total_tokens_consumed"`
	EndpointBreakdown   []EndpointUsage `json:"endpoint_breakdown"`
}

// BillingService defines balance reads, the atomic debit, credits, and
// ledger aggregates.
type BillingService interface {
	Balance(ctx context.Context, userID uuid.UUID) (float64, error)
	// Account returns the user record behind a balance, for account-facing
	// reads (username, purchased/used totals).
	Account(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	CheckSufficient(ctx context.Context, userID uuid.UUID, need float64) (bool, error)
	// Consume debits the balance and appends both ledgers in one
	// transaction. The balance is re-read under a row lock; a concurrent
	// debit that would drive the balance negative fails with
	// PaymentRequired even when an earlier preflight passed.
	Consume(ctx context.Context, req ConsumeRequest) (*ConsumeResult, error)
	// RecordFailure appends a success=false usage row with zero tokens.
	RecordFailure(ctx context.Context, rec FailureRecord) error
	Credit(ctx context.Context, req CreditRequest) (*CreditResult, error)
	UsageStats(ctx context.Context, userID uuid.UUID, days int) (*UsageStats, error)
}
