package middleware

import (
	"context"
	"sync"

	"scoring-gateway/internal/core/domain"
	"scoring-gateway/internal/core/ports"

	"github.com/google/uuid"
)

// stubIdentity resolves a single known key.
type stubIdentity struct {
	validKey  string
	principal ports.Principal
	err       error
}

func (s *stubIdentity) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	panic("not used")
}

func (s *stubIdentity) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	panic("not used")
}

func (s *stubIdentity) GenerateKey(ctx context.Context, user *domain.User, name string, expiresInDays *int) (string, *domain.APIKey, error) {
	panic("not used")
}

func (s *stubIdentity) ValidateKey(ctx context.Context, plaintext string) (*ports.Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	if plaintext == s.validKey {
		p := s.principal
		return &p, nil
	}
	return nil, errInvalidKey
}

func (s *stubIdentity) ListKeys(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error) {
	panic("not used")
}

func (s *stubIdentity) RevokeKey(ctx context.Context, userID uuid.UUID, name string) error {
	panic("not used")
}

// stubLimiter returns a canned decision.
type stubLimiter struct {
	decision ports.RateLimitDecision
	err      error
}

func (s *stubLimiter) Check(ctx context.Context, p ports.Principal) (*ports.RateLimitDecision, error) {
	if s.err != nil {
		return nil, s.err
	}
	d := s.decision
	return &d, nil
}

func (s *stubLimiter) Status(ctx context.Context, p ports.Principal) (*ports.RateLimitStatus, error) {
	panic("not used")
}

// stubBilling tracks what the metering middleware asked of it.
type stubBilling struct {
	mu sync.Mutex

	balance    float64
	consumeErr error

	consumed []ports.ConsumeRequest
	failures []ports.FailureRecord
}

func (s *stubBilling) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	return s.balance, nil
}

func (s *stubBilling) Account(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	panic("not used")
}

func (s *stubBilling) CheckSufficient(ctx context.Context, userID uuid.UUID, need float64) (bool, error) {
	return s.balance >= need, nil
}

func (s *stubBilling) Consume(ctx context.Context, req ports.ConsumeRequest) (*ports.ConsumeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumeErr != nil {
		return nil, s.consumeErr
	}
	s.consumed = append(s.consumed, req)
	s.balance -= req.Amount
	return &ports.ConsumeResult{TokensConsumed: req.Amount, RemainingBalance: s.balance}, nil
}

func (s *stubBilling) RecordFailure(ctx context.Context, rec ports.FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, rec)
	return nil
}

func (s *stubBilling) Credit(ctx context.Context, req ports.CreditRequest) (*ports.CreditResult, error) {
	panic("not used")
}

func (s *stubBilling) UsageStats(ctx context.Context, userID uuid.UUID, days int) (*ports.UsageStats, error) {
	panic("not used")
}
