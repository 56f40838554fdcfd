package handler

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"scoring-gateway/internal/core/domain"
	"scoring-gateway/internal/core/ports"
	"scoring-gateway/pkg/apperror"

	"github.com/google/uuid"
)

// fakeIdentity is an in-memory identity service for router tests. Keys map
// plaintext straight to principals; hashing is not under test here.
type fakeIdentity struct {
	mu    sync.Mutex
	users map[string]*domain.User // by username
	keys  map[string]*domain.APIKey
	byKey map[string]uuid.UUID // plaintext -> owner
	seq   int64
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		users: make(map[string]*domain.User),
		keys:  make(map[string]*domain.APIKey),
		byKey: make(map[string]uuid.UUID),
	}
}

func (f *fakeIdentity) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(password) < 10 {
		return nil, apperror.Validation("Password must be at least 10 characters")
	}
	if _, ok := f.users[username]; ok {
		return nil, apperror.ErrUserExists()
	}
	u := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: password,
		CreatedAt:    time.Now().UTC(),
		IsActive:     true,
		IsVerified:   true,
		TokenBalance: 100,
		Limits:       domain.RateLimits{PerMinute: 10, PerHour: 100, PerDay: 1000},
	}
	u.TotalPurchased = 100
	f.users[username] = u
	return u, nil
}

func (f *fakeIdentity) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok || u.PasswordHash != password {
		return nil, apperror.ErrInvalidCredentials()
	}
	return u, nil
}

func (f *fakeIdentity) GenerateKey(ctx context.Context, user *domain.User, name string, expiresInDays *int) (string, *domain.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	plaintext := fmt.Sprintf("pk_test%d", f.seq)
	key := &domain.APIKey{
		ID:        f.seq,
		UserID:    user.ID,
		HashedKey: "h:" + plaintext,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		IsActive:  true,
	}
	if expiresInDays != nil {
		exp := key.CreatedAt.AddDate(0, 0, *expiresInDays)
		key.ExpiresAt = &exp
	}
	f.keys[plaintext] = key
	f.byKey[plaintext] = user.ID
	return plaintext, key, nil
}

func (f *fakeIdentity) ValidateKey(ctx context.Context, plaintext string) (*ports.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.keys[plaintext]
	if !ok || !key.IsActive {
		return nil, apperror.ErrInvalidAPIKey()
	}
	var owner *domain.User
	for _, u := range f.users {
		if u.ID == key.UserID {
			owner = u
		}
	}
	if owner == nil {
		return nil, apperror.ErrInvalidAPIKey()
	}
	return &ports.Principal{
		UserID:   owner.ID,
		APIKeyID: key.ID,
		Limits:   owner.Limits,
	}, nil
}

func (f *fakeIdentity) ListKeys(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.APIKey
	for _, k := range f.keys {
		if k.UserID == userID {
			out = append(out, *k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeIdentity) RevokeKey(ctx context.Context, userID uuid.UUID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.keys {
		if k.UserID == userID && k.Name == name && k.IsActive {
			k.IsActive = false
			return nil
		}
	}
	return apperror.New("BILL_002", fmt.Sprintf("API key '%s' not found", name), http.StatusNotFound)
}

// fakeBilling keeps one balance per user and the ledgers in memory.
type fakeBilling struct {
	mu       sync.Mutex
	identity *fakeIdentity
	seq      int64
	consumed []ports.ConsumeRequest
	failures []ports.FailureRecord
	credits  []ports.CreditRequest
}

func newFakeBilling(identity *fakeIdentity) *fakeBilling {
	return &fakeBilling{identity: identity}
}

func (f *fakeBilling) user(userID uuid.UUID) *domain.User {
	for _, u := range f.identity.users {
		if u.ID == userID {
			return u
		}
	}
	return nil
}

func (f *fakeBilling) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	u, err := f.Account(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.TokenBalance, nil
}

func (f *fakeBilling) Account(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.user(userID)
	if u == nil {
		return nil, apperror.ErrNotFound("User")
	}
	return u, nil
}

func (f *fakeBilling) CheckSufficient(ctx context.Context, userID uuid.UUID, need float64) (bool, error) {
	balance, err := f.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= need, nil
}

func (f *fakeBilling) Consume(ctx context.Context, req ports.ConsumeRequest) (*ports.ConsumeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.user(req.UserID)
	if u == nil {
		return nil, apperror.ErrNotFound("User")
	}
	if u.TokenBalance < req.Amount {
		return nil, apperror.ErrInsufficientBalance(req.Amount, u.TokenBalance)
	}
	u.TokenBalance -= req.Amount
	u.TotalUsed += req.Amount
	f.consumed = append(f.consumed, req)
	return &ports.ConsumeResult{TokensConsumed: req.Amount, RemainingBalance: u.TokenBalance}, nil
}

func (f *fakeBilling) RecordFailure(ctx context.Context, rec ports.FailureRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, rec)
	return nil
}

func (f *fakeBilling) Credit(ctx context.Context, req ports.CreditRequest) (*ports.CreditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.user(req.UserID)
	if u == nil {
		return nil, apperror.ErrNotFound("User")
	}
	u.TokenBalance += req.Amount
	if req.Type == domain.TransactionTypePurchase {
		u.TotalPurchased += req.Amount
	}
	f.credits = append(f.credits, req)
	f.seq++
	return &ports.CreditResult{TokensAdded: req.Amount, NewBalance: u.TokenBalance, TransactionID: f.seq}, nil
}

func (f *fakeBilling) UsageStats(ctx context.Context, userID uuid.UUID, days int) (*ports.UsageStats, error) {
	if days < 1 || days > 365 {
		return nil, apperror.Validation("days must be between 1 and 365")
	}
	balance, err := f.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &ports.UsageStats{
		PeriodDays:        days,
		CurrentBalance:    balance,
		EndpointBreakdown: []ports.EndpointUsage{},
	}
	for _, c := range f.consumed {
		if c.UserID != userID {
			continue
		}
		stats.TotalRequests++
		stats.TotalTokensConsumed += c.Amount
	}
	return stats, nil
}

// fakeLimiter allows everything unless told otherwise.
type fakeLimiter struct {
	deny ports.RateLimitDecision
}

func (f *fakeLimiter) Check(ctx context.Context, p ports.Principal) (*ports.RateLimitDecision, error) {
	if f.deny.Window != "" {
		d := f.deny
		return &d, nil
	}
	return &ports.RateLimitDecision{Allowed: true}, nil
}

func (f *fakeLimiter) Status(ctx context.Context, p ports.Principal) (*ports.RateLimitStatus, error) {
	return &ports.RateLimitStatus{
		Limits:       map[string]int{"minute": p.Limits.PerMinute, "hour": p.Limits.PerHour, "day": p.Limits.PerDay},
		CurrentUsage: map[string]int{"minute": 0, "hour": 0, "day": 0},
		Remaining:    map[string]int{"minute": p.Limits.PerMinute, "hour": p.Limits.PerHour, "day": p.Limits.PerDay},
	}, nil
}

// fakeLoanRepo is an in-memory investable universe.
type fakeLoanRepo struct {
	mu    sync.Mutex
	loans []domain.ScoredLoan
}

func (f *fakeLoanRepo) Insert(ctx context.Context, loan *domain.ScoredLoan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loans = append(f.loans, *loan)
	return nil
}

func (f *fakeLoanRepo) ListInvestable(ctx context.Context, limit int) ([]domain.ScoredLoan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ScoredLoan
	for i := len(f.loans) - 1; i >= 0 && len(out) < limit; i-- {
		if f.loans[i].APR != nil {
			out = append(out, f.loans[i])
		}
	}
	return out, nil
}

// fakeChecker is a health checker with a fixed outcome.
type fakeChecker struct {
	name string
	err  error
}

func (f fakeChecker) Ping(ctx context.Context) error { return f.err }
func (f fakeChecker) Name() string                   { return f.name }
