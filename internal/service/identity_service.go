package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scoring-gateway/internal/core/domain"
	"scoring-gateway/internal/core/ports"
	"scoring-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const minPasswordLength = 10

// IdentityConfig carries the policy knobs for account and key creation.
type IdentityConfig struct {
	SignupGrant          float64
	DefaultLimits        domain.RateLimits
	DefaultKeyExpiryDays int
}

// IdentityServiceImpl implements ports.IdentityService.
type IdentityServiceImpl struct {
	userRepo ports.UserRepository
	keyRepo  ports.APIKeyRepository
	hashSvc  ports.HashService
	keySvc   ports.KeyService
	cfg      IdentityConfig
	log      zerolog.Logger
}

// NewIdentityService creates a new IdentityServiceImpl.
func NewIdentityService(
	userRepo ports.UserRepository,
	keyRepo ports.APIKeyRepository,
	hashSvc ports.HashService,
	keySvc ports.KeyService,
	cfg IdentityConfig,
	log zerolog.Logger,
) *IdentityServiceImpl {
	return &IdentityServiceImpl{
		userRepo: userRepo,
		keyRepo:  keyRepo,
		hashSvc:  hashSvc,
		keySvc:   keySvc,
		cfg:      cfg,
		log:      log,
	}
}

// Register creates a new user with the signup token grant and default
// rate limits. Accounts are auto-verified.
func (s *IdentityServiceImpl) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	if len(password) < minPasswordLength {
		return nil, apperror.Validation(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	if !strings.Contains(email, "@") {
		return nil, apperror.Validation("Invalid email address")
	}

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("check username: %w", err))
	}
	if existing == nil {
		existing, err = s.userRepo.GetByEmail(ctx, email)
		if err != nil {
			return nil, apperror.Internal(fmt.Errorf("check email: %w", err))
		}
	}
	if existing != nil {
		return nil, apperror.ErrUserExists()
	}

	passwordHash, err := s.hashSvc.Hash(password)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("hash password: %w", err))
	}

	user := &domain.User{
		ID:             uuid.New(),
		Username:       username,
		Email:          email,
		PasswordHash:   passwordHash,
		CreatedAt:      time.Now().UTC(),
		IsActive:       true,
		IsVerified:     true,
		TokenBalance:   s.cfg.SignupGrant,
		TotalPurchased: s.cfg.SignupGrant,
		TotalUsed:      0,
		Limits:         s.cfg.DefaultLimits,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperror.Internal(fmt.Errorf("create user: %w", err))
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("username", username).
		Msg("user registered")

	return user, nil
}

// Authenticate validates credentials. Unknown username, inactive account,
// and password mismatch all return the same error so callers cannot probe
// which of them occurred.
func (s *IdentityServiceImpl) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("find user: %w", err))
	}
	if user == nil || !user.IsActive {
		return nil, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return nil, apperror.ErrInvalidCredentials()
	}

	return user, nil
}

// GenerateKey mints a key for the user. The key snapshots the user's
// current limits as its overrides, so later changes to the user's defaults
// do not affect it.
func (s *IdentityServiceImpl) GenerateKey(ctx context.Context, user *domain.User, name string, expiresInDays *int) (string, *domain.APIKey, error) {
	plaintext, hashedKey, err := s.keySvc.Mint()
	if err != nil {
		return "", nil, apperror.Internal(fmt.Errorf("mint key: %w", err))
	}

	days := s.cfg.DefaultKeyExpiryDays
	if expiresInDays != nil {
		days = *expiresInDays
	}

	now := time.Now().UTC()
	key := &domain.APIKey{
		UserID:    user.ID,
		HashedKey: hashedKey,
		Name:      name,
		CreatedAt: now,
		IsActive:  true,
		PerMinute: intPtr(user.Limits.PerMinute),
		PerHour:   intPtr(user.Limits.PerHour),
		PerDay:    intPtr(user.Limits.PerDay),
	}
	if days > 0 {
		expiry := now.AddDate(0, 0, days)
		key.ExpiresAt = &expiry
	}

	if err := s.keyRepo.Create(ctx, key); err != nil {
		return "", nil, apperror.Internal(fmt.Errorf("create key: %w", err))
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("key_name", name).
		Int64("key_id", key.ID).
		Msg("api key generated")

	return plaintext, key, nil
}

// ValidateKey resolves a bearer key to a principal, updating last_used on
// success. A key found expired is deactivated; that write commits even
// though the caller receives an authentication failure.
func (s *IdentityServiceImpl) ValidateKey(ctx context.Context, plaintext string) (*ports.Principal, error) {
	key, err := s.keyRepo.GetByHash(ctx, s.keySvc.Digest(plaintext))
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("lookup key: %w", err))
	}
	if key == nil || !key.IsActive {
		return nil, apperror.ErrInvalidAPIKey()
	}

	now := time.Now().UTC()
	if key.IsExpired(now) {
		// The deactivation is one UPDATE keyed by primary key, so it is
		// atomic without an enclosing transaction. The lookup above does
		// not need to share one either: whatever happens to this write,
		// the caller gets the same authentication failure.
		if err := s.keyRepo.Deactivate(ctx, key.ID); err != nil {
			s.log.Error().Err(err).Int64("key_id", key.ID).Msg("failed to deactivate expired key")
		}
		return nil, apperror.ErrInvalidAPIKey()
	}

	user, err := s.userRepo.GetByID(ctx, key.UserID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("lookup key owner: %w", err))
	}
	if user == nil || !user.IsActive {
		return nil, apperror.ErrInvalidAPIKey()
	}

	if err := s.keyRepo.UpdateLastUsed(ctx, key.ID, now); err != nil {
		// Non-fatal: last_used is advisory.
		s.log.Warn().Err(err).Int64("key_id", key.ID).Msg("failed to update last_used")
	}

	return &ports.Principal{
		UserID:      user.ID,
		APIKeyID:    key.ID,
		Limits:      key.EffectiveLimits(user.Limits),
		PerKeyScope: key.HasOverrides(),
	}, nil
}

// ListKeys returns all keys of a user, active or not.
func (s *IdentityServiceImpl) ListKeys(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error) {
	keys, err := s.keyRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list keys: %w", err))
	}
	return keys, nil
}

// RevokeKey deactivates the named active key of a user.
func (s *IdentityServiceImpl) RevokeKey(ctx context.Context, userID uuid.UUID, name string) error {
	revoked, err := s.keyRepo.DeactivateByName(ctx, userID, name)
	if err != nil {
		return apperror.Internal(fmt.Errorf("revoke key: %w", err))
	}
	if !revoked {
		return apperror.ErrNotFound(fmt.Sprintf("API key '%s'", name))
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("key_name", name).
		Msg("api key revoked")

	return nil
}

func intPtr(v int) *int { return &v }
