package service

import (
	"context"
	"fmt"
	"time"

	"scoring-gateway/internal/core/ports"
	"scoring-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// quotaWindow pairs a window name with its trailing duration. Windows are
// checked in this order; the first exceeded one is reported.
type quotaWindow struct {
	Name     string
	Duration time.Duration
}

var quotaWindows = []quotaWindow{
	{"minute", time.Minute},
	{"hour", time.Hour},
	{"day", 24 * time.Hour},
}

// RateLimitServiceImpl implements ports.RateLimitService. The canonical
// count for every window is derived from committed successful usage rows;
// failed and rejected calls never consume quota.
type RateLimitServiceImpl struct {
	usageRepo ports.UsageRepository
	log       zerolog.Logger
	now       func() time.Time
}

// NewRateLimitService creates a new RateLimitServiceImpl.
func NewRateLimitService(usageRepo ports.UsageRepository, log zerolog.Logger) *RateLimitServiceImpl {
	return &RateLimitServiceImpl{
		usageRepo: usageRepo,
		log:       log,
		now:       time.Now,
	}
}

// Check verifies every window for the principal. Keys with per-key
// overrides are counted per key; other keys share the owner's pool.
func (s *RateLimitServiceImpl) Check(ctx context.Context, p ports.Principal) (*ports.RateLimitDecision, error) {
	for _, w := range quotaWindows {
		limit := s.limitFor(p, w.Name)
		count, err := s.countWindow(ctx, p, w.Duration)
		if err != nil {
			return nil, apperror.ErrDatabase(fmt.Errorf("count %s window: %w", w.Name, err))
		}
		if count >= limit {
			s.log.Debug().
				Str("user_id", p.UserID.String()).
				Str("window", w.Name).
				Int("current", count).
				Int("limit", limit).
				Msg("rate limit exceeded")
			return &ports.RateLimitDecision{
				Allowed: false,
				Window:  w.Name,
				Current: count,
				Limit:   limit,
			}, nil
		}
	}
	return &ports.RateLimitDecision{Allowed: true}, nil
}

// Status reports limits, current usage, and remaining quota across the
// three windows at the read instant.
func (s *RateLimitServiceImpl) Status(ctx context.Context, p ports.Principal) (*ports.RateLimitStatus, error) {
	status := &ports.RateLimitStatus{
		Limits:       make(map[string]int, len(quotaWindows)),
		CurrentUsage: make(map[string]int, len(quotaWindows)),
		Remaining:    make(map[string]int, len(quotaWindows)),
	}

	for _, w := range quotaWindows {
		limit := s.limitFor(p, w.Name)
		count, err := s.countWindow(ctx, p, w.Duration)
		if err != nil {
			return nil, apperror.ErrDatabase(fmt.Errorf("count %s window: %w", w.Name, err))
		}
		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		status.Limits[w.Name] = limit
		status.CurrentUsage[w.Name] = count
		status.Remaining[w.Name] = remaining
	}
	return status, nil
}

func (s *RateLimitServiceImpl) countWindow(ctx context.Context, p ports.Principal, d time.Duration) (int, error) {
	since := s.now().UTC().Add(-d)
	var keyID *int64
	if p.PerKeyScope {
		keyID = &p.APIKeyID
	}
	return s.usageRepo.CountSuccessSince(ctx, p.UserID, keyID, since)
}

func (s *RateLimitServiceImpl) limitFor(p ports.Principal, window string) int {
	switch window {
	case "minute":
		return p.Limits.PerMinute
	case "hour":
		return p.Limits.PerHour
	default:
		return p.Limits.PerDay
	}
}
