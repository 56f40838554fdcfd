package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// IPLimitStore throttles unauthenticated endpoints (register, login) by
// client IP. Authenticated traffic is quota-checked against the usage
// ledger instead; this store only shields the public surface from
// credential stuffing and signup floods.
type IPLimitStore struct {
	client *goredis.Client
	prefix string
}

// NewIPLimitStore creates a new Redis-backed per-IP limiter.
func NewIPLimitStore(client *goredis.Client) *IPLimitStore {
	return &IPLimitStore{
		client: client,
		prefix: "iplimit:",
	}
}

// IPLimitResult holds the outcome of a per-IP limit check.
type IPLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// Allow checks if a request is within the fixed-window limit.
// It uses INCR + EXPIRE on a key scoped by windowID, computed as
// time / windowDuration to form discrete windows.
func (s *IPLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*IPLimitResult, error) {
	now := time.Now()
	windowID := now.Unix() / int64(window.Seconds())
	redisKey := fmt.Sprintf("%s%s:%d", s.prefix, key, windowID)

	// Increment counter atomically
	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ip limit incr: %w", err)
	}

	// Set expiry only on first increment (new window)
	if count == 1 {
		s.client.Expire(ctx, redisKey, window+time.Second) // +1s safety margin
	}

	resetAt := (windowID + 1) * int64(window.Seconds())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return &IPLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
