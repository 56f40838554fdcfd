package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"scoring-gateway/internal/adapter/storage/redis"
	"scoring-gateway/pkg/apperror"
	"scoring-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// IPLimitChecker is the slice of the Redis store the middleware needs.
type IPLimitChecker interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redis.IPLimitResult, error)
}

// IPLimit throttles a public endpoint group per client IP with a fixed
// one-minute window. When the store is unreachable the request is allowed
// through: degraded mode beats locking everyone out of login.
func IPLimit(store IPLimitChecker, group string, perMinute int, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", c.ClientIP(), group)
		res, err := store.Allow(c.Request.Context(), key, int64(perMinute), time.Minute)
		if err != nil {
			log.Error().Err(err).Str("group", group).Msg("ip limiter unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt, 10))

		if !res.Allowed {
			rateLimitRejections.WithLabelValues("ip").Inc()
			retryAfter := res.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.AbortError(c, apperror.ErrRateLimitExceeded("minute", int(res.Limit-res.Remaining), int(res.Limit)))
			return
		}

		c.Next()
	}
}
