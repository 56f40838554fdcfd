package middleware

import (
	"fmt"

	"scoring-gateway/internal/core/ports"
	"scoring-gateway/pkg/apperror"
	"scoring-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// QuotaCheck enforces the sliding-window quotas against the usage ledger.
// Runs after BearerAuth. A denied request is ledgered as a failure row so
// the account history shows the rejection, but failure rows never count
// toward any window.
func QuotaCheck(limiter ports.RateLimitService, billing ports.BillingService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			response.AbortError(c, apperror.ErrMissingAPIKey())
			return
		}

		decision, err := limiter.Check(c.Request.Context(), principal)
		if err != nil {
			log.Error().Err(err).Str("user_id", principal.UserID.String()).Msg("quota check failed")
			response.AbortError(c, err)
			return
		}

		if !decision.Allowed {
			rateLimitRejections.WithLabelValues(decision.Window).Inc()
			keyID := principal.APIKeyID
			rec := ports.FailureRecord{
				UserID:       principal.UserID,
				APIKeyID:     &keyID,
				Endpoint:     c.Request.URL.Path,
				ErrorMessage: fmt.Sprintf("Rate limit exceeded (%s window)", decision.Window),
			}
			if err := billing.RecordFailure(c.Request.Context(), rec); err != nil {
				log.Error().Err(err).Msg("failed to ledger rate-limited request")
			}

			// Sliding windows drain continuously, so a minute from now
			// the count may already be back under the limit. The hint is
			// a fixed 60 regardless of which window tripped.
			c.Header("Retry-After", "60")
			response.AbortError(c, apperror.ErrRateLimitExceeded(decision.Window, decision.Current, decision.Limit))
			return
		}

		c.Next()
	}
}
