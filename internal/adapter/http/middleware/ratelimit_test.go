package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"scoring-gateway/internal/core/domain"
	"scoring-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quotaTestRouter(limiter ports.RateLimitService, billing ports.BillingService, p ports.Principal) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(CtxPrincipal, p) })
	r.Use(QuotaCheck(limiter, billing, zerolog.Nop()))
	r.GET("/api/thing", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestQuotaCheck(t *testing.T) {
	principal := ports.Principal{
		UserID:   uuid.New(),
		APIKeyID: 3,
		Limits:   domain.RateLimits{PerMinute: 10, PerHour: 100, PerDay: 1000},
	}

	t.Run("allowed passes through", func(t *testing.T) {
		billing := &stubBilling{}
		r := quotaTestRouter(&stubLimiter{decision: ports.RateLimitDecision{Allowed: true}}, billing, principal)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/thing", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, billing.failures)
	})

	t.Run("denied returns 429 and ledgers a failure", func(t *testing.T) {
		billing := &stubBilling{}
		limiter := &stubLimiter{decision: ports.RateLimitDecision{
			Allowed: false, Window: "minute", Current: 10, Limit: 10,
		}}
		r := quotaTestRouter(limiter, billing, principal)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/thing", nil))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.JSONEq(t, `{"detail":"Rate limit exceeded for minute window. Current: 10/10"}`, w.Body.String())
		assert.Equal(t, "60", w.Header().Get("Retry-After"))

		require.Len(t, billing.failures, 1)
		rec := billing.failures[0]
		assert.Equal(t, principal.UserID, rec.UserID)
		assert.Equal(t, "/api/thing", rec.Endpoint)
		assert.Equal(t, "Rate limit exceeded (minute window)", rec.ErrorMessage)
	})

	t.Run("retry hint is 60 for every window", func(t *testing.T) {
		for _, window := range []string{"minute", "hour", "day"} {
			billing := &stubBilling{}
			limiter := &stubLimiter{decision: ports.RateLimitDecision{
				Allowed: false, Window: window, Current: 100, Limit: 100,
			}}
			r := quotaTestRouter(limiter, billing, principal)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/thing", nil))

			assert.Equal(t, http.StatusTooManyRequests, w.Code, window)
			assert.Equal(t, "60", w.Header().Get("Retry-After"), window)
		}
	})

	t.Run("missing principal rejected", func(t *testing.T) {
		r := gin.New()
		r.Use(QuotaCheck(&stubLimiter{}, &stubBilling{}, zerolog.Nop()))
		r.GET("/api/thing", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/thing", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
