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
)

func authTestRouter(identity ports.IdentityService) *gin.Engine {
	r := gin.New()
	r.Use(BearerAuth(identity, zerolog.Nop()))
	r.GET("/whoami", func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "principal missing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": p.UserID.String(), "key_id": p.APIKeyID})
	})
	return r
}

func TestBearerAuth(t *testing.T) {
	userID := uuid.New()
	identity := &stubIdentity{
		validKey: "pk_good",
		principal: ports.Principal{
			UserID:   userID,
			APIKeyID: 7,
			Limits:   domain.RateLimits{PerMinute: 10, PerHour: 100, PerDay: 1000},
		},
	}

	t.Run("valid key sets principal", func(t *testing.T) {
		r := authTestRouter(identity)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer pk_good")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), userID.String())
	})

	t.Run("missing header", func(t *testing.T) {
		r := authTestRouter(identity)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"detail":"Missing API key"}`, w.Body.String())
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	})

	t.Run("wrong scheme", func(t *testing.T) {
		r := authTestRouter(identity)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwdw==")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"detail":"Missing API key"}`, w.Body.String())
	})

	t.Run("unknown key", func(t *testing.T) {
		r := authTestRouter(identity)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer pk_bad")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"detail":"Invalid or expired API key"}`, w.Body.String())
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	})
}
