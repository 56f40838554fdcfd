package middleware

import (
	"strings"

	"scoring-gateway/internal/core/ports"
	"scoring-gateway/pkg/apperror"
	"scoring-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// BearerAuth resolves the Authorization header to a principal and stores
// it on the context. Rejections carry a WWW-Authenticate challenge so
// clients can tell an auth failure from any other 401 source.
func BearerAuth(identity ports.IdentityService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.Header("WWW-Authenticate", "Bearer")
			authRejections.WithLabelValues("missing").Inc()
			response.AbortError(c, apperror.ErrMissingAPIKey())
			return
		}

		plaintext := strings.TrimPrefix(header, "Bearer ")
		principal, err := identity.ValidateKey(c.Request.Context(), plaintext)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			authRejections.WithLabelValues("invalid").Inc()
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("key validation rejected")
			response.AbortError(c, err)
			return
		}

		c.Set(CtxPrincipal, *principal)
		c.Next()
	}
}
