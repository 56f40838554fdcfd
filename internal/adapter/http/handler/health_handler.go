package handler

import (
	"context"
	"net/http"
	"time"

	"scoring-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports dependency connectivity. Any failing dependency
// degrades the overall status and flips the response to 503 so load
// balancers stop routing here.
func HealthCheck(checkers []ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps := make(map[string]string, len(checkers))
		healthy := true
		for _, checker := range checkers {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err := checker.Ping(ctx)
			cancel()
			if err != nil {
				deps[checker.Name()] = "unreachable"
				healthy = false
			} else {
				deps[checker.Name()] = "ok"
			}
		}

		status := "healthy"
		code := http.StatusOK
		if !healthy {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
