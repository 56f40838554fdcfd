package handler

import (
	"scoring-gateway/config"
	"scoring-gateway/internal/adapter/http/middleware"
	redisStore "scoring-gateway/internal/adapter/storage/redis"
	"scoring-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	IdentitySvc  ports.IdentityService
	BillingSvc   ports.BillingService
	RateLimitSvc ports.RateLimitService

	CreditScorer       ports.CreditScorer
	PortfolioOptimizer ports.PortfolioOptimizer
	VoltagePredictor   ports.VoltagePredictor
	LoanRepo           ports.LoanRepository

	IPLimitStore   *redisStore.IPLimitStore // nil = public endpoints unthrottled
	HealthCheckers []ports.HealthChecker

	Billing   config.BillingConfig
	RateLimit config.RateLimitConfig
	CORS      config.CORSConfig
	Scoring   config.ScoringConfig

	Logger zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.CORS(deps.CORS.AllowedOrigins))
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers))

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger documentation
	docs := r.Group("/docs")
	{
		docs.GET("", SwaggerUI)
		docs.GET("/spec", SwaggerSpec)
	}

	// Helper: return per-IP limiter middleware if the store is available,
	// else noop. Only the public credential endpoints use it.
	ipl := func(group string) gin.HandlerFunc {
		if deps.IPLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.IPLimit(deps.IPLimitStore, group, deps.RateLimit.LoginPerMinute, deps.Logger)
	}

	bearerAuth := middleware.BearerAuth(deps.IdentitySvc, deps.Logger)

	// --- Public routes (credentials in the body, throttled per IP) ---
	authHandler := NewAuthHandler(deps.IdentitySvc, deps.Logger)
	auth := r.Group("/auth")
	{
		auth.POST("/register", ipl("register"), authHandler.Register)
		auth.POST("/login", ipl("login"), authHandler.Login)
		auth.POST("/generate-key", ipl("generate-key"), authHandler.GenerateKey)

		// Key management needs an existing key.
		auth.GET("/my-keys", bearerAuth, authHandler.MyKeys)
		auth.DELETE("/revoke-key/:name", bearerAuth, authHandler.RevokeKey)
	}

	// --- Account routes (bearer key, never metered or quota-checked) ---
	billingHandler := NewBillingHandler(deps.BillingSvc, deps.RateLimitSvc, deps.Logger)
	billing := r.Group("/billing", bearerAuth)
	{
		billing.POST("/purchase-tokens", billingHandler.PurchaseTokens)
		billing.GET("/balance", billingHandler.Balance)
		billing.GET("/usage-stats", billingHandler.UsageStats)
		billing.GET("/rate-limit-status", billingHandler.RateLimitStatus)
	}

	// --- Metered model routes: auth, then quota, then billing ---
	scoringHandler := NewScoringHandler(
		deps.CreditScorer,
		deps.PortfolioOptimizer,
		deps.VoltagePredictor,
		deps.LoanRepo,
		deps.Scoring.Timeout,
		deps.Logger,
	)
	api := r.Group("/api",
		bearerAuth,
		middleware.QuotaCheck(deps.RateLimitSvc, deps.BillingSvc, deps.Logger),
		middleware.Metering(deps.BillingSvc, deps.Billing, deps.Logger),
	)
	{
		api.POST("/credit-score", scoringHandler.CreditScore)
		api.POST("/credit-scores", scoringHandler.CreditScores)
		api.POST("/optimize-portfolio", scoringHandler.OptimizePortfolio)
		api.POST("/peak-voltages", scoringHandler.PeakVoltages)
	}

	return r
}
