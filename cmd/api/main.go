package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scoring-gateway/config"
	httpHandler "scoring-gateway/internal/adapter/http/handler"
	pgStorage "scoring-gateway/internal/adapter/storage/postgres"
	redisStorage "scoring-gateway/internal/adapter/storage/redis"
	"scoring-gateway/internal/core/domain"
	"scoring-gateway/internal/core/ports"
	"scoring-gateway/internal/scoring/credit"
	"scoring-gateway/internal/scoring/voltage"
	"scoring-gateway/internal/service"
	"scoring-gateway/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Scoring Gateway")

	ctx := context.Background()

	// Apply schema migrations before opening the pool.
	if err := pgStorage.RunMigrations(cfg.Database.DSN(), log); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	keyRepo := pgStorage.NewAPIKeyRepo(pool)
	usageRepo := pgStorage.NewUsageRepo(pool)
	txnRepo := pgStorage.NewTokenTransactionRepo(pool)
	loanRepo := pgStorage.NewLoanRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	ipLimitStore := redisStorage.NewIPLimitStore(rdb)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	keySvc, err := service.NewPepperedKeyService(cfg.Auth.Pepper, cfg.Auth.KeyPrefix)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize key service")
	}

	// Initialize business services
	identitySvc := service.NewIdentityService(userRepo, keyRepo, hashSvc, keySvc, service.IdentityConfig{
		SignupGrant: cfg.Billing.SignupGrant,
		DefaultLimits: domain.RateLimits{
			PerMinute: cfg.RateLimit.RequestsPerMinute,
			PerHour:   cfg.RateLimit.RequestsPerHour,
			PerDay:    cfg.RateLimit.RequestsPerDay,
		},
		DefaultKeyExpiryDays: cfg.Auth.DefaultKeyExpiryDays,
	}, log)
	billingSvc := service.NewBillingService(userRepo, usageRepo, txnRepo, transactor, log)
	rateLimitSvc := service.NewRateLimitService(usageRepo, log)

	// Initialize scoring engines
	scorer := credit.NewScorer(credit.NewPricingEngine(credit.DefaultPricingConfig()))
	optimizer := credit.NewOptimizer()
	predictor := voltage.NewPredictor()

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /docs")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		IdentitySvc:        identitySvc,
		BillingSvc:         billingSvc,
		RateLimitSvc:       rateLimitSvc,
		CreditScorer:       scorer,
		PortfolioOptimizer: optimizer,
		VoltagePredictor:   predictor,
		LoanRepo:           loanRepo,
		IPLimitStore:       ipLimitStore,
		HealthCheckers:     []ports.HealthChecker{pgHealth, redisHealth},
		Billing:            cfg.Billing,
		RateLimit:          cfg.RateLimit,
		CORS:               cfg.CORS,
		Scoring:            cfg.Scoring,
		Logger:             log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
