package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/clinic-gate/internal/cache"
	"github.com/otcheredev/clinic-gate/internal/config"
	"github.com/otcheredev/clinic-gate/internal/database"
	"github.com/otcheredev/clinic-gate/internal/handlers"
	"github.com/otcheredev/clinic-gate/internal/identity"
	"github.com/otcheredev/clinic-gate/internal/invoicing"
	"github.com/otcheredev/clinic-gate/internal/metrics"
	"github.com/otcheredev/clinic-gate/internal/middleware"
	"github.com/otcheredev/clinic-gate/internal/models"
	"github.com/otcheredev/clinic-gate/internal/repository"
	"github.com/otcheredev/clinic-gate/internal/services"
	"github.com/otcheredev/clinic-gate/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("env", cfg.App.Env).Msg("Starting clinic gate")

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	// Initialize cache
	var policyCache cache.Cache
	if cfg.Cache.Enabled {
		if cfg.Cache.Type == "redis" {
			addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			redisCache, err := cache.NewRedisCache(addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to connect to Redis")
			}
			policyCache = redisCache
			log.Info().Msg("Redis cache initialized")
		} else {
			policyCache = cache.NewMemoryCache(time.Minute)
			log.Info().Msg("Memory cache initialized")
		}
		defer policyCache.Close()
	} else {
		log.Info().Msg("Cache disabled, billing policies are read from the database")
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Initialize repositories
	profileRepo := repository.NewProfileRepository(db)
	policyRepo := repository.NewBillingPolicyRepository(db)
	consultationRepo := repository.NewConsultationRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	invoiceClient := invoicing.NewClient(invoicing.Config{
		BaseURL:    cfg.Invoicing.BaseURL,
		APIKey:     cfg.Invoicing.APIKey,
		Timeout:    cfg.Invoicing.Timeout,
		RetryCount: cfg.Invoicing.RetryCount,
	})

	// Initialize services
	auditTrail := services.NewAuditTrail(auditRepo)
	policyService := services.NewBillingPolicyService(policyRepo, policyCache, cfg.Cache.PolicyTTL, auditTrail, m)
	paymentGate := services.NewPaymentGate(invoiceClient, m)
	consultationService := services.NewConsultationService(consultationRepo, policyService, paymentGate, auditTrail, m)

	dev, err := devBypass(cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid dev bypass configuration")
	}
	resolver := identity.NewResolver(
		identity.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience),
		profileRepo,
		dev,
	)

	// Initialize handlers
	checks := map[string]handlers.Check{
		"database": func(ctx context.Context) error { return database.Ping(db) },
	}
	if policyCache != nil {
		checks["cache"] = policyCache.Ping
	}
	healthHandler := handlers.NewHealthHandler(checks)
	consultationHandler := handlers.NewConsultationHandler(consultationService)
	billingHandler := handlers.NewBillingHandler(policyService)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RealIP(cfg.Server.TrustProxyHeaders))
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics(m))
	r.Use(chimiddleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints (no authentication required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimit.RequestsPerMinute > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimit.RequestsPerMinute, time.Minute))
		}
		r.Use(middleware.Authenticate(resolver, m))
		r.Use(middleware.TenantContext(auditTrail, m))

		r.Route("/consultations", func(r chi.Router) {
			r.Get("/", consultationHandler.List)
			r.Post("/", consultationHandler.Create)
			r.Get("/{id}", consultationHandler.Get)
			r.Put("/{id}", consultationHandler.Update)
			r.Post("/{id}/close", consultationHandler.Close)
			r.Post("/{id}/authorize-emergency", consultationHandler.AuthorizeEmergency)
			r.Get("/{id}/payment-status", consultationHandler.PaymentStatus)
			r.Get("/{id}/result-guard", consultationHandler.ResultGuard)
			r.Get("/{id}/audit", consultationHandler.AuditHistory)
		})

		r.Get("/configurations/billing", billingHandler.GetConfiguration)
		r.Put("/configurations/billing", billingHandler.PutConfiguration)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func devBypass(cfg config.AuthConfig) (identity.DevBypass, error) {
	if !cfg.DevBypass {
		return identity.DevBypass{}, nil
	}

	userID, err := uuid.Parse(cfg.DevUserID)
	if err != nil {
		return identity.DevBypass{}, fmt.Errorf("AUTH_DEV_USER_ID: %w", err)
	}
	tenantID := uuid.Nil
	if cfg.DevTenantID != "" {
		tenantID, err = uuid.Parse(cfg.DevTenantID)
		if err != nil {
			return identity.DevBypass{}, fmt.Errorf("AUTH_DEV_TENANT_ID: %w", err)
		}
	}

	return identity.DevBypass{
		Enabled:  true,
		UserID:   userID,
		TenantID: tenantID,
		Role:     models.ParseRole(cfg.DevRole),
	}, nil
}
