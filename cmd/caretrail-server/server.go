package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/caretrail/internal/config"
	"github.com/ehr/caretrail/internal/domain/clinical"
	"github.com/ehr/caretrail/internal/domain/encounter"
	"github.com/ehr/caretrail/internal/domain/patient"
	"github.com/ehr/caretrail/internal/platform/apperr"
	"github.com/ehr/caretrail/internal/platform/auth"
	"github.com/ehr/caretrail/internal/platform/db"
	"github.com/ehr/caretrail/internal/platform/metrics"
	"github.com/ehr/caretrail/internal/platform/middleware"
)

const (
	shutdownTimeout = 10 * time.Second
	requestBodyMax  = "1M"
)

// routeRegistrar is implemented by every domain handler.
type routeRegistrar interface {
	RegisterRoutes(api *echo.Group)
}

// serverDeps is everything newServer wires into the router.
type serverDeps struct {
	cfg      *config.Config
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	auth     *auth.Service
	health   echo.HandlerFunc
	handlers []routeRegistrar
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	// Database
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Schema:   cfg.DBSchema,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	m := metrics.New()

	// Access gateway
	authSvc, closeThrottle, err := newAuthService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeThrottle()
	authSvc.WithRecorder(m)

	// Record store
	tx := db.NewTransactor(pool)
	patientSvc := patient.NewService(patient.NewRepo(pool), tx).WithObserver(m)
	encounterSvc := encounter.NewService(encounter.NewRepo(pool), tx).WithObserver(m)
	clinicalSvc := clinical.NewService(clinical.NewRepo(pool), tx, cfg.VitalsTolerance).WithObserver(m)

	e := newServer(serverDeps{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		auth:    authSvc,
		health: db.HealthHandler(pool, func() *db.PoolStats {
			return db.GetPoolStats(pool)
		}, logger),
		handlers: []routeRegistrar{
			patient.NewHandler(patientSvc),
			encounter.NewHandler(encounterSvc),
			clinical.NewHandler(clinicalSvc),
		},
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newAuthService builds the login service. Failed-login counters live in
// Redis when REDIS_URL is set so every replica sees them; otherwise in memory.
func newAuthService(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*auth.Service, func(), error) {
	key, random, err := resolveSigningKey(cfg)
	if err != nil {
		return nil, nil, err
	}
	if random {
		logger.Warn().Msg("using a random JWT signing key for this process")
	}
	issuer, err := auth.NewTokenIssuer(key, cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		return nil, nil, err
	}

	store, err := newIdentityStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	var throttle auth.Throttle = auth.NewMemoryThrottle(cfg.LoginMaxFailures, cfg.LoginFailureWindow)
	closeFn := func() {}
	if cfg.RedisURL != "" {
		client, err := auth.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		throttle = auth.NewRedisThrottle(client, cfg.LoginMaxFailures, cfg.LoginFailureWindow)
		closeFn = func() {
			if err := client.Close(); err != nil {
				logger.Warn().Err(err).Msg("close redis client")
			}
		}
		logger.Info().Msg("login throttle backed by redis")
	}

	return auth.NewService(store, issuer, throttle, logger), closeFn, nil
}

func newIdentityStore(cfg *config.Config) (*auth.StaticIdentityStore, error) {
	if cfg.AuthUserPasswordHash != "" {
		return auth.NewStaticIdentityStore(cfg.AuthUserEmail, cfg.AuthUserPasswordHash)
	}
	return auth.NewStaticIdentityStoreFromPassword(cfg.AuthUserEmail, cfg.AuthUserPassword)
}

// probePath reports whether the request is a health or metrics probe, which
// are exempt from rate limiting.
func probePath(c echo.Context) bool {
	switch c.Path() {
	case "/health", "/health/db", "/metrics":
		return true
	}
	return false
}

func newServer(d serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(d.logger)

	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 30 * time.Second
	e.Server.IdleTimeout = 120 * time.Second

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.logger))
	e.Use(middleware.Metrics(d.metrics))
	e.Use(middleware.Recovery(d.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  d.cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
	}))
	e.Use(middleware.BodyLimit(requestBodyMax))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: d.cfg.RateLimitRPS,
		BurstSize:         d.cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 || rateLimitCfg.BurstSize <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	rateLimitCfg.Skipper = probePath
	e.Use(middleware.RateLimit(rateLimitCfg))

	// Probes
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.health != nil {
		e.GET("/health/db", d.health)
	}
	e.GET("/metrics", echo.WrapHandler(d.metrics.Handler()))

	// Access gateway
	authHandler := auth.NewHandler(d.auth)
	authHandler.RegisterPublicRoutes(e.Group("/api/auth"))

	// Record store
	apiV1 := e.Group("/api/v1", auth.JWTMiddleware(d.auth, auth.AuthSkipper))
	authHandler.RegisterRoutes(apiV1)
	for _, h := range d.handlers {
		h.RegisterRoutes(apiV1)
	}

	return e
}
