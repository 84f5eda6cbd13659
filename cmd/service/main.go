package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/kjstillabower/plants-doctor/internal/auth"
	"github.com/kjstillabower/plants-doctor/internal/circuitbreaker"
	"github.com/kjstillabower/plants-doctor/internal/client"
	"github.com/kjstillabower/plants-doctor/internal/config"
	"github.com/kjstillabower/plants-doctor/internal/forum"
	"github.com/kjstillabower/plants-doctor/internal/gateway"
	httphandler "github.com/kjstillabower/plants-doctor/internal/http"
	"github.com/kjstillabower/plants-doctor/internal/lifecycle"
	"github.com/kjstillabower/plants-doctor/internal/observability"
	"github.com/kjstillabower/plants-doctor/internal/repository"
	"github.com/kjstillabower/plants-doctor/internal/scheduler"
	"github.com/kjstillabower/plants-doctor/internal/service"
	"github.com/kjstillabower/plants-doctor/internal/session"
)

const breakerComponent = "gemini"

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	// Cancelled on shutdown; stops key refresh and the idle sweeper.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	aiClient, err := client.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiAPIURL, cfg.GeminiModel, cfg.GeminiTimeout)
	if err != nil {
		logger.Fatal("generative client", zap.Error(err))
	}
	breaker := newBreaker(cfg)
	if cfg.CircuitBreakerEnabled {
		observability.CircuitBreakerState.WithLabelValues(breakerComponent).Set(0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}
	gw := gateway.New(aiClient, breaker, logger)

	store, memcached := openSessionStore(cfg)
	logger.Info("session backend", zap.String("backend", cfg.SessionBackend))
	manager := session.NewManager(store, cfg.SessionTTL, cfg.PendingTTL)

	var verifier auth.Verifier
	if cfg.GoogleClientID != "" {
		keys, err := auth.NewKeySet(bgCtx, cfg.GoogleJWKSURL, auth.KeySetOptions{Refresh: cfg.GoogleKeyRefresh, Logger: logger})
		if err != nil {
			logger.Fatal("google key set", zap.Error(err))
		}
		verifier = auth.NewGoogleVerifier(cfg.GoogleClientID, keys)
	} else {
		logger.Info("google sign-in disabled; no client ID configured")
	}
	authSvc := auth.NewService(manager, cfg.VerificationCode, verifier, logger)
	community := service.NewCommunity(gw)
	authSvc.OnSessionEnd(community.Close)
	memStore, _ := store.(*session.InMemoryStore)
	go runSweeper(bgCtx, cfg.SessionSweepInterval, cfg.SessionTTL, memStore, community, logger)

	events, posts, db, err := openRepositories(cfg)
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}
	logger.Info("storage backend", zap.String("backend", cfg.StorageBackend))
	forumSvc := forum.NewService(posts, logger)
	if cfg.SeedSamplePosts {
		if err := forumSvc.SeedSamplePosts(context.Background()); err != nil {
			logger.Warn("seed forum posts failed", zap.Error(err))
		}
	}

	services := httphandler.Services{
		Auth:      authSvc,
		Detector:  service.NewDetector(gw, cfg.MaxImageBytes),
		Weather:   service.NewWeather(gw),
		Learn:     service.NewLearn(gw),
		Community: community,
		Scheduler: scheduler.NewService(events, logger),
		Forum:     forumSvc,
	}

	healthConfig := &httphandler.HealthConfig{
		ReadyDelay:           cfg.ReadyDelay,
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		CheckUpstream:        cfg.HealthCheckUpstream,
		CircuitState:         func() string { return breaker.State().String() },
	}
	if memcached != nil {
		healthConfig.SessionStorePing = memcached.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterWindowGauges(cfg.OverloadWindow)

	handler := httphandler.NewHandler(services, aiClient, healthConfig, logger, cfg.MaxImageBytes)
	router := httphandler.NewRouter(handler, httphandler.RouterOptions{
		Logger:         logger,
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout(cfg.RequestTimeout),
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("model", cfg.GeminiModel))
		lifecycle.MarkStarted(time.Now())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	stopBackground()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	inFlight := httphandler.InFlightCount()
	observability.RecordShutdownInFlight(inFlight)
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := httphandler.WaitForInFlight(shutdownCtx, 0); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	if memcached != nil {
		if err := memcached.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				logger.Error("sqlite close", zap.Error(err))
			}
		}
	}
	logger.Info("shutdown complete")
}

// newBreaker returns the gateway circuit breaker. Only upstream availability
// failures count against it; a rejected key or quota needs an operator, not a pause.
func newBreaker(cfg *config.Config) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New(circuitbreaker.Config{
		Enabled:          cfg.CircuitBreakerEnabled,
		FailureThreshold: uint32(cfg.CircuitBreakerFailureThreshold),
		MaxRequests:      uint32(cfg.CircuitBreakerMaxRequests),
		Timeout:          cfg.CircuitBreakerTimeout,
		Component:        breakerComponent,
		Failure:          countsAgainstBreaker,
		OnStateChange: func(from, to circuitbreaker.State) {
			observability.RecordCircuitBreakerTransition(breakerComponent, from.String(), to.String(), circuitbreaker.StateValue(to))
		},
	})
}

func countsAgainstBreaker(err error) bool {
	switch client.CategorizeError(err) {
	case client.ErrorCategoryNetwork, client.ErrorCategoryTimeout, client.ErrorCategoryUpstream, client.ErrorCategoryEmpty:
		return true
	default:
		return false
	}
}

// openSessionStore returns the configured store. The memcached store is also
// returned on its own so main can ping and close it.
func openSessionStore(cfg *config.Config) (session.Store, *session.MemcachedStore) {
	if cfg.SessionBackend == config.BackendMemcached {
		mc := session.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		return mc, mc
	}
	return session.NewInMemoryStore(), nil
}

// runSweeper drops expired in-memory session entries and chat conversations
// idle for longer than a session can live, every interval until ctx is done.
// store is nil when sessions live in memcached, which expires entries itself.
func runSweeper(ctx context.Context, interval, maxIdle time.Duration, store *session.InMemoryStore, community *service.Community, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(maxIdle, store, community, logger)
		}
	}
}

func sweep(maxIdle time.Duration, store *session.InMemoryStore, community *service.Community, logger *zap.Logger) {
	entries := 0
	if store != nil {
		entries = store.Sweep()
	}
	conversations := community.CloseIdle(maxIdle)
	observability.SweptTotal.WithLabelValues("session_entry").Add(float64(entries))
	observability.SweptTotal.WithLabelValues("conversation").Add(float64(conversations))
	if entries > 0 || conversations > 0 {
		logger.Debug("swept idle state", zap.Int("session_entries", entries), zap.Int("conversations", conversations))
	}
}

// openRepositories returns the scheduler and forum stores. db is nil for the
// in-memory backend.
func openRepositories(cfg *config.Config) (repository.EventRepository, repository.PostRepository, *gorm.DB, error) {
	if cfg.StorageBackend != config.BackendSQLite {
		return repository.NewMemoryEventRepository(), repository.NewMemoryPostRepository(), nil, nil
	}
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	db, err := repository.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return nil, nil, nil, err
	}
	return repository.NewGormEventRepository(db), repository.NewGormPostRepository(db), db, nil
}

// writeTimeout leaves room past the request deadline for the error response.
func writeTimeout(requestTimeout time.Duration) time.Duration {
	if requestTimeout <= 0 {
		return 0
	}
	return requestTimeout + 10*time.Second
}
