package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/plants-doctor/internal/auth"
	"github.com/kjstillabower/plants-doctor/internal/client"
	"github.com/kjstillabower/plants-doctor/internal/forum"
	"github.com/kjstillabower/plants-doctor/internal/lifecycle"
	"github.com/kjstillabower/plants-doctor/internal/scheduler"
	"github.com/kjstillabower/plants-doctor/internal/service"
	"github.com/kjstillabower/plants-doctor/internal/traffic"
)

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	ReadyDelay           time.Duration
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int // 0 when rate limiter disabled
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	// CheckUpstream validates the generative API key on every health check.
	CheckUpstream bool
	// SessionStorePing, when set, reports session store reachability (memcached backend).
	SessionStorePing func() error
	// CircuitState, when set, reports the gateway breaker state.
	CircuitState func() string
}

// Services groups the feature services the handlers call.
type Services struct {
	Auth      *auth.Service
	Detector  *service.Detector
	Weather   *service.Weather
	Learn     *service.Learn
	Community *service.Community
	Scheduler *scheduler.Service
	Forum     *forum.Service
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc           Services
	client        client.GenerativeClient
	healthConfig  *HealthConfig
	logger        *zap.Logger
	maxImageBytes int64
	now           func() time.Time

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. maxImageBytes bounds diagnosis uploads.
func NewHandler(svc Services, c client.GenerativeClient, healthConfig *HealthConfig, logger *zap.Logger, maxImageBytes int64) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:           svc,
		client:        c,
		healthConfig:  healthConfig,
		logger:        logger,
		maxImageBytes: maxImageBytes,
		now:           time.Now,
	}
}

type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"generativeApi": "healthy"}
	switch result.reason {
	case "api_key_invalid", "upstream_unreachable", "error_rate_breach":
		checks["generativeApi"] = "unhealthy"
	}
	if h.healthConfig != nil {
		if h.healthConfig.SessionStorePing != nil {
			if h.healthConfig.SessionStorePing() == nil {
				checks["sessionStore"] = "healthy"
			} else {
				checks["sessionStore"] = "unhealthy"
			}
		}
		if h.healthConfig.CircuitState != nil {
			checks["circuitBreaker"] = h.healthConfig.CircuitState()
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "plants-doctor",
		"version":   "dev",
		"checks":    checks,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}
	if result.reason != "" {
		resp["reason"] = result.reason
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > upstream check > overloaded > degraded > healthy.
// Overload counts every inbound request, including denied ones.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	cfg := h.healthConfig
	if cfg == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if !lifecycle.IsReady(h.now(), cfg.ReadyDelay) {
		return healthResult{"starting", http.StatusServiceUnavailable, "ready_delay"}
	}
	if cfg.CheckUpstream && h.client != nil {
		if err := h.client.ValidateAPIKey(ctx); err != nil {
			if errors.Is(err, client.ErrInvalidAPIKey) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "api_key_invalid"}
			}
			return healthResult{"degraded", http.StatusServiceUnavailable, "upstream_unreachable"}
		}
	}
	if cfg.RateLimitRPS > 0 && cfg.OverloadWindow > 0 && cfg.OverloadThresholdPct > 0 {
		threshold := float64(cfg.RateLimitRPS) * cfg.OverloadWindow.Seconds() * float64(cfg.OverloadThresholdPct) / 100
		if float64(traffic.RequestCount(cfg.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if cfg.DegradedWindow > 0 && cfg.DegradedErrorPct > 0 {
		errs, total := traffic.ErrorRate(cfg.DegradedWindow)
		if total > 0 && float64(errs)*100/float64(total) >= float64(cfg.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}
