package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/plants-doctor/internal/auth"
	"github.com/kjstillabower/plants-doctor/internal/observability"
	"github.com/kjstillabower/plants-doctor/internal/session"
	"github.com/kjstillabower/plants-doctor/internal/traffic"
)

type ctxKey int

const sessionCtxKey ctxKey = iota

func CorrelationIDMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			corrID := r.Header.Get("X-Correlation-ID")
			if corrID == "" {
				corrID = uuid.New().String()
			}

			ctx := context.WithValue(r.Context(), "correlation_id", corrID)
			w.Header().Set("X-Correlation-ID", corrID)

			logger := logger.With(zap.String("correlation_id", corrID))
			ctx = context.WithValue(ctx, "logger", logger)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MetricsMiddleware records request counts and latency by route template, and
// tracks the request in the process in-flight counter used at shutdown.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTPRequestsInFlight.Inc()
		globalInFlightTracker.Increment()
		defer func() {
			globalInFlightTracker.Decrement()
			observability.HTTPRequestsInFlight.Dec()
		}()

		route := getRoute(r)
		if countsTowardLoad(route) {
			traffic.RecordRequest()
		}

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		observability.HTTPRequestsTotal.WithLabelValues(r.Method, route, statusCodeString(recorder.statusCode)).Inc()
		observability.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// countsTowardLoad excludes the health and metrics endpoints so polling does
// not report the service as overloaded.
func countsTowardLoad(route string) bool {
	return route != "/health" && route != "/metrics"
}

// getRoute returns the matched route template so IDs do not become label values.
func getRoute(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func statusCodeString(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// TimeoutMiddleware sets a deadline on the request context. Downstream calls see
// context.DeadlineExceeded once it passes. A zero timeout disables it.
func TimeoutMiddleware(timeout time.Duration) mux.MiddlewareFunc {
	if timeout <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware returns 429 when the token bucket is exhausted. Disabled when limiter is nil.
func RateLimitMiddleware(limiter *rate.Limiter) mux.MiddlewareFunc {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				loggerFrom(r).Debug("rate limit denied")
				traffic.RecordDenied()
				observability.RateLimitDeniedTotal.Inc()
				writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionMiddleware resolves the bearer token to a session and stores it in the
// request context. Requests without a valid session get 401.
func SessionMiddleware(authSvc *auth.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := authSvc.Authenticate(r.Context(), bearerToken(r))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), sessionCtxKey, sess)
			logger := loggerFrom(r).With(zap.String("user", sess.User.Email))
			ctx = context.WithValue(ctx, "logger", logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// sessionFrom returns the session placed by SessionMiddleware.
func sessionFrom(r *http.Request) (session.Session, bool) {
	sess, ok := r.Context().Value(sessionCtxKey).(session.Session)
	return sess, ok
}

func loggerFrom(r *http.Request) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.NewNop()
}
