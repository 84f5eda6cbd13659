package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/plants-doctor/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency. Diagnosis requests dominate the tail because of image upload.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Generative API calls by gateway operation (diagnose, weather, learn, translate, chat) and status.
	AICallsTotal *prometheus.CounterVec

	// Generative API latency. Model calls are slow; p95 above 15s means the upstream is struggling.
	AICallDuration *prometheus.HistogramVec

	// Replies that failed JSON decoding or contract validation. Watch for: prompt/schema drift.
	AIInvalidResponsesTotal *prometheus.CounterVec

	// Failed generative calls by error category (see client.CategorizeError).
	AIErrorsTotal *prometheus.CounterVec

	// Chat sessions currently held in memory.
	ChatSessionsActive prometheus.Gauge

	// Expired session entries and idle chat conversations removed by the sweeper, by kind.
	SweptTotal *prometheus.CounterVec

	// Chat messages by role.
	ChatMessagesTotal *prometheus.CounterVec

	// Login attempts by method (email, google) and result (pending, success, invalid_code, rejected).
	LoginsTotal *prometheus.CounterVec

	// Forum activity.
	ForumPostsTotal   prometheus.Counter
	ForumRepliesTotal prometheus.Counter

	// Scheduler events added.
	SchedulerEventsTotal prometheus.Counter

	// Rate limit denials (429).
	RateLimitDeniedTotal prometheus.Counter

	// Requests rejected because the same user already has a call pending on that view.
	ViewBusyTotal *prometheus.CounterVec

	// Circuit breaker state (0 closed, 1 half-open, 2 open) and transitions.
	CircuitBreakerState       *prometheus.GaugeVec
	CircuitBreakerTransitions *prometheus.CounterVec

	// In-flight requests still running when shutdown started.
	ShutdownInFlight prometheus.Gauge

	windowGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	AICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiCallsTotal",
			Help: "Total number of generative API calls",
		},
		[]string{"operation", "status"},
	)
	AICallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aiCallDurationSeconds",
			Help:    "Generative API latency in seconds (per call)",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"operation", "status"},
	)
	AIInvalidResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiInvalidResponsesTotal",
			Help: "Generative replies rejected by the response contract",
		},
		[]string{"operation"},
	)
	AIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiErrorsTotal",
			Help: "Failed generative calls by error category",
		},
		[]string{"category"},
	)
	ChatSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatSessionsActive",
			Help: "Chat sessions currently held in memory",
		},
	)
	SweptTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweptTotal",
			Help: "Expired session entries and idle chat conversations removed by the sweeper",
		},
		[]string{"kind"},
	)
	ChatMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatMessagesTotal",
			Help: "Chat messages by role",
		},
		[]string{"role"},
	)
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginsTotal",
			Help: "Login attempts by method and result",
		},
		[]string{"method", "result"},
	)
	ForumPostsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forumPostsTotal",
			Help: "Forum posts created",
		},
	)
	ForumRepliesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forumRepliesTotal",
			Help: "Forum replies added",
		},
	)
	SchedulerEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "schedulerEventsTotal",
			Help: "Calendar events added",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	ViewBusyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewBusyTotal",
			Help: "Requests rejected because a call for the same user and view was pending",
		},
		[]string{"view"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	ShutdownInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutdownInFlightRequests",
			Help: "In-flight requests when graceful shutdown started",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		AICallsTotal, AICallDuration, AIInvalidResponsesTotal, AIErrorsTotal,
		ChatSessionsActive, ChatMessagesTotal, SweptTotal,
		LoginsTotal,
		ForumPostsTotal, ForumRepliesTotal, SchedulerEventsTotal,
		RateLimitDeniedTotal, ViewBusyTotal,
		CircuitBreakerState, CircuitBreakerTransitions,
		ShutdownInFlight,
	)
}

// RegisterWindowGauges registers sliding-window gauges over inbound requests
// and gateway outcomes. Call once from main with the lifecycle window.
func RegisterWindowGauges(window time.Duration) {
	windowGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "httpRequestsInWindow",
					Help: "Inbound requests counted toward overload in the lifecycle window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitDeniedInWindow",
					Help: "Rate-limit denials in the lifecycle window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "gatewayCallsInWindow",
					Help: "Gateway calls (success and error) in the lifecycle window",
				},
				func() float64 {
					_, total := traffic.ErrorRate(window)
					return float64(total)
				},
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "gatewayErrorsInWindow",
					Help: "Gateway errors in the lifecycle window",
				},
				func() float64 {
					errs, _ := traffic.ErrorRate(window)
					return float64(errs)
				},
			),
			newOperationErrorsCollector(window),
		)
	})
}

// operationErrorsCollector exports gateway errors per operation over a window.
// Operations appear only while they have errors in the window.
type operationErrorsCollector struct {
	window time.Duration
	desc   *prometheus.Desc
}

func newOperationErrorsCollector(window time.Duration) *operationErrorsCollector {
	return &operationErrorsCollector{
		window: window,
		desc: prometheus.NewDesc(
			"gatewayOperationErrorsInWindow",
			"Gateway errors per operation in the lifecycle window",
			[]string{"operation"}, nil,
		),
	}
}

func (c *operationErrorsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *operationErrorsCollector) Collect(ch chan<- prometheus.Metric) {
	for op, n := range traffic.OperationErrors(c.window) {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), op)
	}
}

// RecordAICall records one generative call outcome for operation.
func RecordAICall(operation, status string, d time.Duration) {
	AICallsTotal.WithLabelValues(operation, status).Inc()
	AICallDuration.WithLabelValues(operation, status).Observe(d.Seconds())
}

// RecordCircuitBreakerTransition counts a transition and updates the state gauge.
func RecordCircuitBreakerTransition(component, from, to string, toValue float64) {
	CircuitBreakerTransitions.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(toValue)
}

// RecordShutdownInFlight stores the in-flight count observed at shutdown.
func RecordShutdownInFlight(n int64) {
	ShutdownInFlight.Set(float64(n))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
