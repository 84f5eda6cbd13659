package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/plants-doctor/internal/observability"
)

// RouterOptions configures the middleware applied by NewRouter.
type RouterOptions struct {
	Logger         *zap.Logger
	Limiter        *rate.Limiter // nil disables rate limiting
	RequestTimeout time.Duration // 0 disables the per-request deadline
}

// NewRouter wires every route. /health and /metrics skip rate limiting and auth.
func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	requireSession := SessionMiddleware(h.svc.Auth)

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	authRouter := router.PathPrefix("/auth").Subrouter()
	authRouter.Use(RateLimitMiddleware(opts.Limiter))
	authRouter.HandleFunc("/signup", h.SignUp).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", h.SignIn).Methods(http.MethodPost)
	authRouter.HandleFunc("/verify", h.Verify).Methods(http.MethodPost)
	authRouter.HandleFunc("/google", h.GoogleSignIn).Methods(http.MethodPost)
	authRouter.Handle("/logout", requireSession(http.HandlerFunc(h.Logout))).Methods(http.MethodPost)
	authRouter.Handle("/me", requireSession(http.HandlerFunc(h.Me))).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(RateLimitMiddleware(opts.Limiter))
	api.Use(requireSession)
	api.Use(TimeoutMiddleware(opts.RequestTimeout))
	api.HandleFunc("/detector/diagnose", h.Diagnose).Methods(http.MethodPost)
	api.HandleFunc("/detector/translate", h.Translate).Methods(http.MethodPost)
	api.HandleFunc("/detector/languages", h.Languages).Methods(http.MethodGet)
	api.HandleFunc("/weather", h.Weather).Methods(http.MethodGet)
	api.HandleFunc("/learn", h.Learn).Methods(http.MethodGet)
	api.HandleFunc("/chat/messages", h.ChatTranscript).Methods(http.MethodGet)
	api.HandleFunc("/chat/messages", h.ChatSend).Methods(http.MethodPost)
	api.HandleFunc("/scheduler/events", h.ListEvents).Methods(http.MethodGet)
	api.HandleFunc("/scheduler/events", h.AddEvent).Methods(http.MethodPost)
	api.HandleFunc("/scheduler/export", h.ExportEvents).Methods(http.MethodGet)
	api.HandleFunc("/forum/posts", h.ListPosts).Methods(http.MethodGet)
	api.HandleFunc("/forum/posts", h.CreatePost).Methods(http.MethodPost)
	api.HandleFunc("/forum/posts/{id}", h.GetPost).Methods(http.MethodGet)
	api.HandleFunc("/forum/posts/{id}/replies", h.AddReply).Methods(http.MethodPost)

	return router
}
