// Package api provides the HTTP API for subscriptions and billing runs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/manish0301/subscription-pro/internal/subscriptions/application/commands"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	"github.com/manish0301/subscription-pro/pkg/observability"
)

// Handlers are the application handlers the API dispatches to.
type Handlers struct {
	CreateSubscription  *commands.CreateSubscriptionHandler
	PauseSubscription   *commands.PauseSubscriptionHandler
	ResumeSubscription  *commands.ResumeSubscriptionHandler
	CancelSubscription  *commands.CancelSubscriptionHandler
	SkipDelivery        *commands.SkipDeliveryHandler
	ChangeSchedule      *commands.ChangeScheduleHandler
	RunBillingCycle     *commands.RunBillingCycleHandler
	GetSubscription     *queries.GetSubscriptionHandler
	ListSubscriptions   *queries.ListSubscriptionsHandler
	ListBillingAttempts *queries.ListBillingAttemptsHandler
	ListBillingFailures *queries.ListBillingFailuresHandler
}

// Server is the HTTP API server.
type Server struct {
	mux      *http.ServeMux
	server   *http.Server
	handlers Handlers
	health   *observability.HealthRegistry
	metrics  observability.Metrics
	auth     *authenticator
	limiter  *clientLimiter
	logger   *slog.Logger
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	AdminToken    string
	RatePerSecond float64
	RateBurst     int
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:          "0.0.0.0:8080",
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  2 * time.Minute,
		IdleTimeout:   60 * time.Second,
		RatePerSecond: 5,
		RateBurst:     10,
	}
}

// NewServer creates a new API server. health and metrics may be nil.
func NewServer(cfg ServerConfig, handlers Handlers, health *observability.HealthRegistry, metrics observability.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if health == nil {
		health = observability.NewHealthRegistry()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}

	s := &Server{
		mux:      http.NewServeMux(),
		handlers: handlers,
		health:   health,
		metrics:  metrics,
		auth:     &authenticator{adminToken: cfg.AdminToken},
		limiter:  newClientLimiter(cfg.RatePerSecond, cfg.RateBurst),
		logger:   logger,
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Subscriptions
	s.mux.HandleFunc("POST /api/v1/subscriptions", s.authenticated(s.createSubscription))
	s.mux.HandleFunc("GET /api/v1/subscriptions", s.authenticated(s.listSubscriptions))
	s.mux.HandleFunc("GET /api/v1/subscriptions/{id}", s.authenticated(s.getSubscription))
	s.mux.HandleFunc("POST /api/v1/subscriptions/{id}/pause", s.authenticated(s.pauseSubscription))
	s.mux.HandleFunc("POST /api/v1/subscriptions/{id}/resume", s.authenticated(s.resumeSubscription))
	s.mux.HandleFunc("POST /api/v1/subscriptions/{id}/cancel", s.authenticated(s.cancelSubscription))
	s.mux.HandleFunc("POST /api/v1/subscriptions/{id}/skip", s.authenticated(s.skipDelivery))
	s.mux.HandleFunc("PUT /api/v1/subscriptions/{id}/schedule", s.authenticated(s.changeSchedule))
	s.mux.HandleFunc("GET /api/v1/subscriptions/{id}/attempts", s.authenticated(s.listAttempts))

	// Billing
	s.mux.HandleFunc("POST /api/v1/billing/runs", s.adminOnly(s.runBilling))
	s.mux.HandleFunc("GET /api/v1/billing/failures", s.adminOnly(s.listFailures))
}

// Handler returns the routed handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return s.withRequestContext(s.mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.health.Check(r.Context())
	status := http.StatusOK
	if health.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIError{
		Code:    http.StatusText(status),
		Message: message,
	})
}

// APIError is the body of every error response.
type APIError struct {
	Code    string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// StatusForKind maps a domain error kind to its HTTP status.
func StatusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindStateGuard, domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindGateway:
		return http.StatusBadGateway
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError maps err to a status and writes it. Internal errors are
// logged and their message is not returned.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		writeError(w, http.StatusServiceUnavailable, "request canceled")
		return
	}
	kind := domain.KindOf(err)
	status := StatusForKind(kind)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"kind", kind,
			"error", err,
		)
		if kind == domain.KindInternal {
			message = "internal error"
		}
	}
	writeJSON(w, status, APIError{
		Code:    http.StatusText(status),
		Kind:    string(kind),
		Message: message,
	})
}
