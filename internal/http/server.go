// Package http exposes the ledger, dashboard and recurring services as a JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Services are the collaborators behind the API.
type Services struct {
	Ledger    *services.LedgerService
	Dashboard *services.DashboardService
	Recurring *services.RecurringProcessor
}

// Options tune the HTTP layer. Zero values pick the defaults.
type Options struct {
	RequestsPerMinute int
	RequestTimeout    time.Duration
	TrustedProxies    []string
}

// Server is the API server. Handler is the chi router with the full middleware stack.
type Server struct {
	*http.Server
	svc      Services
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
}

// NewServer builds the router and the http.Server listening on addr.
func NewServer(addr string, svc Services, opts Options, logger *log.Logger) (*Server, error) {
	if svc.Ledger == nil || svc.Dashboard == nil || svc.Recurring == nil {
		return nil, errors.New("http server needs ledger, dashboard and recurring services")
	}
	if logger == nil {
		logger = log.Discard()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	s := &Server{
		svc:      svc,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		detector: security.NewDetector(),
		tracer:   trace.NewMiddleware(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.limiter.Stop()
			return nil, fmt.Errorf("trusted proxies: %w", err)
		}
	}

	s.Server = &http.Server{
		Addr:              addr,
		Handler:           s.routes(opts.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      opts.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// chi's RealIP is left out: it trusts forwarding headers from anyone. The detector only
	// honours them from trusted proxies.
	r.Use(middleware.RequestID)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(trace.RequestID))
	r.Use(s.tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware(s.logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError(r, "no such route").Write(w, r)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(r, http.StatusMethodNotAllowed, "method not allowed").Write(w, r)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleHealth)
	r.Get("/metricsz", s.handleMetrics)

	r.Route("/api/users/{userID}", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			ErrorResponse(r, http.StatusTooManyRequests, "rate limit exceeded").Write(w, r)
		}))
		r.Use(middleware.Timeout(timeout))

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/subscriptions", s.handleSubscriptions)
		r.Post("/transactions", s.handleCreateTransaction)
		r.Post("/accounts", s.handleCreateAccount)
		r.Post("/categories", s.handleCreateCategory)
		r.Post("/recurring-rules", s.handleCreateRecurringRule)
		r.Post("/budgets", s.handleCreateBudget)
		r.Post("/goals", s.handleCreateGoal)
		r.Post("/recurring/materialize", s.handleMaterialize)
	})
	return r
}

// Start serves until Shutdown. http.ErrServerClosed is not reported as an error.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.limiter.Stop()
	s.logger.InfoContext(ctx, "Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
	return s.Server.Shutdown(ctx)
}

// Metrics is the snapshot served on /metricsz.
type Metrics struct {
	TotalRequests      int64 `json:"total_requests"`
	ServerErrors       int64 `json:"server_errors"`
	LastLatencyMs      int64 `json:"last_latency_ms"`
	SuspiciousRequests int64 `json:"suspicious_requests"`
	RateLimitedClients int   `json:"tracked_clients"`
}

func (s *Server) Metrics() Metrics {
	t := s.tracer.GetMetrics()
	return Metrics{
		TotalRequests:      t.TotalRequests,
		ServerErrors:       t.ServerErrors,
		LastLatencyMs:      t.LastLatencyMs,
		SuspiciousRequests: s.detector.GetMetrics().SuspiciousRequests,
		RateLimitedClients: s.limiter.ActiveClients(),
	}
}
