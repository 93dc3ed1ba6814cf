// Package trace logs every API request with its request id and keeps request counters.
package trace

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"fintrack/internal/log"
)

// Middleware handles request tracing and logging
type Middleware struct {
	totalRequests atomic.Int64
	serverErrors  atomic.Int64
	lastLatencyMs atomic.Int64
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests int64
	ServerErrors  int64
	LastLatencyMs int64
}

func NewMiddleware() *Middleware {
	return &Middleware{}
}

// RequestID reads the id chi's RequestID middleware stored in the context.
func RequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// Middleware records status and latency of each request. The completion line is written with
// the request logger from the context, so it carries the request id when
// log.RequestIDMiddleware runs first.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ms := time.Since(start).Milliseconds()
		m.totalRequests.Add(1)
		m.lastLatencyMs.Store(ms)
		if status >= 500 {
			m.serverErrors.Add(1)
		}

		log.NewStructuredLogger(log.FromContext(r.Context())).LogHTTPEnd(r.Context(), r, status, ms)
	})
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests: m.totalRequests.Load(),
		ServerErrors:  m.serverErrors.Load(),
		LastLatencyMs: m.lastLatencyMs.Load(),
	}
}
