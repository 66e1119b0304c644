// Package api exposes the curve engine over HTTP. Transport only: every
// handler validates, delegates to a service and maps the error taxonomy to
// status codes (400 validation, 404 missing, 409 conflict, 500 unexpected).
package api

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"agent-curve-engine/internal/engine"
	"agent-curve-engine/internal/graduation"
	"agent-curve-engine/internal/observability"
	"agent-curve-engine/internal/quote"
	"agent-curve-engine/internal/storage"
)

// Server holds the handler dependencies.
type Server struct {
	agents      storage.AgentStore
	trades      storage.TradeRecordStore
	ticks       storage.PriceTickStore
	quotes      *quote.Service
	engine      *engine.Executor
	graduations *graduation.Manager
	stream      http.Handler
	metrics     *observability.Metrics
	logger      *log.Logger
}

// Options contains configuration for creating a Server.
type Options struct {
	Agents      storage.AgentStore
	Trades      storage.TradeRecordStore
	Ticks       storage.PriceTickStore // optional; 404 without it
	Quotes      *quote.Service
	Engine      *engine.Executor
	Graduations *graduation.Manager
	Stream      http.Handler           // optional websocket hub
	Metrics     *observability.Metrics // optional
	Logger      *log.Logger            // optional
}

// NewServer creates the HTTP server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		agents:      opts.Agents,
		trades:      opts.Trades,
		ticks:       opts.Ticks,
		quotes:      opts.Quotes,
		engine:      opts.Engine,
		graduations: opts.Graduations,
		stream:      opts.Stream,
		metrics:     opts.Metrics,
		logger:      logger,
	}
}

// Router mounts all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/agents", s.handleCreateAgent)
		r.Get("/agents/{agentID}", s.handleGetAgent)
		r.Get("/agents/{agentID}/trades", s.handleListTrades)
		r.Get("/agents/{agentID}/ticks", s.handleListTicks)

		r.Post("/quote", s.handleQuote)
		r.Post("/trade", s.handleTrade)

		r.Post("/graduation/check", s.handleGraduationCheck)
		r.Post("/graduation/graduate", s.handleGraduate)
		r.Get("/graduation/status", s.handleGraduationStatus)
	})

	if s.stream != nil {
		r.Handle("/ws", s.stream)
	}
	return r
}

// observe records per-route request latency.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		next.ServeHTTP(w, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		s.metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
