package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
	"github.com/lsk7209/0-nkey-sub001/internal/core/store"
	apperrors "github.com/lsk7209/0-nkey-sub001/internal/errors"
	"github.com/lsk7209/0-nkey-sub001/internal/observability"
	"github.com/lsk7209/0-nkey-sub001/internal/server/handlers"
	servermw "github.com/lsk7209/0-nkey-sub001/internal/server/middleware"
)

// StateReader is the read side of the state store exposed over HTTP.
type StateReader interface {
	LoadThrottleState(ctx context.Context, pool string) (*core.ThrottleSnapshot, error)
	ListThrottleStates(ctx context.Context, q store.ThrottleQuery) ([]core.ThrottleSnapshot, error)
	ListRuns(ctx context.Context, q store.RunQuery) ([]core.RunSummary, error)
}

// Option configures a Server.
type Option func(*Server)

// WithStateReader backs /metrics/throttle and /debug/* with persisted state.
func WithStateReader(state StateReader) Option {
	return func(s *Server) { s.state = state }
}

// WithAdminToken enables /debug/* and /admin/signal behind bearer auth.
func WithAdminToken(token string) Option {
	return func(s *Server) { s.adminToken = token }
}

// WithMetricsNamespace prefixes the throttle collector's metric names.
func WithMetricsNamespace(namespace string) Option {
	return func(s *Server) { s.namespace = namespace }
}

// Server is the HTTP surface of serve.
type Server struct {
	router *chi.Mux
	server *http.Server
	host   string
	port   int

	state      StateReader
	adminToken string
	namespace  string
}

// New builds the router and registers every route.
func New(host string, port int, opts ...Option) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router:    r,
		host:      host,
		port:      port,
		namespace: "nkey",
	}
	for _, opt := range opts {
		opt(s)
	}

	handlers.SetHTTPErrorResponder(HandleError)
	s.registerRoutes()
	return s
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server",
			zap.String("host", s.host),
			zap.Int("port", s.port),
			zap.String("addr", addr),
			zap.Bool("debug_routes", s.adminToken != ""))
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}
