package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zyoung51/on-http/internal/journal"
	"github.com/zyoung51/on-http/internal/store"
	"github.com/zyoung51/on-http/internal/workflow"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 60 * time.Second
)

// EndpointLister reports the scheduler endpoints with a cached connection.
// *taskgraph.Pool implements it.
type EndpointLister interface {
	Keys() []string
}

// Server wraps the chi router and application dependencies.
type Server struct {
	router    *chi.Mux
	workflows *workflow.Service
	endpoints EndpointLister
	store     store.Store
	broker    *journal.Broker
	logger    *slog.Logger
	addr      string
}

// NewServer creates and configures a new HTTP server.
func NewServer(addr string, wf *workflow.Service, endpoints EndpointLister, s store.Store, b *journal.Broker, logger *slog.Logger) *Server {
	srv := &Server{
		router:    chi.NewRouter(),
		workflows: wf,
		endpoints: endpoints,
		store:     s,
		broker:    b,
		logger:    logger,
		addr:      addr,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Route("/api/2.0", func(r chi.Router) {
		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.handleListWorkflows)
			r.Post("/", s.handleRunWorkflow)

			r.Get("/graphs", s.handleListGraphs)
			r.Put("/graphs", s.handlePutGraph)
			r.Get("/graphs/{injectableName}", s.handleGetGraph)
			r.Delete("/graphs/{injectableName}", s.handleDeleteGraph)

			r.Get("/tasks", s.handleListTaskDefinitions)
			r.Put("/tasks", s.handlePutTaskDefinition)
			r.Get("/tasks/{injectableName}", s.handleGetTaskDefinition)
			r.Delete("/tasks/{injectableName}", s.handleDeleteTaskDefinition)

			r.Get("/{identifier}", s.handleGetWorkflow)
			r.Put("/{identifier}/action", s.handleWorkflowAction)
			r.Delete("/{identifier}", s.handleDeleteWorkflow)
		})

		r.Route("/nodes/{identifier}/workflows", func(r chi.Router) {
			r.Get("/", s.handleListNodeWorkflows)
			r.Post("/", s.handleRunNodeWorkflow)
			r.Get("/active", s.handleListActiveNodeWorkflows)
		})

		r.Get("/tasks/{identifier}", s.handleGetTask)
	})

	s.router.Get("/v1/endpoints", s.handleListEndpoints)
	s.router.Get("/v1/stats", s.handleGetStats)
	s.router.Route("/v1/calls", func(r chi.Router) {
		r.Get("/", s.handleListCalls)
		r.Get("/stream", s.handleStreamCalls)
		r.Get("/{id}", s.handleGetCall)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}
	// Live call streams end when the broker closes.
	httpServer.RegisterOnShutdown(s.broker.Close)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", routePattern(r),
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
