// Package web provides the HTTP server and JSON API for the import engine.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/IgorDroma/reports-admin/internal/core"
)

// Server is the HTTP server for the import API.
type Server struct {
	service *core.Service
	router  *chi.Mux
	server  *http.Server

	maxUploadSize int64
	importTimeout time.Duration
}

// NewServer creates a new Server instance. importTimeout bounds one import
// request; non-positive means 10 minutes.
func NewServer(service *core.Service, maxUploadSize int64, importTimeout time.Duration) *Server {
	if importTimeout <= 0 {
		importTimeout = 10 * time.Minute
	}
	s := &Server{
		service:       service,
		router:        chi.NewRouter(),
		maxUploadSize: maxUploadSize,
		importTimeout: importTimeout,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// Imports of large files can legitimately run for minutes.
	s.router.Use(middleware.Timeout(s.importTimeout))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/datasets", s.handleListDatasets)

		r.Post("/import/{dataset}", s.handleImport)

		r.Get("/imports", s.handleListImports)
		r.Get("/imports/{batchID}", s.handleGetImport)
		r.Delete("/imports/{batchID}", s.handleRollback)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.importTimeout + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// requestLogger logs each request with its id, status, and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
