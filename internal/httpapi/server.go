package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MimeLyc/batch-sub-translator/internal/jobs"
	"github.com/MimeLyc/batch-sub-translator/internal/service"
)

// Server is the local single-session control surface. Long running actions
// go through the queue; everything else calls the orchestrator directly.
type Server struct {
	orch  *service.Orchestrator
	queue *jobs.Queue

	allowedOrigins []string
	streamInterval time.Duration

	// mu guards filename and server.
	mu       sync.RWMutex
	filename string

	router *chi.Mux
	server *http.Server
}

type Option func(*Server)

func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

func NewServer(orch *service.Orchestrator, queue *jobs.Queue, opts ...Option) *Server {
	s := &Server{
		orch:           orch,
		queue:          queue,
		streamInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()
	return srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(corsOptions(s.allowedOrigins)))

	r.Route("/api", func(r chi.Router) {
		r.Post("/session", s.handleLoadSession)
		r.Get("/session", s.handleGetSession)
		r.Get("/session/stream", s.handleSessionStream)

		r.Post("/run", s.handleRun)
		r.Post("/pause", s.handlePause)
		r.Post("/resume", s.handleResume)
		r.Post("/cancel", s.handleCancel)
		r.Post("/reset", s.handleReset)

		r.Post("/items/{id}/retry", s.handleRetryItem)
		r.Put("/items/{id}", s.handleUpdateItem)
		r.Post("/batches/retry-all", s.handleRetryAll)
		r.Post("/batches/{key}/retry", s.handleRetryBatch)

		r.Get("/export", s.handleExport)
		r.Get("/actions", s.handleListActions)
	})
	return r
}

func corsOptions(allowedOrigins []string) cors.Options {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	// wildcard origins must not be combined with credentials
	allowCreds := true
	for _, o := range allowedOrigins {
		if o == "*" {
			allowCreds = false
			break
		}
	}

	return cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: allowCreds,
		MaxAge:           300,
	}
}
