// Package server exposes the session flows over HTTP with a chi router.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/go-go-golems/coder/pkg/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultMaxBodyBytes int64 = 8 << 20

// Service is the part of session.Service the transport needs.
type Service interface {
	Ask(ctx context.Context, req session.AskRequest) (*session.AskResponse, error)
	Edit(ctx context.Context, req session.EditRequest) (*session.EditResponse, error)
	History(ctx context.Context, conversationID string, persona conversation.Persona) (*session.History, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	service         Service
	pinger          Pinger
	maxBodyBytes    int64
	requestTimeout  time.Duration
	shutdownTimeout time.Duration
	router          chi.Router
}

type Option func(*Server)

func WithPinger(p Pinger) Option {
	return func(s *Server) {
		s.pinger = p
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithRequestTimeout bounds each request, model call included. Zero disables it.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.requestTimeout = d
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

func NewServer(service Service, options ...Option) *Server {
	s := &Server{
		service:         service,
		maxBodyBytes:    DefaultMaxBodyBytes,
		shutdownTimeout: 10 * time.Second,
	}
	for _, o := range options {
		o(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	if s.requestTimeout > 0 {
		r.Use(middleware.Timeout(s.requestTimeout))
	}

	// any origin, any method, any header
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Post("/ask", s.handleAsk)
	r.Options("/ask", handlePreflight)
	r.Post("/edit", s.handleEdit)
	r.Options("/edit", handlePreflight)

	r.Get("/conversations/{conversationID}", s.handleGetConversation)

	s.router = r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", addr).Msg("starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http shutdown")
	}
	return nil
}
