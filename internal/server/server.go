// Package server exposes the reconciliation engine over HTTP.
//
// Routes:
//
//	POST /api/identify                  reconcile one observation
//	GET  /api/contacts/{id}/identity    summary of the identity holding a contact
//	GET  /api/health                    liveness
//	GET  /api/ready                     readiness (pings the store)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/contactgraph/internal/contact"
)

// Identifier is the engine surface the server needs.
type Identifier interface {
	Identify(ctx context.Context, o contact.Observation) (contact.Summary, error)
	Summarize(ctx context.Context, id int64) (contact.Summary, error)
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IDGenerator generates request ids.
// Implemented by UUIDv7Generator (production) and testutil.SequentialIDGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// Config holds HTTP server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	engine Identifier
	store  Pinger
	ids    IDGenerator
	logger zerolog.Logger
	config Config
}

// Option configures a Server.
type Option func(*Server)

// WithIDGenerator replaces the UUIDv7 request id generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Server) {
		s.ids = ids
	}
}

// WithLogger sets the server logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a server.
func New(engine Identifier, store Pinger, cfg Config, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		store:  store,
		ids:    UUIDv7Generator{},
		logger: zerolog.Nop(),
		config: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully,
// giving in-flight requests up to the write timeout to finish.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
