// Package api exposes the wallet tracker over HTTP: wallet and
// transaction queries, a manual tracking trigger, and a status endpoint.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gabapcia/tronwatch/internal/pkg/logger"
	"github.com/gabapcia/tronwatch/internal/txtracker"
)

const (
	readHeaderTimeout = 5 * time.Second

	// defaultVersion is reported by the status endpoint when the build
	// version is not injected.
	defaultVersion = "dev"
)

// Server is the HTTP front of the tracker service.
type Server struct {
	addr    string
	version string
	tracker txtracker.Service
	server  *http.Server
	now     func() time.Time
}

type config struct {
	version string
	now     func() time.Time
}

// Option customizes the server created by NewServer.
type Option func(*config)

// WithVersion sets the version string reported by the status endpoint.
func WithVersion(v string) Option {
	return func(c *config) {
		if v != "" {
			c.version = v
		}
	}
}

// WithClock overrides the time source used for status timestamps.
// Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// NewServer creates an HTTP server exposing the given tracker service on addr.
func NewServer(addr string, tracker txtracker.Service, opts ...Option) *Server {
	cfg := config{
		version: defaultVersion,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Server{
		addr:    addr,
		version: cfg.version,
		tracker: tracker,
		now:     cfg.now,
	}
}

// routes registers all endpoints on a fresh mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /wallet-tracker/status", s.handleStatus)
	mux.HandleFunc("GET /wallet-tracker/wallets", s.handleWallets)
	mux.HandleFunc("GET /wallet-tracker/transactions", s.handleAllTransactions)
	mux.HandleFunc("GET /wallet-tracker/transactions/{address}", s.handleWalletTransactions)
	mux.HandleFunc("POST /wallet-tracker/track", s.handleTrack)

	return mux
}

// Start begins serving HTTP requests. It blocks until the server stops;
// a server closed by Shutdown returns nil.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info(ctx, "http server listening", "addr", s.addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
