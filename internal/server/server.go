// Package server hosts the link endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/davidjwriter/money-tracker/internal/link"
	"github.com/davidjwriter/money-tracker/internal/plaid"
	"github.com/davidjwriter/money-tracker/internal/service"
)

// Route paths.
const (
	AccessTokenPath = "/api/access-token"
	LinkTokenPath   = "/api/link-token"
	HealthPath      = "/health"
)

const defaultShutdownTimeout = 10 * time.Second

// Config holds listener settings.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Server wraps an http.Server with graceful shutdown.
type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// NewHandler builds the routing table. The root path also accepts the exchange
// POST so clients that were pointed at the bare function URL keep working.
func NewHandler(exchanger *link.Exchanger, secrets service.SecretProvider, creator plaid.LinkTokenCreator) http.Handler {
	exchange := link.ExchangeHandler(exchanger)

	mux := http.NewServeMux()
	mux.Handle(AccessTokenPath, exchange)
	mux.Handle(LinkTokenPath, link.LinkTokenHandler(secrets, creator))
	mux.HandleFunc(HealthPath, handleHealth)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		exchange.ServeHTTP(w, r)
	})

	return Logging(CORS(mux))
}

// New creates a server for handler.
func New(cfg Config, handler http.Handler) *Server {
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:          slog.Default().With("component", "server"),
		shutdownTimeout: timeout,
	}
}

// Run listens on the configured address and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then drains in-flight
// requests for up to the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("HTTP server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
