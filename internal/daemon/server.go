package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/matheus3301/wppdesk/internal/config"
	"go.uber.org/zap"
)

// Server manages the HTTP server lifecycle for a profile daemon.
type Server struct {
	http     *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	logger   *zap.Logger
}

// NewServer binds the dashboard API to the configured listen address.
// Params.Listen overrides the config.
func NewServer(p Params, cfg *config.Config, handler http.Handler, logger *zap.Logger) (*Server, error) {
	addr := cfg.Daemon.Listen
	if p.Listen != "" {
		addr = p.Listen
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	// Cancelled on Stop so long-lived event streams end with the server.
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}

	return &Server{
		http:     srv,
		listener: listener,
		cancel:   cancel,
		logger:   logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start begins serving HTTP requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", zap.String("addr", s.Addr()))
	if err := s.http.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop performs a graceful shutdown.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server stopping")
	s.cancel()
	return s.http.Shutdown(ctx)
}

// Close releases the listener of a server that never started.
func (s *Server) Close() error {
	s.cancel()
	return s.listener.Close()
}
