package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"signagehub/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Server wraps net/http with graceful shutdown.
type Server struct {
	httpServer *stdhttp.Server
	logger     logging.Logger
}

// NewServer listens on the given port. There is no write timeout because SSE
// streams stay open indefinitely.
func NewServer(port string, handler stdhttp.Handler, logger logging.Logger) *Server {
	return &Server{
		httpServer: &stdhttp.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until ctx is cancelled, then drains in-flight requests. Request
// contexts are cancelled first so open streams return instead of holding Shutdown.
func (s *Server) Start(ctx context.Context) error {
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()
	s.httpServer.BaseContext = func(net.Listener) context.Context { return baseCtx }

	errChan := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.httpServer.Addr).Info("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		cancelRequests()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		s.logger.Info("server shut down gracefully")
		return nil
	case err := <-errChan:
		return err
	}
}
