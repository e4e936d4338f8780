package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/egnor/video-play/internal/logger"
	"github.com/egnor/video-play/pkg/loader"
)

// Server is the status API HTTP server.
//
// It exposes loader cache state and Prometheus metrics for a registry of
// loaders. The server supports graceful shutdown: Start blocks until the
// context is cancelled or a listener error occurs.
type Server struct {
	server       *http.Server
	config       APIConfig
	shutdownOnce sync.Once
}

// NewServer creates a status API server over the given loader registry.
// The server is created stopped; call Start to begin serving.
func NewServer(config APIConfig, registry *loader.Registry) *Server {
	config.applyDefaults()

	return &Server{
		config: config,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      NewRouter(registry),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Status API listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("status API server failed: %w", err)
		}
		return nil
	}
}

// Shutdown stops the server, allowing in-flight requests a short grace
// period. Idempotent.
func (s *Server) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		logger.Info("Stopping status API")
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		err = s.server.Shutdown(ctx)
	})
	return err
}
