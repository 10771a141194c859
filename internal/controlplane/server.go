package controlplane

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MultiDragon/libpuns/internal/database"
	"github.com/MultiDragon/libpuns/internal/logger"
	"github.com/MultiDragon/libpuns/internal/serverdirector"
	"github.com/MultiDragon/libpuns/pkg/config"
)

// Server is the admin HTTP API's http.Server wrapper, lifecycle-managed
// alongside the TCP director by `libpuns serve`.
type Server struct {
	server       *http.Server
	jwtSvc       *JWTService
	shutdownOnce sync.Once
}

// NewServer builds the control plane server. store is the GORM-backed
// account store, or nil when the dummy driver is configured - account
// management endpoints respond 503 in that case.
func NewServer(cfg config.ControlPlaneConfig, admin config.AdminConfig, dir *serverdirector.Director, store *database.Store) (*Server, error) {
	jwtSvc, err := NewJWTService(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("controlplane: %w", err)
	}

	router := NewRouter(dir, store, admin, jwtSvc)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		jwtSvc: jwtSvc,
	}, nil
}

// Start runs the HTTP server until ctx is cancelled, then gracefully
// shuts it down. Mirrors serverdirector.Director.Serve's
// listen-until-cancelled shape so `libpuns serve` can run both
// concurrently from the same parent context.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("control plane listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("control plane: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if shutdownErr := s.server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("control plane: shutdown: %w", shutdownErr)
		} else {
			logger.Info("control plane stopped")
		}
	})
	return err
}
