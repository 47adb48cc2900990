package main

import (
	"chatapp-backend/internal/config"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// httpService runs the http server under the supervisor, ctx cancellation
// triggers a graceful shutdown
type httpService struct {
	server *http.Server
	cfg    *config.Config
	sugar  *zap.SugaredLogger
}

func newHttpService(server *http.Server, cfg *config.Config, sugar *zap.SugaredLogger) *httpService {
	return &httpService{server: server, cfg: cfg, sugar: sugar}
}

func (s *httpService) listen() error {
	if s.cfg.IsHttps() {
		return s.server.ListenAndServeTLS(s.cfg.TlsCert, s.cfg.TlsKey)
	}
	return s.server.ListenAndServe()
}

func (s *httpService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.sugar.Info("Shutting down http server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *httpService) String() string {
	return "http server"
}

// serviceFunc adapts a blocking func(ctx) error to a supervised service
type serviceFunc struct {
	name  string
	serve func(ctx context.Context) error
}

func (s serviceFunc) Serve(ctx context.Context) error {
	return s.serve(ctx)
}

func (s serviceFunc) String() string {
	return s.name
}
