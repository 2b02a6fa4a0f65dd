package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/openbat/api/control"
	"github.com/kilianp07/openbat/api/runs"
	"github.com/kilianp07/openbat/auth"
	"github.com/kilianp07/openbat/core/control/logging"
)

// Handler returns the HTTP API over the result store and logs. The runs
// routes are only mounted when results are kept.
func (s *Service) Handler(logs logging.Store) http.Handler {
	mux := http.NewServeMux()
	token := s.cfg.API.Token
	if s.store != nil {
		h := auth.RequireBearer(token, runs.NewHandler(s.store))
		mux.Handle("/api/runs", h)
		mux.Handle("/api/runs/", h)
	}
	mux.Handle("/api/control/logs", control.NewLogHandler(logs, token))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Serve runs the HTTP API on cfg.API.Addr until ctx is done.
func (s *Service) Serve(ctx context.Context) error {
	addr := s.cfg.API.Addr
	if addr == "" {
		return errors.New("api.addr is not set")
	}
	logs, err := logging.NewStore(s.cfg.Logging.Module())
	if err != nil {
		return fmt.Errorf("control log: %w", err)
	}
	defer func() {
		if err := logs.Close(); err != nil {
			s.log.Warnf("close control log: %v", err)
		}
	}()

	srv := &http.Server{Addr: addr, Handler: s.Handler(logs), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	s.log.Infof("serving api on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
