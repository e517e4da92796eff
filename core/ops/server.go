package ops

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/m3rciful/todobot/core/logger"
)

// Options configures the ops server.
type Options struct {
	Listen   string
	Gatherer prometheus.Gatherer
	// Ping checks dependencies for /healthz; nil reports healthy.
	Ping func(ctx context.Context) error
	// ShutdownTimeout bounds graceful shutdown; 0 means 5s.
	ShutdownTimeout time.Duration
}

// Server exposes /healthz and /metrics.
type Server struct {
	opts Options
	srv  *http.Server
}

// NewServer builds a Server; call Run to serve.
func NewServer(opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{opts: opts}
	s.srv = &http.Server{
		Addr:              opts.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router returns the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.health)
	if s.opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", Handler(s.opts.Gatherer))
	}
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	body := map[string]string{}
	if s.opts.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ping(ctx); err != nil {
			status, code = "unavailable", http.StatusServiceUnavailable
			body["error"] = err.Error()
			logger.OPS.Warn("health check failed",
				slog.String("event", "ops.health"),
				slog.String("err", err.Error()),
			)
		}
	}
	body["status"] = status
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.OPS.Info("ops server listening",
			slog.String("event", "ops.listen"),
			slog.String("listen", s.opts.Listen),
		)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.OPS.Info("ops server stopped", slog.String("event", "ops.stop"))
	return nil
}
