// Package ops exposes the operational HTTP surface for a batch run:
// health, Prometheus metrics, and run progress.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pgoodall/tagtally/internal/batch"
	"github.com/pgoodall/tagtally/internal/metrics"
	"github.com/pgoodall/tagtally/internal/tally"
)

const shutdownTimeout = 5 * time.Second

// RunReporter reports the current lifecycle phase of a batch run.
type RunReporter interface {
	Phase() batch.Phase
}

// Server wires HTTP handlers to the run reporter and outcome store.
type Server struct {
	router   chi.Router
	reporter RunReporter
	store    tally.OutcomeStore
	runID    uuid.UUID
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(reporter RunReporter, store tally.OutcomeStore, runID uuid.UUID, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		reporter: reporter,
		store:    store,
		runID:    runID,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(s.loggingMiddleware)
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/progress", s.progress)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve blocks until ctx is canceled, then shuts the listener down
// gracefully. A run finishing cancels ctx; the server never outlives
// the batch.
func (s *Server) Serve(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("ops server listening", zap.Int("port", port))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown ops server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve ops: %w", err)
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// progress reports the run phase and a count of outcomes committed so
// far. Counts come straight from the store, so they stay accurate across
// a resume.
func (s *Server) progress(w http.ResponseWriter, r *http.Request) {
	resp := progressResponse{
		RunID: s.runID.String(),
		Phase: string(s.reporter.Phase()),
	}

	outcomes, err := s.store.All(r.Context())
	if err != nil {
		s.logger.Error("enumerate outcomes failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to read outcomes")
		return
	}
	resp.Recorded = len(outcomes)
	for _, out := range outcomes {
		if out.Status == tally.StatusSuccess {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type progressResponse struct {
	RunID     string `json:"run_id"`
	Phase     string `json:"phase"`
	Recorded  int    `json:"recorded"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
