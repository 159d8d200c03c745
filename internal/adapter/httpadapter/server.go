package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/covid-stats-etl/internal/domain"
)

// RecordLister reads stored history. An empty region lists every region.
type RecordLister interface {
	All(ctx context.Context, region string) ([]domain.StatRecord, error)
}

// Server exposes health, readiness, metrics, and stored-record endpoints.
type Server struct {
	httpServer *http.Server
	records    RecordLister
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// /api/v1/records routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, records RecordLister, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		records: records,
		logger:  logger,
	}

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/v1/records", s.handleRecords)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type recordsResponse struct {
	Region  string              `json:"region,omitempty"`
	Count   int                 `json:"count"`
	Records []domain.StatRecord `json:"records"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	region := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("region")))

	recs, err := s.records.All(r.Context(), region)
	if err != nil {
		s.logger.Error("list records failed", "error", err, "region", region)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list records"})
		return
	}
	if recs == nil {
		recs = []domain.StatRecord{}
	}
	writeJSON(w, http.StatusOK, recordsResponse{Region: region, Count: len(recs), Records: recs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
