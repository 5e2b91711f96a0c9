// Package api exposes the pipeline state and the on-demand refresh over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/sailtrack/internal/app"
	"github.com/okian/sailtrack/internal/domain/model"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Stats(ctx context.Context) app.Stats
	Snapshots(ctx context.Context) []app.SnapshotSummary
	PositionsGeoJSON(ctx context.Context, id model.SnapshotID) ([]byte, error)
	TrajectoriesGeoJSON(ctx context.Context) ([]byte, error)

	// Trigger starts a run in the background, or fails with
	// app.ErrRunInProgress.
	Trigger(ctx context.Context, now time.Time) error
}

// Server wires HTTP routes for the API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	geoHandler    *GeoHandler
	refresh       *RefreshHandler
}

// NewServer creates a new API server with all handlers. clock supplies the
// run time for refreshes; nil means time.Now.
func NewServer(deps Dependencies, clock func() time.Time) *Server {
	if clock == nil {
		clock = time.Now
	}
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps),
		geoHandler:    NewGeoHandler(deps),
		refresh:       NewRefreshHandler(deps, clock),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/snapshots", MetricsMiddleware(s.statsHandler.HandleSnapshots, "snapshots"))
	mux.HandleFunc("/positions", MetricsMiddleware(s.geoHandler.HandlePositions, "positions"))
	mux.HandleFunc("/trajectories", MetricsMiddleware(s.geoHandler.HandleTrajectories, "trajectories"))
	mux.HandleFunc("/refresh", MetricsMiddleware(s.refresh.HandleRefresh, "refresh"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeGeoJSON(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
