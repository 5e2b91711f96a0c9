package api

import (
	"context"
	"net/http"

	"github.com/okian/sailtrack/internal/app"
)

// StatsProvider reports the pipeline state.
type StatsProvider interface {
	Stats(ctx context.Context) app.Stats
	Snapshots(ctx context.Context) []app.SnapshotSummary
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.Stats(r.Context()))
}

// HandleSnapshots handles GET /snapshots requests.
func (h *StatsHandler) HandleSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	list := h.provider.Snapshots(r.Context())
	if list == nil {
		list = []app.SnapshotSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}
