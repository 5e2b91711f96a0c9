package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/sailtrack/internal/app"
	"github.com/okian/sailtrack/internal/domain/model"
)

// GeoSource encodes layers as GeoJSON.
type GeoSource interface {
	PositionsGeoJSON(ctx context.Context, id model.SnapshotID) ([]byte, error)
	TrajectoriesGeoJSON(ctx context.Context) ([]byte, error)
}

// GeoHandler serves positions and trajectories.
type GeoHandler struct {
	src GeoSource
}

// NewGeoHandler creates a new GeoJSON handler.
func NewGeoHandler(src GeoSource) *GeoHandler {
	return &GeoHandler{src: src}
}

// HandlePositions handles GET /positions[?snapshot=YYYYMMDD_HHMMSS].
func (h *GeoHandler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_positions"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	var id model.SnapshotID
	if raw := r.URL.Query().Get("snapshot"); raw != "" {
		parsed, err := model.ParseSnapshotID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		id = parsed
	}

	data, err := h.src.PositionsGeoJSON(r.Context(), id)
	switch {
	case errors.Is(err, app.ErrUnknownSnapshot):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	default:
		writeGeoJSON(w, data)
	}
}

// HandleTrajectories handles GET /trajectories.
func (h *GeoHandler) HandleTrajectories(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_trajectories"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	data, err := h.src.TrajectoriesGeoJSON(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeGeoJSON(w, data)
}
