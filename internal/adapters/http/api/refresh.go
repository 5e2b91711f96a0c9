package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/okian/sailtrack/internal/app"
)

// Refresher starts pipeline runs.
type Refresher interface {
	Trigger(ctx context.Context, now time.Time) error
}

// RefreshHandler handles refresh requests.
type RefreshHandler struct {
	runner Refresher
	clock  func() time.Time
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(runner Refresher, clock func() time.Time) *RefreshHandler {
	return &RefreshHandler{runner: runner, clock: clock}
}

type refreshResponse struct {
	Status string    `json:"status"`
	Now    time.Time `json:"now"`
}

// HandleRefresh handles POST /refresh requests.
func (h *RefreshHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_refresh"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	now := h.clock()
	err := h.runner.Trigger(r.Context(), now)
	switch {
	case errors.Is(err, app.ErrRunInProgress):
		writeError(w, http.StatusConflict, "run_in_progress", WrapKind(op, ErrConflict, err))
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	default:
		writeJSON(w, http.StatusAccepted, refreshResponse{Status: "accepted", Now: now})
	}
}
