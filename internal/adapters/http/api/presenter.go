package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/okian/falcongrasp/internal/app/presenter"
)

// PresenterDependencies defines the presentation-layer hooks.
type PresenterDependencies interface {
	Presenter() presenter.Snapshot
	SetPresenterReady(ready bool)
}

// PresenterHandler lets an external screen report that it is idle.
type PresenterHandler struct {
	deps PresenterDependencies
}

// NewPresenterHandler creates a new presenter handler.
func NewPresenterHandler(deps PresenterDependencies) *PresenterHandler {
	return &PresenterHandler{deps: deps}
}

type readyRequest struct {
	Ready *bool `json:"ready"`
}

// HandleGet handles GET /presenter requests.
func (h *PresenterHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Presenter())
}

// HandleReady handles POST /presenter/ready. An empty body means ready;
// {"ready": false} withdraws readiness.
func (h *PresenterHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	ready := true
	if r.ContentLength != 0 {
		var req readyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
			return
		}
		if req.Ready != nil {
			ready = *req.Ready
		}
	}
	h.deps.SetPresenterReady(ready)
	writeJSON(w, http.StatusOK, h.deps.Presenter())
}
