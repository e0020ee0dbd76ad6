package api

import (
	"net/http"

	"github.com/okian/falcongrasp/internal/adapters/bus"
	"github.com/okian/falcongrasp/internal/app/orchestrator"
)

// StatusDependencies defines what the status endpoint reads.
type StatusDependencies interface {
	Status() orchestrator.Status
	BusStatus() bus.Status
}

// StatusHandler handles status requests.
type StatusHandler struct {
	deps StatusDependencies
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(deps StatusDependencies) *StatusHandler {
	return &StatusHandler{deps: deps}
}

type statusResponse struct {
	Orchestrator orchestrator.Status `json:"orchestrator"`
	Bus          bus.Status          `json:"bus"`
}

// HandleStatus handles GET /status requests.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Orchestrator: h.deps.Status(),
		Bus:          h.deps.BusStatus(),
	})
}
