// Package api serves the admin HTTP surface of the game node.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/falcongrasp/internal/adapters/bus"
	"github.com/okian/falcongrasp/internal/app/orchestrator"
	"github.com/okian/falcongrasp/internal/app/presenter"
	"github.com/okian/falcongrasp/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the app packages.
type Dependencies interface {
	Status() orchestrator.Status
	Leaderboard() []model.LeaderboardEntry
	BusStatus() bus.Status
	Presenter() presenter.Snapshot
	SetPresenterReady(ready bool)
}

// Server wires HTTP routes for the admin API.
type Server struct {
	healthHandler      *HealthHandler
	statusHandler      *StatusHandler
	leaderboardHandler *LeaderboardHandler
	presenterHandler   *PresenterHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statusHandler:      NewStatusHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		presenterHandler:   NewPresenterHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/status", MetricsMiddleware(s.statusHandler.HandleStatus, "status"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/presenter", MetricsMiddleware(s.presenterHandler.HandleGet, "presenter"))
	mux.HandleFunc("/presenter/ready", MetricsMiddleware(s.presenterHandler.HandleReady, "presenter_ready"))
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

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
