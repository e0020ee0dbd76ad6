package orchestrator

import (
	"time"

	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/internal/domain/session"
)

// SessionView is the JSON form of the current session.
type SessionView struct {
	GameResultID    string   `json:"game_result_id"`
	GameName        string   `json:"game_name"`
	TeamName        string   `json:"team_name"`
	PlayerIDs       []string `json:"player_ids"`
	PlayerNames     []string `json:"player_names"`
	PlayerScores    []int    `json:"player_scores"`
	TotalScore      int      `json:"total_score"`
	Started         bool     `json:"started"`
	Cancelled       bool     `json:"cancelled"`
	SubmitRequested bool     `json:"submit_requested"`
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	State       string       `json:"state"`
	GameStopped bool         `json:"game_stopped"`
	Session     *SessionView `json:"session,omitempty"`
	LastError   string       `json:"last_error,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Status returns the current state and session.
func (o *Orchestrator) Status() Status {
	snap := o.store.Snapshot()
	o.mu.RLock()
	defer o.mu.RUnlock()
	st := Status{
		State:       snap.State.String(),
		GameStopped: snap.GameStopped,
		LastError:   o.lastError,
		UpdatedAt:   o.updatedAt,
	}
	if snap.Session != nil {
		st.Session = view(snap.Session)
	}
	return st
}

func view(g *session.GameSession) *SessionView {
	return &SessionView{
		GameResultID:    g.GameResultID,
		GameName:        g.GameName,
		TeamName:        g.TeamName,
		PlayerIDs:       g.PlayerIDs,
		PlayerNames:     g.PlayerNames,
		PlayerScores:    g.PlayerScores,
		TotalScore:      g.TotalScore,
		Started:         g.Started,
		Cancelled:       g.Cancelled,
		SubmitRequested: g.SubmitRequested,
	}
}

// Leaderboard returns the standings fetched after the last submission.
func (o *Orchestrator) Leaderboard() []model.LeaderboardEntry {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]model.LeaderboardEntry{}, o.leaderboard...)
}
