// Package presenter is the boundary to the presentation layer. The game
// node drives it through three views and reads back one readiness flag.
package presenter

import (
	"context"
	"sync"
	"time"

	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/pkg/logger"
)

// View names the screen the presentation layer shows.
type View string

// Views.
const (
	ViewIdle        View = "idle"
	ViewRound       View = "round"
	ViewLeaderboard View = "leaderboard"
)

// Round describes a starting round.
type Round struct {
	GameResultID string        `json:"game_result_id"`
	TeamName     string        `json:"team_name"`
	Players      []string      `json:"players"`
	Duration     time.Duration `json:"duration"`
}

// Presenter is implemented by whatever renders the game.
type Presenter interface {
	ShowIdle(ctx context.Context)
	ShowRound(ctx context.Context, r Round)
	ShowLeaderboard(ctx context.Context, entries []model.LeaderboardEntry)
	// Ready reports whether the presentation layer is idle and can accept
	// a new game.
	Ready() bool
}

// Snapshot is what the admin API shows about the presentation layer.
type Snapshot struct {
	View        View                     `json:"view"`
	Ready       bool                     `json:"ready"`
	Round       *Round                   `json:"round,omitempty"`
	Leaderboard []model.LeaderboardEntry `json:"leaderboard"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// Headless stands in for a screen. It logs every view change and keeps the
// last leaderboard. With auto-ready set it reports ready whenever no round
// is on screen; otherwise readiness is given with SetReady.
type Headless struct {
	log       logger.Logger
	autoReady bool

	mu          sync.RWMutex
	view        View
	ready       bool
	round       *Round
	leaderboard []model.LeaderboardEntry
	updatedAt   time.Time
}

// NewHeadless returns a presenter showing the idle view.
func NewHeadless(autoReady bool) *Headless {
	return &Headless{
		log:       logger.Get().Named("presenter"),
		autoReady: autoReady,
		view:      ViewIdle,
		ready:     autoReady,
		updatedAt: time.Now(),
	}
}

// ShowIdle returns to the home screen.
func (h *Headless) ShowIdle(ctx context.Context) {
	h.mu.Lock()
	h.view = ViewIdle
	h.round = nil
	h.ready = h.ready || h.autoReady
	h.updatedAt = time.Now()
	h.mu.Unlock()
	h.log.Info(ctx, "showing idle view")
}

// ShowRound shows the round screen and withdraws readiness until the next
// idle or leaderboard view.
func (h *Headless) ShowRound(ctx context.Context, r Round) {
	r.Players = append([]string(nil), r.Players...)
	h.mu.Lock()
	h.view = ViewRound
	h.round = &r
	h.ready = false
	h.updatedAt = time.Now()
	h.mu.Unlock()
	h.log.Info(ctx, "showing round view",
		logger.String("game_result_id", r.GameResultID),
		logger.String("team", r.TeamName),
		logger.Duration("duration", r.Duration),
	)
}

// ShowLeaderboard shows the standings after a submission.
func (h *Headless) ShowLeaderboard(ctx context.Context, entries []model.LeaderboardEntry) {
	h.mu.Lock()
	h.view = ViewLeaderboard
	h.round = nil
	h.leaderboard = append([]model.LeaderboardEntry(nil), entries...)
	h.ready = h.ready || h.autoReady
	h.updatedAt = time.Now()
	h.mu.Unlock()

	fields := []logger.Field{logger.Int("teams", len(entries))}
	if len(entries) > 0 {
		fields = append(fields, logger.String("leader", entries[0].Name), logger.Float64("leader_score", entries[0].TotalScore))
	}
	h.log.Info(ctx, "showing leaderboard", fields...)
}

// Ready implements Presenter.
func (h *Headless) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// SetReady records the readiness reported by an external screen.
func (h *Headless) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
	h.updatedAt = time.Now()
}

// Snapshot returns the current view.
func (h *Headless) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := Snapshot{
		View:        h.view,
		Ready:       h.ready,
		Leaderboard: append([]model.LeaderboardEntry{}, h.leaderboard...),
		UpdatedAt:   h.updatedAt,
	}
	if h.round != nil {
		r := *h.round
		s.Round = &r
	}
	return s
}
