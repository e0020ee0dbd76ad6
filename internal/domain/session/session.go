// Package session holds the single shared game session and the orchestrator
// state machine that governs its lifecycle.
package session

import (
	"fmt"

	"github.com/okian/falcongrasp/internal/domain/model"
)

// GameSession is one play-through from admin initiation to submission or
// cancellation.
type GameSession struct {
	GameResultID string
	GameName     string
	TeamName     string
	PlayerIDs    []string
	PlayerNames  []string
	PlayerScores []int
	TotalScore   int

	Started         bool
	Cancelled       bool
	SubmitRequested bool
}

// Active reports whether the session is started and not yet handed to submission.
func (g *GameSession) Active() bool {
	return g.Started && !g.SubmitRequested && !g.Cancelled
}

func (g *GameSession) clone() GameSession {
	c := *g
	c.PlayerIDs = append([]string(nil), g.PlayerIDs...)
	c.PlayerNames = append([]string(nil), g.PlayerNames...)
	c.PlayerScores = append([]int(nil), g.PlayerScores...)
	return c
}

// NewGameSession builds a session from an initiated game, normalising its
// players to count. The second result is false when the service returned a
// different number of players.
func NewGameSession(rec model.GameRecord, count int, idPrefix string) (GameSession, bool) {
	players, exact := NormalizePlayers(rec.Players, count, idPrefix)
	g := GameSession{
		GameResultID: rec.ID,
		GameName:     rec.Name,
		TeamName:     rec.Name,
		PlayerIDs:    make([]string, len(players)),
		PlayerNames:  make([]string, len(players)),
		PlayerScores: make([]int, len(players)),
	}
	for i, p := range players {
		g.PlayerIDs[i] = p.UserID
		g.PlayerNames[i] = p.Name
	}
	return g, exact
}

// NormalizePlayers pads with placeholder players or truncates so exactly
// count players remain. Blank names are filled in as "Player N".
func NormalizePlayers(players []model.Player, count int, idPrefix string) ([]model.Player, bool) {
	exact := len(players) == count
	out := make([]model.Player, count)
	for i := range out {
		n := i + 1
		if i < len(players) {
			out[i] = players[i]
		}
		if out[i].UserID == "" {
			out[i].UserID = fmt.Sprintf("%s_%d", idPrefix, n)
		}
		if out[i].Name == "" {
			out[i].Name = fmt.Sprintf("Player %d", n)
		}
	}
	return out, exact
}

// IndividualScores builds the submission rows. When no per-player score
// was recorded but a total arrived, the total is split evenly with the
// remainder going to the first player.
func (g *GameSession) IndividualScores() []model.IndividualScore {
	rows := make([]model.IndividualScore, len(g.PlayerIDs))
	anyScore := false
	for _, s := range g.PlayerScores {
		if s != 0 {
			anyScore = true
			break
		}
	}
	n := len(g.PlayerIDs)
	for i, id := range g.PlayerIDs {
		score := g.PlayerScores[i]
		if !anyScore && g.TotalScore > 0 && n > 0 {
			score = g.TotalScore / n
			if i == 0 {
				score += g.TotalScore % n
			}
		}
		rows[i] = model.IndividualScore{UserID: id, NodeID: i + 1, Score: score}
	}
	return rows
}
