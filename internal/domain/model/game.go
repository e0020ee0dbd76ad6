package model

// GameStatus is the lifecycle status reported by the remote scoring service.
type GameStatus string

// Statuses the orchestrator acts on. Anything else is treated as "not yet".
const (
	StatusInitiated GameStatus = "initiated"
	StatusPlaying   GameStatus = "playing"
	StatusCancel    GameStatus = "cancel"
	StatusCompleted GameStatus = "completed"
)

// Player is one participant of an initiated game.
type Player struct {
	UserID string `json:"userID"`
	Name   string `json:"name"`
}

// GameRecord is the initiated game returned by the scoring service.
type GameRecord struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Players []Player   `json:"nodeIDs"`
	Status  GameStatus `json:"status"`
}

// IndividualScore is one row of a score submission. NodeID is the 1-based
// station number of the player.
type IndividualScore struct {
	UserID string `json:"userID"`
	NodeID int    `json:"nodeID"`
	Score  int    `json:"score"`
}

// ScoreSubmission is the body of POST /game-result/scoring.
type ScoreSubmission struct {
	GameResultID    string            `json:"gameResultID"`
	IndividualScore []IndividualScore `json:"individualScore"`
}

// LeaderboardEntry is one row of the game leaderboard.
type LeaderboardEntry struct {
	Name       string  `json:"name"`
	TotalScore float64 `json:"total_score"`
}
