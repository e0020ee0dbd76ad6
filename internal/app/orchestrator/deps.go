package orchestrator

import (
	"context"
	"time"

	"github.com/okian/falcongrasp/internal/adapters/backup"
	"github.com/okian/falcongrasp/internal/domain/model"
)

// Client is the remote scoring service.
type Client interface {
	Authenticate(ctx context.Context) error
	FindInitiated(ctx context.Context) (*model.GameRecord, error)
	Status(ctx context.Context, id string) (model.GameStatus, error)
	Submit(ctx context.Context, sub model.ScoreSubmission) error
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

// Round times the play phase.
type Round interface {
	Begin(ctx context.Context) time.Duration
	// Cancel must disarm the timers and drop data topics before returning.
	Cancel(ctx context.Context)
}

// Announcer publishes control commands.
type Announcer interface {
	PublishControl(ctx context.Context, kind model.ControlKind, payload string) error
}

// Journal keeps submissions durable across restarts.
type Journal interface {
	Save(team string, total int, sub model.ScoreSubmission) (backup.Record, error)
	MarkSubmitted(gameResultID string) error
	Pending() ([]backup.Record, error)
}
