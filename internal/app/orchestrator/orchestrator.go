// Package orchestrator runs the session lifecycle against the remote
// scoring service: authenticate, find an initiated game, wait for it to
// start, play, submit and start over.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/falcongrasp/internal/adapters/scoring"
	"github.com/okian/falcongrasp/internal/app/presenter"
	"github.com/okian/falcongrasp/internal/config"
	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/internal/domain/session"
	"github.com/okian/falcongrasp/pkg/logger"
	"github.com/okian/falcongrasp/pkg/metrics"
)

// Orchestrator is the only writer of session lifecycle flags. Everything
// else reaches it through RequestSubmit or the shared store's score setters.
type Orchestrator struct {
	cfg       config.GameConfig
	client    Client
	store     *session.Store
	round     Round
	announcer Announcer
	presenter presenter.Presenter
	journal   Journal
	log       logger.Logger

	submit    chan struct{}
	replayDue bool
	savedFor  string

	mu          sync.RWMutex
	leaderboard []model.LeaderboardEntry
	lastError   string
	updatedAt   time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithJournal enables the pre-submission backup journal.
func WithJournal(j Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// New builds an Orchestrator.
func New(
	cfg config.GameConfig,
	client Client,
	store *session.Store,
	round Round,
	announcer Announcer,
	p presenter.Presenter,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		client:    client,
		store:     store,
		round:     round,
		announcer: announcer,
		presenter: p,
		log:       logger.Get().Named("orchestrator"),
		submit:    make(chan struct{}, 1),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RequestSubmit asks for the finished round to be submitted. Requests
// beyond the first pending one are dropped; only AwaitingSubmit acts on it.
func (o *Orchestrator) RequestSubmit(ctx context.Context) {
	select {
	case o.submit <- struct{}{}:
		o.log.Debug(ctx, "submit requested")
	default:
	}
}

func (o *Orchestrator) drainSubmit() {
	select {
	case <-o.submit:
	default:
	}
}

// Run drives the state machine until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Info(ctx, "orchestrator started", logger.String("state", o.store.State().String()))
	metrics.UpdateOrchestratorState(int(o.store.State()))

	for ctx.Err() == nil {
		switch o.store.State() {
		case session.StateAuthenticating:
			o.authenticate(ctx)
		case session.StatePollingInit:
			o.replayBackups(ctx)
			o.pollInit(ctx)
		case session.StatePollingStart, session.StatePlaying:
			o.pollStatus(ctx)
		case session.StateAwaitingSubmit:
			o.awaitSubmit(ctx)
		case session.StateSubmitting:
			o.submitScores(ctx)
		case session.StateCancelled:
			o.finishCancel(ctx)
		}
	}
	o.log.Info(ctx, "orchestrator stopped", logger.String("state", o.store.State().String()))
	return nil
}

func (o *Orchestrator) fire(ctx context.Context, t session.Trigger) bool {
	from, to, ok := o.store.Fire(t)
	if !ok {
		o.log.Debug(ctx, "trigger ignored", logger.String("trigger", t.String()), logger.String("state", from.String()))
		return false
	}
	metrics.RecordTransition(from.String(), to.String())
	metrics.UpdateOrchestratorState(int(to))
	o.log.Info(ctx, "state changed",
		logger.String("from", from.String()),
		logger.String("to", to.String()),
		logger.String("trigger", t.String()),
	)
	o.touch("")
	return true
}

func (o *Orchestrator) touch(lastErr string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updatedAt = time.Now()
	if lastErr != "" {
		o.lastError = lastErr
	}
}

// sleep waits for d or until ctx is done; it reports whether the wait completed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (o *Orchestrator) authenticate(ctx context.Context) {
	if err := o.client.Authenticate(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		o.log.Warn(ctx, "authentication failed, retrying", logger.Duration("in", o.cfg.AuthRetry), logger.Error(err))
		o.touch(err.Error())
		sleep(ctx, o.cfg.AuthRetry)
		return
	}
	o.replayDue = true
	o.fire(ctx, session.TriggerAuthenticated)
}

// reauthenticate renews the token without leaving the current state.
func (o *Orchestrator) reauthenticate(ctx context.Context) bool {
	if err := o.client.Authenticate(ctx); err != nil {
		o.log.Warn(ctx, "re-authentication failed", logger.Error(err))
		o.touch(err.Error())
		sleep(ctx, o.cfg.AuthRetry)
		return false
	}
	return true
}

func unauthorized(err error) bool {
	return errors.Is(err, scoring.ErrUnauthorized) || errors.Is(err, scoring.ErrNotAuthenticated)
}

func (o *Orchestrator) pollInit(ctx context.Context) {
	rec, err := o.client.FindInitiated(ctx)
	switch {
	case err == nil:
		metrics.RecordPoll(scoring.EndpointInitiated, outcome(rec != nil))
		o.adopt(ctx, rec)
	case ctx.Err() != nil:
		return
	case unauthorized(err):
		metrics.RecordPoll(scoring.EndpointInitiated, "unauthorized")
		o.log.Warn(ctx, "token rejected while polling for games", logger.Error(err))
		o.fire(ctx, session.TriggerUnauthorized)
		return
	default:
		metrics.RecordPoll(scoring.EndpointInitiated, "error")
		o.log.Warn(ctx, "polling for initiated game failed", logger.Error(err))
		o.touch(err.Error())
	}

	if _, held := o.store.Session(); held {
		if o.waitReady(ctx, o.cfg.PollInitInterval) {
			o.fire(ctx, session.TriggerReady)
		}
		return
	}
	sleep(ctx, o.cfg.PollInitInterval)
}

func outcome(found bool) string {
	if found {
		return "found"
	}
	return "empty"
}

// adopt installs the initiated game as the session, or drops a held
// session the service no longer reports.
func (o *Orchestrator) adopt(ctx context.Context, rec *model.GameRecord) {
	held, ok := o.store.Session()
	if rec == nil {
		if ok {
			o.log.Info(ctx, "initiated game withdrawn", logger.String("game_result_id", held.GameResultID))
			o.store.Discard()
		}
		return
	}
	if ok && held.GameResultID == rec.ID {
		return
	}

	g, exact := session.NewGameSession(*rec, o.cfg.PlayerCount, o.cfg.PlayerPrefix)
	if !exact {
		o.log.Warn(ctx, "player count mismatch, normalized",
			logger.String("game_result_id", rec.ID),
			logger.Int("received", len(rec.Players)),
			logger.Int("expected", o.cfg.PlayerCount),
		)
	}
	if ok {
		// A different game replaced the one we held before it started.
		o.store.Discard()
	}
	if err := o.store.Begin(g); err != nil {
		o.log.Warn(ctx, "initiated game not adopted", logger.String("game_result_id", rec.ID), logger.Error(err))
		return
	}
	o.savedFor = ""
	o.log.Info(ctx, "initiated game found",
		logger.String("game_result_id", g.GameResultID),
		logger.String("team", g.TeamName),
		logger.Int("players", len(g.PlayerIDs)),
	)
}

// waitReady polls the presenter's readiness for up to d.
func (o *Orchestrator) waitReady(ctx context.Context, d time.Duration) bool {
	step := o.cfg.PollStatusIdle
	if step <= 0 || step > d {
		step = d
	}
	deadline := time.Now().Add(d)
	for {
		if o.presenter.Ready() {
			return true
		}
		if !time.Now().Before(deadline) || !sleep(ctx, step) {
			return false
		}
	}
}

func (o *Orchestrator) pollStatus(ctx context.Context) {
	if o.store.State() == session.StatePlaying {
		select {
		case <-o.submit:
			o.log.Info(ctx, "submit requested before the round timer ran out, ending round")
			o.round.Cancel(ctx)
			o.store.MarkGameStopped()
			o.fire(ctx, session.TriggerGameStopped)
			o.fire(ctx, session.TriggerSubmit)
			return
		default:
		}
		if o.store.GameStopped() {
			o.fire(ctx, session.TriggerGameStopped)
			return
		}
	}

	g, ok := o.store.Session()
	if !ok {
		return
	}
	status, err := o.client.Status(ctx, g.GameResultID)
	switch {
	case ctx.Err() != nil:
		return
	case unauthorized(err):
		metrics.RecordPoll(scoring.EndpointStatus, "unauthorized")
		o.reauthenticate(ctx)
		return
	case errors.Is(err, scoring.ErrTransport):
		metrics.RecordPoll(scoring.EndpointStatus, "error")
		o.log.Warn(ctx, "status poll failed", logger.Error(err))
		o.touch(err.Error())
		sleep(ctx, o.cfg.PollStatusErrorBackoff)
		return
	case err != nil:
		metrics.RecordPoll(scoring.EndpointStatus, "not_yet")
		o.log.Debug(ctx, "status not usable yet", logger.Error(err))
		sleep(ctx, o.cfg.PollStatusIdle)
		return
	}
	metrics.RecordPoll(scoring.EndpointStatus, string(status))

	switch status {
	case model.StatusPlaying:
		o.startRound(ctx, g)
	case model.StatusCancel:
		if o.fire(ctx, session.TriggerCancel) {
			metrics.RecordSessionCancelled()
			o.log.Info(ctx, "game cancelled by the service", logger.String("game_result_id", g.GameResultID))
		}
		return
	}
	sleep(ctx, o.cfg.PollStatusIdle)
}

// startRound runs the start side effects once. The transition sets Started
// first, so repeated playing reports fall through as no-ops.
func (o *Orchestrator) startRound(ctx context.Context, g session.GameSession) {
	if !o.fire(ctx, session.TriggerPlaying) {
		return
	}
	o.drainSubmit()
	metrics.RecordSessionStarted()

	if err := o.announcer.PublishControl(ctx, model.ControlStart, ""); err != nil {
		o.log.Warn(ctx, "start announcement failed", logger.Error(err))
	}
	d := o.round.Begin(ctx)
	o.presenter.ShowRound(ctx, presenter.Round{
		GameResultID: g.GameResultID,
		TeamName:     g.TeamName,
		Players:      g.PlayerNames,
		Duration:     d,
	})
}

// finishCancel completes the cancel effects before polling resumes.
func (o *Orchestrator) finishCancel(ctx context.Context) {
	o.round.Cancel(ctx)
	if err := o.announcer.PublishControl(ctx, model.ControlStop, model.StopImmediate); err != nil {
		o.log.Warn(ctx, "stop announcement failed", logger.Error(err))
	}
	o.presenter.ShowIdle(ctx)
	o.drainSubmit()
	o.fire(ctx, session.TriggerReset)
}

func (o *Orchestrator) awaitSubmit(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-o.submit:
		o.fire(ctx, session.TriggerSubmit)
	}
}

func (o *Orchestrator) submitScores(ctx context.Context) {
	g, ok := o.store.Session()
	if !ok {
		o.log.Error(ctx, "submitting without a session")
		o.fire(ctx, session.TriggerSubmitted)
		return
	}
	sub := model.ScoreSubmission{GameResultID: g.GameResultID, IndividualScore: g.IndividualScores()}

	if o.journal != nil && o.savedFor != g.GameResultID {
		if _, err := o.journal.Save(g.TeamName, g.TotalScore, sub); err != nil {
			o.log.Error(ctx, "backup record not written", logger.Error(err))
		} else {
			o.savedFor = g.GameResultID
		}
	}

	err := o.client.Submit(ctx, sub)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return
	case unauthorized(err):
		metrics.RecordSubmission("unauthorized")
		o.reauthenticate(ctx)
		return
	default:
		metrics.RecordSubmission("error")
		o.log.Warn(ctx, "score submission failed, retrying",
			logger.String("game_result_id", g.GameResultID),
			logger.Duration("in", o.cfg.SubmitRetry),
			logger.Error(err),
		)
		o.touch(err.Error())
		sleep(ctx, o.cfg.SubmitRetry)
		return
	}

	metrics.RecordSubmission("ok")
	o.log.Info(ctx, "scores submitted",
		logger.String("game_result_id", g.GameResultID),
		logger.Any("scores", sub.IndividualScore),
	)
	if o.journal != nil {
		if err := o.journal.MarkSubmitted(g.GameResultID); err != nil {
			o.log.Error(ctx, "backup record not marked, it may be replayed",
				logger.String("game_result_id", g.GameResultID),
				logger.Error(err),
			)
		}
	}

	entries := o.refreshLeaderboard(ctx)
	o.drainSubmit()
	o.fire(ctx, session.TriggerSubmitted)
	o.presenter.ShowLeaderboard(ctx, entries)
}

func (o *Orchestrator) refreshLeaderboard(ctx context.Context) []model.LeaderboardEntry {
	entries, err := o.client.Leaderboard(ctx, o.cfg.LeaderboardSize)
	if err != nil {
		o.log.Warn(ctx, "leaderboard refresh failed", logger.Error(err))
		o.mu.RLock()
		defer o.mu.RUnlock()
		return append([]model.LeaderboardEntry(nil), o.leaderboard...)
	}
	metrics.RecordLeaderboardRefresh()
	o.mu.Lock()
	o.leaderboard = entries
	o.mu.Unlock()
	return entries
}

// replayBackups resends submissions a previous run recorded but never
// delivered. It runs once after every successful authentication.
func (o *Orchestrator) replayBackups(ctx context.Context) {
	if !o.replayDue || o.journal == nil {
		return
	}
	o.replayDue = false

	pending, err := o.journal.Pending()
	if err != nil {
		o.log.Warn(ctx, "backup journal partly unreadable", logger.Error(err))
	}
	for _, rec := range pending {
		// A completed game already holds these scores; only the mark was lost.
		if status, err := o.client.Status(ctx, rec.GameResultID); err == nil && status == model.StatusCompleted {
			o.markReplayed(ctx, rec.GameResultID)
			o.log.Info(ctx, "backup already delivered", logger.String("game_result_id", rec.GameResultID))
			continue
		}
		if err := o.client.Submit(ctx, rec.Submission); err != nil {
			metrics.RecordSubmission("replay_error")
			o.log.Warn(ctx, "backup replay failed",
				logger.String("game_result_id", rec.GameResultID),
				logger.Error(err),
			)
			continue
		}
		metrics.RecordSubmission("replayed")
		o.markReplayed(ctx, rec.GameResultID)
		o.log.Info(ctx, "backup replayed", logger.String("game_result_id", rec.GameResultID))
	}
}

func (o *Orchestrator) markReplayed(ctx context.Context, id string) {
	if err := o.journal.MarkSubmitted(id); err != nil {
		o.log.Error(ctx, "backup record not marked, it may be replayed",
			logger.String("game_result_id", id),
			logger.Error(err),
		)
	}
}
