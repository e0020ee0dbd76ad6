// Package round times a round of play and runs the stop sequence that
// hands the finished round to submission.
package round

import (
	"context"
	"sync"
	"time"

	"github.com/okian/falcongrasp/internal/adapters/settings"
	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/pkg/logger"
	"github.com/okian/falcongrasp/pkg/metrics"
)

// Bus is the part of the telemetry bus a round drives.
type Bus interface {
	SubscribeData(ctx context.Context) error
	UnsubscribeData(ctx context.Context) error
	PublishControl(ctx context.Context, kind model.ControlKind, payload string) error
}

// Scores is the part of the session store a round touches.
type Scores interface {
	ResetScores()
	MarkGameStopped()
}

// Timers holds the persisted durations.
type Timers interface {
	Timers() settings.Timers
	SetRound(d time.Duration) error
	SetFinal(d time.Duration) error
}

// Idler returns the presentation layer to its home screen.
type Idler interface {
	ShowIdle(ctx context.Context)
}

// Round owns the round and final timers. Every timer carries the
// generation it was armed in; Cancel and Begin bump the generation so a
// timer that fires late does nothing.
type Round struct {
	bus    Bus
	scores Scores
	timers Timers
	idler  Idler
	log    logger.Logger

	mu       sync.Mutex
	gen      int
	running  bool
	timer    *time.Timer
	final    *time.Timer
	base     context.Context
	onSubmit func(ctx context.Context)
}

// New builds a Round.
func New(b Bus, scores Scores, timers Timers, idler Idler) *Round {
	return &Round{
		bus:    b,
		scores: scores,
		timers: timers,
		idler:  idler,
		log:    logger.Get().Named("round"),
		base:   context.Background(),
	}
}

// OnSubmit sets the callback run when the finished round should be
// submitted. It runs after the final screen and on every Deactivate.
func (r *Round) OnSubmit(fn func(ctx context.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSubmit = fn
}

// Running reports whether the round timer is armed.
func (r *Round) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Begin zeroes the scores, subscribes the data topics and arms the round
// timer. It returns the round duration.
func (r *Round) Begin(ctx context.Context) time.Duration {
	d := r.timers.Timers().Round

	r.mu.Lock()
	r.stopTimersLocked()
	r.gen++
	gen := r.gen
	r.running = true
	r.base = context.WithoutCancel(ctx)
	r.timer = time.AfterFunc(d, func() { r.expire(gen) })
	r.mu.Unlock()

	r.scores.ResetScores()
	if err := r.bus.SubscribeData(ctx); err != nil {
		r.log.Error(ctx, "data subscription failed", logger.Error(err))
	}
	metrics.UpdateRoundDuration(d.Seconds())
	r.log.Info(ctx, "round started", logger.Duration("duration", d))
	return d
}

// Cancel disarms every timer and drops the data topics before returning.
func (r *Round) Cancel(ctx context.Context) {
	r.mu.Lock()
	r.stopTimersLocked()
	r.gen++
	wasRunning := r.running
	r.running = false
	r.mu.Unlock()

	if err := r.bus.UnsubscribeData(ctx); err != nil {
		r.log.Error(ctx, "data unsubscription failed", logger.Error(err))
	}
	if wasRunning {
		r.log.Info(ctx, "round cancelled")
	}
}

// Close disarms the timers without touching the bus.
func (r *Round) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTimersLocked()
	r.gen++
	r.running = false
}

func (r *Round) stopTimersLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.final != nil {
		r.final.Stop()
		r.final = nil
	}
}

func (r *Round) expire(gen int) {
	r.mu.Lock()
	if gen != r.gen || !r.running {
		r.mu.Unlock()
		return
	}
	ctx := r.base
	r.mu.Unlock()

	r.log.Info(ctx, "round time is up")
	r.stop(ctx, gen, true)
}

// stop runs the stop sequence for generation gen: mark the game stopped,
// announce it, drop the data topics and arm the final screen timer.
func (r *Round) stop(ctx context.Context, gen int, announce bool) {
	r.mu.Lock()
	if gen != r.gen || !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	final := r.timers.Timers().Final
	r.final = time.AfterFunc(final, func() { r.finish(gen) })
	r.mu.Unlock()

	r.scores.MarkGameStopped()
	metrics.RecordRoundCompleted()
	if announce {
		if err := r.bus.PublishControl(ctx, model.ControlStop, model.StopNormal); err != nil {
			r.log.Warn(ctx, "stop announcement failed", logger.Error(err))
		}
	}
	if err := r.bus.UnsubscribeData(ctx); err != nil {
		r.log.Error(ctx, "data unsubscription failed", logger.Error(err))
	}
	r.log.Info(ctx, "round stopped", logger.Duration("final", final))
}

func (r *Round) finish(gen int) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.final = nil
	ctx := r.base
	submit := r.onSubmit
	r.mu.Unlock()

	if err := r.bus.PublishControl(ctx, model.ControlDeactivate, ""); err != nil {
		r.log.Warn(ctx, "deactivate announcement failed", logger.Error(err))
	}
	if submit != nil {
		submit(ctx)
	}
}

// HandleControl reacts to commands from the bus.
func (r *Round) HandleControl(ctx context.Context, msg model.ControlMessage) {
	switch msg.Kind {
	case model.ControlStart:
		if err := r.bus.SubscribeData(ctx); err != nil {
			r.log.Error(ctx, "data subscription failed", logger.Error(err))
		}
	case model.ControlStop:
		if msg.Immediate() {
			if err := r.bus.UnsubscribeData(ctx); err != nil {
				r.log.Error(ctx, "data unsubscription failed", logger.Error(err))
			}
			return
		}
		r.mu.Lock()
		gen := r.gen
		r.mu.Unlock()
		r.stop(ctx, gen, false)
	case model.ControlTimer:
		r.setDuration(ctx, msg, r.timers.SetRound)
	case model.ControlTimerFinal:
		r.setDuration(ctx, msg, r.timers.SetFinal)
	case model.ControlRestart:
		if r.idler != nil {
			r.idler.ShowIdle(ctx)
		}
	case model.ControlDeactivate:
		r.mu.Lock()
		submit := r.onSubmit
		r.mu.Unlock()
		if submit != nil {
			submit(ctx)
		}
	case model.ControlActivate:
		r.log.Debug(ctx, "activate is handled by the vision nodes")
	}
}

func (r *Round) setDuration(ctx context.Context, msg model.ControlMessage, set func(time.Duration) error) {
	secs, err := msg.Seconds()
	if err != nil {
		r.log.Warn(ctx, "ignoring timer command", logger.Error(err))
		return
	}
	d := time.Duration(secs) * time.Second
	if err := set(d); err != nil {
		r.log.Error(ctx, "timer setting not persisted", logger.Error(err))
	}
	if msg.Kind == model.ControlTimer {
		metrics.UpdateRoundDuration(d.Seconds())
	}
	r.log.Info(ctx, "timer updated", logger.String("kind", msg.Kind.String()), logger.Int("seconds", secs))
}
