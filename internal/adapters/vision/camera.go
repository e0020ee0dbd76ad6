package vision

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gocv.io/x/gocv"

	"github.com/okian/falcongrasp/internal/domain/debounce"
	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/pkg/logger"
	"github.com/okian/falcongrasp/pkg/metrics"
)

const defaultReopenInterval = 2 * time.Second

// Publisher sends telemetry onto the bus.
type Publisher interface {
	Publish(ctx context.Context, msg model.TelemetryMessage) error
}

// CameraOptions configures one camera worker.
type CameraOptions struct {
	Index int
	// Topic is the telemetry topic of this camera.
	Topic          string
	Threshold      int
	ReopenInterval time.Duration
}

// Camera is the per-camera Stick Counter. It keeps reading frames so the
// source never goes stale, and classifies and publishes only while
// detection is enabled by the control topics.
type Camera struct {
	opts      CameraOptions
	label     string
	source    FrameSource
	detector  Detector
	counter   *debounce.Counter
	publisher Publisher
	log       logger.Logger

	detecting atomic.Bool
	// resetPending hands a counter reset to the frame loop, which owns the counter.
	resetPending atomic.Bool
}

// NewCamera wires a camera worker.
func NewCamera(opts CameraOptions, src FrameSource, det Detector, pub Publisher) *Camera {
	if opts.ReopenInterval <= 0 {
		opts.ReopenInterval = defaultReopenInterval
	}
	label := strconv.Itoa(opts.Index)
	return &Camera{
		opts:      opts,
		label:     label,
		source:    src,
		detector:  det,
		counter:   debounce.New(opts.Threshold),
		publisher: pub,
		log:       logger.Get().Named("camera-" + label),
	}
}

// Detecting reports whether the camera currently counts sticks.
func (c *Camera) Detecting() bool { return c.detecting.Load() }

// HandleControl gates detection: start and Activate enable it, stop and
// Deactivate disable it. Start always begins a new round with clear
// counters, so a missed stop cannot carry colors into the next game.
func (c *Camera) HandleControl(ctx context.Context, msg model.ControlMessage) {
	switch msg.Kind {
	case model.ControlStart, model.ControlActivate:
		if msg.Kind == model.ControlStart {
			c.resetPending.Store(true)
		}
		if !c.detecting.Swap(true) {
			c.resetPending.Store(true)
			c.log.Info(ctx, "detection enabled", logger.String("by", msg.Kind.String()))
		}
	case model.ControlStop, model.ControlDeactivate:
		c.resetPending.Store(true)
		if c.detecting.Swap(false) {
			c.log.Info(ctx, "detection disabled", logger.String("by", msg.Kind.String()))
		}
	default:
		return
	}
	metrics.UpdateCameraDetecting(c.label, c.detecting.Load())
}

// Run reads frames until ctx ends. Source failures are retried with a
// fixed interval and never end the loop.
func (c *Camera) Run(ctx context.Context) {
	frame := gocv.NewMat()
	defer frame.Close()

	if err := c.reopen(ctx); err != nil {
		return
	}
	defer c.source.Close()

	for ctx.Err() == nil {
		err := c.source.Read(&frame)
		switch {
		case errors.Is(err, ErrSourceLost):
			metrics.RecordFrameError(c.label)
			c.log.Warn(ctx, "frame source lost", logger.Error(err))
			if c.reopen(ctx) != nil {
				return
			}
			continue
		case err != nil:
			metrics.RecordFrameError(c.label)
			c.log.Debug(ctx, "frame skipped", logger.Error(err))
			frame.Close()
			frame = gocv.NewMat()
		}
		c.Process(ctx, frame)
	}
}

// reopen retries Open until it succeeds or ctx ends.
func (c *Camera) reopen(ctx context.Context) error {
	policy := backoff.WithContext(backoff.NewConstantBackOff(c.opts.ReopenInterval), ctx)
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		if attempt > 1 {
			metrics.RecordSourceReconnect(c.label)
		}
		return c.source.Open()
	}, policy, func(err error, next time.Duration) {
		c.log.Warn(ctx, "cannot open frame source",
			logger.String("source", c.source.String()),
			logger.Duration("retry_in", next),
			logger.Error(err),
		)
	})
}

// Process handles one frame: classify, debounce and publish confirmations.
// An empty frame counts as a frame with no sticks.
func (c *Camera) Process(ctx context.Context, frame gocv.Mat) {
	metrics.RecordFrameProcessed(c.label)
	if c.resetPending.Swap(false) {
		c.counter.Reset()
	}
	if !c.detecting.Load() {
		return
	}

	names := c.detector.Colors()
	res := c.detector.Classify(frame)
	present := make(map[string]bool, len(names))
	for _, ev := range res.Events(c.opts.Index, names) {
		present[ev.Color] = ev.Confirmed
		if ev.Confirmed {
			metrics.RecordDetections(c.label, ev.Color, res.Colors[ev.Color].Count)
		}
	}

	for _, conf := range c.counter.Observe(names, present) {
		msg := model.TelemetryMessage{Topic: c.opts.Topic, Payload: strconv.Itoa(conf.Distinct)}
		c.log.Info(ctx, "color confirmed",
			logger.String("color", conf.Color),
			logger.Int("distinct", conf.Distinct),
		)
		if err := c.publisher.Publish(ctx, msg); err != nil {
			c.log.Warn(ctx, "telemetry not sent", logger.Error(err))
			continue
		}
		metrics.RecordConfirmation(c.label)
	}
}
