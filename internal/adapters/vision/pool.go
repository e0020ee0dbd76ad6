package vision

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/falcongrasp/internal/config"
	"github.com/okian/falcongrasp/internal/domain/color"
	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/pkg/logger"
)

// TopicFunc names the telemetry topic of camera i.
type TopicFunc func(i int) string

// Pool runs one Camera per configured camera.
type Pool struct {
	cameras []*Camera
	closers []func() error
	log     logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool builds a camera worker for every camera in cfg, each with its own
// classifier over table.
func NewPool(cfg config.VisionConfig, table *color.Table, pub Publisher, topic TopicFunc) (*Pool, error) {
	if len(cfg.Cameras) == 0 {
		return nil, fmt.Errorf("vision: no cameras configured")
	}
	p := &Pool{log: logger.Get().Named("vision-pool")}
	for _, cam := range cfg.Cameras {
		src := NewCaptureSource(cam)
		cls := NewClassifier(table, ClassifierOptions{KernelSize: cfg.KernelSize, Smooth: cfg.Smooth})
		p.cameras = append(p.cameras, NewCamera(CameraOptions{
			Index:          cam.Index,
			Topic:          topic(cam.Index),
			Threshold:      cfg.Threshold,
			ReopenInterval: cfg.ReopenInterval,
		}, src, cls, pub))
		p.closers = append(p.closers, cls.Close)
	}
	return p, nil
}

// NewPoolFromCameras wraps already built cameras.
func NewPoolFromCameras(cams ...*Camera) *Pool {
	return &Pool{cameras: cams, log: logger.Get().Named("vision-pool")}
}

// Cameras returns the workers.
func (p *Pool) Cameras() []*Camera { return p.cameras }

// Start launches every camera.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, c := range p.cameras {
		p.wg.Add(1)
		go func(c *Camera) {
			defer p.wg.Done()
			c.Run(ctx)
		}(c)
	}
	p.log.Info(ctx, "camera workers started", logger.Int("count", len(p.cameras)))
}

// HandleControl forwards a command to every camera.
func (p *Pool) HandleControl(ctx context.Context, msg model.ControlMessage) {
	for _, c := range p.cameras {
		c.HandleControl(ctx, msg)
	}
}

// Shutdown stops the cameras and releases classifier buffers.
func (p *Pool) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("vision shutdown: %w", ctx.Err())
	}
	for _, closeFn := range p.closers {
		if err := closeFn(); err != nil {
			p.log.Warn(ctx, "release classifier", logger.Error(err))
		}
	}
	return nil
}
