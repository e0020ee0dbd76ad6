// Package service composes the game node: the bus, the session store and
// its aggregator, the round timer, the presenter, the backup journal and
// the orchestrator that drives them against the scoring service.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/falcongrasp/internal/adapters/backup"
	"github.com/okian/falcongrasp/internal/adapters/bus"
	"github.com/okian/falcongrasp/internal/adapters/scoring"
	"github.com/okian/falcongrasp/internal/adapters/settings"
	"github.com/okian/falcongrasp/internal/app/aggregator"
	"github.com/okian/falcongrasp/internal/app/orchestrator"
	"github.com/okian/falcongrasp/internal/app/presenter"
	"github.com/okian/falcongrasp/internal/app/round"
	"github.com/okian/falcongrasp/internal/config"
	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/internal/domain/session"
	"github.com/okian/falcongrasp/pkg/logger"
)

// ErrStarted is returned by Start on a running service.
var ErrStarted = errors.New("service already started")

// Option configures a Service.
type Option func(*Service)

// WithTransport replaces the MQTT transport, mainly for tests.
func WithTransport(t bus.Transport) Option {
	return func(s *Service) {
		if t != nil {
			s.transport = t
		}
	}
}

// WithHTTPClient sets the HTTP client of the scoring API client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Service) {
		if hc != nil {
			s.httpClient = hc
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// Service is the game node. It implements the admin API dependencies.
type Service struct {
	cfg        *config.Config
	transport  bus.Transport
	httpClient *http.Client
	log        logger.Logger

	bus          *bus.Bus
	store        *session.Store
	aggregator   *aggregator.Aggregator
	timers       *settings.Store
	journal      *backup.Journal
	presenter    *presenter.Headless
	round        *round.Round
	orchestrator *orchestrator.Orchestrator

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New wires the game node from cfg. Nothing runs until Start.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		cfg: cfg,
		log: logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.transport == nil {
		s.transport = bus.NewMQTTTransport(cfg.MQTT, "falcongrasp-game")
	}

	timers, err := settings.Open(cfg.Game.SettingsPath, settings.Timers{
		Round: cfg.Game.RoundDuration,
		Final: cfg.Game.FinalDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	journal, err := backup.Open(cfg.Game.BackupDir)
	if err != nil {
		return nil, fmt.Errorf("open backup journal: %w", err)
	}
	s.timers = timers
	s.journal = journal

	topics := bus.NewTopics(cfg.Namespace)
	s.bus = bus.New(s.transport, topics,
		bus.WithCameras(cfg.Game.PlayerCount),
		bus.WithOfflineBuffer(cfg.MQTT.OfflineBuffer),
	)
	s.store = session.NewStore()
	s.aggregator = aggregator.New(s.store, topics,
		aggregator.WithQueueSize(cfg.Telemetry.QueueSize),
		aggregator.WithWorkers(cfg.Telemetry.WorkerCount),
	)
	s.presenter = presenter.NewHeadless(cfg.Game.PresenterAutoReady)
	s.round = round.New(s.bus, s.store, s.timers, s.presenter)

	var clientOpts []scoring.Option
	if s.httpClient != nil {
		clientOpts = append(clientOpts, scoring.WithHTTPClient(s.httpClient))
	}
	s.orchestrator = orchestrator.New(
		cfg.Game,
		scoring.New(cfg.API, clientOpts...),
		s.store,
		s.round,
		s.bus,
		s.presenter,
		orchestrator.WithJournal(s.journal),
	)

	s.round.OnSubmit(s.orchestrator.RequestSubmit)
	s.bus.OnControl(s.round.HandleControl)
	s.bus.OnTelemetry(s.aggregator.Enqueue)
	return s, nil
}

// Start connects the bus and runs the aggregator and the orchestrator
// until Stop or until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.aggregator.Start(runCtx)
	if err := s.bus.Connect(runCtx); err != nil {
		cancel()
		_ = s.aggregator.Shutdown(context.Background())
		return err
	}
	s.presenter.ShowIdle(runCtx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.orchestrator.Run(runCtx)
	}()

	s.cancel = cancel
	s.started = true
	s.log.Info(ctx, "game node started",
		logger.String("namespace", s.cfg.Namespace),
		logger.Int("players", s.cfg.Game.PlayerCount),
		logger.Duration("round", s.timers.Timers().Round),
		logger.Duration("final", s.timers.Timers().Final),
	)
	return nil
}

// Stop halts the orchestrator, cancels any running round, drains the
// aggregator within ctx and disconnects from the broker.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}

	s.cancel()
	s.wg.Wait()
	s.round.Close()
	err := s.aggregator.Shutdown(ctx)
	s.bus.Close()

	s.started = false
	s.log.Info(ctx, "game node stopped", logger.String("state", s.store.State().String()))
	return err
}

// Status reports the orchestrator.
func (s *Service) Status() orchestrator.Status { return s.orchestrator.Status() }

// Leaderboard returns the last leaderboard fetched after a submission.
func (s *Service) Leaderboard() []model.LeaderboardEntry { return s.orchestrator.Leaderboard() }

// BusStatus reports the broker connection.
func (s *Service) BusStatus() bus.Status { return s.bus.Status() }

// Presenter reports what the presentation layer shows.
func (s *Service) Presenter() presenter.Snapshot { return s.presenter.Snapshot() }

// SetPresenterReady confirms or withdraws presenter readiness.
func (s *Service) SetPresenterReady(ready bool) { s.presenter.SetReady(ready) }

// Timers returns the current round and final durations.
func (s *Service) Timers() (roundDuration, finalDuration time.Duration) {
	t := s.timers.Timers()
	return t.Round, t.Final
}
