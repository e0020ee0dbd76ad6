package session

import (
	"fmt"
	"sync"
)

// Snapshot is a consistent copy of the store.
type Snapshot struct {
	State       State
	GameStopped bool
	Session     *GameSession
}

// Store is the one shared-state object handed to the orchestrator, the
// aggregator and the round timer. Lifecycle flags change only through Fire,
// which the orchestrator alone calls. Scores change only through the
// score setters, which the aggregator and round timer call.
type Store struct {
	mu          sync.RWMutex
	state       State
	session     *GameSession
	gameStopped bool
}

// NewStore returns a store in StateAuthenticating with no session.
func NewStore() *Store {
	return &Store{state: StateAuthenticating}
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Fire applies t. It returns the states before and after and false, with no
// change, when t is not valid from the current state.
func (s *Store) Fire(t Trigger) (State, State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	to, ok := Next(from, t)
	if !ok {
		return from, from, false
	}
	if t == TriggerReady && s.session == nil {
		return from, from, false
	}

	switch t {
	case TriggerPlaying:
		s.session.Started = true
	case TriggerCancel:
		if s.session != nil {
			s.session.Cancelled = true
			s.session.Started = false
		}
	case TriggerSubmit:
		s.session.SubmitRequested = true
	case TriggerSubmitted, TriggerReset:
		s.session = nil
		s.gameStopped = false
	case TriggerGameStopped:
		s.gameStopped = true
	}
	s.state = to
	return from, to, true
}

// Begin installs a new session. It is only accepted while polling for an
// initiated game and while no session exists; re-announcing the session
// already held is a no-op.
func (s *Store) Begin(g GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePollingInit {
		return fmt.Errorf("%w: state %s", ErrNotPolling, s.state)
	}
	if s.session != nil {
		if s.session.GameResultID == g.GameResultID {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrActiveSession, s.session.GameResultID)
	}
	if len(g.PlayerScores) != len(g.PlayerIDs) {
		g.PlayerScores = make([]int, len(g.PlayerIDs))
	}
	c := g.clone()
	c.Started, c.Cancelled, c.SubmitRequested = false, false, false
	s.session = &c
	s.gameStopped = false
	return nil
}

// Discard drops a session that never started, e.g. when the service stops
// reporting it before the presenter became ready.
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePollingInit {
		s.session = nil
	}
}

// Session returns a copy of the current session.
func (s *Store) Session() (GameSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return GameSession{}, false
	}
	return s.session.clone(), true
}

// Snapshot returns a copy of everything the store holds.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{State: s.state, GameStopped: s.gameStopped}
	if s.session != nil {
		c := s.session.clone()
		snap.Session = &c
	}
	return snap
}

// GameStopped reports whether the round timer has run out for this session.
func (s *Store) GameStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gameStopped
}

// MarkGameStopped records that the round timer ran out. The orchestrator
// turns it into a transition on its next poll.
func (s *Store) MarkGameStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil && s.session.Active() {
		s.gameStopped = true
	}
}

func (s *Store) writable() (*GameSession, error) {
	if s.session == nil {
		return nil, ErrNoSession
	}
	if s.session.Cancelled || s.session.SubmitRequested {
		return nil, ErrSessionClosed
	}
	return s.session, nil
}

// SetScore assigns the score of player i. Assignment makes redelivered
// telemetry harmless.
func (s *Store) SetScore(i, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.writable()
	if err != nil {
		return err
	}
	if i < 0 || i >= len(g.PlayerScores) {
		return fmt.Errorf("%w: %d of %d", ErrPlayerIndex, i, len(g.PlayerScores))
	}
	g.PlayerScores[i] = score
	return nil
}

// SetTeamName records the team name published by the presentation layer.
func (s *Store) SetTeamName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.writable()
	if err != nil {
		return err
	}
	g.TeamName = name
	return nil
}

// SetTotalScore records an externally computed total.
func (s *Store) SetTotalScore(total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.writable()
	if err != nil {
		return err
	}
	g.TotalScore = total
	return nil
}

// ResetScores zeroes every score at the start of a round.
func (s *Store) ResetScores() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, err := s.writable(); err == nil {
		clear(g.PlayerScores)
		g.TotalScore = 0
	}
}
