// Package settings persists the timer values set over the control bus so
// they survive a restart.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/falcongrasp/pkg/fsutil"
)

// Timers are the persisted round settings.
type Timers struct {
	Round time.Duration
	Final time.Duration
}

type timersFile struct {
	RoundSeconds int `yaml:"round_seconds"`
	FinalSeconds int `yaml:"final_seconds"`
}

// Store keeps the current timers and mirrors every change to a YAML file.
type Store struct {
	path string

	mu  sync.RWMutex
	cur Timers
}

// Open loads path over defaults. A missing file leaves the defaults in place.
func Open(path string, defaults Timers) (*Store, error) {
	s := &Store{path: path, cur: defaults}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}

	var f timersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if f.RoundSeconds > 0 {
		s.cur.Round = time.Duration(f.RoundSeconds) * time.Second
	}
	if f.FinalSeconds > 0 {
		s.cur.Final = time.Duration(f.FinalSeconds) * time.Second
	}
	return s, nil
}

// Timers returns the current values.
func (s *Store) Timers() Timers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// SetRound changes the round duration and persists it.
func (s *Store) SetRound(d time.Duration) error {
	return s.update(func(t *Timers) { t.Round = d })
}

// SetFinal changes the final-screen duration and persists it.
func (s *Store) SetFinal(d time.Duration) error {
	return s.update(func(t *Timers) { t.Final = d })
}

func (s *Store) update(fn func(*Timers)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cur)
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(timersFile{
		RoundSeconds: int(s.cur.Round / time.Second),
		FinalSeconds: int(s.cur.Final / time.Second),
	})
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return fsutil.WriteFileAtomic(s.path, data, 0o644)
}
