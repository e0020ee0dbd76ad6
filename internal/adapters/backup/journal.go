// Package backup keeps a durable record of every score submission before it
// is sent, so a crash or a remote outage never loses a finished round.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/pkg/fsutil"
)

// ErrNotFound is returned when no record exists for a game result.
var ErrNotFound = errors.New("backup record not found")

const suffix = ".json"

// Record is one pre-submission snapshot.
type Record struct {
	ID           string                `json:"id"`
	GameResultID string                `json:"game_result_id"`
	TeamName     string                `json:"team_name,omitempty"`
	TotalScore   int                   `json:"total_score"`
	Submission   model.ScoreSubmission `json:"submission"`
	CreatedAt    time.Time             `json:"created_at"`
	SubmittedAt  *time.Time            `json:"submitted_at,omitempty"`
}

// Pending reports whether the record still needs to be delivered.
func (r Record) Pending() bool { return r.SubmittedAt == nil }

// Journal stores one JSON file per game result under dir.
type Journal struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// Open prepares dir for use.
func Open(dir string) (*Journal, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("backup: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create %s: %w", dir, err)
	}
	return &Journal{dir: dir, now: time.Now}, nil
}

// Save writes the submission for its game result, replacing any earlier
// record for the same id.
func (j *Journal) Save(team string, total int, sub model.ScoreSubmission) (Record, error) {
	if sub.GameResultID == "" {
		return Record{}, fmt.Errorf("backup: submission without game result id")
	}
	rec := Record{
		ID:           uuid.NewString(),
		GameResultID: sub.GameResultID,
		TeamName:     team,
		TotalScore:   total,
		Submission:   sub,
		CreatedAt:    j.now().UTC(),
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return rec, j.write(rec)
}

// MarkSubmitted stamps the record for gameResultID as delivered.
func (j *Journal) MarkSubmitted(gameResultID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	rec, err := j.read(j.path(gameResultID))
	if err != nil {
		return err
	}
	if !rec.Pending() {
		return nil
	}
	at := j.now().UTC()
	rec.SubmittedAt = &at
	return j.write(rec)
}

// Get returns the record for gameResultID.
func (j *Journal) Get(gameResultID string) (Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.read(j.path(gameResultID))
}

// Pending lists undelivered records, oldest first. Unreadable files are
// skipped and reported in the returned error alongside the good records.
func (j *Journal) Pending() ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, fmt.Errorf("backup: list %s: %w", j.dir, err)
	}

	var (
		out  []Record
		errs []error
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, suffix) {
			continue
		}
		rec, err := j.read(filepath.Join(j.dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rec.Pending() {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, errors.Join(errs...)
}

func (j *Journal) path(gameResultID string) string {
	return filepath.Join(j.dir, fileName(gameResultID))
}

// fileName keeps ids from escaping the journal directory.
func fileName(id string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
	return clean + suffix
}

func (j *Journal) read(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("backup: read %s: %w", path, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("backup: decode %s: %w", path, err)
	}
	return rec, nil
}

func (j *Journal) write(rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("backup: encode: %w", err)
	}
	if err := fsutil.WriteFileAtomic(j.path(rec.GameResultID), data, 0o644); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	return nil
}
