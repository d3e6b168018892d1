package checkpoint

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/guidelint/pkg/model"
	"github.com/Sumatoshi-tech/guidelint/pkg/persist"
)

// DefaultBasename is the progress file name without extension.
const DefaultBasename = ".guidelint-progress"

// ErrCorrupt is returned when the progress file exists but cannot be used.
// Recover by clearing progress.
var ErrCorrupt = errors.New("progress file is corrupt")

// Ledger persists State to a single file.
type Ledger struct {
	file   *persist.Store[State]
	logger *slog.Logger
}

// NewLedger creates a ledger for basename in dir.
func NewLedger(dir, basename string, codec persist.Codec, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}

	return &Ledger{
		file:   persist.NewStore[State](dir, basename, codec),
		logger: logger,
	}
}

// Path returns the progress file path.
func (l *Ledger) Path() string {
	return l.file.Path()
}

// Exists reports whether a progress file is present.
func (l *Ledger) Exists() bool {
	return persist.Exists(l.file.Path())
}

// Load reads persisted state. The boolean is false when no file exists.
func (l *Ledger) Load() (State, bool, error) {
	s, found, err := l.file.Load()
	if errors.Is(err, persist.ErrCorrupt) {
		return State{}, false, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	if err != nil {
		return State{}, false, fmt.Errorf("load progress: %w", err)
	}

	if !found {
		return State{}, false, nil
	}

	if s.CompletedBatchIndices == nil {
		s.CompletedBatchIndices = []int{}
	}

	if s.Results == nil {
		s.Results = []model.FileResult{}
	}

	if s.Fingerprints == nil {
		s.Fingerprints = map[string]string{}
	}

	return s, true, nil
}

// Save persists state atomically.
func (l *Ledger) Save(s State) error {
	err := l.file.Save(s)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}

	return nil
}

// InitOrLoad resumes persisted state for a plan of total batches. State
// recorded for a different batch count is discarded and replaced by fresh
// state, which is persisted before returning.
func (l *Ledger) InitOrLoad(total int) (State, bool, error) {
	s, found, err := l.Load()
	if err != nil {
		return State{}, false, err
	}

	if found && s.TotalBatches == total {
		validateErr := s.Validate()
		if validateErr != nil {
			return State{}, false, fmt.Errorf("%w: %w", ErrCorrupt, validateErr)
		}

		l.logger.Info("resuming from saved progress",
			"completed", len(s.CompletedBatchIndices),
			"total", total,
			"percent", s.Percentage())

		return s, true, nil
	}

	if found {
		l.logger.Info("discarding progress for a different plan",
			"saved_total", s.TotalBatches,
			"current_total", total)
	}

	fresh := New(total)

	err = l.Save(fresh)
	if err != nil {
		return State{}, false, err
	}

	return fresh, false, nil
}

// Record marks batch idx complete with its results and the fingerprints its
// files were analyzed at, then persists the new state.
func (l *Ledger) Record(s State, idx int, results []model.FileResult, fingerprints map[string]string) (State, error) {
	next, err := s.Update(idx, results, fingerprints)
	if err != nil {
		return s, err
	}

	err = l.Save(next)
	if err != nil {
		return s, err
	}

	return next, nil
}

// Cleanup deletes the progress file. A missing file is not an error.
func (l *Ledger) Cleanup() error {
	return l.file.Remove()
}
