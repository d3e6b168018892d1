// Package checkpoint records per-batch progress so an interrupted run resumes
// at the first unfinished batch.
package checkpoint

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/Sumatoshi-tech/guidelint/pkg/model"
)

// Sentinel errors for ledger state.
var (
	ErrBatchIndexOutOfRange = errors.New("batch index out of range")
	ErrInvalidState         = errors.New("invalid progress state")
)

// fullPercent is reported for plans with no batches.
const fullPercent = 100.0

// State is the progress of one run plan. Values are never mutated in place;
// Update returns a new State.
//
// Fingerprints holds the content hash each recorded file had when it was
// analyzed. A file without one is treated as changed since.
type State struct {
	TotalBatches          int                `json:"total_batches"           yaml:"total_batches"`
	CompletedBatchIndices []int              `json:"completed_batch_indices" yaml:"completed_batch_indices"`
	Results               []model.FileResult `json:"results"                 yaml:"results"`
	Fingerprints          map[string]string  `json:"fingerprints,omitempty"  yaml:"fingerprints,omitempty"`
}

// New returns fresh state for a plan of total batches.
func New(total int) State {
	return State{
		TotalBatches:          total,
		CompletedBatchIndices: []int{},
		Results:               []model.FileResult{},
		Fingerprints:          map[string]string{},
	}
}

// Validate checks that completed indices are in range and unique.
func (s State) Validate() error {
	if s.TotalBatches < 0 {
		return fmt.Errorf("%w: negative total %d", ErrInvalidState, s.TotalBatches)
	}

	seen := make(map[int]struct{}, len(s.CompletedBatchIndices))

	for _, idx := range s.CompletedBatchIndices {
		if idx < 0 || idx >= s.TotalBatches {
			return fmt.Errorf("%w: completed index %d outside [0, %d)", ErrInvalidState, idx, s.TotalBatches)
		}

		if _, dup := seen[idx]; dup {
			return fmt.Errorf("%w: duplicate completed index %d", ErrInvalidState, idx)
		}

		seen[idx] = struct{}{}
	}

	return nil
}

// Completed reports whether batch idx is recorded as done.
func (s State) Completed(idx int) bool {
	return slices.Contains(s.CompletedBatchIndices, idx)
}

// Update returns a copy of s with batch idx marked complete, its results
// appended and the analysis-time fingerprints of its files merged in.
// Recording an already completed batch changes nothing.
func (s State) Update(idx int, results []model.FileResult, fingerprints map[string]string) (State, error) {
	if idx < 0 || idx >= s.TotalBatches {
		return s, fmt.Errorf("%w: %d not in [0, %d)", ErrBatchIndexOutOfRange, idx, s.TotalBatches)
	}

	if s.Completed(idx) {
		return s, nil
	}

	next := State{
		TotalBatches:          s.TotalBatches,
		CompletedBatchIndices: append(slices.Clone(s.CompletedBatchIndices), idx),
		Results:               append(model.CloneResults(s.Results), model.CloneResults(results)...),
		Fingerprints:          make(map[string]string, len(s.Fingerprints)+len(fingerprints)),
	}

	maps.Copy(next.Fingerprints, s.Fingerprints)
	maps.Copy(next.Fingerprints, fingerprints)

	return next, nil
}

// Drifted lists the recorded files whose fingerprint differs from current,
// in result order. Files absent from current are not reported.
func (s State) Drifted(current map[string]string) []string {
	var drifted []string

	seen := make(map[string]struct{})

	for _, r := range s.Results {
		hash, ok := current[r.File]
		if !ok {
			continue
		}

		if _, dup := seen[r.File]; dup {
			continue
		}

		seen[r.File] = struct{}{}

		if recorded, has := s.Fingerprints[r.File]; !has || recorded != hash {
			drifted = append(drifted, r.File)
		}
	}

	return drifted
}

// Remaining lists unfinished batch indices in ascending order.
func (s State) Remaining() []int {
	remaining := make([]int, 0, max(0, s.TotalBatches-len(s.CompletedBatchIndices)))

	for idx := range s.TotalBatches {
		if !s.Completed(idx) {
			remaining = append(remaining, idx)
		}
	}

	return remaining
}

// IsComplete reports whether every batch is done.
func (s State) IsComplete() bool {
	return len(s.CompletedBatchIndices) >= s.TotalBatches
}

// Percentage returns completed batches as a percentage of the plan.
func (s State) Percentage() float64 {
	if s.TotalBatches == 0 {
		return fullPercent
	}

	return float64(len(s.CompletedBatchIndices)) / float64(s.TotalBatches) * fullPercent
}
