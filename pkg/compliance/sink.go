package compliance

import (
	"context"
	"errors"

	"github.com/Sumatoshi-tech/guidelint/pkg/analyzer"
	"github.com/Sumatoshi-tech/guidelint/pkg/filereader"
	"github.com/Sumatoshi-tech/guidelint/pkg/model"
)

// EventKind says where an event's results come from.
type EventKind int

const (
	// EventBatch is a plan batch just recorded in the ledger.
	EventBatch EventKind = iota
	// EventRestored carries, once per resumed run, the results recorded by
	// earlier runs. Index is -1.
	EventRestored
	// EventRecheck is a batch of restored files re-analyzed because their
	// content changed. Index and Total count recheck batches.
	EventRecheck
)

// String returns the kind's name.
func (k EventKind) String() string {
	switch k {
	case EventBatch:
		return "batch"
	case EventRestored:
		return "restored"
	case EventRecheck:
		return "recheck"
	default:
		return "unknown"
	}
}

// BatchEvent describes results that have just become available.
type BatchEvent struct {
	Kind  EventKind
	RunID string
	// Index is the zero-based batch index; Total the number of batches in the plan.
	Index int
	Total int
	// Files are the batch's candidate paths, Skipped those the reader dropped.
	Files   []string
	Skipped []filereader.Skipped
	Results []model.FileResult
	// Attempts is zero when no call was made because every file was skipped.
	Attempts  int
	Usage     analyzer.Usage
	Completed int
	Percent   float64
}

// BatchSink receives batch events synchronously, in batch order. Restored
// results come first on a resumed run. A returned error aborts the run.
type BatchSink interface {
	OnBatchComplete(ctx context.Context, ev BatchEvent) error
}

// SinkFunc adapts a function to BatchSink.
type SinkFunc func(ctx context.Context, ev BatchEvent) error

// OnBatchComplete calls f.
func (f SinkFunc) OnBatchComplete(ctx context.Context, ev BatchEvent) error {
	return f(ctx, ev)
}

type nopSink struct{}

func (nopSink) OnBatchComplete(context.Context, BatchEvent) error { return nil }

// MultiSink delivers each event to every sink in order and joins their errors.
type MultiSink []BatchSink

// OnBatchComplete fans ev out to all sinks.
func (m MultiSink) OnBatchComplete(ctx context.Context, ev BatchEvent) error {
	var errs []error

	for _, s := range m {
		errs = append(errs, s.OnBatchComplete(ctx, ev))
	}

	return errors.Join(errs...)
}
