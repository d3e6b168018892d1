package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Sumatoshi-tech/guidelint/pkg/compliance"
	"github.com/Sumatoshi-tech/guidelint/pkg/model"
)

// StreamSink writes each batch's results as soon as the batch completes, so
// a long run can be followed from another terminal. JSON streams are JSON
// lines; every other format streams text blocks.
type StreamSink struct {
	mu      sync.Mutex
	w       io.Writer
	format  Format
	pal     palette
	started bool
}

// NewStreamSink creates a sink writing to w.
func NewStreamSink(w io.Writer, format Format) *StreamSink {
	return &StreamSink{w: w, format: format, pal: newPalette(false)}
}

// OnBatchComplete implements compliance.BatchSink.
func (s *StreamSink) OnBatchComplete(_ context.Context, ev compliance.BatchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == FormatJSON {
		return s.writeJSON(ev.Results)
	}

	var b strings.Builder

	s.startText(&b)

	switch ev.Kind {
	case compliance.EventRestored:
		fmt.Fprintf(&b, "Restored from saved progress (%d/%d batches):\n\n", ev.Completed, ev.Total)
	case compliance.EventRecheck:
		b.WriteString("Re-analyzed after changing since the interrupted run:\n\n")
	case compliance.EventBatch:
	}

	for _, r := range ev.Results {
		writeFileBlock(&b, s.pal, r)
	}

	return s.flush(&b)
}

// Finish appends the run summary. Results are the complete merged results,
// including those served from cache.
func (s *StreamSink) Finish(results []model.FileResult, m compliance.RunMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == FormatJSON {
		err := json.NewEncoder(s.w).Encode(summaryLine{Summary: newSummary(results, m)})
		if err != nil {
			return fmt.Errorf("write stream summary: %w", err)
		}

		return nil
	}

	var b strings.Builder

	s.startText(&b)
	b.WriteString(summaryTable(results, m))
	b.WriteString("\n")

	return s.flush(&b)
}

func (s *StreamSink) startText(b *strings.Builder) {
	if s.started {
		return
	}

	s.started = true
	writeHeader(b, titleStream)
}

func (s *StreamSink) writeJSON(results []model.FileResult) error {
	enc := json.NewEncoder(s.w)

	for _, r := range results {
		err := enc.Encode(r)
		if err != nil {
			return fmt.Errorf("write stream result: %w", err)
		}
	}

	return nil
}

func (s *StreamSink) flush(b *strings.Builder) error {
	_, err := io.WriteString(s.w, b.String())
	if err != nil {
		return fmt.Errorf("write stream: %w", err)
	}

	return nil
}
