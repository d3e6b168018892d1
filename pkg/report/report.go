// Package report renders compliance results for people and machines and maps
// run outcomes to process exit codes.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Sumatoshi-tech/guidelint/pkg/compliance"
	"github.com/Sumatoshi-tech/guidelint/pkg/model"
)

// Format selects a report encoding.
type Format string

// Report formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Exit codes.
const (
	ExitClean      = 0
	ExitViolations = 1
	ExitError      = 2
	ExitCancelled  = 130
)

// ErrUnknownFormat is returned for an unsupported report format.
var ErrUnknownFormat = errors.New("unknown report format")

// ParseFormat parses a format name; empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Options tune rendering.
type Options struct {
	// Color enables ANSI colors in text output.
	Color bool
	// Quiet limits text output to files with violations and the summary.
	Quiet bool
}

// Write renders a complete report in the given format.
func Write(w io.Writer, format Format, results []model.FileResult, metrics compliance.RunMetrics, opts Options) error {
	switch format {
	case FormatText, "":
		return writeText(w, results, metrics, opts)
	case FormatJSON:
		return writeJSONLines(w, results, metrics)
	case FormatYAML:
		return writeYAML(w, results, metrics)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ExitCode maps a run outcome to the process exit status.
func ExitCode(results []model.FileResult, err error) int {
	if err != nil {
		if compliance.KindOf(err) == compliance.KindCancelled {
			return ExitCancelled
		}

		return ExitError
	}

	if model.CountViolations(results) > 0 {
		return ExitViolations
	}

	return ExitClean
}
