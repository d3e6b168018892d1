package report

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/guidelint/pkg/compliance"
	"github.com/Sumatoshi-tech/guidelint/pkg/model"
)

// Summary is the final JSON line of a report.
type Summary struct {
	TotalFiles    int                    `json:"total_files"`
	FilesAnalyzed int                    `json:"files_analyzed"`
	APICalls      int                    `json:"api_calls"`
	Violations    int                    `json:"violations"`
	Metrics       *compliance.RunMetrics `json:"metrics,omitempty"`
}

type summaryLine struct {
	Summary Summary `json:"summary"`
}

func newSummary(results []model.FileResult, m compliance.RunMetrics) Summary {
	return Summary{
		TotalFiles:    m.TotalFilesCollected,
		FilesAnalyzed: m.FilesAnalyzed,
		APICalls:      m.APICallsMade,
		Violations:    model.CountViolations(results),
		Metrics:       &m,
	}
}

// writeJSONLines writes one JSON object per file result followed by a summary line.
func writeJSONLines(w io.Writer, results []model.FileResult, m compliance.RunMetrics) error {
	enc := json.NewEncoder(w)

	for _, r := range results {
		err := enc.Encode(r)
		if err != nil {
			return fmt.Errorf("write json result: %w", err)
		}
	}

	err := enc.Encode(summaryLine{Summary: newSummary(results, m)})
	if err != nil {
		return fmt.Errorf("write json summary: %w", err)
	}

	return nil
}

type yamlReport struct {
	Results []model.FileResult    `yaml:"results"`
	Metrics compliance.RunMetrics `yaml:"metrics"`
}

func writeYAML(w io.Writer, results []model.FileResult, m compliance.RunMetrics) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(yamlReport{Results: results, Metrics: m})
	if err != nil {
		return fmt.Errorf("write yaml report: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("write yaml report: %w", err)
	}

	return nil
}
