package compliance

import "github.com/Sumatoshi-tech/guidelint/pkg/analyzer"

// RunMetrics summarizes one run.
type RunMetrics struct {
	TotalFilesCollected int `json:"total_files_collected" yaml:"total_files_collected"`
	FilesFromCache      int `json:"files_from_cache"      yaml:"files_from_cache"`
	CacheHits           int `json:"cache_hits"            yaml:"cache_hits"`
	FilesAnalyzed       int `json:"files_analyzed"        yaml:"files_analyzed"`
	APICallsMade        int `json:"api_calls_made"        yaml:"api_calls_made"`

	FilesSkipped        int `json:"files_skipped"         yaml:"files_skipped"`
	BatchesResumed      int `json:"batches_resumed"       yaml:"batches_resumed"`
	InputTokens         int `json:"input_tokens"          yaml:"input_tokens"`
	OutputTokens        int `json:"output_tokens"         yaml:"output_tokens"`
	CacheReadTokens     int `json:"cache_read_tokens"     yaml:"cache_read_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens" yaml:"cache_creation_tokens"`
}

func (m *RunMetrics) addUsage(u analyzer.Usage) {
	m.InputTokens += u.InputTokens
	m.OutputTokens += u.OutputTokens
	m.CacheReadTokens += u.CacheReadTokens
	m.CacheCreationTokens += u.CacheCreationTokens
}
