package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/guidelint/pkg/collector"
	"github.com/Sumatoshi-tech/guidelint/pkg/compliance"
	"github.com/Sumatoshi-tech/guidelint/pkg/fingerprint"
	"github.com/Sumatoshi-tech/guidelint/pkg/model"
)

// Tool names.
const (
	ToolNameCheck      = "guidelint_check"
	ToolNameCacheStats = "guidelint_cache_stats"
)

// Sentinel errors for tool input validation.
var (
	ErrEmptyProjectPath       = errors.New("project_path is required and must not be empty")
	ErrProjectPathNotAbsolute = errors.New("project_path must be an absolute path")
	ErrProjectNotFound        = errors.New("project path does not exist")
	ErrNoSettings             = errors.New("server has no settings loader")
)

// CheckInput is the input schema for guidelint_check.
type CheckInput struct {
	ProjectPath string `json:"project_path"          jsonschema:"absolute path to the project root"`
	Mode        string `json:"mode,omitempty"        jsonschema:"full, diff, working or staged (default: working)"`
	BaseBranch  string `json:"base_branch,omitempty" jsonschema:"branch to diff against in diff mode"`
	ConfigPath  string `json:"config_path,omitempty" jsonschema:"optional path to a guidelint config file"`
}

// CacheStatsInput is the input schema for guidelint_cache_stats.
type CacheStatsInput struct {
	ProjectPath string `json:"project_path"          jsonschema:"absolute path to the project root"`
	ConfigPath  string `json:"config_path,omitempty" jsonschema:"optional path to a guidelint config file"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// CheckResult is the structured answer of guidelint_check.
type CheckResult struct {
	Results    []model.FileResult    `json:"results"`
	Metrics    compliance.RunMetrics `json:"metrics"`
	Violations int                   `json:"violations"`
}

// CacheStatsResult is the structured answer of guidelint_cache_stats.
type CacheStatsResult struct {
	Path       string     `json:"path"`
	Entries    int        `json:"entries"`
	Current    int        `json:"current"`
	Stale      int        `json:"stale"`
	Violations int        `json:"violations"`
	Oldest     *time.Time `json:"oldest,omitempty"`
	Newest     *time.Time `json:"newest,omitempty"`
}

func (s *Server) handleCheck(ctx context.Context, _ *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateProjectPath(input.ProjectPath)
	if err != nil {
		return errorResult(err)
	}

	mode := collector.ModeWorking
	if input.Mode != "" {
		mode, err = collector.ParseMode(input.Mode)
		if err != nil {
			return errorResult(err)
		}
	}

	settings, err := s.settings(input.ProjectPath, input.ConfigPath)
	if err != nil {
		return errorResult(err)
	}

	runner, err := compliance.NewRunner(settings, s.deps.RunnerOptions...)
	if err != nil {
		return errorResult(err)
	}

	s.runs.Lock()
	results, metrics, err := runner.Run(ctx, input.ProjectPath, mode, input.BaseBranch)
	s.runs.Unlock()

	if err != nil {
		return errorResult(fmt.Errorf("%s error: %w", compliance.KindOf(err), err))
	}

	return jsonResult(CheckResult{
		Results:    results,
		Metrics:    metrics,
		Violations: model.CountViolations(results),
	})
}

func (s *Server) handleCacheStats(_ context.Context, _ *mcpsdk.CallToolRequest, input CacheStatsInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateProjectPath(input.ProjectPath)
	if err != nil {
		return errorResult(err)
	}

	settings, err := s.settings(input.ProjectPath, input.ConfigPath)
	if err != nil {
		return errorResult(err)
	}

	store, err := settings.CacheStore(input.ProjectPath)
	if err != nil {
		return errorResult(err)
	}

	cache, err := store.Load()
	if err != nil {
		return errorResult(err)
	}

	guidelinesHash := ""

	data, err := os.ReadFile(settings.GuidelinesPath(input.ProjectPath))
	if err == nil {
		guidelinesHash = fingerprint.Bytes(data)
	}

	stats := cache.Stats(guidelinesHash)
	out := CacheStatsResult{
		Path:       store.Path(),
		Entries:    stats.Entries,
		Current:    stats.Current,
		Stale:      stats.Stale,
		Violations: stats.Violations,
	}

	if stats.Entries > 0 {
		out.Oldest, out.Newest = &stats.Oldest, &stats.Newest
	}

	return jsonResult(out)
}

func (s *Server) settings(root, configPath string) (compliance.Settings, error) {
	if s.deps.Settings == nil {
		return compliance.Settings{}, ErrNoSettings
	}

	return s.deps.Settings(root, configPath)
}

func validateProjectPath(path string) error {
	if path == "" {
		return ErrEmptyProjectPath
	}

	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %q", ErrProjectPathNotAbsolute, path)
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, path)
	}

	return nil
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
