package compliance

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/guidelint/pkg/analyzer"
	"github.com/Sumatoshi-tech/guidelint/pkg/checkpoint"
	"github.com/Sumatoshi-tech/guidelint/pkg/collector"
	"github.com/Sumatoshi-tech/guidelint/pkg/lintcache"
	"github.com/Sumatoshi-tech/guidelint/pkg/persist"
	"github.com/Sumatoshi-tech/guidelint/pkg/retry"
)

// Defaults for Settings.
const (
	DefaultGuidelinesFile = "CLAUDE.md"
	DefaultBatchSize      = 10
)

// Validation errors.
var (
	ErrRootNotDirectory     = errors.New("project root is not a directory")
	ErrInvalidBatchSize     = errors.New("batch size must be positive")
	ErrGuidelinesUnreadable = errors.New("guidelines file is not readable")
)

// Settings configure a Runner.
type Settings struct {
	// GuidelinesFile is resolved against the project root when relative.
	GuidelinesFile string
	Include        []string
	Exclude        []string
	SkipVendored   bool
	BatchSize      int
	MaxFileSize    int64
	Analyzer       analyzer.Config
	Retry          retry.Policy

	// StateDir holds the cache and progress files; relative paths are
	// resolved against the project root, empty means the root itself.
	StateDir         string
	StateFormat      string
	CacheBasename    string
	ProgressBasename string
}

// DefaultSettings returns settings for an Anthropic run with no credential.
func DefaultSettings() Settings {
	return Settings{
		GuidelinesFile: DefaultGuidelinesFile,
		SkipVendored:   true,
		BatchSize:      DefaultBatchSize,
		Analyzer: analyzer.Config{
			Provider:  analyzer.ProviderAnthropic,
			Model:     analyzer.DefaultModel,
			MaxTokens: analyzer.DefaultMaxTokens,
			Timeout:   analyzer.DefaultTimeout,
		},
		Retry:            retry.DefaultPolicy(),
		StateFormat:      persist.FormatJSON,
		CacheBasename:    lintcache.DefaultBasename,
		ProgressBasename: checkpoint.DefaultBasename,
	}
}

// GuidelinesPath resolves the guidelines file for root.
func (s Settings) GuidelinesPath(root string) string {
	return resolve(root, s.GuidelinesFile, DefaultGuidelinesFile)
}

// StatePath resolves the state directory for root.
func (s Settings) StatePath(root string) string {
	return resolve(root, s.StateDir, ".")
}

// CacheStore opens the verdict cache for root.
func (s Settings) CacheStore(root string) (*lintcache.Store, error) {
	codec, err := persist.CodecFor(s.StateFormat)
	if err != nil {
		return nil, err
	}

	return lintcache.NewStore(s.StatePath(root), orDefault(s.CacheBasename, lintcache.DefaultBasename), codec), nil
}

// Ledger opens the progress ledger for root.
func (s Settings) Ledger(root string, logger *slog.Logger) (*checkpoint.Ledger, error) {
	codec, err := persist.CodecFor(s.StateFormat)
	if err != nil {
		return nil, err
	}

	basename := orDefault(s.ProgressBasename, checkpoint.DefaultBasename)

	return checkpoint.NewLedger(s.StatePath(root), basename, codec, logger), nil
}

// Validate checks everything a run needs before any file is written or any
// external call is made. Failures are KindConfig errors.
func Validate(root string, s Settings, mode collector.Mode, baseBranch string) error {
	info, err := os.Stat(root)
	if err != nil {
		return newError(KindConfig, "validate", fmt.Errorf("project root: %w", err))
	}

	if !info.IsDir() {
		return newError(KindConfig, "validate", fmt.Errorf("%w: %s", ErrRootNotDirectory, root))
	}

	err = mode.Validate(baseBranch)
	if err != nil {
		return newError(KindConfig, "validate", err)
	}

	if s.BatchSize <= 0 {
		return newError(KindConfig, "validate", fmt.Errorf("%w: %d", ErrInvalidBatchSize, s.BatchSize))
	}

	err = analyzer.ValidateCredential(s.Analyzer.Provider, s.Analyzer.APIKey)
	if err != nil {
		return newError(KindConfig, "validate", err)
	}

	err = s.Retry.Validate()
	if err != nil {
		return newError(KindConfig, "validate", err)
	}

	_, err = persist.CodecFor(s.StateFormat)
	if err != nil {
		return newError(KindConfig, "validate", err)
	}

	_, err = readGuidelines(root, s)
	if err != nil {
		return newError(KindConfig, "validate", err)
	}

	return nil
}

func readGuidelines(root string, s Settings) (string, error) {
	path := s.GuidelinesPath(root)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGuidelinesUnreadable, err)
	}

	return string(data), nil
}

func resolve(root, path, fallback string) string {
	path = orDefault(path, fallback)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(root, path)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}

	return v
}
