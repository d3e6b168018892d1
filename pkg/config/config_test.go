package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/guidelint/pkg/analyzer"
	"github.com/Sumatoshi-tech/guidelint/pkg/config"
	"github.com/Sumatoshi-tech/guidelint/pkg/observability"
)

const (
	testBatchSize = 25
	testMaxTokens = 2048
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_NoFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, config.DefaultGuidelinesFile, cfg.GuidelinesFile)
	assert.Equal(t, config.DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, config.DefaultInclude(), cfg.Include)
	assert.Equal(t, config.DefaultExclude(), cfg.Exclude)
	assert.Equal(t, config.DefaultProvider, cfg.Provider)
	assert.Equal(t, config.DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, config.DefaultRetryMaxAttempts, cfg.Retry.MaxAttempts)
	assert.Equal(t, config.DefaultRetryInitialDelay, cfg.Retry.InitialDelay)
	assert.InDelta(t, config.DefaultRetryBackoffFactor, cfg.Retry.BackoffFactor, 0.001)
	assert.Equal(t, config.DefaultStateFormat, cfg.State.Format)
	assert.Equal(t, config.DefaultCacheFile, cfg.State.CacheFile)
	assert.Equal(t, config.DefaultProgressFile, cfg.State.ProgressFile)
	assert.True(t, cfg.SkipVendored)

	size, err := cfg.MaxFileSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), size)
}

func TestLoad_ProjectFileIsFound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, ".guidelint.yaml", `guidelines_file: docs/STYLE.md
include:
  - "src/**/*.go"
exclude: []
batch_size: 25
max_file_size: 256KiB
provider: openai
api_key: sk-test-0123456789abcdefghij
max_tokens: 2048
request_timeout: 45s
requests_per_minute: 30
retry:
  max_attempts: 5
  initial_delay: 250ms
  backoff_factor: 3
state:
  dir: .cache/guidelint
  format: yaml
logging:
  level: debug
  format: json
`)

	cfg, err := config.Load("", dir)
	require.NoError(t, err)

	assert.Equal(t, "docs/STYLE.md", cfg.GuidelinesFile)
	assert.Equal(t, []string{"src/**/*.go"}, cfg.Include)
	assert.Empty(t, cfg.Exclude)
	assert.Equal(t, testBatchSize, cfg.BatchSize)
	assert.Equal(t, testMaxTokens, cfg.MaxTokens)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialDelay)

	settings, err := cfg.Settings()
	require.NoError(t, err)

	assert.Equal(t, int64(256*1024), settings.MaxFileSize)
	assert.Equal(t, analyzer.ProviderOpenAI, settings.Analyzer.Provider)
	assert.Equal(t, analyzer.DefaultOpenAIModel, settings.Analyzer.Model)
	assert.Equal(t, 30, settings.Analyzer.RequestsPerMinute)
	assert.Equal(t, ".cache/guidelint", settings.StateDir)
	assert.Equal(t, "yaml", settings.StateFormat)
	assert.InDelta(t, 3.0, settings.Retry.BackoffFactor, 0.001)
	require.NoError(t, settings.Retry.Validate())

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_ExplicitJSONPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, "lint.json", `{"batch_size": 3, "model": "claude-custom"}`)

	cfg, err := config.Load(path, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.BatchSize)
	assert.Equal(t, "claude-custom", cfg.ModelName())
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), t.TempDir())
	require.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "zero batch size", content: "batch_size: 0\n", want: config.ErrInvalidConfig},
		{name: "unknown provider", content: "provider: gemini\n", want: config.ErrInvalidConfig},
		{name: "bad size", content: "max_file_size: lots\n", want: config.ErrInvalidMaxFileSize},
		{name: "zero size", content: "max_file_size: 0B\n", want: config.ErrInvalidMaxFileSize},
		{name: "bad state format", content: "state:\n  format: xml\n", want: config.ErrInvalidConfig},
		{name: "bad log level", content: "logging:\n  level: loud\n", want: config.ErrInvalidLogLevel},
		{name: "bad backoff", content: "retry:\n  backoff_factor: 0.5\n", want: config.ErrInvalidConfig},
		{name: "bad base url", content: "base_url: not a url\n", want: config.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeConfig(t, dir, ".guidelint.yaml", tt.content)

			_, err := config.Load("", dir)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("GUIDELINT_BATCH_SIZE", "7")
	t.Setenv("GUIDELINT_STATE_FORMAT", "yaml")

	dir := t.TempDir()
	writeConfig(t, dir, ".guidelint.yaml", "batch_size: 3\n")

	cfg, err := config.Load("", dir)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.BatchSize)
	assert.Equal(t, "yaml", cfg.State.Format)
}

func TestLoad_ProviderKeyFallback(t *testing.T) {
	key := "sk-ant-" + strings.Repeat("z", 40)

	t.Setenv("GUIDELINT_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", key)

	cfg, err := config.Load("", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, key, cfg.APIKey)
}

func TestLoad_DotEnv(t *testing.T) {
	// Registered with t.Setenv so the value godotenv writes is restored.
	t.Setenv("GUIDELINT_MAX_TOKENS", "unset")
	require.NoError(t, os.Unsetenv("GUIDELINT_MAX_TOKENS"))

	dir := t.TempDir()
	writeConfig(t, dir, ".env", "GUIDELINT_MAX_TOKENS=1234\n")

	cfg, err := config.Load("", dir)
	require.NoError(t, err)

	assert.Equal(t, 1234, cfg.MaxTokens)
}

func TestConfig_Observability(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, ".guidelint.yaml", `logging:
  level: warn
  format: json
telemetry:
  otlp_endpoint: localhost:4317
  otlp_headers: "api-key=secret"
  otlp_insecure: true
  sample_ratio: 0.25
  metrics_file: /tmp/guidelint.prom
`)

	cfg, err := config.Load("", dir)
	require.NoError(t, err)

	obs, err := cfg.Observability("1.2.3", observability.ModeMCP)
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", obs.ServiceVersion)
	assert.Equal(t, observability.ModeMCP, obs.Mode)
	assert.Equal(t, slog.LevelWarn, obs.LogLevel)
	assert.True(t, obs.LogJSON)
	assert.Equal(t, "localhost:4317", obs.OTLPEndpoint)
	assert.Equal(t, map[string]string{"api-key": "secret"}, obs.OTLPHeaders)
	assert.True(t, obs.OTLPInsecure)
	assert.InDelta(t, 0.25, obs.SampleRatio, 0.001)
	assert.Equal(t, "/tmp/guidelint.prom", obs.MetricsFile)
}
