// Package config loads guidelint settings from .guidelint.yaml in the project
// root, GUIDELINT_* environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/guidelint/pkg/analyzer"
	"github.com/Sumatoshi-tech/guidelint/pkg/compliance"
	"github.com/Sumatoshi-tech/guidelint/pkg/observability"
	"github.com/Sumatoshi-tech/guidelint/pkg/persist"
	"github.com/Sumatoshi-tech/guidelint/pkg/retry"
)

// Sentinel validation errors.
var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrInvalidMaxFileSize = errors.New("invalid max_file_size")
	ErrInvalidProvider    = errors.New("invalid provider")
	ErrInvalidStateFormat = errors.New("invalid state format")
	ErrInvalidLogLevel    = errors.New("invalid log level")
)

// Config holds all guidelint configuration.
type Config struct {
	GuidelinesFile    string          `mapstructure:"guidelines_file"     validate:"required"`
	Include           []string        `mapstructure:"include"`
	Exclude           []string        `mapstructure:"exclude"`
	BatchSize         int             `mapstructure:"batch_size"          validate:"min=1"`
	MaxFileSize       string          `mapstructure:"max_file_size"       validate:"required"`
	SkipVendored      bool            `mapstructure:"skip_vendored"`
	Provider          string          `mapstructure:"provider"            validate:"oneof=anthropic openai"`
	APIKey            string          `mapstructure:"api_key"`
	Model             string          `mapstructure:"model"`
	BaseURL           string          `mapstructure:"base_url"            validate:"omitempty,url"`
	MaxTokens         int             `mapstructure:"max_tokens"          validate:"min=1"`
	RequestTimeout    time.Duration   `mapstructure:"request_timeout"     validate:"gt=0"`
	RequestsPerMinute int             `mapstructure:"requests_per_minute" validate:"gte=0"`
	Retry             RetryConfig     `mapstructure:"retry"`
	State             StateConfig     `mapstructure:"state"`
	Logging           LoggingConfig   `mapstructure:"logging"`
	Telemetry         TelemetryConfig `mapstructure:"telemetry"`
}

// RetryConfig holds the backoff policy for analysis calls.
type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"   validate:"min=1"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"  validate:"gte=0"`
	BackoffFactor float64       `mapstructure:"backoff_factor" validate:"gte=1"`
}

// StateConfig locates the cache and progress files.
type StateConfig struct {
	Dir          string `mapstructure:"dir"`
	Format       string `mapstructure:"format"        validate:"oneof=json yaml yml"`
	CacheFile    string `mapstructure:"cache_file"    validate:"required"`
	ProgressFile string `mapstructure:"progress_file" validate:"required"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"  validate:"gte=0,lte=1"`
	MetricsFile  string  `mapstructure:"metrics_file"`
}

var validate = validator.New()

// Load reads configuration for projectRoot. An explicit path must exist;
// otherwise .guidelint.{yaml,json,toml} is looked up in projectRoot and may
// be absent. A .env file in projectRoot is loaded into the environment first
// without overriding variables that are already set.
func Load(path, projectRoot string) (*Config, error) {
	err := godotenv.Load(filepath.Join(projectRoot, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	viperCfg := viper.New()

	setDefaults(viperCfg)

	if path != "" {
		viperCfg.SetConfigFile(path)
	} else {
		viperCfg.SetConfigName(FileName)
		viperCfg.AddConfigPath(projectRoot)
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	if config.APIKey == "" {
		config.APIKey = os.Getenv(analyzer.EnvKeyFor(analyzer.Provider(config.Provider)))
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key needs a default
// so that AutomaticEnv can override it.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("guidelines_file", DefaultGuidelinesFile)
	viperCfg.SetDefault("include", DefaultInclude())
	viperCfg.SetDefault("exclude", DefaultExclude())
	viperCfg.SetDefault("batch_size", DefaultBatchSize)
	viperCfg.SetDefault("max_file_size", DefaultMaxFileSize)
	viperCfg.SetDefault("skip_vendored", DefaultSkipVendored)

	viperCfg.SetDefault("provider", DefaultProvider)
	viperCfg.SetDefault("api_key", "")
	viperCfg.SetDefault("model", "")
	viperCfg.SetDefault("base_url", "")
	viperCfg.SetDefault("max_tokens", DefaultMaxTokens)
	viperCfg.SetDefault("request_timeout", DefaultRequestTimeout.String())
	viperCfg.SetDefault("requests_per_minute", DefaultRequestsPerMinute)

	viperCfg.SetDefault("retry.max_attempts", DefaultRetryMaxAttempts)
	viperCfg.SetDefault("retry.initial_delay", DefaultRetryInitialDelay.String())
	viperCfg.SetDefault("retry.backoff_factor", DefaultRetryBackoffFactor)

	viperCfg.SetDefault("state.dir", DefaultStateDir)
	viperCfg.SetDefault("state.format", DefaultStateFormat)
	viperCfg.SetDefault("state.cache_file", DefaultCacheFile)
	viperCfg.SetDefault("state.progress_file", DefaultProgressFile)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)
	viperCfg.SetDefault("telemetry.metrics_file", "")
}

// Validate checks struct constraints and the values that need parsing.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	_, err = c.MaxFileSizeBytes()
	if err != nil {
		return err
	}

	_, err = analyzer.ParseProvider(c.Provider)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProvider, err)
	}

	_, err = persist.CodecFor(c.State.Format)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStateFormat, err)
	}

	_, err = c.LogLevel()
	if err != nil {
		return err
	}

	return nil
}

// MaxFileSizeBytes parses max_file_size ("1MB", "512KiB", "65536").
func (c *Config) MaxFileSizeBytes() (int64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(c.MaxFileSize))
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxFileSize, c.MaxFileSize, err)
	}

	if n == 0 || n > 1<<40 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidMaxFileSize, c.MaxFileSize)
	}

	return int64(n), nil
}

// LogLevel parses logging.level.
func (c *Config) LogLevel() (slog.Level, error) {
	level, err := observability.ParseLogLevel(c.Logging.Level)
	if err != nil {
		return level, fmt.Errorf("%w: %w", ErrInvalidLogLevel, err)
	}

	return level, nil
}

// ModelName returns the configured model or the provider's default.
func (c *Config) ModelName() string {
	if c.Model != "" {
		return c.Model
	}

	if analyzer.Provider(c.Provider) == analyzer.ProviderOpenAI {
		return analyzer.DefaultOpenAIModel
	}

	return analyzer.DefaultModel
}

// Settings converts the configuration into runner settings.
func (c *Config) Settings() (compliance.Settings, error) {
	maxBytes, err := c.MaxFileSizeBytes()
	if err != nil {
		return compliance.Settings{}, err
	}

	return compliance.Settings{
		GuidelinesFile: c.GuidelinesFile,
		Include:        c.Include,
		Exclude:        c.Exclude,
		SkipVendored:   c.SkipVendored,
		BatchSize:      c.BatchSize,
		MaxFileSize:    maxBytes,
		Analyzer: analyzer.Config{
			Provider:          analyzer.Provider(c.Provider),
			APIKey:            c.APIKey,
			Model:             c.ModelName(),
			BaseURL:           c.BaseURL,
			MaxTokens:         c.MaxTokens,
			Timeout:           c.RequestTimeout,
			RequestsPerMinute: c.RequestsPerMinute,
		},
		Retry: retry.Policy{
			MaxAttempts:   c.Retry.MaxAttempts,
			InitialDelay:  c.Retry.InitialDelay,
			BackoffFactor: c.Retry.BackoffFactor,
			JitterMin:     retry.DefaultJitterMin,
			JitterMax:     retry.DefaultJitterMax,
		},
		StateDir:         c.State.Dir,
		StateFormat:      c.State.Format,
		CacheBasename:    c.State.CacheFile,
		ProgressBasename: c.State.ProgressFile,
	}, nil
}

// Observability returns the telemetry and logging setup for this config.
func (c *Config) Observability(version string, mode observability.AppMode) (observability.Config, error) {
	level, err := c.LogLevel()
	if err != nil {
		return observability.Config{}, err
	}

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Mode = mode
	cfg.LogLevel = level
	cfg.LogJSON = c.Logging.Format == "json"
	cfg.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	cfg.OTLPInsecure = c.Telemetry.OTLPInsecure
	cfg.SampleRatio = c.Telemetry.SampleRatio
	cfg.MetricsFile = c.Telemetry.MetricsFile
	cfg.ShutdownTimeoutSec = DefaultShutdownTimeoutSec

	return cfg, nil
}
