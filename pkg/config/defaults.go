package config

import (
	"github.com/Sumatoshi-tech/guidelint/pkg/analyzer"
	"github.com/Sumatoshi-tech/guidelint/pkg/checkpoint"
	"github.com/Sumatoshi-tech/guidelint/pkg/compliance"
	"github.com/Sumatoshi-tech/guidelint/pkg/lintcache"
	"github.com/Sumatoshi-tech/guidelint/pkg/persist"
	"github.com/Sumatoshi-tech/guidelint/pkg/retry"
)

// FileName is the config file base name searched in the project root.
const FileName = ".guidelint"

// EnvPrefix prefixes every environment override (GUIDELINT_BATCH_SIZE, ...).
const EnvPrefix = "GUIDELINT"

// Project defaults.
const (
	DefaultGuidelinesFile = compliance.DefaultGuidelinesFile
	DefaultBatchSize      = compliance.DefaultBatchSize
	DefaultMaxFileSize    = "1MB"
	DefaultSkipVendored   = true
)

// Analyzer defaults.
const (
	DefaultProvider          = string(analyzer.ProviderAnthropic)
	DefaultMaxTokens         = analyzer.DefaultMaxTokens
	DefaultRequestTimeout    = analyzer.DefaultTimeout
	DefaultRequestsPerMinute = 0
)

// Retry defaults.
const (
	DefaultRetryMaxAttempts   = retry.DefaultMaxAttempts
	DefaultRetryInitialDelay  = retry.DefaultInitialDelay
	DefaultRetryBackoffFactor = retry.DefaultBackoffFactor
)

// State defaults.
const (
	DefaultStateDir     = "."
	DefaultStateFormat  = persist.FormatJSON
	DefaultCacheFile    = lintcache.DefaultBasename
	DefaultProgressFile = checkpoint.DefaultBasename
)

// Logging and telemetry defaults.
const (
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultSampleRatio        = 1.0
	DefaultShutdownTimeoutSec = 5
)

// DefaultInclude matches common source files.
func DefaultInclude() []string {
	return []string{
		"**/*.go", "**/*.py", "**/*.js", "**/*.jsx", "**/*.ts", "**/*.tsx",
		"**/*.java", "**/*.kt", "**/*.rb", "**/*.rs", "**/*.c", "**/*.h",
		"**/*.cc", "**/*.cpp", "**/*.hpp", "**/*.cs", "**/*.php", "**/*.swift",
		"**/*.scala", "**/*.sh",
	}
}

// DefaultExclude skips dependency and build output directories.
func DefaultExclude() []string {
	return []string{"node_modules/**", "dist/**", "build/**", ".git/**", "vendor/**", ".venv/**"}
}
