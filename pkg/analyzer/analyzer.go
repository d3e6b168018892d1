// Package analyzer sends batches of files to an LLM service and turns its
// answers into per-file verdicts.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/guidelint/pkg/filereader"
)

// Provider names a supported analysis service.
type Provider string

// Supported providers.
const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// Defaults for analysis requests.
const (
	DefaultModel       = "claude-sonnet-4-5-20250929"
	DefaultOpenAIModel = "gpt-4o"
	DefaultMaxTokens   = 4096
	DefaultTimeout     = 120 * time.Second
)

// ErrUnknownProvider is returned for unsupported provider names.
var ErrUnknownProvider = errors.New("unknown provider")

// ParseProvider converts a provider name.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))

	switch p {
	case ProviderAnthropic, ProviderOpenAI:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

// Usage counts tokens consumed by a call.
type Usage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens"`
	CacheReadTokens     int `json:"cache_read_tokens"`
}

// Add returns the sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:         u.InputTokens + o.InputTokens,
		OutputTokens:        u.OutputTokens + o.OutputTokens,
		CacheCreationTokens: u.CacheCreationTokens + o.CacheCreationTokens,
		CacheReadTokens:     u.CacheReadTokens + o.CacheReadTokens,
	}
}

// Request is one batch to analyze.
type Request struct {
	Guidelines string
	Files      []filereader.Document
}

// Response carries the raw answer text and the usage of the call that produced it.
type Response struct {
	Text  string
	Usage Usage
}

// Analyzer performs one analysis call.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (Response, error)
}

// Func adapts a function to Analyzer.
type Func func(ctx context.Context, req Request) (Response, error)

// Analyze calls f.
func (f Func) Analyze(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Config selects and configures a provider client.
type Config struct {
	Provider          Provider
	APIKey            string
	Model             string
	BaseURL           string
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerMinute int
}

// New builds the client for cfg.Provider, wrapped in a rate limiter when
// RequestsPerMinute is positive.
func New(cfg Config) (Analyzer, error) {
	err := ValidateCredential(cfg.Provider, cfg.APIKey)
	if err != nil {
		return nil, err
	}

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var client Analyzer

	switch cfg.Provider {
	case ProviderAnthropic:
		client = NewAnthropic(cfg)
	case ProviderOpenAI:
		client = NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	return NewRateLimited(client, cfg.RequestsPerMinute), nil
}
