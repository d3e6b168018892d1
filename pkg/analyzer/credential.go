package analyzer

import (
	"errors"
	"fmt"
	"strings"
)

// Credential shape checks.
const (
	anthropicKeyPrefix    = "sk-ant-"
	minAnthropicKeyLength = 40
	minOpenAIKeyLength    = 20
)

// Credential errors.
var (
	ErrMissingCredential   = errors.New("API key is required")
	ErrMalformedCredential = errors.New("API key is malformed")
)

// ValidateCredential checks that key is present and shaped like a key for provider.
func ValidateCredential(provider Provider, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: set %s or api_key in the config file", ErrMissingCredential, EnvKeyFor(provider))
	}

	switch provider {
	case ProviderAnthropic:
		if !strings.HasPrefix(key, anthropicKeyPrefix) {
			return fmt.Errorf("%w: Anthropic keys start with %q", ErrMalformedCredential, anthropicKeyPrefix)
		}

		if len(key) < minAnthropicKeyLength {
			return fmt.Errorf("%w: key is %d characters, expected at least %d",
				ErrMalformedCredential, len(key), minAnthropicKeyLength)
		}
	case ProviderOpenAI:
		if len(key) < minOpenAIKeyLength {
			return fmt.Errorf("%w: key is %d characters, expected at least %d",
				ErrMalformedCredential, len(key), minOpenAIKeyLength)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	return nil
}

// EnvKeyFor names the conventional environment variable holding provider's key.
func EnvKeyFor(provider Provider) string {
	if provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}

	return "ANTHROPIC_API_KEY"
}
