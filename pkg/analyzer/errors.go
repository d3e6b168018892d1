package analyzer

import (
	"fmt"
	"net/http"

	"github.com/Sumatoshi-tech/guidelint/pkg/retry"
)

// statusOverloaded is Anthropic's "overloaded" status.
const statusOverloaded = 529

// APIError is a non-success answer from a provider.
type APIError struct {
	Provider   Provider
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s API error %d (%s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}

	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Temporary reports whether repeating the request may succeed.
func (e *APIError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == statusOverloaded,
		e.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// classify tags non-temporary API errors as permanent for the retry executor.
func classify(e *APIError) error {
	if e.Temporary() {
		return e
	}

	return retry.Permanent(e)
}
