package analyzer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/guidelint/pkg/filereader"
	"github.com/Sumatoshi-tech/guidelint/pkg/retry"
)

var testRequest = Request{
	Guidelines: "Prefer composition.",
	Files:      []filereader.Document{{Path: "a.go", Content: "package a"}},
}

func TestAnthropic_Analyze(t *testing.T) {
	t.Parallel()

	var captured anthropicRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, validAnthropicKey, r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &captured))

		_, _ = io.WriteString(w, `{
			"content": [{"type": "text", "text": "{\"results\": []}"}],
			"usage": {"input_tokens": 120, "output_tokens": 30,
			          "cache_creation_input_tokens": 100, "cache_read_input_tokens": 7}
		}`)
	}))
	defer srv.Close()

	client := NewAnthropic(Config{APIKey: validAnthropicKey, BaseURL: srv.URL + "/"})

	resp, err := client.Analyze(context.Background(), testRequest)
	require.NoError(t, err)

	assert.JSONEq(t, `{"results": []}`, resp.Text)
	assert.Equal(t, Usage{InputTokens: 120, OutputTokens: 30, CacheCreationTokens: 100, CacheReadTokens: 7}, resp.Usage)

	assert.Equal(t, DefaultModel, captured.Model)
	assert.Equal(t, DefaultMaxTokens, captured.MaxTokens)
	require.Len(t, captured.System, 1)
	assert.Equal(t, "Prefer composition.", captured.System[0].Text)
	require.NotNil(t, captured.System[0].CacheControl)
	assert.Equal(t, "ephemeral", captured.System[0].CacheControl.Type)
	require.Len(t, captured.Messages, 1)
	assert.Contains(t, captured.Messages[0].Content, `<file path="a.go">`)
}

func TestAnthropic_ErrorClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		kind   retry.Kind
	}{
		{http.StatusBadRequest, retry.KindPermanent},
		{http.StatusUnauthorized, retry.KindPermanent},
		{http.StatusTooManyRequests, retry.KindRetryable},
		{http.StatusInternalServerError, retry.KindRetryable},
		{statusOverloaded, retry.KindRetryable},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, `{"type": "error", "error": {"type": "some_error", "message": "nope"}}`)
		}))

		_, err := NewAnthropic(Config{APIKey: validAnthropicKey, BaseURL: srv.URL}).Analyze(context.Background(), testRequest)

		srv.Close()

		require.Error(t, err)

		var apiErr *APIError

		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, tc.status, apiErr.StatusCode)
		assert.Equal(t, "some_error", apiErr.Type)
		assert.Equal(t, tc.kind, retry.KindOf(context.Background(), err), "status %d", tc.status)
	}
}

func TestAnthropic_NonJSONError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	}))
	defer srv.Close()

	_, err := NewAnthropic(Config{APIKey: validAnthropicKey, BaseURL: srv.URL}).Analyze(context.Background(), testRequest)

	var apiErr *APIError

	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "bad gateway")
}

func TestOpenAI_Analyze(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))

		var req map[string]any

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "c1", "object": "chat.completion", "model": "gpt-test",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"results\": []}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 50, "completion_tokens": 5, "total_tokens": 55,
			          "prompt_tokens_details": {"cached_tokens": 40}}
		}`)
	}))
	defer srv.Close()

	client := NewOpenAI(Config{APIKey: "sk-" + strings.Repeat("x", 30), BaseURL: srv.URL + "/v1", Model: "gpt-test"})

	resp, err := client.Analyze(context.Background(), testRequest)
	require.NoError(t, err)

	assert.JSONEq(t, `{"results": []}`, resp.Text)
	assert.Equal(t, Usage{InputTokens: 50, OutputTokens: 5, CacheReadTokens: 40}, resp.Usage)
}

func TestOpenAI_AuthErrorIsPermanent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": {"message": "bad key", "type": "invalid_request_error"}}`)
	}))
	defer srv.Close()

	client := NewOpenAI(Config{APIKey: "sk-" + strings.Repeat("x", 30), BaseURL: srv.URL})

	_, err := client.Analyze(context.Background(), testRequest)

	var apiErr *APIError

	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, retry.KindPermanent, retry.KindOf(context.Background(), err))
}

func TestNew_Factory(t *testing.T) {
	t.Parallel()

	a, err := New(Config{Provider: ProviderAnthropic, APIKey: validAnthropicKey})
	require.NoError(t, err)
	assert.IsType(t, &Anthropic{}, a)

	limited, err := New(Config{Provider: ProviderAnthropic, APIKey: validAnthropicKey, RequestsPerMinute: 30})
	require.NoError(t, err)
	assert.IsType(t, &RateLimited{}, limited)

	_, err = New(Config{Provider: ProviderAnthropic})
	require.ErrorIs(t, err, ErrMissingCredential)
}

func TestRateLimited_SpacesCalls(t *testing.T) {
	t.Parallel()

	calls := 0
	inner := Func(func(context.Context, Request) (Response, error) {
		calls++

		return Response{Text: "ok"}, nil
	})

	limited := NewRateLimited(inner, 1)

	_, err := limited.Analyze(context.Background(), testRequest)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = limited.Analyze(ctx, testRequest)

	require.Error(t, err, "second call must wait for the next minute")
	assert.Equal(t, 1, calls)
}

func TestNewRateLimited_Unlimited(t *testing.T) {
	t.Parallel()

	inner := Func(func(context.Context, Request) (Response, error) { return Response{}, nil })

	_, isLimited := NewRateLimited(inner, 0).(*RateLimited)

	assert.False(t, isLimited)
}

func TestUsage_Add(t *testing.T) {
	t.Parallel()

	sum := Usage{InputTokens: 1, OutputTokens: 2}.Add(Usage{InputTokens: 10, CacheReadTokens: 3, CacheCreationTokens: 4})

	assert.Equal(t, Usage{InputTokens: 11, OutputTokens: 2, CacheReadTokens: 3, CacheCreationTokens: 4}, sum)
}
