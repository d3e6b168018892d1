package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicAPIVersion = "2023-06-01"
	anthropicBaseURL    = "https://api.anthropic.com"
	anthropicMessages   = "/v1/messages"
	maxErrorBody        = 4096
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    []systemBlock      `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type systemBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Usage   anthropicUsage     `json:"usage"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Anthropic calls the Messages API directly. The guidelines go in a cached
// system block so consecutive batches reuse them.
type Anthropic struct {
	apiKey     string
	model      string
	maxTokens  int
	endpoint   string
	httpClient *http.Client
}

// NewAnthropic creates a client from cfg.
func NewAnthropic(cfg Config) *Anthropic {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = anthropicBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Anthropic{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      model,
		maxTokens:  maxTokens,
		endpoint:   base + anthropicMessages,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Analyze implements Analyzer.
func (a *Anthropic) Analyze(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System: []systemBlock{{
			Type:         "text",
			Text:         req.Guidelines,
			CacheControl: &cacheControl{Type: "ephemeral"},
		}},
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: BuildPrompt(req.Guidelines, req.Files),
		}},
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var decoded anthropicResponse

	unmarshalErr := json.Unmarshal(respBody, &decoded)

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode}

		if unmarshalErr == nil && decoded.Error != nil {
			apiErr.Type = decoded.Error.Type
			apiErr.Message = decoded.Error.Message
		} else {
			apiErr.Message = truncate(string(respBody), maxErrorBody)
		}

		return Response{}, classify(apiErr)
	}

	if unmarshalErr != nil {
		return Response{}, fmt.Errorf("decode response: %w", unmarshalErr)
	}

	var text strings.Builder

	for _, c := range decoded.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}

	return Response{
		Text: text.String(),
		Usage: Usage{
			InputTokens:         decoded.Usage.InputTokens,
			OutputTokens:        decoded.Usage.OutputTokens,
			CacheCreationTokens: decoded.Usage.CacheCreationInputTokens,
			CacheReadTokens:     decoded.Usage.CacheReadInputTokens,
		},
	}, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit] + "..."
}
