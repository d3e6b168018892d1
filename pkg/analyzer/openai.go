package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyResponse is returned when a completion carries no choices.
var ErrEmptyResponse = errors.New("openai response has no choices")

// OpenAI calls an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI creates a client from cfg. BaseURL points it at a compatible
// endpoint such as a local gateway.
func NewOpenAI(cfg Config) *OpenAI {
	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" || model == DefaultModel {
		model = DefaultOpenAIModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Analyze implements Analyzer.
func (o *OpenAI) Analyze(ctx context.Context, req Request) (Response, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.Guidelines},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req.Guidelines, req.Files)},
		},
		MaxCompletionTokens: o.maxTokens,
	})
	if err != nil {
		return Response{}, o.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return Response{}, ErrEmptyResponse
	}

	usage := Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}

	if resp.Usage.PromptTokensDetails != nil {
		usage.CacheReadTokens = resp.Usage.PromptTokensDetails.CachedTokens
	}

	return Response{Text: resp.Choices[0].Message.Content, Usage: usage}, nil
}

func (o *OpenAI) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classify(&APIError{
			Provider:   ProviderOpenAI,
			StatusCode: apiErr.HTTPStatusCode,
			Type:       apiErr.Type,
			Message:    apiErr.Message,
		})
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classify(&APIError{
			Provider:   ProviderOpenAI,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
		})
	}

	return fmt.Errorf("openai request: %w", err)
}
