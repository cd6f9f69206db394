package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicLLM implements LLM using Anthropic's Messages API.
type AnthropicLLM struct {
	Client       *anthropic.Client
	Model        string
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
}

// NewAnthropicLLM builds a client with SDK retries switched off; each
// submission reaches the provider at most once.
func NewAnthropicLLM(s Settings) (*AnthropicLLM, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", ProviderAnthropic, ErrMissingAPIKey)
	}
	opts := []anthropicopt.RequestOption{
		anthropicopt.WithAPIKey(s.APIKey),
		anthropicopt.WithMaxRetries(0),
	}
	if s.BaseURL != "" {
		opts = append(opts, anthropicopt.WithBaseURL(s.BaseURL))
	}
	if s.HTTPClient != nil {
		opts = append(opts, anthropicopt.WithHTTPClient(s.HTTPClient))
	}
	cl := anthropic.NewClient(opts...)

	maxTokens := s.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}
	return &AnthropicLLM{
		Client:       &cl,
		Model:        s.Model,
		MaxTokens:    maxTokens,
		Temperature:  s.Temperature,
		SystemPrompt: s.SystemPrompt,
	}, nil
}

// Generate performs a single-turn completion and returns the concatenated text blocks.
func (a *AnthropicLLM) Generate(ctx context.Context, prompt string) (Response, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.Model),
		MaxTokens:   int64(a.MaxTokens),
		Temperature: anthropic.Float(a.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if sys := strings.TrimSpace(a.SystemPrompt); sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}

	msg, err := a.Client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			body := apiErr.RawJSON()
			if body == "" {
				body = apiErr.Error()
			}
			return Response{}, newStatusError(ProviderAnthropic, apiErr.StatusCode, body)
		}
		return Response{}, fmt.Errorf("%s messages: %w", ProviderAnthropic, err)
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	if b.Len() == 0 {
		return Response{}, fmt.Errorf("%s: %w", ProviderAnthropic, ErrEmptyResponse)
	}
	return Response{Text: b.String(), Provider: ProviderAnthropic, Model: a.Model}, nil
}
