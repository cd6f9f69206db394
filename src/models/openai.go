package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type OpenAILLM struct {
	Client       *openai.Client
	Model        string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
}

func NewOpenAILLM(s Settings) (*OpenAILLM, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", ProviderOpenAI, ErrMissingAPIKey)
	}
	cfg := openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(s.BaseURL, "/")
	}
	if s.HTTPClient != nil {
		cfg.HTTPClient = s.HTTPClient
	}
	return &OpenAILLM{
		Client:       openai.NewClientWithConfig(cfg),
		Model:        s.Model,
		SystemPrompt: s.SystemPrompt,
		Temperature:  float32(s.Temperature),
		MaxTokens:    s.MaxOutputTokens,
	}, nil
}

func (o *OpenAILLM) Generate(ctx context.Context, prompt string) (Response, error) {
	var messages []openai.ChatCompletionMessage
	if sys := strings.TrimSpace(o.SystemPrompt); sys != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: sys,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := o.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.Model,
		Messages:    messages,
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
	})
	if err != nil {
		return Response{}, openAIError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return Response{}, fmt.Errorf("%s: %w", ProviderOpenAI, ErrEmptyResponse)
	}
	return Response{Text: resp.Choices[0].Message.Content, Provider: ProviderOpenAI, Model: o.Model}, nil
}

func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return newStatusError(ProviderOpenAI, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return newStatusError(ProviderOpenAI, reqErr.HTTPStatusCode, string(reqErr.Body))
	}
	return fmt.Errorf("%s chat completion: %w", ProviderOpenAI, err)
}
