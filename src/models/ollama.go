package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"
)

// DefaultOllamaHost is used when no base URL is configured.
const DefaultOllamaHost = "http://localhost:11434"

type OllamaLLM struct {
	Client          *ollama.Client
	Model           string
	SystemPrompt    string
	Temperature     float64
	MaxOutputTokens int
}

func NewOllamaLLM(s Settings) (*OllamaLLM, error) {
	host := s.BaseURL
	if host == "" {
		host = DefaultOllamaHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	hc := s.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &OllamaLLM{
		Client:          ollama.NewClient(u, hc),
		Model:           s.Model,
		SystemPrompt:    s.SystemPrompt,
		Temperature:     s.Temperature,
		MaxOutputTokens: s.MaxOutputTokens,
	}, nil
}

func (o *OllamaLLM) Generate(ctx context.Context, prompt string) (Response, error) {
	stream := false
	req := &ollama.GenerateRequest{
		Model:  o.Model,
		Prompt: prompt,
		System: o.SystemPrompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature": o.Temperature,
		},
	}
	if o.MaxOutputTokens > 0 {
		req.Options["num_predict"] = o.MaxOutputTokens
	}

	var text strings.Builder
	err := o.Client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	})
	if err != nil {
		var se ollama.StatusError
		if errors.As(err, &se) {
			body := se.ErrorMessage
			if body == "" {
				body = se.Status
			}
			return Response{}, newStatusError(ProviderOllama, se.StatusCode, body)
		}
		return Response{}, fmt.Errorf("%s generate: %w", ProviderOllama, err)
	}
	if text.Len() == 0 {
		return Response{}, fmt.Errorf("%s: %w", ProviderOllama, ErrEmptyResponse)
	}
	return Response{Text: text.String(), Provider: ProviderOllama, Model: o.Model}, nil
}
