package models

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// DefaultGeminiMessageURL is the base of the generateMessage endpoint.
const DefaultGeminiMessageURL = "https://gemini.googleapis.com/v1"

// GeminiMessageLLM calls {base}/models/{model}:generateMessage with a bearer
// credential.
type GeminiMessageLLM struct {
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	HTTPClient      *http.Client
}

type geminiMessageRequest struct {
	Prompt          string  `json:"prompt"`
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiMessageResponse struct {
	Candidates []struct {
		Content json.RawMessage `json:"content"`
	} `json:"candidates"`
}

func NewGeminiMessageLLM(s Settings) (*GeminiMessageLLM, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", ProviderGeminiMessage, ErrMissingAPIKey)
	}
	base := s.BaseURL
	if base == "" {
		base = DefaultGeminiMessageURL
	}
	return &GeminiMessageLLM{
		BaseURL:         strings.TrimRight(base, "/"),
		APIKey:          s.APIKey,
		Model:           s.Model,
		Temperature:     s.Temperature,
		MaxOutputTokens: s.MaxOutputTokens,
		HTTPClient:      s.HTTPClient,
	}, nil
}

func (g *GeminiMessageLLM) Generate(ctx context.Context, prompt string) (Response, error) {
	endpoint := fmt.Sprintf("%s/%s:generateMessage", g.BaseURL, modelPath(g.Model))
	header := http.Header{}
	header.Set("Authorization", "Bearer "+g.APIKey)

	var out geminiMessageResponse
	err := postJSON(ctx, g.HTTPClient, ProviderGeminiMessage, endpoint, header, geminiMessageRequest{
		Prompt:          prompt,
		Temperature:     g.Temperature,
		MaxOutputTokens: g.MaxOutputTokens,
	}, &out)
	if err != nil {
		return Response{}, err
	}
	if len(out.Candidates) == 0 {
		return Response{}, fmt.Errorf("%s: %w", ProviderGeminiMessage, ErrEmptyResponse)
	}

	text := contentText(out.Candidates[0].Content)
	if text == "" {
		return Response{}, fmt.Errorf("%s: %w", ProviderGeminiMessage, ErrEmptyResponse)
	}
	return Response{Text: text, Provider: ProviderGeminiMessage, Model: g.Model}, nil
}

// contentText accepts either a bare string or a {parts:[{text}]} object.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var c geminiContent
	if err := json.Unmarshal(raw, &c); err == nil {
		return c.text()
	}
	return ""
}

// modelPath renders a model id as "models/<id>" whether or not the caller
// already included the prefix.
func modelPath(model string) string {
	return "models/" + strings.TrimPrefix(model, "models/")
}
