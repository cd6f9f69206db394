package models

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultGeminiRESTURL is the public Generative Language API base.
const DefaultGeminiRESTURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiRESTLLM calls {base}/models/{model}:generateContent?key=<API_KEY>.
type GeminiRESTLLM struct {
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	SystemPrompt    string
	HTTPClient      *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

func (c geminiContent) text() string {
	var b strings.Builder
	for _, p := range c.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiContentRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContentResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func NewGeminiRESTLLM(s Settings) (*GeminiRESTLLM, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", ProviderGeminiREST, ErrMissingAPIKey)
	}
	base := s.BaseURL
	if base == "" {
		base = DefaultGeminiRESTURL
	}
	return &GeminiRESTLLM{
		BaseURL:         strings.TrimRight(base, "/"),
		APIKey:          s.APIKey,
		Model:           s.Model,
		Temperature:     s.Temperature,
		MaxOutputTokens: s.MaxOutputTokens,
		SystemPrompt:    s.SystemPrompt,
		HTTPClient:      s.HTTPClient,
	}, nil
}

func (g *GeminiRESTLLM) Generate(ctx context.Context, prompt string) (Response, error) {
	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s",
		g.BaseURL, modelPath(g.Model), url.QueryEscape(g.APIKey))

	req := geminiContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     g.Temperature,
			MaxOutputTokens: g.MaxOutputTokens,
		},
	}
	if sys := strings.TrimSpace(g.SystemPrompt); sys != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: sys}}}
	}

	var out geminiContentResponse
	if err := postJSON(ctx, g.HTTPClient, ProviderGeminiREST, endpoint, nil, req, &out); err != nil {
		return Response{}, err
	}
	if len(out.Candidates) == 0 {
		if reason := out.PromptFeedback.BlockReason; reason != "" {
			return Response{}, fmt.Errorf("%s: prompt blocked (%s): %w", ProviderGeminiREST, reason, ErrEmptyResponse)
		}
		return Response{}, fmt.Errorf("%s: %w", ProviderGeminiREST, ErrEmptyResponse)
	}

	text := out.Candidates[0].Content.text()
	if text == "" {
		return Response{}, fmt.Errorf("%s: %w", ProviderGeminiREST, ErrEmptyResponse)
	}
	return Response{Text: text, Provider: ProviderGeminiREST, Model: g.Model}, nil
}
