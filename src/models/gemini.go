package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/option"
)

// ---------------------------- Google Gemini SDK ------------------------------

type GeminiLLM struct {
	Client          *genai.Client
	Model           string
	SystemPrompt    string
	Temperature     float32
	MaxOutputTokens int32
}

func NewGeminiLLM(ctx context.Context, s Settings) (*GeminiLLM, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", ProviderGemini, ErrMissingAPIKey)
	}
	opts := []option.ClientOption{option.WithAPIKey(s.APIKey)}
	if s.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(s.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &GeminiLLM{
		Client:          client,
		Model:           strings.TrimPrefix(s.Model, "models/"),
		SystemPrompt:    s.SystemPrompt,
		Temperature:     float32(s.Temperature),
		MaxOutputTokens: int32(s.MaxOutputTokens),
	}, nil
}

func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (Response, error) {
	model := g.Client.GenerativeModel(g.Model)
	model.SetTemperature(g.Temperature)
	if g.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(g.MaxOutputTokens)
	}
	if sys := strings.TrimSpace(g.SystemPrompt); sys != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(sys)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		var ae *apierror.APIError
		if errors.As(err, &ae) && ae.HTTPCode() > 0 {
			return Response{}, newStatusError(ProviderGemini, ae.HTTPCode(), ae.Error())
		}
		return Response{}, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, fmt.Errorf("%s: %w", ProviderGemini, ErrEmptyResponse)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return Response{}, fmt.Errorf("%s: %w", ProviderGemini, ErrEmptyResponse)
	}
	return Response{Text: b.String(), Provider: ProviderGemini, Model: g.Model}, nil
}

// Close releases the SDK's underlying connection.
func (g *GeminiLLM) Close() error {
	if g == nil || g.Client == nil {
		return nil
	}
	return g.Client.Close()
}
