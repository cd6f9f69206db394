package models

import (
	"context"
	"net/http"
)

// LLM turns a fully rendered prompt into the model's completion text.
type LLM interface {
	Generate(context.Context, string) (Response, error)
}

// Response is a successful completion.
type Response struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	// Cached is set when the text came from a CachedLLM instead of the provider.
	Cached bool `json:"cached,omitempty"`
}

// Settings carries everything a provider constructor needs. APIKey is the
// already-resolved credential; it must never be a literal in source.
type Settings struct {
	Provider        string
	Model           string
	BaseURL         string
	APIKey          string
	Temperature     float64
	MaxOutputTokens int
	SystemPrompt    string
	HTTPClient      *http.Client
}
