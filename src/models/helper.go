package models

import (
	"context"
	"fmt"
	"strings"
)

const (
	ProviderGeminiMessage = "gemini-message"
	ProviderGeminiREST    = "gemini-rest"
	ProviderGemini        = "gemini"
	ProviderOpenAI        = "openai"
	ProviderAnthropic     = "anthropic"
	ProviderOllama        = "ollama"
	ProviderDummy         = "dummy"
)

// Generation defaults carried over from the original support tool.
const (
	DefaultTemperature     = 0.7
	DefaultMaxOutputTokens = 500
)

var providerAliases = map[string]string{
	ProviderGeminiMessage: ProviderGeminiMessage,
	"generate-message":    ProviderGeminiMessage,
	"palm":                ProviderGeminiMessage,
	ProviderGeminiREST:    ProviderGeminiREST,
	"generate-content":    ProviderGeminiREST,
	ProviderGemini:        ProviderGemini,
	"google":              ProviderGemini,
	ProviderOpenAI:        ProviderOpenAI,
	ProviderAnthropic:     ProviderAnthropic,
	"claude":              ProviderAnthropic,
	ProviderOllama:        ProviderOllama,
	ProviderDummy:         ProviderDummy,
}

var defaultModels = map[string]string{
	ProviderGeminiMessage: "gemini-2.5-pro",
	ProviderGeminiREST:    "gemini-2.5-pro",
	ProviderGemini:        "gemini-2.5-pro",
	ProviderOpenAI:        "gpt-4o-mini",
	ProviderAnthropic:     "claude-3-5-haiku-latest",
	ProviderOllama:        "llama3.2",
	ProviderDummy:         ProviderDummy,
}

// Environment variables consulted, in order, when no key reference is configured.
var defaultKeyEnv = map[string][]string{
	ProviderGeminiMessage: {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	ProviderGeminiREST:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	ProviderGemini:        {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	ProviderOpenAI:        {"OPENAI_API_KEY", "OPENAI_KEY"},
	ProviderAnthropic:     {"ANTHROPIC_API_KEY"},
}

// CanonicalProvider maps a configured name or alias to its provider key.
func CanonicalProvider(name string) (string, bool) {
	p, ok := providerAliases[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string { return defaultModels[provider] }

// DefaultKeyEnv lists the environment variables holding the provider's key.
func DefaultKeyEnv(provider string) []string { return defaultKeyEnv[provider] }

// RequiresAPIKey reports whether the provider authenticates with a key.
func RequiresAPIKey(provider string) bool { return len(defaultKeyEnv[provider]) > 0 }

// NewLLMProvider returns the adapter selected by s.Provider.
func NewLLMProvider(ctx context.Context, s Settings) (LLM, error) {
	provider, ok := CanonicalProvider(s.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", s.Provider)
	}
	s.Provider = provider
	if strings.TrimSpace(s.Model) == "" {
		s.Model = DefaultModel(provider)
	}
	if s.MaxOutputTokens == 0 {
		s.MaxOutputTokens = DefaultMaxOutputTokens
	}

	switch provider {
	case ProviderGeminiMessage:
		return NewGeminiMessageLLM(s)
	case ProviderGeminiREST:
		return NewGeminiRESTLLM(s)
	case ProviderGemini:
		return NewGeminiLLM(ctx, s)
	case ProviderOpenAI:
		return NewOpenAILLM(s)
	case ProviderAnthropic:
		return NewAnthropicLLM(s)
	case ProviderOllama:
		return NewOllamaLLM(s)
	default:
		return NewDummyLLM(""), nil
	}
}
