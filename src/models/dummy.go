package models

import (
	"context"
	"fmt"
	"strings"
)

// DummyLLM answers locally without any API call; useful for demos and tests.
type DummyLLM struct {
	Prefix string
}

func NewDummyLLM(prefix string) *DummyLLM {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Dummy response:"
	}
	return &DummyLLM{Prefix: prefix}
}

// Generate echoes the last non-empty line of the prompt.
func (d *DummyLLM) Generate(_ context.Context, prompt string) (Response, error) {
	last := lastNonEmptyLine(prompt)
	if last == "" {
		last = "<empty prompt>"
	}
	return Response{
		Text:     fmt.Sprintf("%s %s", d.Prefix, last),
		Provider: ProviderDummy,
		Model:    ProviderDummy,
	}, nil
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if candidate := strings.TrimSpace(lines[i]); candidate != "" {
			return candidate
		}
	}
	return ""
}

var _ LLM = (*DummyLLM)(nil)
