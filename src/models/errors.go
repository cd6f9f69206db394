package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyResponse means the provider answered 2xx but produced no text.
	ErrEmptyResponse = errors.New("model returned no text")
	// ErrMissingAPIKey means a provider that needs a credential got none.
	ErrMissingAPIKey = errors.New("missing API key")
)

// StatusError is a non-2xx answer from a provider. Callers branch on it with
// errors.As instead of inspecting response text.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Error %d: %s", e.StatusCode, e.Body)
}

func newStatusError(provider string, code int, body string) *StatusError {
	return &StatusError{Provider: provider, StatusCode: code, Body: strings.TrimSpace(body)}
}

// AsStatusError unwraps err into a *StatusError if it carries one.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
