// Package secrets resolves credential references such as "env:GEMINI_API_KEY"
// into their values at startup. Keys are never stored in source or config
// files; config holds only the reference.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a reference resolves to nothing.
var ErrNotFound = errors.New("secret not found")

// Scheme prefixes understood by the Resolver.
const (
	SchemeEnv  = "env"
	SchemeFile = "file"
	SchemeGCP  = "gcp"
)

// Source looks up a secret by the part of the reference after the scheme.
type Source interface {
	Lookup(ctx context.Context, name string) (string, error)
}

// Resolver dispatches references to the Source registered for their scheme.
// A reference without a scheme is treated as an environment variable name.
type Resolver struct {
	sources map[string]Source
}

func NewResolver() *Resolver {
	return &Resolver{sources: map[string]Source{SchemeEnv: EnvSource{}}}
}

// Register installs src for scheme, replacing any previous source.
func (r *Resolver) Register(scheme string, src Source) {
	r.sources[strings.ToLower(scheme)] = src
}

// Resolve returns the secret value for ref. Values are trimmed; a blank value
// counts as missing.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	scheme, name := Split(ref)
	if name == "" {
		return "", fmt.Errorf("empty secret reference: %w", ErrNotFound)
	}
	src, ok := r.sources[scheme]
	if !ok {
		return "", fmt.Errorf("secret scheme %q is not configured", scheme)
	}
	val, err := src.Lookup(ctx, name)
	if err != nil {
		return "", fmt.Errorf("resolve %s:%s: %w", scheme, name, err)
	}
	val = strings.TrimSpace(val)
	if val == "" {
		return "", fmt.Errorf("resolve %s:%s: %w", scheme, name, ErrNotFound)
	}
	return val, nil
}

// ResolveFirst tries refs in order and returns the first that resolves.
func (r *Resolver) ResolveFirst(ctx context.Context, refs ...string) (string, error) {
	var errs []error
	for _, ref := range refs {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		val, err := r.Resolve(ctx, ref)
		if err == nil {
			return val, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", ErrNotFound
	}
	return "", errors.Join(errs...)
}

// Split separates "scheme:name". Unknown prefixes are kept as part of the
// name so that e.g. "gcp:projects/p/secrets/s" and a bare "OPENAI_API_KEY"
// both work.
func Split(ref string) (scheme, name string) {
	ref = strings.TrimSpace(ref)
	if i := strings.Index(ref, ":"); i > 0 {
		switch s := strings.ToLower(ref[:i]); s {
		case SchemeEnv, SchemeFile, SchemeGCP:
			return s, strings.TrimSpace(ref[i+1:])
		}
	}
	return SchemeEnv, ref
}
