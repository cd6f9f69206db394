package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// EnvSource reads process environment variables.
type EnvSource struct{}

func (EnvSource) Lookup(_ context.Context, name string) (string, error) {
	val, ok := os.LookupEnv(name)
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

// FileSource serves secrets from a TOML file kept outside the repository.
// Dotted names address nested tables: "gemini.api_key" reads
//
//	[gemini]
//	api_key = "..."
type FileSource struct {
	values map[string]any
}

// LoadFileSource parses path once; the file is not watched.
func LoadFileSource(path string) (*FileSource, error) {
	values := map[string]any{}
	if _, err := toml.DecodeFile(path, &values); err != nil {
		return nil, fmt.Errorf("failed to decode secrets file: %w", err)
	}
	return &FileSource{values: values}, nil
}

func (f *FileSource) Lookup(_ context.Context, name string) (string, error) {
	var cur any = f.values
	for _, part := range strings.Split(name, ".") {
		table, ok := cur.(map[string]any)
		if !ok {
			return "", ErrNotFound
		}
		if cur, ok = table[part]; !ok {
			return "", ErrNotFound
		}
	}
	s, ok := cur.(string)
	if !ok {
		return "", fmt.Errorf("secret %q is not a string", name)
	}
	return s, nil
}
