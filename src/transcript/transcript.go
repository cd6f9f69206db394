// Package transcript records one entry per model dispatch so operators can
// review what was asked and answered. Persistence is optional; the default
// backend keeps nothing.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Record is a single dispatch outcome.
type Record struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Question       string    `json:"question"`
	AttachmentText string    `json:"attachment_text,omitempty"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	Outcome        string    `json:"outcome"`
	Answer         string    `json:"answer,omitempty"`
	Error          string    `json:"error,omitempty"`
	StatusCode     int       `json:"status_code,omitempty"`
	LatencyMS      int64     `json:"latency_ms"`
}

// Store persists records. Recent returns newest first.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close(ctx context.Context) error
}

// DefaultRecentLimit applies when callers pass a non-positive limit.
const DefaultRecentLimit = 20

// MaxRecentLimit caps a single Recent call.
const MaxRecentLimit = 500

var ErrUnknownBackend = errors.New("unknown transcript backend")

// Options selects and configures a backend.
type Options struct {
	Backend     string
	DSN         string
	Database    string
	Collection  string
	MemoryLimit int
}

// Open returns the Store for opts.Backend. "none" and "" yield a Store that
// discards everything.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "none":
		return NopStore{}, nil
	case "memory":
		return NewMemoryStore(opts.MemoryLimit), nil
	case "postgres":
		st, err := NewPostgresStore(ctx, opts.DSN)
		if err != nil {
			return nil, err
		}
		if err := st.CreateSchema(ctx); err != nil {
			st.Close(ctx)
			return nil, err
		}
		return st, nil
	case "mongo":
		return NewMongoStore(ctx, opts.DSN, opts.Database, opts.Collection)
	case "neo4j":
		return NewNeo4jStoreFromURI(ctx, opts.DSN, opts.Database)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, opts.Backend)
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return limit
	}
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Save(context.Context, Record) error { return nil }
func (NopStore) Recent(context.Context, int) ([]Record, error) { return nil, nil }
func (NopStore) Close(context.Context) error { return nil }
