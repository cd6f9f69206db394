package models

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/Protocol-Lattice/go-support-desk/src/cache"
)

// CachedLLM wraps an LLM and serves repeated prompts from an LRU cache.
// Failures are never cached.
type CachedLLM struct {
	LLM       LLM
	Cache     *cache.LRUCache[Response]
	FilePath  string
	Namespace string

	saveMu sync.Mutex
}

// NewCachedLLM creates the wrapper. namespace keeps entries from different
// provider/model pairs apart when they share a persisted file.
func NewCachedLLM(llm LLM, size int, ttl time.Duration, filePath, namespace string) *CachedLLM {
	c := &CachedLLM{
		LLM:       llm,
		Cache:     cache.NewLRUCache[Response](size, ttl),
		FilePath:  filePath,
		Namespace: namespace,
	}
	if filePath != "" {
		c.load()
	}
	return c
}

func (c *CachedLLM) key(prompt string) string {
	return cache.HashKey(c.Namespace + "\x00" + prompt)
}

func (c *CachedLLM) load() {
	f, err := os.Open(c.FilePath)
	if err != nil {
		return // missing file means a cold cache
	}
	defer f.Close()

	var dump map[string]cache.Entry[Response]
	if err := json.NewDecoder(f).Decode(&dump); err == nil {
		c.Cache.Restore(dump)
	}
}

// Flush writes the cache to FilePath via a temp file and rename.
func (c *CachedLLM) Flush() error {
	if c.FilePath == "" {
		return nil
	}
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	tmp := c.FilePath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(c.Cache.Dump()); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, c.FilePath)
}

// Generate checks the cache before calling the wrapped LLM.
func (c *CachedLLM) Generate(ctx context.Context, prompt string) (Response, error) {
	key := c.key(prompt)
	if resp, ok := c.Cache.Get(key); ok {
		resp.Cached = true
		return resp, nil
	}

	resp, err := c.LLM.Generate(ctx, prompt)
	if err != nil {
		return Response{}, err
	}

	c.Cache.Set(key, resp)
	_ = c.Flush()
	return resp, nil
}

// Close flushes the cache and closes the wrapped LLM when it holds resources.
func (c *CachedLLM) Close() error {
	err := c.Flush()
	if closer, ok := c.LLM.(interface{ Close() error }); ok {
		err = errors.Join(err, closer.Close())
	}
	return err
}
