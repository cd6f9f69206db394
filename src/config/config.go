// Package config loads the service configuration from a TOML file, an
// optional .env file and SUPPORT_DESK_* environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/Protocol-Lattice/go-support-desk/src/models"
	"github.com/Protocol-Lattice/go-support-desk/src/ocr"
	"github.com/Protocol-Lattice/go-support-desk/src/prompt"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "SUPPORT_DESK_"

type Config struct {
	Server      ServerConfig      `toml:"server"`
	LLM         LLMConfig         `toml:"llm"`
	Prompt      PromptConfig      `toml:"prompt"`
	Attachments AttachmentsConfig `toml:"attachments"`
	Cache       CacheConfig       `toml:"cache"`
	Transcript  TranscriptConfig  `toml:"transcript"`
	Log         LogConfig         `toml:"log"`
	Secrets     SecretsConfig     `toml:"secrets"`
}

type ServerConfig struct {
	Addr        string        `toml:"addr"`
	CORSOrigins []string      `toml:"cors_origins"`
	APIKeyRefs  []string      `toml:"api_key_refs"`
	ReadTimeout time.Duration `toml:"read_timeout"`
	// ShutdownTimeout bounds graceful shutdown after SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

type LLMConfig struct {
	Provider        string  `toml:"provider"`
	Model           string  `toml:"model"`
	BaseURL         string  `toml:"base_url"`
	APIKeyRef       string  `toml:"api_key_ref"`
	Temperature     float64 `toml:"temperature"`
	MaxOutputTokens int     `toml:"max_output_tokens"`
	SystemPrompt    string  `toml:"system_prompt"`
	// Timeout bounds a single dispatch; zero waits as long as the caller does.
	Timeout     time.Duration `toml:"timeout"`
	MaxInFlight int           `toml:"max_in_flight"`
}

type PromptConfig struct {
	// Template overrides the built-in IT support preamble when set.
	Template string `toml:"template"`
}

type AttachmentsConfig struct {
	MaxBytes int64 `toml:"max_bytes"`
}

type CacheConfig struct {
	Enabled bool          `toml:"enabled"`
	Size    int           `toml:"size"`
	TTL     time.Duration `toml:"ttl"`
	Path    string        `toml:"path"`
}

type TranscriptConfig struct {
	Backend    string `toml:"backend"`
	DSNRef     string `toml:"dsn_ref"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
	Redact     bool   `toml:"redact"`
	// MemoryLimit caps the in-memory backend; older records are dropped.
	MemoryLimit int `toml:"memory_limit"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type SecretsConfig struct {
	File string `toml:"file"`
	GCP  bool   `toml:"gcp"`
}

// Transcript backends.
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendNeo4j    = "neo4j"
)

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			Provider:        models.ProviderGeminiMessage,
			Temperature:     models.DefaultTemperature,
			MaxOutputTokens: models.DefaultMaxOutputTokens,
			MaxInFlight:     10,
		},
		Attachments: AttachmentsConfig{MaxBytes: ocr.DefaultMaxBytes},
		Cache: CacheConfig{
			Size: 1000,
			TTL:  10 * time.Minute,
		},
		Transcript: TranscriptConfig{
			Backend:     BackendNone,
			Database:    "support_desk",
			Collection:  "transcripts",
			Redact:      true,
			MemoryLimit: 1000,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration. An empty path skips the file; a missing
// .env is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg, so unset keys keep their current values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnvOverrides applies SUPPORT_DESK_* variables on top of cfg.
func (c *Config) ApplyEnvOverrides() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("ADDR", &c.Server.Addr)
	str("PROVIDER", &c.LLM.Provider)
	str("MODEL", &c.LLM.Model)
	str("BASE_URL", &c.LLM.BaseURL)
	str("API_KEY_REF", &c.LLM.APIKeyRef)
	str("TRANSCRIPT_BACKEND", &c.Transcript.Backend)
	str("TRANSCRIPT_DSN_REF", &c.Transcript.DSNRef)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("SECRETS_FILE", &c.Secrets.File)

	var errs []error
	if v := os.Getenv(EnvPrefix + "TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err))
		} else {
			c.LLM.Timeout = d
		}
	}
	if v := os.Getenv(EnvPrefix + "MAX_IN_FLIGHT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_IN_FLIGHT: %w", EnvPrefix, err))
		} else {
			c.LLM.MaxInFlight = n
		}
	}
	if v := os.Getenv(EnvPrefix + "CACHE_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCACHE_ENABLED: %w", EnvPrefix, err))
		} else {
			c.Cache.Enabled = b
		}
	}
	if v := os.Getenv(EnvPrefix + "API_KEY_REFS"); v != "" {
		c.Server.APIKeyRefs = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	return errors.Join(errs...)
}

// ValidationError names the offending key.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every problem found by Validate.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Server.Addr == "" {
		add("server.addr", "must not be empty")
	}
	if _, ok := models.CanonicalProvider(c.LLM.Provider); !ok {
		add("llm.provider", "unknown provider %q", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		add("llm.temperature", "must be between 0 and 2, got %v", c.LLM.Temperature)
	}
	if c.LLM.MaxOutputTokens < 0 {
		add("llm.max_output_tokens", "must not be negative")
	}
	if c.LLM.Timeout < 0 {
		add("llm.timeout", "must not be negative")
	}
	if c.LLM.MaxInFlight < 0 {
		add("llm.max_in_flight", "must not be negative")
	}
	if c.Prompt.Template != "" {
		if _, err := prompt.New(c.Prompt.Template); err != nil {
			add("prompt.template", "%v", err)
		}
	}
	if c.Attachments.MaxBytes <= 0 {
		add("attachments.max_bytes", "must be positive")
	}
	if c.Cache.Enabled && c.Cache.Size <= 0 {
		add("cache.size", "must be positive when the cache is enabled")
	}
	if c.Cache.TTL < 0 {
		add("cache.ttl", "must not be negative")
	}
	switch strings.ToLower(c.Transcript.Backend) {
	case "", BackendNone, BackendMemory:
	case BackendPostgres, BackendMongo, BackendNeo4j:
		if c.Transcript.DSNRef == "" {
			add("transcript.dsn_ref", "required for backend %q", c.Transcript.Backend)
		}
	default:
		add("transcript.backend", "invalid backend %q, must be one of: none, memory, postgres, mongo, neo4j", c.Transcript.Backend)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		add("log.format", "invalid format %q, must be json or console", c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Template returns the configured prompt template or the default preamble.
func (c *Config) Template() (*prompt.Template, error) {
	if c.Prompt.Template == "" {
		return prompt.Default(), nil
	}
	return prompt.New(c.Prompt.Template)
}

// Settings converts the [llm] section into adapter settings. apiKey is the
// already-resolved credential.
func (c *Config) Settings(apiKey string) models.Settings {
	return models.Settings{
		Provider:        c.LLM.Provider,
		Model:           c.LLM.Model,
		BaseURL:         c.LLM.BaseURL,
		APIKey:          apiKey,
		Temperature:     c.LLM.Temperature,
		MaxOutputTokens: c.LLM.MaxOutputTokens,
		SystemPrompt:    c.LLM.SystemPrompt,
	}
}

// KeyRefs lists the secret references tried for the provider credential:
// the configured one, else the provider's conventional variables.
func (c *Config) KeyRefs() []string {
	if c.LLM.APIKeyRef != "" {
		return []string{c.LLM.APIKeyRef}
	}
	provider, _ := models.CanonicalProvider(c.LLM.Provider)
	return models.DefaultKeyEnv(provider)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
