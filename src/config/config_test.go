package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "support-desk.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gemini-message", cfg.LLM.Provider)
	assert.Equal(t, 0.7, cfg.LLM.Temperature)
	assert.Equal(t, 500, cfg.LLM.MaxOutputTokens)
	assert.Equal(t, BackendNone, cfg.Transcript.Backend)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = "127.0.0.1:9000"
cors_origins = ["http://localhost:5173"]

[llm]
provider = "gemini-rest"
model = "gemini-2.5-flash"
api_key_ref = "file:gemini.api_key"
timeout = "45s"

[cache]
enabled = true
ttl = "1h"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "gemini-rest", cfg.LLM.Provider)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 1000, cfg.Cache.Size, "unset keys keep defaults")
	assert.Equal(t, []string{"file:gemini.api_key"}, cfg.KeyRefs())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "[llm]\napi_key = \"literal-key\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.api_key")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SUPPORT_DESK_PROVIDER", "openai")
	t.Setenv("SUPPORT_DESK_TIMEOUT", "2s")
	t.Setenv("SUPPORT_DESK_CACHE_ENABLED", "true")
	t.Setenv("SUPPORT_DESK_API_KEY_REFS", "env:DESK_KEY_A, env:DESK_KEY_B")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 2*time.Second, cfg.LLM.Timeout)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, []string{"env:DESK_KEY_A", "env:DESK_KEY_B"}, cfg.Server.APIKeyRefs)
	assert.Equal(t, []string{"OPENAI_API_KEY", "OPENAI_KEY"}, cfg.KeyRefs())
}

func TestEnvOverrideParseErrors(t *testing.T) {
	t.Setenv("SUPPORT_DESK_MAX_IN_FLIGHT", "lots")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPPORT_DESK_MAX_IN_FLIGHT")
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = "bard"
	cfg.LLM.Temperature = 3
	cfg.Prompt.Template = "no slots here"
	cfg.Transcript.Backend = "postgres"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := map[string]bool{}
	for _, e := range verrs {
		fields[e.Field] = true
	}
	for _, f := range []string{"llm.provider", "llm.temperature", "prompt.template", "transcript.dsn_ref", "log.format"} {
		assert.True(t, fields[f], "expected a validation error for %s", f)
	}
}

func TestTemplateFallsBackToDefault(t *testing.T) {
	cfg := Default()
	tmpl, err := cfg.Template()
	require.NoError(t, err)
	assert.Contains(t, tmpl.Fill("printer won't turn on", ""), "User's question: printer won't turn on")

	cfg.Prompt.Template = "Q: {question} / {attachment_text}"
	tmpl, err = cfg.Template()
	require.NoError(t, err)
	assert.Equal(t, "Q: hi / img", tmpl.Fill("hi", "img"))
}

func TestSettingsCarriesResolvedKey(t *testing.T) {
	cfg := Default()
	cfg.LLM.Model = "models/gemini-2.5-pro"
	s := cfg.Settings("resolved")
	assert.Equal(t, "resolved", s.APIKey)
	assert.Equal(t, "models/gemini-2.5-pro", s.Model)
	assert.Equal(t, 500, s.MaxOutputTokens)
}
