package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialRoundTrip(t *testing.T) {
	cfg := &Config{path: filepath.Join(t.TempDir(), "config.json")}

	require.NoError(t, cfg.SaveCredentials("alice123", "4521"))
	require.NotNil(t, cfg.CachedCredentials)
	assert.NotEqual(t, "alice123", cfg.CachedCredentials.UsernameEncrypted)
	assert.NotEqual(t, "4521", cfg.CachedCredentials.PinEncrypted)

	creds, ok := cfg.GetCredentials()
	require.True(t, ok)
	assert.Equal(t, "alice123", creds.Username)
	assert.Equal(t, "4521", creds.Pin)
}

func TestCredentialRoundTripAfterReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := &Config{path: path}
	require.NoError(t, cfg.SaveCredentials("bob", "9999"))

	reloaded, ok, err := tryLoad(path)
	require.NoError(t, err)
	require.True(t, ok)

	creds, ok := reloaded.GetCredentials()
	require.True(t, ok)
	assert.Equal(t, "bob", creds.Username)
	assert.Equal(t, "9999", creds.Pin)
}

func TestGetCredentialsWithoutCache(t *testing.T) {
	cfg := &Config{}
	_, ok := cfg.GetCredentials()
	assert.False(t, ok)
}

func TestClearCredentials(t *testing.T) {
	cfg := &Config{path: filepath.Join(t.TempDir(), "config.json")}
	require.NoError(t, cfg.SaveCredentials("alice", "1234"))
	require.NoError(t, cfg.ClearCredentials())

	_, ok := cfg.GetCredentials()
	assert.False(t, ok)
}

func TestResolveCredentialsPrefersCache(t *testing.T) {
	t.Setenv("POLIFORMAT_USER", "env-user")
	t.Setenv("POLIFORMAT_PIN", "env-pin")

	cfg := &Config{path: filepath.Join(t.TempDir(), "config.json")}
	require.NoError(t, cfg.SaveCredentials("cached-user", "cached-pin"))

	creds, source := cfg.ResolveCredentials()
	assert.Equal(t, CredentialSourceCache, source)
	assert.Equal(t, "cached-user", creds.Username)
}

func TestResolveCredentialsFallsBackToEnv(t *testing.T) {
	t.Setenv("POLIFORMAT_DNI", "12345678A")
	t.Setenv("POLIFORMAT_PASSWORD", "hunter2")

	cfg := &Config{}
	creds, source := cfg.ResolveCredentials()
	assert.Equal(t, CredentialSourceEnv, source)
	assert.Equal(t, "12345678A", creds.Username)
	assert.Equal(t, "hunter2", creds.Pin)
}

func TestResolveCredentialsNone(t *testing.T) {
	cfg := &Config{}
	_, source := cfg.ResolveCredentials()
	assert.Equal(t, CredentialSourceNone, source)
}

func TestLoadMissingConfigReturnsEmpty(t *testing.T) {
	_, ok, err := tryLoad(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveAndLoadModel(t *testing.T) {
	cfg := &Config{path: filepath.Join(t.TempDir(), "config.json")}
	require.NoError(t, cfg.SaveModel("qwen2.5-7b-instruct"))

	reloaded, ok, err := tryLoad(cfg.path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "qwen2.5-7b-instruct", reloaded.GetLastModel())
}

func TestSaveProviderConfig(t *testing.T) {
	cfg := &Config{path: filepath.Join(t.TempDir(), "config.json")}
	key := "sk-or-v1-test"
	model := "anthropic/claude-3-haiku"
	require.NoError(t, cfg.SaveProviderConfig(LlmProviderOpenRouter, &key, &model))

	assert.Equal(t, LlmProviderOpenRouter, cfg.LlmProvider)
	assert.Equal(t, key, cfg.OpenRouterAPIKey)
	assert.Equal(t, model, cfg.OpenRouterModel)
}

func TestLlmProviderBaseURL(t *testing.T) {
	assert.Equal(t, "https://openrouter.ai/api/v1", LlmProviderOpenRouter.BaseURL())
	assert.Equal(t, "http://localhost:1234/v1", LlmProviderLmStudio.BaseURL())
}
