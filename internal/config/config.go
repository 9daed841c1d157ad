// Package config loads and persists polirag's per-user configuration file,
// including the XOR-over-base64 obfuscated credential cache described in
// spec.md §6. This is obfuscation, not cryptography; the threat model
// excludes local adversaries.
package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LlmProvider identifies which OpenAI-compatible backend the LLM Client
// talks to.
type LlmProvider string

const (
	// LlmProviderLmStudio is the default: a local LM Studio server.
	LlmProviderLmStudio LlmProvider = "LmStudio"
	// LlmProviderOpenRouter routes through OpenRouter, which requires an
	// API key and sends extra identifying headers.
	LlmProviderOpenRouter LlmProvider = "OpenRouter"
)

// BaseURL returns the default API base URL for the provider.
func (p LlmProvider) BaseURL() string {
	switch p {
	case LlmProviderOpenRouter:
		return "https://openrouter.ai/api/v1"
	default:
		return "http://localhost:1234/v1"
	}
}

const appDirName = "polirag"
const configFileName = "config.json"
const legacyConfigFileName = ".polirag.json"
const encryptionKey = "PoliRag2026SecretKey!@#$%"

// EncryptedCredentials holds the base64-encoded, XOR-obfuscated credential
// pair as persisted on disk.
type EncryptedCredentials struct {
	UsernameEncrypted string `json:"username_encrypted"`
	PinEncrypted      string `json:"pin_encrypted"`
}

// CachedCredentials holds the decrypted, in-memory-only credential pair.
type CachedCredentials struct {
	Username string
	Pin      string
}

// Config is the persisted user configuration. Every field is optional so
// that a freshly created file round-trips through an empty JSON object.
type Config struct {
	LastModel         string                `json:"last_model,omitempty"`
	CachedCredentials *EncryptedCredentials `json:"cached_credentials,omitempty"`
	LlmProvider       LlmProvider           `json:"llm_provider,omitempty"`
	OpenRouterAPIKey  string                `json:"openrouter_api_key,omitempty"`
	OpenRouterModel   string                `json:"openrouter_model,omitempty"`

	path string // resolved at Load time, not serialized
}

// AppDataDir returns the platform-appropriate per-user data directory for
// polirag, creating it if it does not already exist.
func AppDataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", fmt.Errorf("resolve app data dir: %w", err)
		}
		base = home
	}
	dir := filepath.Join(base, appDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create app data dir %s: %w", dir, err)
	}
	return dir, nil
}

// ConfigPath returns the path to config.json under the app data directory.
func ConfigPath() (string, error) {
	dir, err := AppDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// IndexPath returns the path to the documents-blob index artifact.
func IndexPath() (string, error) {
	dir, err := AppDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "polirag.index.data"), nil
}

// ScrapedDataDir returns the directory scraped subject content is written
// under, creating it if missing.
func ScrapedDataDir() (string, error) {
	dir, err := AppDataDir()
	if err != nil {
		return "", err
	}
	data := filepath.Join(dir, "data")
	if err := os.MkdirAll(data, 0o700); err != nil {
		return "", fmt.Errorf("create scraped data dir %s: %w", data, err)
	}
	return data, nil
}

// Load reads the configuration, preferring the legacy single-file location
// (~/.polirag.json) if present for backward compatibility, then the current
// config.json path, falling back to an empty Config if neither exists.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		legacyPath := filepath.Join(home, legacyConfigFileName)
		if cfg, ok, err := tryLoad(legacyPath); err != nil {
			return nil, err
		} else if ok {
			cfg.path = path
			return cfg, nil
		}
	}

	if cfg, ok, err := tryLoad(path); err != nil {
		return nil, err
	} else if ok {
		cfg.path = path
		return cfg, nil
	}

	return &Config{path: path}, nil
}

func tryLoad(path string) (*Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, false, fmt.Errorf("decode config %s: %w", path, err)
	}
	return &cfg, true, nil
}

// Save writes the configuration as pretty-printed JSON to config.json.
func (c *Config) Save() error {
	if c.path == "" {
		path, err := ConfigPath()
		if err != nil {
			return err
		}
		c.path = path
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", c.path, err)
	}
	return nil
}

// SaveModel persists the last-used LLM model name.
func (c *Config) SaveModel(model string) error {
	c.LastModel = model
	return c.Save()
}

// GetLastModel returns the last-used model name, if any.
func (c *Config) GetLastModel() string {
	return c.LastModel
}

// SaveCredentials encrypts and persists the given credential pair.
func (c *Config) SaveCredentials(username, pin string) error {
	c.CachedCredentials = &EncryptedCredentials{
		UsernameEncrypted: encrypt(username),
		PinEncrypted:      encrypt(pin),
	}
	return c.Save()
}

// GetCredentials decrypts and returns the cached credential pair, if any.
func (c *Config) GetCredentials() (CachedCredentials, bool) {
	if c.CachedCredentials == nil {
		return CachedCredentials{}, false
	}
	username, err := decrypt(c.CachedCredentials.UsernameEncrypted)
	if err != nil {
		return CachedCredentials{}, false
	}
	pin, err := decrypt(c.CachedCredentials.PinEncrypted)
	if err != nil {
		return CachedCredentials{}, false
	}
	return CachedCredentials{Username: username, Pin: pin}, true
}

// ClearCredentials removes the cached credential pair and persists the change.
func (c *Config) ClearCredentials() error {
	c.CachedCredentials = nil
	return c.Save()
}

// SaveProviderConfig updates the LLM provider and, when provided, the
// OpenRouter API key/model. nil values leave the existing field untouched.
func (c *Config) SaveProviderConfig(provider LlmProvider, apiKey, model *string) error {
	c.LlmProvider = provider
	if apiKey != nil {
		c.OpenRouterAPIKey = *apiKey
	}
	if model != nil {
		c.OpenRouterModel = *model
	}
	return c.Save()
}

// CredentialSource records where a resolved credential pair came from, so
// callers can decide whether a successful login is worth caching.
type CredentialSource int

const (
	// CredentialSourceNone means no credentials were found anywhere.
	CredentialSourceNone CredentialSource = iota
	// CredentialSourceCache means credentials came from the encrypted cache.
	CredentialSourceCache
	// CredentialSourceEnv means credentials came from environment variables.
	CredentialSourceEnv
)

// ResolveCredentials implements the portal login credential search order:
// cached encrypted credentials first, then environment variables
// (POLIFORMAT_USER/POLIFORMAT_DNI for the username, POLIFORMAT_PIN/
// POLIFORMAT_PASSWORD for the PIN). It never prompts; an interactive UI
// layer is expected to do that when CredentialSourceNone is returned.
func (c *Config) ResolveCredentials() (CachedCredentials, CredentialSource) {
	if creds, ok := c.GetCredentials(); ok {
		return creds, CredentialSourceCache
	}

	username := firstNonEmptyEnv("POLIFORMAT_USER", "POLIFORMAT_DNI")
	pin := firstNonEmptyEnv("POLIFORMAT_PIN", "POLIFORMAT_PASSWORD")
	if username != "" && pin != "" {
		return CachedCredentials{Username: username, Pin: pin}, CredentialSourceEnv
	}

	return CachedCredentials{}, CredentialSourceNone
}

func firstNonEmptyEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// encrypt XOR-obfuscates s against encryptionKey, cycling the key bytes, then
// base64-encodes the result.
func encrypt(s string) string {
	key := []byte(encryptionKey)
	in := []byte(s)
	out := make([]byte, len(in))
	for i, b := range in {
		out[i] = b ^ key[i%len(key)]
	}
	return base64.StdEncoding.EncodeToString(out)
}

// decrypt reverses encrypt.
func decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode credential: %w", err)
	}
	key := []byte(encryptionKey)
	out := make([]byte, len(raw))
	for i, b := range raw {
		out[i] = b ^ key[i%len(key)]
	}
	return string(out), nil
}
