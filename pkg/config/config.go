// Package config loads Mimi's YAML configuration file and applies defaults
// and environment overrides.
//
// The configuration lives at ~/.mimi/config.yaml by default. Every field has
// a working default so a missing file yields a usable configuration; only the
// provider API key has no default and must come from the file or environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the assistant.
type Config struct {
	// DataDir is the directory holding every persisted store
	// (memory archive, active store, vectors, notes, diary, persona).
	DataDir string `yaml:"data_dir"`

	// UserName is the name the assistant knows its user by.
	UserName string `yaml:"user_name"`

	// AssistantName is the assistant's own name.
	AssistantName string `yaml:"assistant_name"`

	Provider ProviderConfig `yaml:"provider"`
	Memory   MemoryConfig   `yaml:"memory"`
	Vault    VaultConfig    `yaml:"vault"`
}

// ProviderConfig configures the OpenAI-compatible chat and embedding endpoint.
type ProviderConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	ChatModel      string        `yaml:"chat_model"`
	ReasonerModel  string        `yaml:"reasoner_model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	ChatTimeout    time.Duration `yaml:"chat_timeout"`
	EmbedTimeout   time.Duration `yaml:"embed_timeout"`
}

// MemoryConfig holds the tunables of the memory subsystem.
type MemoryConfig struct {
	// CompressionThreshold is the active-store size beyond which a
	// consolidation pass is triggered.
	CompressionThreshold int `yaml:"compression_threshold"`

	// MinCategorySize is the smallest category that consolidation will
	// compress; smaller categories pass through unchanged.
	MinCategorySize int `yaml:"min_category_size"`

	// InactivityWindow is how long the conversation must stay silent
	// before session synthesis fires.
	InactivityWindow time.Duration `yaml:"inactivity_window"`

	// SemanticThreshold is the minimum cosine similarity for session
	// memory retrieval.
	SemanticThreshold float64 `yaml:"semantic_threshold"`
}

// VaultConfig configures the external document folder indexed for retrieval.
type VaultConfig struct {
	// Path is the vault root. Empty disables vault indexing and search.
	Path string `yaml:"path"`

	// Include lists glob patterns for eligible file names.
	Include []string `yaml:"include"`

	// SessionDir is the vault subdirectory holding assistant-authored
	// session transcripts, used for authorship attribution.
	SessionDir string `yaml:"session_dir"`

	// SemanticThreshold is the minimum cosine similarity for vault
	// retrieval. Higher than the session threshold because document
	// chunks are longer and noisier.
	SemanticThreshold float64 `yaml:"semantic_threshold"`
}

// DefaultPath returns the default config file location (~/.mimi/config.yaml).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".mimi", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		UserName:      "Kuumin",
		AssistantName: "Mimi",
		Provider: ProviderConfig{
			BaseURL:        "https://openrouter.ai/api/v1",
			ChatModel:      "deepseek/deepseek-chat",
			ReasonerModel:  "deepseek/deepseek-r1",
			EmbeddingModel: "openai/text-embedding-3-small",
			ChatTimeout:    180 * time.Second,
			EmbedTimeout:   60 * time.Second,
		},
		Memory: MemoryConfig{
			CompressionThreshold: 32,
			MinCategorySize:      5,
			InactivityWindow:     10 * time.Minute,
			SemanticThreshold:    0.3,
		},
		Vault: VaultConfig{
			Include:           []string{"*.md"},
			SessionDir:        "Mimi/Sessions",
			SemanticThreshold: 0.4,
		},
	}
}

// Load reads the config file at path, merging it over the defaults and then
// applying environment overrides. A missing file is not an error: defaults
// plus environment are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyFallbacks()

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("config: resolve home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".mimi")
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the loaded config.
// MIMI_* variables win over the file; OPENAI_API_KEY is honored as a
// conventional fallback for the provider key.
func (c *Config) applyEnv() {
	if v := os.Getenv("MIMI_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("MIMI_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("MIMI_API_KEY"); v != "" {
		c.Provider.APIKey = v
	} else if c.Provider.APIKey == "" {
		c.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("MIMI_VAULT_PATH"); v != "" {
		c.Vault.Path = v
	}
}

// applyFallbacks restores defaults for fields a partial config file may have
// zeroed out.
func (c *Config) applyFallbacks() {
	def := Default()
	if c.Provider.ChatTimeout <= 0 {
		c.Provider.ChatTimeout = def.Provider.ChatTimeout
	}
	if c.Provider.EmbedTimeout <= 0 {
		c.Provider.EmbedTimeout = def.Provider.EmbedTimeout
	}
	if c.Memory.CompressionThreshold <= 0 {
		c.Memory.CompressionThreshold = def.Memory.CompressionThreshold
	}
	if c.Memory.MinCategorySize <= 0 {
		c.Memory.MinCategorySize = def.Memory.MinCategorySize
	}
	if c.Memory.InactivityWindow <= 0 {
		c.Memory.InactivityWindow = def.Memory.InactivityWindow
	}
	if c.Memory.SemanticThreshold <= 0 {
		c.Memory.SemanticThreshold = def.Memory.SemanticThreshold
	}
	if c.Vault.SemanticThreshold <= 0 {
		c.Vault.SemanticThreshold = def.Vault.SemanticThreshold
	}
	if len(c.Vault.Include) == 0 {
		c.Vault.Include = def.Vault.Include
	}
}
