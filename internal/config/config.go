// Package config loads and validates Custom-RAG configuration.
//
// Configuration is layered: built-in defaults, then the optional
// customrag.yaml file, then environment variables, then CLI flags
// (applied by the cmd package). Later layers win.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	ragerr "github.com/DrNightingales/Custom-RAG/internal/errors"
)

// ConfigFileName is the per-project configuration file name.
const ConfigFileName = "customrag.yaml"

// Config represents the complete Custom-RAG configuration.
type Config struct {
	// DataDir is where the store lives (sqlite db, FTS index, vector graph).
	DataDir string `yaml:"data_dir"`

	Index      IndexConfig      `yaml:"index"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Server     ServerConfig     `yaml:"server"`
}

// IndexConfig configures the indexing run.
type IndexConfig struct {
	// Presets name extension groups to index (see presets.go).
	Presets []string `yaml:"presets"`

	// ExtraExtensions are explicit extension suffixes added on top of presets
	// (without the leading dot).
	ExtraExtensions []string `yaml:"extra_extensions"`

	// ExcludeDirs are directory names excluded wherever they appear in a path.
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// IncludeHidden indexes dot-prefixed files and directories.
	IncludeHidden bool `yaml:"include_hidden"`

	// MaxChunkTokens is the per-chunk token budget.
	MaxChunkTokens int `yaml:"max_chunk_tokens"`

	// Workers bounds concurrent embedding calls. 1 means the fully
	// sequential pipeline.
	Workers int `yaml:"workers"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Model is the embedding model identifier.
	Model string `yaml:"model"`

	// Dimensions overrides auto-detection when non-zero.
	Dimensions int `yaml:"dimensions"`

	// BaseURL is the provider endpoint (default: https://api.openai.com).
	BaseURL string `yaml:"base_url"`

	// APIKey is never read from the file; only from OPENAI_API_KEY.
	APIKey string `yaml:"-"`

	// HTTPProxy / HTTPSProxy route provider traffic through a proxy.
	HTTPProxy  string `yaml:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy"`

	// BatchSize for batch embedding requests (default: 32).
	BatchSize int `yaml:"batch_size"`

	// MaxRetries for transient provider failures (default: 3).
	MaxRetries int `yaml:"max_retries"`
}

// ServerConfig configures the retrieval HTTP server.
type ServerConfig struct {
	// Addr is the listen address for `customrag serve`.
	Addr string `yaml:"addr"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		DataDir: ".customrag",
		Index: IndexConfig{
			Presets:        []string{"python", "web", "config"},
			ExcludeDirs:    []string{"__pycache__", "venv", ".venv", "node_modules", "vendor", "build", "dist"},
			IncludeHidden:  false,
			MaxChunkTokens: 4096,
			Workers:        1,
		},
		Embeddings: EmbeddingsConfig{
			Model:      "text-embedding-3-large",
			BaseURL:    "https://api.openai.com",
			BatchSize:  32,
			MaxRetries: 3,
		},
		Server: ServerConfig{
			Addr:     "127.0.0.1:8422",
			LogLevel: "info",
		},
	}
}

// Load reads configuration from dir/customrag.yaml, falling back to defaults
// when the file does not exist. Environment overrides are always applied.
func Load(dir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies environment variables on top of the loaded values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CUSTOMRAG_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("CUSTOMRAG_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CUSTOMRAG_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.Embeddings.BaseURL = v
	}
	if v := os.Getenv("HTTP_PROXY"); v != "" && c.Embeddings.HTTPProxy == "" {
		c.Embeddings.HTTPProxy = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" && c.Embeddings.HTTPSProxy == "" {
		c.Embeddings.HTTPSProxy = v
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return ragerr.New(ragerr.ErrCodeConfigInvalid, "data_dir must not be empty", nil)
	}
	if c.Index.MaxChunkTokens <= 0 {
		return ragerr.New(ragerr.ErrCodeConfigInvalid,
			fmt.Sprintf("index.max_chunk_tokens must be positive, got %d", c.Index.MaxChunkTokens), nil)
	}
	if c.Index.Workers <= 0 {
		return ragerr.New(ragerr.ErrCodeConfigInvalid,
			fmt.Sprintf("index.workers must be at least 1, got %d", c.Index.Workers), nil)
	}
	if c.Embeddings.Model == "" {
		return ragerr.New(ragerr.ErrCodeConfigInvalid, "embeddings.model must not be empty", nil)
	}
	if c.Embeddings.BatchSize <= 0 {
		return ragerr.New(ragerr.ErrCodeConfigInvalid,
			fmt.Sprintf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize), nil)
	}
	return nil
}

// Save writes the configuration to dir/customrag.yaml.
func (c *Config) Save(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
