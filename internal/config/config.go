// Package config provides configuration loading and structs for the acervo service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	GPU       GPUConfig       `yaml:"gpu"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig selects the vector store backend and its persistence paths.
type StoreConfig struct {
	// Backend is "flat", "faiss", or "opensearch".
	Backend          string           `yaml:"backend"`
	IndexPath        string           `yaml:"index_path"`
	MetadataPath     string           `yaml:"metadata_path"`
	KeywordIndexPath string           `yaml:"keyword_index_path"`
	OpenSearch       OpenSearchConfig `yaml:"opensearch"`
}

// OpenSearchConfig holds remote store connection settings.
type OpenSearchConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Index       string `yaml:"index"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	UseTLS      bool   `yaml:"use_tls"`
	InsecureTLS bool   `yaml:"insecure_tls"`
}

// GPUConfig holds GPU offload settings for the FAISS backend.
type GPUConfig struct {
	Enabled bool `yaml:"enabled"`
	Device  int  `yaml:"device"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is "onnx", "ollama", or "mock".
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	OllamaURL  string `yaml:"ollama_url"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	// Normalize applies unit L2 normalization to every embedding, at both
	// index and query time. It must not differ between the two, so it is a
	// single process-wide setting. Defaults to true when unset.
	Normalize *bool `yaml:"normalize"`
}

// NormalizeOrDefault returns the normalize flag; defaults to true when unset.
func (e *EmbeddingConfig) NormalizeOrDefault() bool {
	if e.Normalize != nil {
		return *e.Normalize
	}
	return true
}

// ChunkingConfig holds chunker settings. Sizes are in tokens
// (estimated at 4 chars/token when no tokenizer is available).
type ChunkingConfig struct {
	TargetTokens  int      `yaml:"target_tokens"`
	MinTokens     int      `yaml:"min_tokens"`
	MaxTokens     int      `yaml:"max_tokens"`
	OverlapTokens int      `yaml:"overlap_tokens"`
	Separators    []string `yaml:"separators"`
}

// WatchConfig holds drop-directory ingestion settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Store.IndexPath = expandPath(cfg.Store.IndexPath, configDir)
	cfg.Store.MetadataPath = expandPath(cfg.Store.MetadataPath, configDir)
	cfg.Store.KeywordIndexPath = expandPath(cfg.Store.KeywordIndexPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
