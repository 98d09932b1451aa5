package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: 0.0.0.0
  port: 9090
store:
  backend: opensearch
  index_path: ./data/vectors.bin
  opensearch:
    host: search.example.com
    port: 9201
    index: juris
    username: admin
    insecure_tls: true
embedding:
  provider: mock
  dimensions: 64
  normalize: false
chunking:
  target_tokens: 300
  overlap_tokens: 30
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port=%d, want 9090", cfg.Server.Port)
	}
	if cfg.Store.Backend != "opensearch" {
		t.Errorf("Store.Backend=%q", cfg.Store.Backend)
	}
	if cfg.Store.OpenSearch.Host != "search.example.com" || cfg.Store.OpenSearch.Port != 9201 {
		t.Errorf("OpenSearch=%+v", cfg.Store.OpenSearch)
	}
	if !cfg.Store.OpenSearch.InsecureTLS {
		t.Error("InsecureTLS should be true")
	}
	// ./-relative paths resolve against the config directory.
	want := filepath.Join(dir, "data/vectors.bin")
	if cfg.Store.IndexPath != want {
		t.Errorf("IndexPath=%q, want %q", cfg.Store.IndexPath, want)
	}
	if cfg.Embedding.NormalizeOrDefault() {
		t.Error("normalize: false should be honored")
	}
	if cfg.Embedding.Dimensions != 64 {
		t.Errorf("Dimensions=%d, want 64", cfg.Embedding.Dimensions)
	}
	if cfg.Chunking.TargetTokens != 300 || cfg.Chunking.OverlapTokens != 30 {
		t.Errorf("Chunking=%+v", cfg.Chunking)
	}
	// Unset fields get defaults.
	if cfg.Chunking.MaxTokens != 600 {
		t.Errorf("Chunking.MaxTokens=%d, want default 600", cfg.Chunking.MaxTokens)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Store.Backend != "flat" {
		t.Errorf("default backend=%q, want flat", cfg.Store.Backend)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port=%d", cfg.Server.Port)
	}
	if !cfg.Embedding.NormalizeOrDefault() {
		t.Error("normalize should default to true")
	}
	if len(cfg.Chunking.Separators) == 0 || cfg.Chunking.Separators[0] != "\n\n" {
		t.Errorf("default separators=%v", cfg.Chunking.Separators)
	}
	if cfg.Store.OpenSearch.Port != 9200 {
		t.Errorf("default opensearch port=%d", cfg.Store.OpenSearch.Port)
	}
}
