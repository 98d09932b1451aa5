package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "flat"
	}
	if cfg.Store.IndexPath == "" {
		cfg.Store.IndexPath = "/usr/local/var/acervo/data/indices/vectors.bin"
	}
	if cfg.Store.MetadataPath == "" {
		cfg.Store.MetadataPath = "/usr/local/var/acervo/data/indices/metadata.db"
	}
	if cfg.Store.KeywordIndexPath == "" {
		cfg.Store.KeywordIndexPath = "/usr/local/var/acervo/data/indices/keyword"
	}
	if cfg.Store.OpenSearch.Host == "" {
		cfg.Store.OpenSearch.Host = "localhost"
	}
	if cfg.Store.OpenSearch.Port == 0 {
		cfg.Store.OpenSearch.Port = 9200
	}
	if cfg.Store.OpenSearch.Index == "" {
		cfg.Store.OpenSearch.Index = "acervo-juris"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.OllamaURL == "" {
		cfg.Embedding.OllamaURL = "http://localhost:11434"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 512
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Chunking.TargetTokens == 0 {
		cfg.Chunking.TargetTokens = 500
	}
	if cfg.Chunking.MinTokens == 0 {
		cfg.Chunking.MinTokens = 50
	}
	if cfg.Chunking.MaxTokens == 0 {
		cfg.Chunking.MaxTokens = 600
	}
	if cfg.Chunking.OverlapTokens == 0 {
		cfg.Chunking.OverlapTokens = 50
	}
	if cfg.Chunking.Separators == nil {
		cfg.Chunking.Separators = []string{"\n\n", "\n", ". ", ", ", " "}
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".odt", ".rtf", ".xlsx", ".json"}
	}
}
