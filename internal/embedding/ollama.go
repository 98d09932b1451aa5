package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/acervolegal/acervo/pkg/utils"
)

const defaultOllamaTimeout = 30 * time.Second

// OllamaEmbedder produces embeddings via a local Ollama server's
// /api/embeddings endpoint.
type OllamaEmbedder struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
	normalize  bool
	cache      *Cache
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewOllamaEmbedder creates an Ollama-backed embedder. dimensions is the
// expected model output width; a response of a different width is an error,
// since a store's dimension is fixed by its first batch.
func NewOllamaEmbedder(baseURL, model string, dimensions, cacheSize int, normalize bool) *OllamaEmbedder {
	return &OllamaEmbedder{
		client:     &http.Client{Timeout: defaultOllamaTimeout},
		baseURL:    baseURL,
		model:      model,
		dimensions: dimensions,
		normalize:  normalize,
		cache:      NewCache(cacheSize),
	}
}

// Embed returns the embedding for text, using the cache when available.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if e.dimensions > 0 && len(out.Embedding) != e.dimensions {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(out.Embedding), e.dimensions)
	}

	emb := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		emb[i] = float32(v)
	}
	if e.normalize {
		utils.NormalizeL2(emb)
	}
	e.cache.Set(text, emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for OllamaEmbedder.
func (e *OllamaEmbedder) Close() error {
	return nil
}
