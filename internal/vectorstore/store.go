// Package vectorstore provides the vector index backends and scored
// nearest-neighbor search over embedded legal documents.
package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/acervolegal/acervo/internal/models"
)

// VectorStore is the uniform contract implemented by every backend.
type VectorStore interface {
	// Index upserts documents with their embedding vectors. Re-indexing an
	// existing document id replaces its previous entry instead of creating a
	// duplicate. A no-op on empty input. The first non-empty call fixes the
	// store's dimension from the observed vector width.
	Index(ctx context.Context, docs []*models.Document, vectors [][]float32) error
	// Search returns up to k results ordered by score descending. An empty
	// store returns an empty list, never an error.
	Search(ctx context.Context, query []float32, k int) ([]*models.SearchResult, error)
	// DocCount returns the number of distinct indexed documents/chunks.
	DocCount() int
	Close() error
}

// Saver is implemented by stores that persist to local files on demand.
// Additions made after the last Save are lost on process exit.
type Saver interface {
	Save() error
}

// Remover is implemented by stores that can remove entries by external
// document id (a parent id also removes its chunks).
type Remover interface {
	Remove(ctx context.Context, ids []string) error
}

// Getter is implemented by stores that can fetch a single entry by its
// external document id. A missing id returns (nil, nil).
type Getter interface {
	Get(ctx context.Context, id string) (*models.Document, error)
}

// Backend identifies a vector store implementation. Selection happens once
// at startup; an unknown name is a fatal configuration error.
type Backend string

const (
	// BackendFlat is the pure-Go brute-force local store. Default.
	BackendFlat Backend = "flat"
	// BackendFAISS is the FAISS-backed local store. Requires -tags=faiss.
	BackendFAISS Backend = "faiss"
	// BackendOpenSearch delegates to a kNN-enabled OpenSearch cluster.
	BackendOpenSearch Backend = "opensearch"
)

// ParseBackend resolves a configured backend name.
func ParseBackend(name string) (Backend, error) {
	switch Backend(name) {
	case BackendFlat, "":
		return BackendFlat, nil
	case BackendFAISS:
		return BackendFAISS, nil
	case BackendOpenSearch:
		return BackendOpenSearch, nil
	default:
		return "", fmt.Errorf("unknown vector store backend: %s (supported: flat, faiss, opensearch)", name)
	}
}

// GPUOptions govern GPU offload for the FAISS backend. Offload happens only
// when Enabled is set and the build actually has GPU support; a transfer
// failure at runtime falls back to CPU with a warning.
type GPUOptions struct {
	Enabled bool
	Device  int
}

// OpenSearchOptions hold remote store connection settings.
type OpenSearchOptions struct {
	Host        string
	Port        int
	Index       string
	Username    string
	Password    string
	UseTLS      bool
	InsecureTLS bool
}

// Options configure the factory.
type Options struct {
	Backend      string
	IndexPath    string
	MetadataPath string
	// Normalized records whether embeddings are unit-normalized; it selects
	// the similarity space for backends that distinguish (inner product vs L2).
	Normalized bool
	GPU        GPUOptions
	OpenSearch OpenSearchOptions
}

// New creates the configured vector store. Construction failures (unknown
// backend, unreachable cluster, corrupt local files) are fatal and surface
// to the caller.
func New(opts Options, logger *zap.Logger) (VectorStore, error) {
	backend, err := ParseBackend(opts.Backend)
	if err != nil {
		return nil, err
	}
	switch backend {
	case BackendFlat:
		return NewFlatStore(opts.IndexPath, opts.MetadataPath, logger)
	case BackendFAISS:
		return NewFAISSStore(opts.IndexPath, opts.MetadataPath, opts.GPU, logger)
	case BackendOpenSearch:
		return NewOpenSearchStore(opts.OpenSearch, opts.Normalized, logger)
	}
	return nil, fmt.Errorf("unhandled backend: %s", backend)
}

// Flatten accepts a 1×D matrix and returns its single row, so callers holding
// a one-row batch can search with it directly. Any other shape is an error.
func Flatten(matrix [][]float32) ([]float32, error) {
	if len(matrix) != 1 {
		return nil, fmt.Errorf("expected a single query vector, got %d rows", len(matrix))
	}
	return matrix[0], nil
}
