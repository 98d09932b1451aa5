//go:build !faiss || !cgo
// +build !faiss !cgo

package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/acervolegal/acervo/internal/models"
)

var errNoFAISS = fmt.Errorf("FAISS not available: build with -tags=faiss and install FAISS library")

// FAISSStore is a stub that returns an error when FAISS is not compiled in.
// Build with -tags=faiss to enable FAISS support.
type FAISSStore struct{}

var (
	_ VectorStore = (*FAISSStore)(nil)
	_ Saver       = (*FAISSStore)(nil)
	_ Remover     = (*FAISSStore)(nil)
)

// NewFAISSStore returns an error because FAISS is not available.
func NewFAISSStore(indexPath, metadataPath string, gpu GPUOptions, logger *zap.Logger) (*FAISSStore, error) {
	return nil, errNoFAISS
}

// Index is not implemented without FAISS.
func (s *FAISSStore) Index(ctx context.Context, docs []*models.Document, vectors [][]float32) error {
	return errNoFAISS
}

// Search is not implemented without FAISS.
func (s *FAISSStore) Search(ctx context.Context, query []float32, k int) ([]*models.SearchResult, error) {
	return nil, errNoFAISS
}

// Remove is not implemented without FAISS.
func (s *FAISSStore) Remove(ctx context.Context, ids []string) error {
	return errNoFAISS
}

// Save is not implemented without FAISS.
func (s *FAISSStore) Save() error {
	return errNoFAISS
}

// DocCount returns 0 without FAISS.
func (s *FAISSStore) DocCount() int {
	return 0
}

// Close is a no-op without FAISS.
func (s *FAISSStore) Close() error {
	return nil
}
