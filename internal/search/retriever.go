// Package search runs validated queries against the vector and keyword
// indices and assembles scored responses.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/acervolegal/acervo/internal/embedding"
	"github.com/acervolegal/acervo/internal/keyword"
	"github.com/acervolegal/acervo/internal/models"
	"github.com/acervolegal/acervo/internal/vectorstore"
)

// Retriever answers search queries. Semantic mode embeds the query and runs
// kNN over the vector store; keyword mode goes to the term index for exact
// references that embeddings rank poorly.
type Retriever struct {
	store    vectorstore.VectorStore
	embedder embedding.Embedder
	keyword  *keyword.Index
	logger   *zap.Logger
}

// NewRetriever creates a retriever. keywordIndex may be nil, making keyword
// mode queries fail with an explicit error.
func NewRetriever(store vectorstore.VectorStore, embedder embedding.Embedder, keywordIndex *keyword.Index, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, embedder: embedder, keyword: keywordIndex, logger: logger}
}

// Search validates the query, dispatches by mode, and returns scored results
// ordered best first.
func (r *Retriever) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	var (
		results []*models.SearchResult
		err     error
	)
	switch query.Mode {
	case models.ModeSemantic:
		results, err = r.semantic(ctx, query)
	case models.ModeKeyword:
		results, err = r.keywordSearch(ctx, query)
	default:
		err = fmt.Errorf("unsupported search mode: %s", query.Mode)
	}
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	r.logger.Debug("search completed",
		zap.String("mode", query.Mode),
		zap.Int("results", len(results)),
		zap.Duration("took", elapsed))

	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: elapsed.Milliseconds(),
		Query:     query.Query,
	}, nil
}

func (r *Retriever) semantic(ctx context.Context, query *models.SearchQuery) ([]*models.SearchResult, error) {
	// The batch path is the one every provider implements; Flatten turns its
	// single-query 1×D result back into the vector Search expects.
	matrix, err := r.embedder.EmbedBatch(ctx, []string{query.Query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vec, err := vectorstore.Flatten(matrix)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := r.store.Search(ctx, vec, query.K)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return results, nil
}

func (r *Retriever) keywordSearch(ctx context.Context, query *models.SearchQuery) ([]*models.SearchResult, error) {
	if r.keyword == nil {
		return nil, fmt.Errorf("keyword index not configured")
	}
	results, err := r.keyword.Search(ctx, query.Query, query.K)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return results, nil
}
