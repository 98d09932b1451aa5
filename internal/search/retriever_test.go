package search

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/acervolegal/acervo/internal/embedding"
	"github.com/acervolegal/acervo/internal/keyword"
	"github.com/acervolegal/acervo/internal/models"
	"github.com/acervolegal/acervo/internal/vectorstore"
)

func newTestRetriever(t *testing.T) *Retriever {
	t.Helper()
	dir := t.TempDir()
	store, err := vectorstore.NewFlatStore(
		filepath.Join(dir, "index.bin"), filepath.Join(dir, "metadata.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewFlatStore: %v", err)
	}
	kw, err := keyword.New(filepath.Join(dir, "keyword.bleve"))
	if err != nil {
		t.Fatalf("keyword.New: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
		kw.Close()
	})
	embedder := embedding.NewMockEmbedder(32)
	ctx := context.Background()

	docs := []*models.Document{
		{ID: "cf-5", Title: "Constituição", Text: "direitos e garantias fundamentais", Code: "CF", Article: "5", Meta: map[string]interface{}{}},
		{ID: "cpc-300", Title: "CPC", Text: "tutela de urgência e probabilidade do direito", Code: "CPC", Article: "300", Meta: map[string]interface{}{}},
	}
	texts := []string{docs[0].Text, docs[1].Text}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if err := store.Index(ctx, docs, vectors); err != nil {
		t.Fatalf("index: %v", err)
	}
	for _, d := range docs {
		if err := kw.Index(ctx, d); err != nil {
			t.Fatalf("keyword index: %v", err)
		}
	}
	return NewRetriever(store, embedder, kw, zap.NewNop())
}

func TestSemanticSearch(t *testing.T) {
	r := newTestRetriever(t)

	resp, err := r.Search(context.Background(), &models.SearchQuery{Query: "garantias fundamentais", K: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total == 0 {
		t.Fatal("expected results")
	}
	if resp.Results[0].Document.ID != "cf-5" {
		t.Errorf("expected cf-5 first, got %s", resp.Results[0].Document.ID)
	}
	if resp.Query != "garantias fundamentais" {
		t.Errorf("query not echoed: %q", resp.Query)
	}
	if resp.QueryTime < 0 {
		t.Errorf("negative query time: %d", resp.QueryTime)
	}
}

func TestKeywordSearch(t *testing.T) {
	r := newTestRetriever(t)

	resp, err := r.Search(context.Background(), &models.SearchQuery{Query: "CPC", K: 5, Mode: models.ModeKeyword})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 1 || resp.Results[0].Document.ID != "cpc-300" {
		t.Fatalf("keyword lookup failed: %+v", resp.Results)
	}
}

func TestSearchValidation(t *testing.T) {
	r := newTestRetriever(t)

	if _, err := r.Search(context.Background(), &models.SearchQuery{Query: "   "}); err == nil {
		t.Error("expected error for blank query")
	}
	if _, err := r.Search(context.Background(), &models.SearchQuery{Query: "x", Mode: "hybrid"}); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestKeywordModeWithoutIndex(t *testing.T) {
	dir := t.TempDir()
	store, err := vectorstore.NewFlatStore(
		filepath.Join(dir, "index.bin"), filepath.Join(dir, "metadata.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewFlatStore: %v", err)
	}
	defer store.Close()

	r := NewRetriever(store, embedding.NewMockEmbedder(32), nil, zap.NewNop())
	if _, err := r.Search(context.Background(), &models.SearchQuery{Query: "x", Mode: models.ModeKeyword}); err == nil {
		t.Error("expected error when keyword index is absent")
	}
}
