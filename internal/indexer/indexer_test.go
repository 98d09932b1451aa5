package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/acervolegal/acervo/internal/chunker"
	"github.com/acervolegal/acervo/internal/embedding"
	"github.com/acervolegal/acervo/internal/extract"
	"github.com/acervolegal/acervo/internal/keyword"
	"github.com/acervolegal/acervo/internal/models"
	"github.com/acervolegal/acervo/internal/vectorstore"
)

func newTestIndexer(t *testing.T) (*Indexer, vectorstore.VectorStore, *keyword.Index) {
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
	idx := New(store, embedding.NewMockEmbedder(32), kw, chunker.DefaultConfig(), extract.NewExtractor(), zap.NewNop())
	return idx, store, kw
}

func TestIndexDocument(t *testing.T) {
	idx, store, kw := newTestIndexer(t)
	ctx := context.Background()

	doc := &models.Document{
		ID:    "cf-art5",
		Title: "Constituição Federal Art. 5",
		Text:  "Todos são iguais perante a lei, sem distinção de qualquer natureza.",
		Code:  "CF",
	}
	n, err := idx.IndexDocument(ctx, doc)
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 chunk for short doc, got %d", n)
	}
	if store.DocCount() != 1 {
		t.Errorf("expected 1 entry in vector store, got %d", store.DocCount())
	}
	kwCount, err := kw.DocCount()
	if err != nil {
		t.Fatalf("keyword DocCount: %v", err)
	}
	if kwCount != 1 {
		t.Errorf("expected 1 keyword entry, got %d", kwCount)
	}
}

func TestIndexDocumentGeneratesID(t *testing.T) {
	idx, _, _ := newTestIndexer(t)

	doc := &models.Document{Text: "algum texto juridico"}
	if _, err := idx.IndexDocument(context.Background(), doc); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if doc.ID == "" {
		t.Error("expected generated id")
	}
}

func TestIndexDocumentBlank(t *testing.T) {
	idx, store, _ := newTestIndexer(t)

	n, err := idx.IndexDocument(context.Background(), &models.Document{ID: "blank", Text: "   \n  "})
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 chunks for blank doc, got %d", n)
	}
	if store.DocCount() != 0 {
		t.Errorf("expected empty store, got %d", store.DocCount())
	}
}

func TestIndexFileAndDelete(t *testing.T) {
	idx, store, _ := newTestIndexer(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "sentenca.txt")
	if err := os.WriteFile(path, []byte("Julgo procedente o pedido inicial."), 0600); err != nil {
		t.Fatal(err)
	}

	if err := idx.IndexFile(ctx, path, nil); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	if store.DocCount() != 1 {
		t.Fatalf("expected 1 entry, got %d", store.DocCount())
	}

	// Re-indexing the same path must not duplicate.
	if err := idx.IndexFile(ctx, path, nil); err != nil {
		t.Fatalf("re-index: %v", err)
	}
	if store.DocCount() != 1 {
		t.Fatalf("re-index duplicated entries: %d", store.DocCount())
	}

	if err := idx.DeleteFile(ctx, path); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if store.DocCount() != 0 {
		t.Errorf("expected empty store after delete, got %d", store.DocCount())
	}
}

func TestIndexFileExtensionFilter(t *testing.T) {
	idx, _, _ := newTestIndexer(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "binary.exe")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := idx.IndexFile(context.Background(), path, []string{".txt", ".pdf"}); err == nil {
		t.Error("expected error for disallowed extension")
	}
}

func TestIndexDirectory(t *testing.T) {
	idx, store, _ := newTestIndexer(t)

	dir := t.TempDir()
	files := map[string]string{
		"peticao.txt":     "Petição inicial com os fatos e fundamentos.",
		"despacho.md":     "Intime-se a parte autora.",
		"sub/recurso.txt": "Recurso de apelação contra a sentença.",
		"skip.bin":        "binário",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}

	n, err := idx.IndexDirectory(context.Background(), dir, []string{".txt", ".md"})
	if err != nil {
		t.Fatalf("IndexDirectory: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 files indexed, got %d", n)
	}
	if store.DocCount() != 3 {
		t.Errorf("expected 3 entries, got %d", store.DocCount())
	}
}

func TestDeleteDocumentRemovesChunks(t *testing.T) {
	idx, store, _ := newTestIndexer(t)
	ctx := context.Background()

	// Long enough to produce multiple chunks under a small target.
	idx.chunkCfg = chunker.Config{TargetTokens: 20, MinTokens: 5, MaxTokens: 30, OverlapTokens: 2, Separators: []string{". ", " "}}
	var text string
	for i := 0; i < 40; i++ {
		text += "O tribunal decidiu pela procedência do pedido formulado. "
	}
	n, err := idx.IndexDocument(ctx, &models.Document{ID: "acordao-1", Text: text})
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if n < 2 {
		t.Fatalf("expected multiple chunks, got %d", n)
	}

	if err := idx.DeleteDocument(ctx, "acordao-1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if store.DocCount() != 0 {
		t.Errorf("expected all chunks removed, got %d", store.DocCount())
	}
}
