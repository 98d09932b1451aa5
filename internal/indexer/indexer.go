// Package indexer drives the ingestion pipeline: extract, chunk, embed, and
// index into the vector and keyword indices.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acervolegal/acervo/internal/chunker"
	"github.com/acervolegal/acervo/internal/embedding"
	"github.com/acervolegal/acervo/internal/extract"
	"github.com/acervolegal/acervo/internal/keyword"
	"github.com/acervolegal/acervo/internal/models"
	"github.com/acervolegal/acervo/internal/vectorstore"
)

const (
	metaKeySourcePath  = "source_path"
	metaKeySourceMtime = "source_mtime"
	metaKeySourceSize  = "source_size"
)

// Indexer indexes documents into the vector store and the keyword index.
type Indexer struct {
	store     vectorstore.VectorStore
	embedder  embedding.Embedder
	keyword   *keyword.Index
	chunkCfg  chunker.Config
	extractor *extract.Extractor
	logger    *zap.Logger
}

// New creates an indexer. keywordIndex may be nil to disable exact-term
// lookup; extractor may be nil, in which case files are read as plain text.
func New(
	store vectorstore.VectorStore,
	embedder embedding.Embedder,
	keywordIndex *keyword.Index,
	chunkCfg chunker.Config,
	extractor *extract.Extractor,
	logger *zap.Logger,
) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		store:     store,
		embedder:  embedder,
		keyword:   keywordIndex,
		chunkCfg:  chunkCfg,
		extractor: extractor,
		logger:    logger,
	}
}

// IndexDocument chunks, embeds, and indexes one document. A missing id gets
// a generated one. Returns the number of chunks indexed; blank documents
// index nothing and return zero.
func (idx *Indexer) IndexDocument(ctx context.Context, doc *models.Document) (int, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	chunks := chunker.Chunk(doc, idx.chunkCfg)
	if len(chunks) == 0 {
		idx.logger.Debug("skipping blank document", zap.String("doc_id", doc.ID))
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if err := idx.store.Index(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("index vectors: %w", err)
	}

	if idx.keyword != nil {
		kwDoc := doc.Clone()
		kwDoc.Title = normalizeTitle(doc.Title)
		if err := idx.keyword.Index(ctx, kwDoc); err != nil {
			return 0, fmt.Errorf("index keywords: %w", err)
		}
	}

	idx.logger.Debug("document indexed",
		zap.String("doc_id", doc.ID), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// normalizeTitle replaces underscores with spaces so multi-word queries
// match filename-derived titles under the standard analyzer.
func normalizeTitle(title string) string {
	return strings.ReplaceAll(title, "_", " ")
}

// fileDocID returns a stable document id for an absolute path, so
// re-indexing a file updates the same document.
func fileDocID(absolutePath string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(absolutePath)))
	return "file:" + hex.EncodeToString(hash[:])
}

// IndexFile extracts and indexes a file. When allowedExts is non-empty the
// extension must be in the list. Re-indexing a path replaces its previous
// chunks.
func (idx *Indexer) IndexFile(ctx context.Context, path string, allowedExts []string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", absPath)
	}

	text, err := idx.extractContent(absPath)
	if err != nil {
		return fmt.Errorf("extract content: %w", err)
	}

	docID := fileDocID(absPath)
	_ = idx.DeleteDocument(ctx, docID)

	doc := &models.Document{
		ID:    docID,
		Title: filepath.Base(absPath),
		Text:  text,
		Meta: map[string]interface{}{
			metaKeySourcePath: absPath,
			// Stored as strings: UnixNano exceeds the 53-bit float64 mantissa.
			metaKeySourceMtime: strconv.FormatInt(info.ModTime().UnixNano(), 10),
			metaKeySourceSize:  strconv.FormatInt(info.Size(), 10),
		},
	}
	n, err := idx.IndexDocument(ctx, doc)
	if err != nil {
		return err
	}
	idx.logger.Debug("file indexed",
		zap.String("path", absPath), zap.String("doc_id", docID), zap.Int("chunks", n))
	return nil
}

// IndexDirectory walks dir recursively and indexes each regular file whose
// extension is allowed. Returns the number of files indexed.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, allowedExts []string) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}

	n := 0
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if indexErr := idx.IndexFile(ctx, path, allowedExts); indexErr != nil {
			return indexErr
		}
		n++
		return nil
	})
	return n, err
}

// DeleteFile removes the document previously indexed for path.
func (idx *Indexer) DeleteFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	return idx.DeleteDocument(ctx, fileDocID(absPath))
}

// DeleteDocument removes a document and all of its chunks from both indices.
// Backends without removal support report an error.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) error {
	if idx.keyword != nil {
		if err := idx.keyword.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete from keyword index: %w", err)
		}
	}
	remover, ok := idx.store.(vectorstore.Remover)
	if !ok {
		return fmt.Errorf("vector store backend does not support removal")
	}
	if err := remover.Remove(ctx, []string{id}); err != nil {
		return fmt.Errorf("delete from vector store: %w", err)
	}
	return nil
}

func (idx *Indexer) extractContent(path string) (string, error) {
	if idx.extractor != nil {
		return idx.extractor.Extract(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
