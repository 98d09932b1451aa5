//go:build faiss && cgo
// +build faiss,cgo

package vectorstore

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/MetaIndexes_c.h>
#include <faiss/c_api/impl/AuxIndexStructures_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/acervolegal/acervo/internal/metadata"
	"github.com/acervolegal/acervo/internal/models"
)

// FAISSStore wraps an IndexFlatIP behind an IndexIDMap so entries carry
// stable hashed ids instead of insertion positions. Inner product over
// normalized vectors gives cosine similarity. Available when built with
// -tags=faiss and a libfaiss_c install.
type FAISSStore struct {
	mu        sync.RWMutex
	index     *C.FaissIndex
	dim       int
	docs      map[int64]*models.Document
	meta      *metadata.Store
	indexPath string
	gpu       GPUOptions
	onGPU     bool
	logger    *zap.Logger
}

var (
	_ VectorStore = (*FAISSStore)(nil)
	_ Saver       = (*FAISSStore)(nil)
	_ Remover     = (*FAISSStore)(nil)
	_ Getter      = (*FAISSStore)(nil)
)

// NewFAISSStore opens the store, loading a persisted index when both the
// index file and its metadata table are present. The index itself is created
// lazily from the first batch when nothing is on disk.
func NewFAISSStore(indexPath, metadataPath string, gpu GPUOptions, logger *zap.Logger) (*FAISSStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	meta, err := metadata.Open(metadataPath)
	if err != nil {
		return nil, err
	}
	s := &FAISSStore{
		docs:      make(map[int64]*models.Document),
		meta:      meta,
		indexPath: indexPath,
		gpu:       gpu,
		logger:    logger,
	}
	if err := s.load(); err != nil {
		_ = meta.Close()
		return nil, err
	}
	return s, nil
}

func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// ensureIndex builds the FAISS index for the given dimension and offloads it
// to the GPU when requested and available. A failed transfer logs a warning
// and keeps the CPU index.
func (s *FAISSStore) ensureIndex(dim int) error {
	if s.index != nil {
		return nil
	}
	if dim <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}

	var flat *C.FaissIndexFlatIP
	if ret := C.faiss_IndexFlatIP_new_with(&flat, C.idx_t(dim)); ret != 0 {
		return fmt.Errorf("create flat index: %s", faissLastError())
	}
	var idmap *C.FaissIndexIDMap
	if ret := C.faiss_IndexIDMap_new(&idmap, (*C.FaissIndex)(unsafe.Pointer(flat))); ret != 0 {
		C.faiss_Index_free((*C.FaissIndex)(unsafe.Pointer(flat)))
		return fmt.Errorf("create id map: %s", faissLastError())
	}

	s.index = (*C.FaissIndex)(unsafe.Pointer(idmap))
	s.dim = dim
	s.maybeOffload()
	return nil
}

func (s *FAISSStore) maybeOffload() {
	if !s.gpu.Enabled || s.onGPU {
		return
	}
	if !gpuAvailable() {
		s.logger.Warn("GPU offload requested but binary built without GPU support, using CPU")
		return
	}
	p, err := indexToGPU(unsafe.Pointer(s.index), s.gpu.Device)
	if err != nil {
		s.logger.Warn("GPU transfer failed, using CPU index", zap.Error(err))
		return
	}
	C.faiss_Index_free(s.index)
	s.index = (*C.FaissIndex)(p)
	s.onGPU = true
	s.logger.Info("index offloaded to GPU", zap.Int("device", s.gpu.Device))
}

func (s *FAISSStore) load() error {
	if s.indexPath == "" {
		return nil
	}
	if _, err := os.Stat(s.indexPath); os.IsNotExist(err) {
		if n, countErr := s.meta.Count(); countErr == nil && n > 0 {
			s.logger.Warn("metadata present without index file, starting empty",
				zap.String("index_path", s.indexPath), zap.Int("metadata_rows", n))
		}
		return nil
	}

	cPath := C.CString(s.indexPath)
	defer C.free(unsafe.Pointer(cPath))

	var index *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &index); ret != 0 {
		return fmt.Errorf("load index file: %s", faissLastError())
	}

	docs, err := s.meta.LoadAll()
	if err != nil {
		C.faiss_Index_free(index)
		return fmt.Errorf("load metadata: %w", err)
	}
	if int(C.faiss_Index_ntotal(index)) > 0 && len(docs) == 0 {
		s.logger.Warn("index file present without metadata rows, starting empty",
			zap.String("index_path", s.indexPath))
		C.faiss_Index_free(index)
		return nil
	}

	s.index = index
	s.dim = int(C.faiss_Index_d(index))
	s.docs = docs
	s.maybeOffload()
	return nil
}

// Index upserts documents with their vectors. Existing ids are removed from
// the index before re-adding so re-indexed chunks never duplicate.
func (s *FAISSStore) Index(ctx context.Context, docs []*models.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents and vectors length mismatch: %d vs %d", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureIndex(len(vectors[0])); err != nil {
		return err
	}

	n := len(docs)
	flat := make([]float32, n*s.dim)
	ids := make([]int64, n)
	existing := make([]int64, 0, n)
	for i, doc := range docs {
		if len(vectors[i]) != s.dim {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), s.dim)
		}
		copy(flat[i*s.dim:(i+1)*s.dim], vectors[i])
		internal := InternalID(doc.ID)
		ids[i] = internal
		if prev, ok := s.docs[internal]; ok {
			if prev.ID != doc.ID {
				s.logger.Warn("internal id collision, last write wins",
					zap.String("previous_id", prev.ID), zap.String("new_id", doc.ID), zap.Int64("internal_id", internal))
			}
			existing = append(existing, internal)
		}
	}

	if len(existing) > 0 {
		if err := s.removeInternal(existing); err != nil {
			return err
		}
	}

	ret := C.faiss_Index_add_with_ids(
		s.index,
		C.idx_t(n),
		(*C.float)(unsafe.Pointer(&flat[0])),
		(*C.idx_t)(unsafe.Pointer(&ids[0])),
	)
	if ret != 0 {
		return fmt.Errorf("add vectors: %s", faissLastError())
	}
	for i, doc := range docs {
		s.docs[ids[i]] = doc
	}
	return nil
}

// removeInternal drops the given internal ids from the FAISS index. Caller
// holds the write lock.
func (s *FAISSStore) removeInternal(ids []int64) error {
	if len(ids) == 0 || s.index == nil {
		return nil
	}
	var sel *C.FaissIDSelectorBatch
	ret := C.faiss_IDSelectorBatch_new(&sel, C.size_t(len(ids)), (*C.idx_t)(unsafe.Pointer(&ids[0])))
	if ret != 0 {
		return fmt.Errorf("create id selector: %s", faissLastError())
	}
	defer C.faiss_IDSelector_free((*C.FaissIDSelector)(unsafe.Pointer(sel)))

	var removed C.size_t
	ret = C.faiss_Index_remove_ids(s.index, (*C.FaissIDSelector)(unsafe.Pointer(sel)), &removed)
	if ret != 0 {
		return fmt.Errorf("remove ids: %s", faissLastError())
	}
	return nil
}

// Search returns up to k results by inner product. Sentinel labels from
// FAISS and labels with no metadata row are skipped silently.
func (s *FAISSStore) Search(ctx context.Context, query []float32, k int) ([]*models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*models.SearchResult, 0, k)
	if k <= 0 || s.index == nil {
		return results, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), s.dim)
	}

	ntotal := int(C.faiss_Index_ntotal(s.index))
	if ntotal == 0 {
		return results, nil
	}
	if k > ntotal {
		k = ntotal
	}

	distances := make([]float32, k)
	labels := make([]int64, k)
	ret := C.faiss_Index_search(
		s.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("search: %s", faissLastError())
	}

	for i := 0; i < k; i++ {
		if labels[i] == idSentinel {
			continue
		}
		doc, ok := s.docs[labels[i]]
		if !ok {
			continue
		}
		results = append(results, &models.SearchResult{Document: doc, Score: float64(distances[i])})
	}
	return results, nil
}

// Remove deletes entries whose document id or parent id matches any of ids.
func (s *FAISSStore) Remove(ctx context.Context, ids []string) error {
	targets := make(map[string]bool, len(ids))
	for _, id := range ids {
		targets[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	internal := make([]int64, 0, len(ids))
	for intID, doc := range s.docs {
		if targets[doc.ID] || targets[doc.OriginalID()] {
			internal = append(internal, intID)
		}
	}
	if err := s.removeInternal(internal); err != nil {
		return err
	}
	for _, intID := range internal {
		delete(s.docs, intID)
	}
	return nil
}

// Get returns the entry stored under id, or nil when absent.
func (s *FAISSStore) Get(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[InternalID(id)]
	if !ok || doc.ID != id {
		return nil, nil
	}
	return doc, nil
}

// DocCount returns the number of indexed documents/chunks.
func (s *FAISSStore) DocCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Save writes the index file and rewrites the metadata table. A GPU-resident
// index is copied back to host memory for serialization.
func (s *FAISSStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.indexPath == "" || s.index == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.indexPath), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	writeIndex := s.index
	if s.onGPU {
		p, err := indexToCPU(unsafe.Pointer(s.index))
		if err != nil {
			return fmt.Errorf("copy index to host: %w", err)
		}
		writeIndex = (*C.FaissIndex)(p)
		defer C.faiss_Index_free(writeIndex)
	}

	cPath := C.CString(s.indexPath)
	defer C.free(unsafe.Pointer(cPath))
	if ret := C.faiss_write_index_fname(writeIndex, cPath); ret != 0 {
		return fmt.Errorf("write index file: %s", faissLastError())
	}

	if err := s.meta.ReplaceAll(s.docs); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

// Close frees the FAISS index and closes the metadata store.
func (s *FAISSStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index != nil {
		C.faiss_Index_free(s.index)
		s.index = nil
	}
	return s.meta.Close()
}
