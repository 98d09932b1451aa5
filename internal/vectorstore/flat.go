package vectorstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/acervolegal/acervo/internal/metadata"
	"github.com/acervolegal/acervo/internal/models"
)

// FlatStore is the pure-Go local store: brute-force inner-product search over
// an in-memory table keyed by hashed internal ids, persisted as a binary
// index file plus a sqlite metadata table. It carries the same upsert,
// persistence, and resolution semantics as the FAISS store and is the
// default backend when FAISS is not compiled in.
type FlatStore struct {
	mu        sync.RWMutex
	dim       int
	ids       []int64
	vectors   [][]float32
	pos       map[int64]int // internal id -> slot in ids/vectors
	docs      map[int64]*models.Document
	meta      *metadata.Store
	indexPath string
	logger    *zap.Logger
}

var (
	_ VectorStore = (*FlatStore)(nil)
	_ Saver       = (*FlatStore)(nil)
	_ Remover     = (*FlatStore)(nil)
	_ Getter      = (*FlatStore)(nil)
)

// NewFlatStore opens the store, loading the index and metadata files when
// both exist. A missing pair leaves the store empty (uninitialized); a
// corrupt index file surfaces as an error since there is no safe recovery.
func NewFlatStore(indexPath, metadataPath string, logger *zap.Logger) (*FlatStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	meta, err := metadata.Open(metadataPath)
	if err != nil {
		return nil, err
	}
	s := &FlatStore{
		pos:       make(map[int64]int),
		docs:      make(map[int64]*models.Document),
		meta:      meta,
		indexPath: indexPath,
		logger:    logger,
	}
	if err := s.load(); err != nil {
		_ = meta.Close()
		return nil, err
	}
	return s, nil
}

// load reads both persistence artifacts. The pair is only usable together:
// an index file without metadata rows (or vice versa) leaves the store
// empty with a warning instead of serving unresolvable results.
func (s *FlatStore) load() error {
	if s.indexPath == "" {
		return nil
	}
	f, err := os.Open(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			if n, countErr := s.meta.Count(); countErr == nil && n > 0 {
				s.logger.Warn("metadata present without index file, starting empty",
					zap.String("index_path", s.indexPath), zap.Int("metadata_rows", n))
			}
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}

	docs, err := s.meta.LoadAll()
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}
	if n > 0 && len(docs) == 0 {
		s.logger.Warn("index file present without metadata rows, starting empty",
			zap.String("index_path", s.indexPath), zap.Uint32("index_rows", n))
		return nil
	}

	s.dim = int(dim)
	buf := make([]byte, s.dim*4)
	for i := uint32(0); i < n; i++ {
		var id int64
		if err := binary.Read(f, binary.LittleEndian, &id); err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		doc, ok := docs[id]
		if !ok {
			// Row with no metadata: tolerate the partial corruption and skip.
			s.logger.Warn("index row without metadata, skipping", zap.Int64("internal_id", id))
			continue
		}
		s.pos[id] = len(s.ids)
		s.ids = append(s.ids, id)
		s.vectors = append(s.vectors, bytesToFloat32(buf))
		s.docs[id] = doc
	}
	return nil
}

// Index upserts documents with their vectors. The first batch fixes the
// store dimension. Re-indexing a known id overwrites its vector in place, so
// no duplicate entries accumulate.
func (s *FlatStore) Index(ctx context.Context, docs []*models.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents and vectors length mismatch: %d vs %d", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim == 0 {
		if len(vectors[0]) == 0 {
			return fmt.Errorf("cannot index zero-dimension vectors")
		}
		s.dim = len(vectors[0])
	}
	for i, doc := range docs {
		if len(vectors[i]) != s.dim {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), s.dim)
		}
		internal := InternalID(doc.ID)
		if prev, ok := s.docs[internal]; ok && prev.ID != doc.ID {
			s.logger.Warn("internal id collision, last write wins",
				zap.String("previous_id", prev.ID), zap.String("new_id", doc.ID), zap.Int64("internal_id", internal))
		}
		vec := make([]float32, s.dim)
		copy(vec, vectors[i])
		if slot, ok := s.pos[internal]; ok {
			s.vectors[slot] = vec
		} else {
			s.pos[internal] = len(s.ids)
			s.ids = append(s.ids, internal)
			s.vectors = append(s.vectors, vec)
		}
		s.docs[internal] = doc
	}
	return nil
}

// Search returns the top-k entries by inner product, resolved to documents.
// Labels equal to the engine sentinel or missing from the metadata map are
// dropped rather than erroring.
func (s *FlatStore) Search(ctx context.Context, query []float32, k int) ([]*models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*models.SearchResult, 0, k)
	if k <= 0 || len(s.ids) == 0 {
		return results, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), s.dim)
	}

	type scored struct {
		id    int64
		score float64
	}
	scores := make([]scored, len(s.ids))
	for i, vec := range s.vectors {
		var dot float64
		for j := 0; j < s.dim; j++ {
			dot += float64(query[j] * vec[j])
		}
		scores[i] = scored{id: s.ids[i], score: dot}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	for _, sc := range scores {
		if len(results) == k {
			break
		}
		if sc.id == idSentinel {
			continue
		}
		doc, ok := s.docs[sc.id]
		if !ok {
			continue
		}
		results = append(results, &models.SearchResult{Document: doc, Score: sc.score})
	}
	return results, nil
}

// Remove deletes entries whose document id or parent id matches any of ids.
func (s *FlatStore) Remove(ctx context.Context, ids []string) error {
	targets := make(map[string]bool, len(ids))
	for _, id := range ids {
		targets[id] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for internal, doc := range s.docs {
		if !targets[doc.ID] && !targets[doc.OriginalID()] {
			continue
		}
		slot := s.pos[internal]
		last := len(s.ids) - 1
		if slot != last {
			movedID := s.ids[last]
			s.ids[slot] = movedID
			s.vectors[slot] = s.vectors[last]
			s.pos[movedID] = slot
		}
		s.ids = s.ids[:last]
		s.vectors = s.vectors[:last]
		delete(s.pos, internal)
		delete(s.docs, internal)
	}
	return nil
}

// Get returns the entry stored under id, or nil when absent.
func (s *FlatStore) Get(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[InternalID(id)]
	if !ok || doc.ID != id {
		return nil, nil
	}
	return doc, nil
}

// DocCount returns the number of distinct indexed documents/chunks.
func (s *FlatStore) DocCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Save rewrites both persistence artifacts: the binary index file and the
// metadata table. Errors surface — silent data loss is worse than a failed
// save.
func (s *FlatStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.indexPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.indexPath), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(s.indexPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint32(s.dim)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(s.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range s.ids {
		if err := binary.Write(f, binary.LittleEndian, id); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := f.Write(float32ToBytes(s.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	if err := s.meta.ReplaceAll(s.docs); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

// Close closes the metadata store. In-memory additions not saved are lost.
func (s *FlatStore) Close() error {
	return s.meta.Close()
}

func float32ToBytes(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(x))
	}
	return out
}

func bytesToFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
