package vectorstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"go.uber.org/zap"

	"github.com/acervolegal/acervo/internal/models"
)

// OpenSearchStore delegates indexing and kNN search to an OpenSearch cluster
// with the knn plugin. Documents and vectors live together in one index, so
// there is no local persistence pair to manage; Saver is deliberately not
// implemented.
type OpenSearchStore struct {
	client    *opensearch.Client
	indexName string
	dim       int
	spaceType string
	logger    *zap.Logger
}

var (
	_ VectorStore = (*OpenSearchStore)(nil)
	_ Remover     = (*OpenSearchStore)(nil)
	_ Getter      = (*OpenSearchStore)(nil)
)

// NewOpenSearchStore connects to the cluster and verifies it is reachable.
// An unreachable cluster is a startup failure, not a degraded mode.
func NewOpenSearchStore(opts OpenSearchOptions, normalized bool, logger *zap.Logger) (*OpenSearchStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	scheme := "http"
	if opts.UseTLS {
		scheme = "https"
	}
	cfg := opensearch.Config{
		Addresses: []string{fmt.Sprintf("%s://%s:%d", scheme, opts.Host, opts.Port)},
		Username:  opts.Username,
		Password:  opts.Password,
	}
	if opts.UseTLS && opts.InsecureTLS {
		cfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	client, err := opensearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("opensearch cluster unreachable: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("opensearch cluster info: %s", res.String())
	}

	spaceType := "l2"
	if normalized {
		spaceType = "innerproduct"
	}
	return &OpenSearchStore{
		client:    client,
		indexName: opts.Index,
		spaceType: spaceType,
		logger:    logger,
	}, nil
}

// ensureIndex creates the knn-enabled index if it does not exist. The vector
// dimension comes from the first indexed batch and is baked into the mapping.
func (s *OpenSearchStore) ensureIndex(ctx context.Context, dim int) error {
	exists := opensearchapi.IndicesExistsRequest{Index: []string{s.indexName}}
	res, err := exists.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		s.dim = dim
		return nil
	}

	mapping := map[string]interface{}{
		"settings": map[string]interface{}{
			"index": map[string]interface{}{
				"knn": true,
			},
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"embedding": map[string]interface{}{
					"type":      "knn_vector",
					"dimension": dim,
					"method": map[string]interface{}{
						"name":       "hnsw",
						"space_type": s.spaceType,
						"engine":     "nmslib",
					},
				},
				"doc_id":      map[string]interface{}{"type": "keyword"},
				"original_id": map[string]interface{}{"type": "keyword"},
				"court":       map[string]interface{}{"type": "keyword"},
				"code":        map[string]interface{}{"type": "keyword"},
				"article":     map[string]interface{}{"type": "keyword"},
				"title":       map[string]interface{}{"type": "text"},
				"text":        map[string]interface{}{"type": "text"},
				"date":        map[string]interface{}{"type": "date", "ignore_malformed": true},
				"meta":        map[string]interface{}{"type": "object", "enabled": false},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshal index mapping: %w", err)
	}

	create := opensearchapi.IndicesCreateRequest{
		Index: s.indexName,
		Body:  bytes.NewReader(body),
	}
	cres, err := create.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer cres.Body.Close()
	if cres.IsError() {
		// A concurrent creator can win the race; that outcome is fine.
		if strings.Contains(cres.String(), "resource_already_exists_exception") {
			s.dim = dim
			return nil
		}
		return fmt.Errorf("create index %s: %s", s.indexName, cres.String())
	}
	s.logger.Info("created opensearch index",
		zap.String("index", s.indexName), zap.Int("dimensions", dim), zap.String("space_type", s.spaceType))
	s.dim = dim
	return nil
}

type osDocument struct {
	DocID      string                 `json:"doc_id"`
	OriginalID string                 `json:"original_id,omitempty"`
	Title      string                 `json:"title,omitempty"`
	Text       string                 `json:"text"`
	Court      string                 `json:"court,omitempty"`
	Code       string                 `json:"code,omitempty"`
	Article    string                 `json:"article,omitempty"`
	Date       string                 `json:"date,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
	Embedding  []float32              `json:"embedding"`
}

// Index bulk-upserts documents with their vectors. The external document id
// doubles as the OpenSearch _id, so re-indexing replaces in place. Per-item
// failures are logged and counted but do not fail the batch.
func (s *OpenSearchStore) Index(ctx context.Context, docs []*models.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents and vectors length mismatch: %d vs %d", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}
	if s.dim == 0 {
		if err := s.ensureIndex(ctx, len(vectors[0])); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	for i, doc := range docs {
		if len(vectors[i]) != s.dim {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), s.dim)
		}
		action := map[string]interface{}{
			"index": map[string]interface{}{"_index": s.indexName, "_id": doc.ID},
		}
		actionLine, err := json.Marshal(action)
		if err != nil {
			return fmt.Errorf("marshal bulk action: %w", err)
		}
		docLine, err := json.Marshal(osDocument{
			DocID:      doc.ID,
			OriginalID: doc.OriginalID(),
			Title:      doc.Title,
			Text:       doc.Text,
			Court:      doc.Court,
			Code:       doc.Code,
			Article:    doc.Article,
			Date:       doc.Date,
			Meta:       doc.Meta,
			Embedding:  vectors[i],
		})
		if err != nil {
			return fmt.Errorf("marshal document %s: %w", doc.ID, err)
		}
		buf.Write(actionLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	req := opensearchapi.BulkRequest{Body: bytes.NewReader(buf.Bytes()), Refresh: "true"}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index: %s", res.String())
	}

	var bulk struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if bulk.Errors {
		failed := 0
		for _, item := range bulk.Items {
			for _, op := range item {
				if op.Error != nil {
					failed++
					s.logger.Warn("bulk item failed",
						zap.String("doc_id", op.ID), zap.String("reason", op.Error.Reason))
				}
			}
		}
		s.logger.Warn("bulk index completed with failures",
			zap.Int("failed", failed), zap.Int("total", len(docs)))
	}
	return nil
}

// Search runs a kNN query and passes cluster scores through unchanged.
// A missing index (nothing indexed yet) yields an empty result set.
func (s *OpenSearchStore) Search(ctx context.Context, query []float32, k int) ([]*models.SearchResult, error) {
	results := make([]*models.SearchResult, 0, k)
	if k <= 0 {
		return results, nil
	}
	if s.dim != 0 && len(query) != s.dim {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), s.dim)
	}

	body := map[string]interface{}{
		"size": k,
		"query": map[string]interface{}{
			"knn": map[string]interface{}{
				"embedding": map[string]interface{}{
					"vector": query,
					"k":      k,
				},
			},
		},
		"_source": map[string]interface{}{
			"excludes": []string{"embedding"},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{s.indexName},
		Body:  bytes.NewReader(raw),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return results, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("knn search: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64    `json:"_score"`
				Source osDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	for _, hit := range parsed.Hits.Hits {
		doc := &models.Document{
			ID:      hit.Source.DocID,
			Title:   hit.Source.Title,
			Text:    hit.Source.Text,
			Court:   hit.Source.Court,
			Code:    hit.Source.Code,
			Article: hit.Source.Article,
			Date:    hit.Source.Date,
			Meta:    hit.Source.Meta,
		}
		if doc.Meta == nil {
			doc.Meta = make(map[string]interface{})
		}
		if hit.Source.OriginalID != "" {
			doc.Meta[models.MetaOriginalID] = hit.Source.OriginalID
		}
		results = append(results, &models.SearchResult{Document: doc, Score: hit.Score})
	}
	return results, nil
}

// Remove deletes documents whose id or parent id matches any of ids.
func (s *OpenSearchStore) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{"terms": map[string]interface{}{"doc_id": ids}},
					map[string]interface{}{"terms": map[string]interface{}{"original_id": ids}},
				},
			},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal delete query: %w", err)
	}

	refresh := true
	req := opensearchapi.DeleteByQueryRequest{
		Index:   []string{s.indexName},
		Body:    bytes.NewReader(raw),
		Refresh: &refresh,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("delete by query: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("delete by query: %s", res.String())
	}
	return nil
}

// Get fetches a single document by its external id, or nil when absent.
func (s *OpenSearchStore) Get(ctx context.Context, id string) (*models.Document, error) {
	req := opensearchapi.GetRequest{Index: s.indexName, DocumentID: id}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("get document: %s", res.String())
	}

	var parsed struct {
		Source osDocument `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode get response: %w", err)
	}
	doc := &models.Document{
		ID:      parsed.Source.DocID,
		Title:   parsed.Source.Title,
		Text:    parsed.Source.Text,
		Court:   parsed.Source.Court,
		Code:    parsed.Source.Code,
		Article: parsed.Source.Article,
		Date:    parsed.Source.Date,
		Meta:    parsed.Source.Meta,
	}
	if doc.Meta == nil {
		doc.Meta = make(map[string]interface{})
	}
	return doc, nil
}

// DocCount asks the cluster for the index document count. Errors (including
// a not-yet-created index) log and report zero rather than failing status
// endpoints.
func (s *OpenSearchStore) DocCount() int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req := opensearchapi.CountRequest{Index: []string{s.indexName}}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		s.logger.Warn("count request failed", zap.Error(err))
		return 0
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0
	}

	var parsed struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0
	}
	return parsed.Count
}

// Close releases nothing: the underlying HTTP transport has no resources
// that need explicit teardown.
func (s *OpenSearchStore) Close() error {
	return nil
}
