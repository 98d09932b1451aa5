// Package keyword provides a Bleve-backed term index for exact lookups
// (case numbers, code and article references) that embedding search
// handles poorly.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/acervolegal/acervo/internal/models"
)

// Index wraps a Bleve index over document text and structured fields.
type Index struct {
	index bleve.Index
}

// bleveDoc is the flattened shape stored in Bleve. Fields are stored so
// search hits reconstruct full documents without a second lookup.
type bleveDoc struct {
	DocID      string `json:"doc_id"`
	OriginalID string `json:"original_id"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	Court      string `json:"court"`
	Code       string `json:"code"`
	Article    string `json:"article"`
	Date       string `json:"date"`
}

// New creates or opens a Bleve index at path. An existing index is reused;
// remove the directory to force a rebuild after mapping changes.
func New(path string) (*Index, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so exact legal
	// references like "art. 5" and case numbers survive analysis.
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = true
	// Court, code, and article also go through the standard analyzer so
	// lowercase queries match references like "CDC" or "STF".
	for _, f := range []string{"title", "text", "court", "code", "article"} {
		docMapping.AddFieldMappingsAt(f, textField)
	}

	keywordField := bleve.NewKeywordFieldMapping()
	keywordField.Store = true
	for _, f := range []string{"doc_id", "original_id", "date"} {
		docMapping.AddFieldMappingsAt(f, keywordField)
	}
	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("open keyword index: %w", openErr)
		}
		return &Index{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return &Index{index: index}, nil
}

// Index indexes one document under its id.
func (b *Index) Index(ctx context.Context, doc *models.Document) error {
	return b.index.Index(doc.ID, bleveDoc{
		DocID:      doc.ID,
		OriginalID: doc.OriginalID(),
		Title:      doc.Title,
		Text:       doc.Text,
		Court:      doc.Court,
		Code:       doc.Code,
		Article:    doc.Article,
		Date:       doc.Date,
	})
}

// Search runs a match query over all fields and returns up to limit results
// with documents rebuilt from stored fields.
func (b *Index) Search(ctx context.Context, query string, limit int) ([]*models.SearchResult, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	out := make([]*models.SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		doc := &models.Document{
			ID:      hit.ID,
			Title:   fieldString(hit.Fields, "title"),
			Text:    fieldString(hit.Fields, "text"),
			Court:   fieldString(hit.Fields, "court"),
			Code:    fieldString(hit.Fields, "code"),
			Article: fieldString(hit.Fields, "article"),
			Date:    fieldString(hit.Fields, "date"),
			Meta:    map[string]interface{}{},
		}
		if orig := fieldString(hit.Fields, "original_id"); orig != "" {
			doc.Meta[models.MetaOriginalID] = orig
		}
		out = append(out, &models.SearchResult{Document: doc, Score: hit.Score})
	}
	return out, nil
}

func fieldString(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// Delete removes a document from the index.
func (b *Index) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the number of indexed documents.
func (b *Index) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the underlying index.
func (b *Index) Close() error {
	return b.index.Close()
}
