// Package models defines core data structures for legal documents, chunks, and search results.
package models

// Document represents a legal document or a chunk derived from one.
// ID is externally meaningful (case number, article reference, or a generated
// fallback) and stable across re-indexing runs: indexing the same ID again
// replaces the previous entry instead of creating a duplicate.
type Document struct {
	ID      string                 `json:"id"`
	Title   string                 `json:"title,omitempty"`
	Text    string                 `json:"text"`
	Court   string                 `json:"court,omitempty"`
	Code    string                 `json:"code,omitempty"`
	Article string                 `json:"article,omitempty"`
	Date    string                 `json:"date,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// Metadata keys set on chunks so a chunk can be traced back to its parent
// document and ordered within it.
const (
	MetaOriginalID  = "original_id"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
	MetaCharStart   = "char_start"
	MetaCharEnd     = "char_end"
)

// Clone returns a shallow copy of the document with its own Meta map.
func (d *Document) Clone() *Document {
	out := *d
	out.Meta = make(map[string]interface{}, len(d.Meta)+5)
	for k, v := range d.Meta {
		out.Meta[k] = v
	}
	return &out
}

// ChunkIndex returns the chunk_index meta value, or 0 when the document
// is not a chunk.
func (d *Document) ChunkIndex() int {
	return metaInt(d.Meta, MetaChunkIndex)
}

// OriginalID returns the parent document ID for a chunk, or the document's
// own ID when it is not a chunk.
func (d *Document) OriginalID() string {
	if d.Meta != nil {
		if v, ok := d.Meta[MetaOriginalID].(string); ok && v != "" {
			return v
		}
	}
	return d.ID
}

func metaInt(m map[string]interface{}, key string) int {
	if m == nil {
		return 0
	}
	switch n := m[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
