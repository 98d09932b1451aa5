// Package metadata provides the sqlite side table that maps internal numeric
// index ids back to full documents for the local vector stores.
package metadata

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/acervolegal/acervo/internal/models"
)

// Store persists document rows keyed by the internal int64 index id. The open
// meta map is stored as a JSON string per row because a columnar table cannot
// hold heterogeneous nested values natively; an absent map round-trips to an
// empty map, never null.
type Store struct {
	db *sql.DB
}

// Open opens or creates the metadata database at path and initializes the
// schema. Parent directories are created if they do not exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create metadata directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		internal_id INTEGER PRIMARY KEY,
		doc_id TEXT NOT NULL,
		title TEXT,
		text TEXT NOT NULL,
		court TEXT,
		code TEXT,
		article TEXT,
		date TEXT,
		meta TEXT NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_documents_doc_id ON documents(doc_id);
	`
	_, err := db.Exec(schema)
	return err
}

// ReplaceAll rewrites the table with the given rows in a single transaction.
// Called on Save so the metadata file and the index file stay paired.
func (s *Store) ReplaceAll(rows map[int64]*models.Document) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM documents`); err != nil {
		return fmt.Errorf("clear metadata: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO documents (internal_id, doc_id, title, text, court, code, article, date, meta)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for internalID, doc := range rows {
		metaJSON, err := encodeMeta(doc.Meta)
		if err != nil {
			return fmt.Errorf("encode meta for %s: %w", doc.ID, err)
		}
		if _, err := stmt.Exec(internalID, doc.ID, doc.Title, doc.Text, doc.Court, doc.Code, doc.Article, doc.Date, metaJSON); err != nil {
			return fmt.Errorf("insert metadata row %s: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

// LoadAll returns every row keyed by internal id. A malformed meta column is
// skipped for that row (the document still loads with an empty map).
func (s *Store) LoadAll() (map[int64]*models.Document, error) {
	rows, err := s.db.Query(
		`SELECT internal_id, doc_id, title, text, court, code, article, date, meta FROM documents`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]*models.Document)
	for rows.Next() {
		var internalID int64
		var metaJSON string
		doc := &models.Document{}
		if err := rows.Scan(&internalID, &doc.ID, &doc.Title, &doc.Text, &doc.Court, &doc.Code, &doc.Article, &doc.Date, &metaJSON); err != nil {
			return nil, err
		}
		doc.Meta = decodeMeta(metaJSON)
		out[internalID] = doc
	}
	return out, rows.Err()
}

// Get returns the document for an internal id, or nil when absent.
func (s *Store) Get(internalID int64) (*models.Document, error) {
	var metaJSON string
	doc := &models.Document{}
	err := s.db.QueryRow(
		`SELECT doc_id, title, text, court, code, article, date, meta FROM documents WHERE internal_id = ?`,
		internalID,
	).Scan(&doc.ID, &doc.Title, &doc.Text, &doc.Court, &doc.Code, &doc.Article, &doc.Date, &metaJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc.Meta = decodeMeta(metaJSON)
	return doc, nil
}

// Count returns the number of rows.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeMeta(meta map[string]interface{}) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeMeta always returns a non-nil map; a malformed column yields an
// empty map rather than failing the row.
func decodeMeta(metaJSON string) map[string]interface{} {
	meta := make(map[string]interface{})
	if metaJSON == "" {
		return meta
	}
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return make(map[string]interface{})
	}
	return meta
}
