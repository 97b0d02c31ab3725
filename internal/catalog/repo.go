package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/xmledit/internal/apperr"
	"github.com/starford/xmledit/internal/parser"
)

// Document represents a row in the documents table.
type Document struct {
	Path       string            `json:"path"`
	Kind       parser.Kind       `json:"kind"`
	Root       string            `json:"root,omitempty"`
	Title      string            `json:"title"`
	Subtype    string            `json:"subtype,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Error      string            `json:"error,omitempty"`
	Checksum   string            `json:"checksum"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string      `json:"path"`
	Title   string      `json:"title"`
	Kind    parser.Kind `json:"kind"`
	Snippet string      `json:"snippet"`
}

// refType names the element a document kind references others with.
func refType(k parser.Kind) string {
	switch k {
	case parser.KindIndex:
		return "topicRef"
	case parser.KindTopic:
		return "sectionRef"
	}
	return ""
}

// displayOrder mirrors parser.Less.
const displayOrder = `
	ORDER BY CASE kind
		WHEN 'index' THEN 0
		WHEN 'topic' THEN 1
		WHEN 'section' THEN 2
		WHEN 'error' THEN 3
		WHEN 'unknown' THEN 4
		ELSE 5 END, title, path`

// UpsertDocument inserts or replaces a document, its FTS entry and its
// outgoing references within a transaction.
func (db *DB) UpsertDocument(d Document, body string, refs []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	attrs, _ := json.Marshal(d.Attributes)
	if d.Attributes == nil {
		attrs = []byte("{}")
	}

	_, err = tx.Exec(`
		INSERT INTO documents (path, kind, root, title, subtype, attributes, error, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			kind       = excluded.kind,
			root       = excluded.root,
			title      = excluded.title,
			subtype    = excluded.subtype,
			attributes = excluded.attributes,
			error      = excluded.error,
			checksum   = excluded.checksum,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, d.Path, string(d.Kind), d.Root, d.Title, d.Subtype, string(attrs), d.Error, d.Checksum, body, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: upsert document: %w", err)
	}

	if err := ftsUpsert(tx, d.Path, d.Title, body); err != nil {
		return err
	}

	_, _ = tx.Exec(`DELETE FROM refs WHERE source = ?`, d.Path)
	if len(refs) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO refs (source, target, type) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("catalog: prepare ref insert: %w", err)
		}
		defer stmt.Close()
		typ := refType(d.Kind)
		for _, target := range refs {
			if _, err := stmt.Exec(d.Path, target, typ); err != nil {
				return fmt.Errorf("catalog: insert ref: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document, its FTS entry and outgoing references.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM refs WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM documents WHERE path = ?`, path)

	return tx.Commit()
}

// Clear empties the catalog.
func (db *DB) Clear() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsClear(tx)
	if _, err := tx.Exec(`DELETE FROM refs`); err != nil {
		return fmt.Errorf("catalog: clear refs: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM documents`); err != nil {
		return fmt.Errorf("catalog: clear documents: %w", err)
	}
	return tx.Commit()
}

const documentColumns = `path, kind, root, title, subtype, attributes, error, checksum, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var (
		d     Document
		kind  string
		attrs string
	)
	if err := row.Scan(&d.Path, &kind, &d.Root, &d.Title, &d.Subtype, &attrs, &d.Error, &d.Checksum, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Kind = parser.Kind(kind)
	_ = json.Unmarshal([]byte(attrs), &d.Attributes)
	return &d, nil
}

// GetDocument returns the catalog entry for path.
func (db *DB) GetDocument(path string) (*Document, error) {
	d, err := scanDocument(db.conn.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get document: %w", err)
	}
	return d, nil
}

// GetChecksum returns the stored checksum for a document, or empty string
// if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("catalog: get checksum: %w", err)
	}
	return cs, nil
}

// ListDocuments returns documents in display order, optionally restricted
// to one kind.
func (db *DB) ListDocuments(kind parser.Kind) ([]Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents`
	var args []any
	if kind != "" {
		q += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	rows, err := db.conn.Query(q+displayOrder, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list documents: %w", err)
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// AllPaths returns every indexed document path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("catalog: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// AllChecksums returns path → checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("catalog: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// References returns the documents path refers to, in document order.
func (db *DB) References(path string) ([]string, error) {
	return db.column(`SELECT target FROM refs WHERE source = ? ORDER BY rowid`, path)
}

// Referencing returns all document paths that refer to target.
func (db *DB) Referencing(target string) ([]string, error) {
	return db.column(`SELECT source FROM refs WHERE target = ? ORDER BY source`, target)
}

func (db *DB) column(q, arg string) ([]string, error) {
	rows, err := db.conn.Query(q, arg)
	if err != nil {
		return nil, fmt.Errorf("catalog: refs: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
