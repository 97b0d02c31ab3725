package catalog

import "github.com/starford/xmledit/internal/parser"

// Index defines the catalog operations used by services. Consumers depend
// on this interface rather than the concrete *DB type.
type Index interface {
	UpsertDocument(d Document, body string, refs []string) error
	DeleteDocument(path string) error
	GetDocument(path string) (*Document, error)
	GetChecksum(path string) (string, error)
	ListDocuments(kind parser.Kind) ([]Document, error)
	References(path string) ([]string, error)
	Referencing(target string) ([]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Clear() error
	Close() error
}

var _ Index = (*DB)(nil)
