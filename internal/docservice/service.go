// Package docservice coordinates the samples directory, the catalog and
// editing sessions.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/starford/xmledit/internal/apperr"
	"github.com/starford/xmledit/internal/catalog"
	"github.com/starford/xmledit/internal/checksum"
	"github.com/starford/xmledit/internal/parser"
	"github.com/starford/xmledit/internal/session"
	"github.com/starford/xmledit/internal/storage"
)

// DocumentDetail is the full representation of a document.
type DocumentDetail struct {
	catalog.Document
	Content     string   `json:"content"`
	References  []string `json:"references"`
	Referencing []string `json:"referencing"`
}

// Service coordinates storage and catalog operations.
type Service struct {
	store    storage.Provider
	db       catalog.Index
	sessions *session.Manager
	logger   *slog.Logger
}

// NewService creates a new document service. sessions may be nil when
// OpenSession is not needed.
func NewService(store storage.Provider, db catalog.Index, sessions *session.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, db: db, sessions: sessions, logger: logger}
}

func (s *Service) read(path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("docservice: %s: %w", path, apperr.ErrNotFound)
	}
	return data, err
}

// GetDocument reads a document and enriches it with catalog data.
func (s *Service) GetDocument(_ context.Context, path string) (*DocumentDetail, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(path, data)
}

// CreateDocument writes a new document and indexes it. Malformed content
// is accepted and shows up in the catalog with kind "error".
func (s *Service) CreateDocument(_ context.Context, path string, content []byte) (*DocumentDetail, error) {
	if _, err := s.store.Read(path); err == nil {
		return nil, fmt.Errorf("docservice: %s: %w", path, apperr.ErrAlreadyExists)
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := catalog.IndexFile(s.db, path, content); err != nil {
		return nil, err
	}
	return s.buildDetail(path, content)
}

// UpdateDocument writes updated content with optimistic concurrency.
// ifMatch is the checksum the caller last saw; empty skips the check.
func (s *Service) UpdateDocument(_ context.Context, path string, content []byte, ifMatch string) (*DocumentDetail, error) {
	existing, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if !checksum.Match(existing, ifMatch) {
		return nil, fmt.Errorf("docservice: %s changed on disk: %w", path, apperr.ErrConflict)
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := catalog.IndexFile(s.db, path, content); err != nil {
		return nil, err
	}
	return s.buildDetail(path, content)
}

// DeleteDocument removes a document from storage and the catalog.
func (s *Service) DeleteDocument(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("docservice: %s: %w", path, apperr.ErrNotFound)
		}
		return err
	}
	return s.db.DeleteDocument(path)
}

// MoveDocument renames a document and moves its catalog entry. The
// target must not exist.
func (s *Service) MoveDocument(_ context.Context, from, to string) (*DocumentDetail, error) {
	data, err := s.read(from)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Read(to); err == nil {
		return nil, fmt.Errorf("docservice: %s: %w", to, apperr.ErrAlreadyExists)
	}
	if err := s.store.Move(from, to); err != nil {
		return nil, err
	}
	if err := s.db.DeleteDocument(from); err != nil {
		return nil, err
	}
	if err := catalog.IndexFile(s.db, to, data); err != nil {
		return nil, err
	}
	s.logger.Info("docservice: document moved", slog.String("from", from), slog.String("to", to))
	return s.buildDetail(to, data)
}

// ListDocuments returns catalog entries in display order. An empty kind
// lists everything.
func (s *Service) ListDocuments(_ context.Context, kind string) ([]catalog.Document, error) {
	k := parser.Kind(strings.ToLower(strings.TrimSpace(kind)))
	return s.db.ListDocuments(k)
}

// Search delegates full-text search to the catalog.
func (s *Service) Search(_ context.Context, query string, limit int) ([]catalog.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []catalog.SearchResult{}, nil
	}
	return s.db.Search(query, limit)
}

// Referencing returns the documents that refer to path.
func (s *Service) Referencing(_ context.Context, path string) ([]string, error) {
	return s.db.Referencing(path)
}

// Refresh rebuilds the catalog from disk.
func (s *Service) Refresh(_ context.Context) error {
	return catalog.Refresh(s.db, s.store, s.logger)
}

// OpenSession loads a stored document into a new editing session.
func (s *Service) OpenSession(ctx context.Context, path string) (*session.Session, error) {
	if s.sessions == nil {
		return nil, fmt.Errorf("docservice: sessions: %w", apperr.ErrNotConfigured)
	}
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return s.sessions.Import(ctx, path, data)
}

// buildDetail constructs a DocumentDetail from raw data without re-reading
// the file.
func (s *Service) buildDetail(path string, data []byte) (*DocumentDetail, error) {
	doc, err := s.db.GetDocument(path)
	if errors.Is(err, apperr.ErrNotFound) {
		// Not indexed yet (watcher lag); summarize directly.
		if err := catalog.IndexFile(s.db, path, data); err != nil {
			return nil, err
		}
		doc, err = s.db.GetDocument(path)
	}
	if err != nil {
		return nil, err
	}
	refs, err := s.db.References(path)
	if err != nil {
		return nil, err
	}
	referencing, err := s.db.Referencing(path)
	if err != nil {
		return nil, err
	}
	doc.Checksum = checksum.Sum(data)
	return &DocumentDetail{
		Document:    *doc,
		Content:     string(data),
		References:  refs,
		Referencing: referencing,
	}, nil
}
