// Package archive commits finalized revisions into a local git repository
// so every revision of a document can be recovered.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/starford/xmledit/internal/apperr"
	"github.com/starford/xmledit/internal/revision"
)

const (
	authorName  = "xmledit"
	authorEmail = "revisions@xmledit.local"
)

// CommitInfo describes one archived revision.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// Archive is a git repository holding one file per document.
type Archive struct {
	root   string
	logger *slog.Logger

	mu   sync.Mutex
	repo *git.Repository
}

// Open opens the repository at root, initializing it on first use.
func Open(root string, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("archive: mkdir: %w", err)
	}
	repo, err := git.PlainOpen(root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(root, false)
		if err == nil {
			logger.Info("archive: initialized", slog.String("path", root))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("archive: open repo: %w", err)
	}
	return &Archive{root: root, logger: logger, repo: repo}, nil
}

// fileName maps a session name onto a path inside the repository.
func fileName(name string) (string, error) {
	name = strings.TrimSpace(filepath.ToSlash(name))
	if name == "" {
		name = "document.xml"
	}
	clean := path.Clean("/" + name)[1:]
	if clean == "" || strings.HasPrefix(clean, ".git") {
		return "", fmt.Errorf("archive: bad document name %q: %w", name, apperr.ErrInvalid)
	}
	if !strings.HasSuffix(strings.ToLower(clean), ".xml") {
		clean += ".xml"
	}
	return clean, nil
}

// Message is the commit message recorded for rec.
func Message(rec revision.Record) string {
	return fmt.Sprintf("Revision %s: %s", rec.Number, rec.Comment)
}

// Commit writes content as name and commits it for rec. It returns the
// short commit hash.
func (a *Archive) Commit(_ context.Context, name, content string, rec revision.Record) (string, error) {
	file, err := fileName(name)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	worktree, err := a.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("archive: open worktree: %w", err)
	}
	abs := filepath.Join(worktree.Filesystem.Root(), filepath.FromSlash(file))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("archive: mkdir: %w", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("archive: write %s: %w", file, err)
	}
	if _, err := worktree.Add(file); err != nil {
		return "", fmt.Errorf("archive: git add: %w", err)
	}

	when := rec.Timestamp
	if when.IsZero() {
		when = time.Now()
	}
	hash, err := worktree.Commit(Message(rec), &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  authorName,
			Email: authorEmail,
			When:  when,
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive: commit: %w", err)
	}
	short := hash.String()[:7]
	a.logger.Info("archive: committed",
		slog.String("file", file),
		slog.String("number", rec.Number),
		slog.String("hash", short))
	return short, nil
}

// History lists the commits touching name, newest first. limit <= 0 means
// no limit.
func (a *Archive) History(name string, limit int) ([]CommitInfo, error) {
	file, err := fileName(name)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	items := []CommitInfo{}
	head, err := a.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("archive: resolve head: %w", err)
	}

	iter, err := a.repo.Log(&git.LogOptions{From: head.Hash(), FileName: &file})
	if err != nil {
		return nil, fmt.Errorf("archive: read log: %w", err)
	}
	defer iter.Close()

	err = iter.ForEach(func(c *object.Commit) error {
		items = append(items, toCommitInfo(c))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("archive: iterate log: %w", err)
	}
	return items, nil
}

func toCommitInfo(c *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      c.Hash.String()[:7],
		Message:   strings.TrimSpace(c.Message),
		Author:    c.Author.Name,
		CreatedAt: c.Author.When,
	}
}
