package catalog

import (
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/xmledit/internal/checksum"
	"github.com/starford/xmledit/internal/parser"
	"github.com/starford/xmledit/internal/storage"
)

// Sync walks the samples directory and brings the catalog up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the catalog
func Sync(db Index, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteDocument(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// Refresh empties the catalog and re-parses every document.
func Refresh(db Index, store storage.Provider, logger *slog.Logger) error {
	if err := db.Clear(); err != nil {
		return err
	}
	if err := Sync(db, store, logger); err != nil {
		return err
	}
	logger.Info("sync: catalog refreshed")
	return nil
}

// IndexFile parses data and upserts it. Documents that fail to parse are
// indexed with kind "error" so they stay visible.
func IndexFile(db Index, p string, data []byte) error {
	s := parser.ParseDocument(data, p)
	return db.UpsertDocument(Document{
		Path:       p,
		Kind:       s.Kind,
		Root:       s.Root,
		Title:      s.Title,
		Subtype:    s.Subtype,
		Attributes: s.Attributes,
		Error:      s.Error,
		Checksum:   checksum.Sum(data),
		UpdatedAt:  time.Now().UTC(),
	}, s.Text, resolveRefs(p, s.References))
}

// resolveRefs makes ref attributes relative to the samples root. A ref is
// relative to the directory of the document holding it.
func resolveRefs(source string, refs []string) []string {
	dir := path.Dir(source)
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, path.Clean(path.Join(dir, r)))
	}
	return out
}

// Scan summarizes every document under the samples directory without
// touching the database. Summaries come back in display order and their
// references are resolved like IndexFile resolves them.
func Scan(store storage.Provider, logger *slog.Logger) ([]*parser.Summary, error) {
	metas, err := store.List("")
	if err != nil {
		return nil, err
	}
	out := make([]*parser.Summary, 0, len(metas))
	for _, m := range metas {
		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("scan: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		s := parser.ParseDocument(data, m.Path)
		s.References = resolveRefs(m.Path, s.References)
		out = append(out, s)
	}
	parser.Sort(out)
	return out, nil
}
