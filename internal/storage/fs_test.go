package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/xmledit/internal/apperr"
	"github.com/starford/xmledit/internal/checksum"
)

func tempSamples(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempSamples(t)
	content := []byte(`<topic><title>Hello</title></topic>`)
	if err := s.Write("topic.xml", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("topic.xml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempSamples(t)
	if err := s.Write("a/b/c.xml", []byte("<c/>")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.xml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "<c/>" {
		t.Errorf("content = %q", got)
	}
}

func TestRejectsOtherExtensions(t *testing.T) {
	s := tempSamples(t)
	err := s.Write("notes.md", []byte("# no"))
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("Write(.md) err = %v, want ErrInvalid", err)
	}
	if _, err := s.Read("notes.md"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("Read(.md) err = %v, want ErrInvalid", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempSamples(t)
	_ = s.Write("del.xml", []byte("<bye/>"))
	if err := s.Delete("del.xml"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.xml"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist reading deleted file, got %v", err)
	}
}

func TestMove(t *testing.T) {
	s := tempSamples(t)
	_ = s.Write("old.xml", []byte("<data/>"))
	if err := s.Move("old.xml", "sub/new.xml"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("sub/new.xml")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "<data/>" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("old.xml"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestList(t *testing.T) {
	s := tempSamples(t)
	_ = s.Write("a.xml", []byte("<a/>"))
	_ = s.Write("sub/b.xml", []byte("<b/>"))
	_ = os.WriteFile(filepath.Join(s.Root(), "readme.txt"), []byte("not xml"), 0o644)
	_ = os.WriteFile(filepath.Join(s.Root(), ".hidden.xml"), []byte("<h/>"), 0o644)

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Path == "a.xml" && it.Checksum != checksum.Sum([]byte("<a/>")) {
			t.Errorf("checksum for a.xml = %q", it.Checksum)
		}
		if it.Path == "sub/b.xml" && it.Size != 4 {
			t.Errorf("size for sub/b.xml = %d", it.Size)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempSamples(t)

	cases := []string{
		"../../etc/passwd.xml",
		"../outside.xml",
		"/etc/shadow.xml",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("<x/>")); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("expected ErrInvalid for write to %q, got %v", p, err)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempSamples(t)
	_ = s.Write("atomic.xml", []byte("<original/>"))

	updated := []byte("<updated/>")
	if err := s.Write("atomic.xml", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.xml")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".xmledit-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "xmledit-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
