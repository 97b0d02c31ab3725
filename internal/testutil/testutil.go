// Package testutil provides shared test helpers for samples directories,
// catalogs and sample documents.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/xmledit/internal/catalog"
	"github.com/starford/xmledit/internal/storage"
)

// Sample documents forming a small index → topic → section tree.
const (
	IndexXML   = `<?xml version="1.0" encoding="UTF-8"?><product manualCode="MC-1"><title>Engine Manual</title><topicRef ref="topic.xml"/></product>`
	TopicXML   = `<?xml version="1.0" encoding="UTF-8"?><topic id="t1" type="chapter"><title>Starting</title><para id="p1">Turn the key.</para><sectionRef ref="section.xml"/></topic>`
	SectionXML = `<section type="procedure"><para>Check the oil level.</para></section>`
)

// TestDB creates a temporary SQLite catalog that is automatically cleaned up.
func TestDB(t *testing.T) *catalog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "xmledit-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := catalog.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestSamples creates a temporary samples directory with a storage.Provider.
func TestSamples(t *testing.T) (string, storage.Provider) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store
}

// SeedSamples writes the sample documents into store.
func SeedSamples(t *testing.T, store storage.Provider) {
	t.Helper()
	for name, content := range map[string]string{
		"index.xml":   IndexXML,
		"topic.xml":   TopicXML,
		"section.xml": SectionXML,
	} {
		if err := store.Write(name, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
}
