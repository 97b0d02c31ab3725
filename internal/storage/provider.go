// Package storage defines the file-system abstraction over the samples
// directory.
package storage

import "github.com/starford/xmledit/internal/models"

// Ext is the only file extension storage handles.
const Ext = ".xml"

// Provider is the interface for document file operations. Paths are
// relative to the samples root.
type Provider interface {
	// List returns metadata for every .xml file under dir.
	List(dir string) ([]models.DocumentMetadata, error)
	// Read returns the raw bytes of the document at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the document at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Root returns the absolute samples directory.
	Root() string
}
