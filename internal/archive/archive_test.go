package archive

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/xmledit/internal/apperr"
	"github.com/starford/xmledit/internal/revision"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCommitAndHistory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")
	a, err := Open(dir, quiet())
	require.NoError(t, err)

	empty, err := a.History("topic.xml", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	ctx := context.Background()
	when := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	h1, err := a.Commit(ctx, "topic.xml", "<topic/>", revision.Record{Number: "1.1", Comment: "First", Timestamp: when})
	require.NoError(t, err)
	assert.Len(t, h1, 7)

	_, err = a.Commit(ctx, "topic.xml", "<topic><para/></topic>", revision.Record{Number: "1.2", Comment: "Second", Timestamp: when.Add(time.Minute)})
	require.NoError(t, err)
	_, err = a.Commit(ctx, "other.xml", "<other/>", revision.Record{Number: "1.1", Comment: "Other"})
	require.NoError(t, err)

	hist, err := a.History("topic.xml", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "Revision 1.2: Second", hist[0].Message)
	assert.Equal(t, "Revision 1.1: First", hist[1].Message)
	assert.Equal(t, h1, hist[1].Hash)
	assert.Equal(t, authorName, hist[0].Author)

	limited, err := a.History("topic.xml", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestOpen_ReopensExisting(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir, quiet())
	require.NoError(t, err)
	_, err = a.Commit(context.Background(), "doc", "<a/>", revision.Record{Number: "1.1", Comment: "c"})
	require.NoError(t, err)

	b, err := Open(dir, quiet())
	require.NoError(t, err)
	hist, err := b.History("doc.xml", 0)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "document.xml"},
		{"topic.xml", "topic.xml"},
		{"sub/t.XML", "sub/t.XML"},
		{"../../etc/passwd", "etc/passwd.xml"},
		{"notes", "notes.xml"},
	}
	for _, tt := range tests {
		got, err := fileName(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := fileName(".git/config")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}
