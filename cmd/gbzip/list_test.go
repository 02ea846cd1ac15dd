package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rounak-Paul/gbzip/internal/archive"
)

func buildListFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	src := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte(strings.Repeat("list me\n", 200)), 0o644))

	archivePath := filepath.Join(dir, "fixture.zip")
	w, err := archive.NewWriter(archivePath, archive.Options{Method: archive.MethodDeflate, Level: 6})
	require.NoError(t, err)

	mtime := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	require.NoError(t, w.AddDir("docs/", mtime))
	require.NoError(t, w.AddFile("docs/notes.txt", src, mtime))
	require.NoError(t, w.Close())
	return archivePath
}

func TestListArchive(t *testing.T) {
	archivePath := buildListFixture(t)

	var buf bytes.Buffer
	require.NoError(t, listArchive(&buf, archivePath, false))

	out := buf.String()
	assert.Contains(t, out, "Archive: "+archivePath)
	assert.Contains(t, out, "packed")
	assert.Contains(t, out, "docs/\n")
	assert.Contains(t, out, "docs/notes.txt")
	assert.Contains(t, out, "deflate")
	assert.Contains(t, out, "1 files, 1 dirs")
	assert.NotContains(t, out, "crc32")
}

func TestListArchiveVerbose(t *testing.T) {
	archivePath := buildListFixture(t)

	var buf bytes.Buffer
	require.NoError(t, listArchive(&buf, archivePath, true))

	out := buf.String()
	assert.Contains(t, out, "crc32")
	// The fixture content is fixed, so the checksum column is populated.
	assert.NotContains(t, out, "00000000")
}

func TestListArchiveMissing(t *testing.T) {
	err := listArchive(io.Discard, filepath.Join(t.TempDir(), "absent.zip"), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestListRatio(t *testing.T) {
	assert.Equal(t, "30%", listRatio(100, 30))
	assert.Equal(t, "100%", listRatio(512, 512))
	assert.Equal(t, "-", listRatio(0, 0))
}
