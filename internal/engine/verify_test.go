package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rounak-Paul/gbzip/internal/event"
	"github.com/Rounak-Paul/gbzip/internal/stats"
)

// verifyEntries builds the entries Verify expects for files already on disk.
func verifyEntries(t *testing.T, src string, names ...string) []*Entry {
	t.Helper()
	entries := make([]*Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, poolEntry(t, filepath.Join(src, filepath.FromSlash(name)), name))
	}
	return entries
}

func TestVerifyMatchingArchive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{"a.txt": "alpha", "sub/b.txt": "beta"})
	target := filepath.Join(dir, "out.zip")
	require.NoError(t, Create(context.Background(), testConfig(target, src)).Err)

	ch, drain := collectEvents(t)
	col := stats.NewCollector()
	cfg := testConfig(target, src)
	cfg.Workers = 2
	cfg.Stats = col
	cfg.Events = ch

	vr := Verify(context.Background(), cfg, verifyEntries(t, src, "a.txt", "sub/b.txt"))

	assert.Equal(t, int64(2), vr.Verified)
	assert.Equal(t, int64(0), vr.Failed)
	assert.Empty(t, vr.Errors)
	assert.EqualValues(t, 2, col.Snapshot().Verified)

	var started, ok int
	for _, ev := range drain() {
		switch ev.Type {
		case event.VerifyStarted:
			started++
		case event.VerifyOK:
			ok++
		}
	}
	assert.Equal(t, 1, started)
	assert.Equal(t, 2, ok)
}

func TestVerifyDetectsSourceDrift(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{"f.txt": "archived content"})
	target := filepath.Join(dir, "out.zip")
	require.NoError(t, Create(context.Background(), testConfig(target, src)).Err)

	// The source moves on after archiving; verification must notice.
	require.NoError(t, os.WriteFile(filepath.Join(src, "f.txt"), []byte("drifted content!"), 0644))

	vr := Verify(context.Background(), testConfig(target, src), verifyEntries(t, src, "f.txt"))

	assert.Equal(t, int64(0), vr.Verified)
	assert.Equal(t, int64(1), vr.Failed)
	require.Len(t, vr.Errors, 1)
	assert.Equal(t, "f.txt", vr.Errors[0].Path)
	assert.Len(t, vr.Errors[0].SourceHash, 64)
	assert.Len(t, vr.Errors[0].ArchiveHash, 64)
	assert.NotEqual(t, vr.Errors[0].SourceHash, vr.Errors[0].ArchiveHash)
}

func TestVerifyMissingEntry(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{"a.txt": "alpha", "late.txt": "added after archiving"})
	target := filepath.Join(dir, "out.zip")
	require.NoError(t, Create(context.Background(), testConfig(target, filepath.Join(src, "a.txt"))).Err)

	vr := Verify(context.Background(), testConfig(target, src), verifyEntries(t, src, "late.txt"))

	assert.Equal(t, int64(1), vr.Failed)
	require.Len(t, vr.Errors, 1)
	assert.Equal(t, "missing", vr.Errors[0].ArchiveHash)
}

func TestVerifyMissingSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{"a.txt": "alpha"})
	target := filepath.Join(dir, "out.zip")
	require.NoError(t, Create(context.Background(), testConfig(target, src)).Err)

	entries := []*Entry{{SourcePath: filepath.Join(src, "vanished.txt"), ArchivePath: "vanished.txt"}}
	vr := Verify(context.Background(), testConfig(target, src), entries)

	assert.Equal(t, int64(1), vr.Failed)
	require.Len(t, vr.Errors, 1)
	assert.Equal(t, "error", vr.Errors[0].SourceHash)
	assert.Equal(t, "n/a", vr.Errors[0].ArchiveHash)
}

func TestVerifyMissingArchive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{"a.txt": "alpha", "b.txt": "beta"})

	cfg := testConfig(filepath.Join(dir, "absent.zip"), src)
	vr := Verify(context.Background(), cfg, verifyEntries(t, src, "a.txt", "b.txt"))

	assert.Equal(t, int64(2), vr.Failed)
	assert.Len(t, vr.Errors, 2)
	for _, ve := range vr.Errors {
		assert.Equal(t, "error", ve.ArchiveHash)
	}
}
