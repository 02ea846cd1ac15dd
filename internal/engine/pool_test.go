package engine

import (
	"bytes"
	"context"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rounak-Paul/gbzip/internal/archive"
	"github.com/Rounak-Paul/gbzip/internal/event"
	"github.com/Rounak-Paul/gbzip/internal/stats"
)

// poolEntry stats a file and builds the Entry the collector would have
// produced for it.
func poolEntry(t *testing.T, path, name string) *Entry {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return &Entry{
		SourcePath:  path,
		ArchivePath: name,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
	}
}

func inflate(t *testing.T, data []byte) []byte {
	t.Helper()
	rc := flate.NewReader(bytes.NewReader(data))
	raw, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	return raw
}

func unzstd(t *testing.T, data []byte) []byte {
	t.Helper()
	dec, err := zstd.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer dec.Close()
	raw, err := io.ReadAll(dec)
	require.NoError(t, err)
	return raw
}

func TestPoolDeflateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rawA := writeRandomFile(t, filepath.Join(dir, "a.bin"), 2<<20)
	rawB := writeRandomFile(t, filepath.Join(dir, "b.bin"), 3<<20/2)

	entries := []*Entry{
		poolEntry(t, filepath.Join(dir, "a.bin"), "a.bin"),
		poolEntry(t, filepath.Join(dir, "b.bin"), "b.bin"),
	}
	ch, drain := collectEvents(t)
	col := stats.NewCollector()
	p := &Pool{Workers: 4, Method: archive.MethodDeflate, Level: 6, Stats: col, Events: ch}
	p.Compress(context.Background(), entries)

	for i, raw := range [][]byte{rawA, rawB} {
		e := entries[i]
		require.True(t, e.Precompressed(), "entry %s should have a buffer", e.ArchivePath)
		assert.False(t, e.CompressFailed)
		assert.Equal(t, raw, inflate(t, e.Compressed))
		assert.Equal(t, crc32.ChecksumIEEE(raw), e.CRC32)
	}

	snap := col.Snapshot()
	assert.EqualValues(t, 2, snap.Precompressed)
	assert.EqualValues(t, 0, snap.Fallbacks)
	assert.EqualValues(t, int64(2<<20)+int64(3<<20/2), snap.PrecompressedIn)
	assert.EqualValues(t, int64(len(entries[0].Compressed)+len(entries[1].Compressed)), snap.PrecompressedOut)

	var compressed int
	for _, ev := range drain() {
		if ev.Type == event.FileCompressed {
			compressed++
		}
	}
	assert.Equal(t, 2, compressed)
}

func TestPoolZstdRoundTrip(t *testing.T) {
	dir := t.TempDir()
	raw := writeRandomFile(t, filepath.Join(dir, "a.bin"), 2<<20)

	e := poolEntry(t, filepath.Join(dir, "a.bin"), "a.bin")
	p := &Pool{Workers: 2, Method: archive.MethodZstd, Level: 3, Stats: stats.NewCollector()}
	p.Compress(context.Background(), []*Entry{e})

	require.True(t, e.Precompressed())
	assert.Equal(t, raw, unzstd(t, e.Compressed))
	assert.Equal(t, crc32.ChecksumIEEE(raw), e.CRC32)
}

func TestPoolEntriesAlwaysSettle(t *testing.T) {
	dir := t.TempDir()
	writeRandomFile(t, filepath.Join(dir, "good1.bin"), 2<<20)
	writeRandomFile(t, filepath.Join(dir, "good2.bin"), 2<<20)
	writeRandomFile(t, filepath.Join(dir, "moved.bin"), 2<<20)

	grown := poolEntry(t, filepath.Join(dir, "good2.bin"), "grown.bin")
	grown.Size++ // simulates the file changing between scan and compress

	entries := []*Entry{
		poolEntry(t, filepath.Join(dir, "good1.bin"), "good1.bin"),
		grown,
		{SourcePath: filepath.Join(dir, "gone.bin"), ArchivePath: "gone.bin", Size: 2 << 20},
		poolEntry(t, filepath.Join(dir, "moved.bin"), "moved.bin"),
	}
	ch, drain := collectEvents(t)
	col := stats.NewCollector()
	p := &Pool{Workers: 3, Method: archive.MethodDeflate, Level: 6, Stats: col, Events: ch}
	p.Compress(context.Background(), entries)

	for _, e := range entries {
		settled := e.Precompressed() != e.CompressFailed
		assert.True(t, settled, "entry %s must either carry a buffer or be marked failed", e.ArchivePath)
	}
	assert.True(t, entries[1].CompressFailed)
	assert.True(t, entries[2].CompressFailed)
	assert.Nil(t, entries[1].Compressed)

	snap := col.Snapshot()
	assert.EqualValues(t, 2, snap.Precompressed)
	assert.EqualValues(t, 2, snap.Fallbacks)

	var fallbacks int
	for _, ev := range drain() {
		if ev.Type == event.CompressFallback {
			fallbacks++
			assert.Error(t, ev.Error)
		}
	}
	assert.Equal(t, 2, fallbacks)
}

func TestPoolMissingSourceFallsBack(t *testing.T) {
	e := &Entry{
		SourcePath:  filepath.Join(t.TempDir(), "nope.bin"),
		ArchivePath: "nope.bin",
		Size:        1 << 20,
	}
	col := stats.NewCollector()
	p := &Pool{Workers: 1, Method: archive.MethodDeflate, Level: 6, Stats: col}
	p.Compress(context.Background(), []*Entry{e})

	assert.True(t, e.CompressFailed)
	assert.False(t, e.Precompressed())
	assert.EqualValues(t, 1, col.Snapshot().Fallbacks)
}

func TestPoolCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeRandomFile(t, filepath.Join(dir, "a.bin"), 2<<20)
	writeRandomFile(t, filepath.Join(dir, "b.bin"), 2<<20)

	entries := []*Entry{
		poolEntry(t, filepath.Join(dir, "a.bin"), "a.bin"),
		poolEntry(t, filepath.Join(dir, "b.bin"), "b.bin"),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	col := stats.NewCollector()
	p := &Pool{Workers: 2, Method: archive.MethodDeflate, Level: 6, Stats: col}
	p.Compress(ctx, entries)

	for _, e := range entries {
		assert.True(t, e.CompressFailed, "entry %s should fail under a cancelled context", e.ArchivePath)
	}
	assert.EqualValues(t, 2, col.Snapshot().Fallbacks)
}

// A pool failure must not cost the entry its place in the archive: assembly
// rereads the source inline and produces correct content.
func TestPoolFallbackStillArchives(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	raw := writeRandomFile(t, filepath.Join(src, "big.bin"), 2<<20)

	e := poolEntry(t, filepath.Join(src, "big.bin"), "big.bin")
	e.Size++ // poison the pool run only; assembly streams the real file

	cfg := testConfig(filepath.Join(dir, "out.zip"))
	cfg.Stats = stats.NewCollector()
	p := &Pool{Workers: 1, Method: cfg.Method, Level: cfg.Level, Stats: cfg.Stats}
	p.Compress(context.Background(), []*Entry{e})
	require.True(t, e.CompressFailed)

	errs, err := writeArchive(context.Background(), cfg, []*Entry{e}, nil, nil)
	require.NoError(t, err)
	require.Empty(t, errs)

	assert.Equal(t, []string{"big.bin"}, archiveNames(t, cfg.Archive))
	assert.Equal(t, raw, archiveContent(t, cfg.Archive, "big.bin"))
}

func TestDefaultWorkersBounds(t *testing.T) {
	n := DefaultWorkers()
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, MaxWorkers)
}

func TestBufferHint(t *testing.T) {
	assert.Equal(t, 64, bufferHint(0))
	assert.Equal(t, 1024+64+64, bufferHint(1024))
	assert.Equal(t, (1<<20)+(1<<16)+64, bufferHint(1<<20))
	assert.Equal(t, 64<<20, bufferHint(10<<30))
}
