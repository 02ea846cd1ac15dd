package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rounak-Paul/gbzip/internal/archive"
	"github.com/Rounak-Paul/gbzip/internal/event"
)

func testConfig(archivePath string, sources ...string) Config {
	return Config{
		Archive:   archivePath,
		Sources:   sources,
		Recursive: true,
		Method:    archive.MethodDeflate,
		Level:     6,
		NoIgnore:  true, // tests opt back in explicitly
	}
}

func TestCreateArchiveTree(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{
		"root.txt":          "root file content",
		"sub/mid.txt":       "middle file content",
		"sub/deep/leaf.txt": "leaf file content",
	})
	target := filepath.Join(dir, "out.zip")

	result := Create(context.Background(), testConfig(target, src))
	require.NoError(t, result.Err)

	assert.Equal(t, int64(3), result.Stats.FilesArchived)
	assert.Equal(t, int64(2), result.Stats.DirsArchived)

	names := archiveNames(t, target)
	assert.Equal(t, []string{
		"root.txt",
		"sub/",
		"sub/deep/",
		"sub/deep/leaf.txt",
		"sub/mid.txt",
	}, names)

	assert.Equal(t, []byte("root file content"), archiveContent(t, target, "root.txt"))
	assert.Equal(t, []byte("leaf file content"), archiveContent(t, target, "sub/deep/leaf.txt"))

	// No stray temp archives.
	assert.Empty(t, findTmpFiles(t, dir))
}

func TestCreateDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{
		"b.txt":     "b",
		"a.txt":     "a",
		"z/one.txt": "1",
		"c/two.txt": "2",
	})

	first := filepath.Join(dir, "first.zip")
	second := filepath.Join(dir, "second.zip")
	require.NoError(t, Create(context.Background(), testConfig(first, src)).Err)
	require.NoError(t, Create(context.Background(), testConfig(second, src)).Err)

	assert.Equal(t, archiveNames(t, first), archiveNames(t, second))
	assert.Equal(t, []string{
		"a.txt", "b.txt", "c/", "c/two.txt", "z/", "z/one.txt",
	}, archiveNames(t, first))
}

func TestCreatePoolAndSequentialEquivalence(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")

	// Three 2 MiB files push the workload over the parallel threshold.
	var bodies [][]byte
	for _, name := range []string{"a.bin", "b.bin", "c.bin"} {
		bodies = append(bodies, writeRandomFile(t, filepath.Join(src, name), 2<<20))
	}
	writeTree(t, src, map[string]string{"small.txt": "tiny"})

	pooled := filepath.Join(dir, "pooled.zip")
	cfg := testConfig(pooled, src)
	cfg.Workers = 4
	result := Create(context.Background(), cfg)
	require.NoError(t, result.Err)
	assert.Equal(t, int64(3), result.Stats.Precompressed)
	assert.Zero(t, result.Stats.Fallbacks)

	sequential := filepath.Join(dir, "sequential.zip")
	cfg = testConfig(sequential, src)
	cfg.Workers = 0
	result = Create(context.Background(), cfg)
	require.NoError(t, result.Err)
	assert.Zero(t, result.Stats.Precompressed)

	// Same entries, same decompressed bytes either way.
	assert.Equal(t, archiveNames(t, pooled), archiveNames(t, sequential))
	for i, name := range []string{"a.bin", "b.bin", "c.bin"} {
		assert.Equal(t, bodies[i], archiveContent(t, pooled, name))
		assert.Equal(t, bodies[i], archiveContent(t, sequential, name))
	}
	assert.Equal(t, []byte("tiny"), archiveContent(t, pooled, "small.txt"))
}

func TestCreateSmallWorkloadSkipsPool(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	// Over the per-file threshold but under the aggregate gate.
	writeRandomFile(t, filepath.Join(src, "solo.bin"), 1<<20+512)

	target := filepath.Join(dir, "out.zip")
	cfg := testConfig(target, src)
	cfg.Workers = 4
	result := Create(context.Background(), cfg)

	require.NoError(t, result.Err)
	assert.Zero(t, result.Stats.Precompressed)
	assert.Len(t, archiveNames(t, target), 1)
}

func TestCreateStoreMethod(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	body := writeRandomFile(t, filepath.Join(src, "data.bin"), 6<<20)

	target := filepath.Join(dir, "out.zip")
	cfg := testConfig(target, src)
	cfg.Method = archive.MethodStore
	cfg.Workers = 4
	result := Create(context.Background(), cfg)

	require.NoError(t, result.Err)
	// Store never engages the pool.
	assert.Zero(t, result.Stats.Precompressed)
	assert.Equal(t, body, archiveContent(t, target, "data.bin"))

	fi, err := os.Stat(target)
	require.NoError(t, err)
	assert.Greater(t, fi.Size(), int64(6<<20))
}

func TestCreateEmptyTree(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))

	target := filepath.Join(dir, "empty.zip")
	result := Create(context.Background(), testConfig(target, src))

	require.NoError(t, result.Err)
	assert.Empty(t, archiveNames(t, target))
}

func TestCreateMissingSource(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.zip")

	result := Create(context.Background(), testConfig(target, filepath.Join(dir, "no-such-dir")))

	require.Error(t, result.Err)
	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err), "failed create must not leave an archive")
}

func TestCreatePartialSourceFailure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{"keep.txt": "keep"})

	target := filepath.Join(dir, "out.zip")
	result := Create(context.Background(), testConfig(target, src, filepath.Join(dir, "missing")))

	// The archive is still produced; the missing source is reported.
	require.Error(t, result.Err)
	assert.Equal(t, []string{"keep.txt"}, archiveNames(t, target))
}

func TestCreateFileSources(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"notes/report.txt": "report"})

	target := filepath.Join(dir, "out.zip")
	result := Create(context.Background(), testConfig(target, filepath.Join(dir, "notes", "report.txt")))

	require.NoError(t, result.Err)
	// Plain file sources archive under their basename.
	assert.Equal(t, []string{"report.txt"}, archiveNames(t, target))
}

func TestCreateNonRecursive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{
		"top.txt":        "top",
		"sub/hidden.txt": "hidden",
	})

	target := filepath.Join(dir, "out.zip")
	cfg := testConfig(target, src)
	cfg.Recursive = false
	result := Create(context.Background(), cfg)

	require.NoError(t, result.Err)
	assert.Equal(t, []string{"sub/", "top.txt"}, archiveNames(t, target))
}

func TestCreateJunkPaths(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{
		"a/x.txt": "x",
		"b/y.txt": "y",
	})

	target := filepath.Join(dir, "out.zip")
	cfg := testConfig(target, src)
	cfg.JunkPaths = true
	result := Create(context.Background(), cfg)

	require.NoError(t, result.Err)
	assert.ElementsMatch(t, []string{"x.txt", "y.txt"}, archiveNames(t, target))
}

func TestCreateHonorsIgnoreRules(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{
		".zipignore":        "*.log\nbuild/\n",
		"app.go":            "package main",
		"app.log":           "log",
		"build/out.bin":     "bin",
		"logs/.zipignore":   "!keep.log\n",
		"logs/keep.log":     "kept",
		"logs/drop.log":     "dropped",
		"logs/readme.txt":   "readme",
		"src/nested.log":    "nested log",
		"src/lib.go":        "package lib",
		"vendor/dep/dep.go": "package dep",
	})

	target := filepath.Join(dir, "out.zip")
	cfg := testConfig(target, src)
	cfg.NoIgnore = false
	cfg.IgnoreFile = filepath.Join(dir, "does-not-exist") // keep the host's ~/.zipignore out
	cfg.Excludes = []string{"vendor/"}
	events, getEvents := collectEvents(t)
	cfg.Events = events

	result := Create(context.Background(), cfg)
	require.NoError(t, result.Err)

	names := archiveNames(t, target)
	assert.Contains(t, names, "app.go")
	assert.Contains(t, names, "src/lib.go")
	assert.Contains(t, names, "logs/keep.log")
	assert.Contains(t, names, "logs/readme.txt")
	assert.NotContains(t, names, "app.log")
	assert.NotContains(t, names, "logs/drop.log")
	assert.NotContains(t, names, "src/nested.log")
	assert.NotContains(t, names, "build/")
	assert.NotContains(t, names, "build/out.bin")
	assert.NotContains(t, names, "vendor/")
	assert.NotContains(t, names, "vendor/dep/dep.go")

	assert.Greater(t, result.Stats.Ignored, int64(0))

	var ignored []string
	for _, ev := range getEvents() {
		if ev.Type == event.FileIgnored {
			ignored = append(ignored, ev.Path)
		}
	}
	assert.Contains(t, ignored, "app.log")
	assert.Contains(t, ignored, "build")
}

func TestCreateNoIgnoreArchivesEverything(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{
		".zipignore": "*.log\n",
		"app.log":    "log",
	})

	target := filepath.Join(dir, "out.zip")
	cfg := testConfig(target, src)
	cfg.NoIgnore = true
	result := Create(context.Background(), cfg)

	require.NoError(t, result.Err)
	assert.ElementsMatch(t, []string{".zipignore", "app.log"}, archiveNames(t, target))
}

func TestCreateSkipsOwnArchive(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"data.txt": "data"})

	// Target lives inside the source tree.
	target := filepath.Join(dir, "self.zip")
	require.NoError(t, os.WriteFile(target, []byte("placeholder"), 0o644))

	result := Create(context.Background(), testConfig(target, dir))
	require.NoError(t, result.Err)
	assert.Equal(t, []string{"data.txt"}, archiveNames(t, target))
}

func TestCreateDryRun(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{"a.txt": "a", "b/c.txt": "c"})

	target := filepath.Join(dir, "out.zip")
	cfg := testConfig(target, src)
	cfg.DryRun = true
	events, getEvents := collectEvents(t)
	cfg.Events = events

	result := Create(context.Background(), cfg)
	require.NoError(t, result.Err)

	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err), "dry run must not write the archive")
	assert.Equal(t, int64(2), result.Stats.FilesTotal)

	var previewed []string
	for _, ev := range getEvents() {
		if ev.Type == event.FileAdded || ev.Type == event.DirAdded {
			previewed = append(previewed, ev.Path)
		}
	}
	assert.ElementsMatch(t, []string{"a.txt", "b/", "b/c.txt"}, previewed)
}

func TestCreateWithTestVerifies(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{"a.txt": "aaa", "b.txt": "bbb"})

	target := filepath.Join(dir, "out.zip")
	cfg := testConfig(target, src)
	cfg.Test = true
	result := Create(context.Background(), cfg)

	require.NoError(t, result.Err)
	require.NotNil(t, result.Verify)
	assert.Equal(t, int64(2), result.Verify.Verified)
	assert.Zero(t, result.Verify.Failed)
	assert.Equal(t, int64(2), result.Stats.Verified)
}

func TestCreateCancelledContext(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{"a.txt": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := filepath.Join(dir, "out.zip")
	result := Create(ctx, testConfig(target, src))

	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, context.Canceled)
	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, findTmpFiles(t, dir))
}

func TestCreateOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{"fresh.txt": "fresh"})

	target := filepath.Join(dir, "out.zip")
	require.NoError(t, os.WriteFile(target, []byte("not a zip"), 0o644))

	result := Create(context.Background(), testConfig(target, src))
	require.NoError(t, result.Err)
	assert.Equal(t, []string{"fresh.txt"}, archiveNames(t, target))
}

func TestAggregate(t *testing.T) {
	assert.NoError(t, aggregate(nil))

	errA := os.ErrNotExist
	assert.Equal(t, errA, aggregate([]error{errA}))

	err := aggregate([]error{errA, os.ErrPermission, os.ErrClosed})
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.Contains(t, err.Error(), "(and 2 more errors)")
}

func TestRuleBase(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "tree")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	file := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	// First directory source wins, even after file sources.
	base := ruleBase([]string{file, sub})
	abs, err := filepath.Abs(sub)
	require.NoError(t, err)
	assert.Equal(t, abs, base)

	// All-file sources fall back to the working directory.
	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, ruleBase([]string{file}))
}
