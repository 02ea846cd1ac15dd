package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/Rounak-Paul/gbzip/internal/archive"
	"github.com/Rounak-Paul/gbzip/internal/event"
	"github.com/Rounak-Paul/gbzip/internal/platform"
	"github.com/Rounak-Paul/gbzip/internal/stats"
)

// ExtractConfig describes an extraction.
type ExtractConfig struct {
	Archive string
	Dest    string
	Workers int
	BWLimit int64

	Stats  *stats.Collector
	Events chan<- event.Event
}

// Extract unpacks an archive under cfg.Dest. Directories are created
// serially in archive order, then files fan out across workers. Entry
// mtimes are restored, directories last so file writes cannot disturb
// them. Per-file failures are aggregated, not fatal.
func Extract(ctx context.Context, cfg ExtractConfig) Result {
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	r, err := archive.OpenReader(cfg.Archive)
	if err != nil {
		return Result{Archive: cfg.Archive, Err: err}
	}
	defer r.Close()

	var files, total int64
	for _, ent := range r.Entries() {
		if !ent.IsDir {
			files++
			total += ent.Size
		}
	}
	cfg.Stats.SetTotals(files, total)

	limiter := NewBWLimiter(cfg.BWLimit)

	// Directories first, so concurrent file writes always find their
	// parents. Entries carry their mtimes for the final restore pass.
	type dirTime struct {
		path  string
		mtime time.Time
	}
	var dirs []dirTime
	for _, f := range r.Files() {
		if !f.FileInfo().IsDir() {
			continue
		}
		dst, err := safeJoin(cfg.Dest, f.Name)
		if err != nil {
			cfg.Stats.AddFailed()
			slog.Warn("refusing unsafe archive path", "name", f.Name, "error", err)
			continue
		}
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return Result{Archive: cfg.Archive, Stats: cfg.Stats.Snapshot(), Err: fmt.Errorf("create directory: %w", err)}
		}
		dirs = append(dirs, dirTime{path: dst, mtime: f.Modified})
	}

	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx)
	for _, f := range r.Files() {
		if f.FileInfo().IsDir() {
			continue
		}
		p.Go(func(ctx context.Context) error {
			if err := extractFile(ctx, cfg, limiter, f); err != nil {
				cfg.Stats.AddFailed()
				emitEvent(cfg.Events, event.Event{Type: event.FileFailed, Path: f.Name, Error: err})
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			cfg.Stats.AddExtracted(int64(f.UncompressedSize64))
			emitEvent(cfg.Events, event.Event{
				Type: event.EntryExtracted,
				Path: f.Name,
				Size: int64(f.UncompressedSize64),
			})
			return nil
		})
	}
	err = p.Wait()

	for _, d := range dirs {
		if terr := restoreTimes(d.path, d.mtime); terr != nil {
			slog.Debug("cannot restore directory mtime", "path", d.path, "error", terr)
		}
	}

	emitEvent(cfg.Events, event.Event{Type: event.ExtractDone, Path: cfg.Dest})
	return Result{Archive: cfg.Archive, Stats: cfg.Stats.Snapshot(), Err: err}
}

func extractFile(ctx context.Context, cfg ExtractConfig, limiter *rate.Limiter, f *zip.File) error {
	dst, err := safeJoin(cfg.Dest, f.Name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create parent: %w", err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	platform.Preallocate(out, int64(f.UncompressedSize64))

	w := newRateLimitedWriter(ctx, out, limiter)
	if _, err := io.Copy(w, rc); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("write: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := restoreTimes(dst, f.Modified); err != nil {
		slog.Debug("cannot restore mtime", "path", dst, "error", err)
	}
	return nil
}

// safeJoin resolves an archive member name under dest, rejecting absolute
// names and any traversal outside dest.
func safeJoin(dest, name string) (string, error) {
	rel := filepath.FromSlash(strings.TrimSuffix(name, "/"))
	if rel == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("unsafe archive path %q", name)
	}
	return filepath.Join(dest, rel), nil
}
