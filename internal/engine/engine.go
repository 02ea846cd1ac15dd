package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/Rounak-Paul/gbzip/internal/archive"
	"github.com/Rounak-Paul/gbzip/internal/diff"
	"github.com/Rounak-Paul/gbzip/internal/event"
	"github.com/Rounak-Paul/gbzip/internal/ignore"
	"github.com/Rounak-Paul/gbzip/internal/stats"
)

// Config describes an archive operation.
type Config struct {
	Archive    string   // target archive path
	Sources    []string // directory roots and plain files
	Recursive  bool
	JunkPaths  bool
	Method     uint16
	Level      int
	Workers    int    // pool size; <= 0 disables pre-compression
	IgnoreFile string // replaces the global ~/.zipignore when set
	NoIgnore   bool   // skip every rule file; overrides still apply
	Excludes   []string
	BWLimit    int64 // bytes/sec, 0 = unlimited
	DryRun     bool
	Test       bool // verify entries against sources after writing

	Stats  *stats.Collector
	Events chan<- event.Event
}

// Result is the outcome of an archive operation.
type Result struct {
	Archive string
	Stats   stats.Snapshot
	Changes *diff.Summary // update mode only
	Verify  *VerifyResult // --test only
	Err     error
}

// Create builds the archive described by cfg, blocking until complete.
// Per-file failures are aggregated into Result.Err; container failures
// abort and leave the target untouched.
func Create(ctx context.Context, cfg Config) Result {
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}

	rules, err := buildRules(cfg)
	if err != nil {
		return Result{Archive: cfg.Archive, Err: err}
	}

	queue, errs := collect(ctx, cfg, rules)
	if err := ctx.Err(); err != nil {
		return Result{Archive: cfg.Archive, Stats: cfg.Stats.Snapshot(), Err: err}
	}
	if queue.Len() == 0 && len(errs) > 0 {
		return Result{Archive: cfg.Archive, Stats: cfg.Stats.Snapshot(), Err: aggregate(errs)}
	}

	if cfg.DryRun {
		previewQueue(cfg, queue)
		return Result{Archive: cfg.Archive, Stats: cfg.Stats.Snapshot(), Err: aggregate(errs)}
	}

	limiter := NewBWLimiter(cfg.BWLimit)
	large, largeBytes := queue.Large(LargeFileThreshold)
	runPool(ctx, cfg, large, largeBytes, limiter)

	addErrs, err := writeArchive(ctx, cfg, queue.Entries(), nil, limiter)
	errs = append(errs, addErrs...)
	if err != nil {
		return Result{Archive: cfg.Archive, Stats: cfg.Stats.Snapshot(), Err: err}
	}
	emitEvent(cfg.Events, event.Event{Type: event.ArchiveDone, Path: cfg.Archive})

	var verify *VerifyResult
	if cfg.Test {
		v := Verify(ctx, cfg, queue.FileEntries())
		verify = &v
		if v.Failed > 0 {
			errs = append(errs, fmt.Errorf("verify: %d of %d entries failed", v.Failed, v.Failed+v.Verified))
		}
	}

	return Result{
		Archive: cfg.Archive,
		Stats:   cfg.Stats.Snapshot(),
		Verify:  verify,
		Err:     aggregate(errs),
	}
}

// buildRules assembles the operation's ruleset: the global rule file (or
// its -I replacement), then command-line excludes as the override tail.
// Base-directory and nested rule files load during traversal.
func buildRules(cfg Config) (*ignore.Ruleset, error) {
	rules := ignore.New(ruleBase(cfg.Sources))
	if !cfg.NoIgnore {
		if cfg.IgnoreFile != "" {
			if err := rules.LoadFile(cfg.IgnoreFile, ""); err != nil {
				return nil, fmt.Errorf("ignore file: %w", err)
			}
		} else if home, err := os.UserHomeDir(); err == nil {
			if err := rules.LoadFile(filepath.Join(home, ignore.IgnoreFileName), ""); err != nil {
				slog.Warn("global ignore file unreadable", "error", err)
			}
		}
	}
	for _, pat := range cfg.Excludes {
		if err := rules.AddOverride(pat); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

// ruleBase picks the directory rule scopes resolve against: the first
// directory source, or the working directory when sources are all files.
func ruleBase(sources []string) string {
	for _, src := range sources {
		fi, err := os.Stat(src)
		if err != nil || !fi.IsDir() {
			continue
		}
		if abs, err := filepath.Abs(src); err == nil {
			return abs
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// collect walks every source into a fresh queue. Source-level failures are
// returned for aggregation; they only become fatal when nothing at all was
// collected.
func collect(ctx context.Context, cfg Config, rules *ignore.Ruleset) (*Queue, []error) {
	emitEvent(cfg.Events, event.Event{Type: event.ScanStarted})

	queue := NewQueue()
	col := &Collector{
		Rules:       rules,
		Queue:       queue,
		Stats:       cfg.Stats,
		Events:      cfg.Events,
		Recursive:   cfg.Recursive,
		JunkPaths:   cfg.JunkPaths,
		NoRuleFiles: cfg.NoIgnore,
		SkipPath:    cfg.Archive,
	}

	var errs []error
	for _, src := range cfg.Sources {
		if ctx.Err() != nil {
			break
		}
		if err := col.AddSource(ctx, src); err != nil && ctx.Err() == nil {
			errs = append(errs, fmt.Errorf("%s: %w", src, err))
		}
	}

	cfg.Stats.SetTotals(int64(queue.Files()), queue.TotalBytes())
	emitEvent(cfg.Events, event.Event{
		Type:      event.ScanComplete,
		Total:     int64(queue.Len()),
		TotalSize: queue.TotalBytes(),
	})
	return queue, errs
}

// previewQueue emits the events a real run would, so presenters can show
// what a dry run would have archived.
func previewQueue(cfg Config, queue *Queue) {
	for _, e := range queue.Entries() {
		if e.IsDir {
			emitEvent(cfg.Events, event.Event{Type: event.DirAdded, Path: e.ArchivePath})
			continue
		}
		emitEvent(cfg.Events, event.Event{Type: event.FileAdded, Path: e.ArchivePath, Size: e.Size})
	}
}

// runPool pre-compresses the candidate files when the workload justifies
// workers. Store mode never benefits, and small workloads finish faster
// inline.
func runPool(ctx context.Context, cfg Config, large []*Entry, largeBytes int64, limiter *rate.Limiter) {
	if cfg.Method == archive.MethodStore || cfg.Workers <= 0 {
		return
	}
	if largeBytes < MinParallelBytes {
		return
	}

	emitEvent(cfg.Events, event.Event{
		Type:      event.CompressStarted,
		Total:     int64(len(large)),
		TotalSize: largeBytes,
	})
	pool := &Pool{
		Workers: cfg.Workers,
		Method:  cfg.Method,
		Level:   cfg.Level,
		Limiter: limiter,
		Stats:   cfg.Stats,
		Events:  cfg.Events,
	}
	pool.Compress(ctx, large)
	emitEvent(cfg.Events, event.Event{Type: event.CompressComplete})
}

// writeArchive assembles entries into a new container in order, optionally
// transplanting unchanged raw entries from prior (update mode). It returns
// per-file skip errors separately from a fatal container error.
func writeArchive(ctx context.Context, cfg Config, entries []*Entry, prior *transplantSet, limiter *rate.Limiter) ([]error, error) {
	opts := archive.Options{Method: cfg.Method, Level: cfg.Level}
	if limiter != nil {
		opts.WrapReader = func(r io.Reader) io.Reader {
			return newRateLimitedReader(ctx, r, limiter)
		}
	}

	w, err := archive.NewWriter(cfg.Archive, opts)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			w.Abort()
			return errs, err
		}
		if err := addEntry(cfg, w, e, prior); err != nil {
			if errors.Is(err, archive.ErrSource) {
				cfg.Stats.AddFailed()
				slog.Warn("skipping unreadable file", "path", e.ArchivePath, "error", err)
				emitEvent(cfg.Events, event.Event{Type: event.FileFailed, Path: e.ArchivePath, Error: err})
				errs = append(errs, err)
				continue
			}
			w.Abort()
			return errs, err
		}
	}

	if err := w.Close(); err != nil {
		return errs, err
	}
	return errs, nil
}

func addEntry(cfg Config, w *archive.Writer, e *Entry, prior *transplantSet) error {
	switch {
	case e.IsDir:
		if err := w.AddDir(e.ArchivePath, e.ModTime); err != nil {
			return err
		}
		cfg.Stats.AddDir()
		emitEvent(cfg.Events, event.Event{Type: event.DirAdded, Path: e.ArchivePath})
	case prior.has(e.ArchivePath):
		if err := w.Copy(prior.file(e.ArchivePath)); err != nil {
			return err
		}
		cfg.Stats.AddFile(e.Size)
		emitEvent(cfg.Events, event.Event{Type: event.FileAdded, Path: e.ArchivePath, Size: e.Size})
	case e.Precompressed():
		if err := w.AddRaw(e.ArchivePath, e.Compressed, e.CRC32, e.Size, e.ModTime); err != nil {
			return err
		}
		e.Compressed = nil // buffer has landed; let it go
		cfg.Stats.AddFile(e.Size)
		emitEvent(cfg.Events, event.Event{Type: event.FileAdded, Path: e.ArchivePath, Size: e.Size})
	default:
		if err := w.AddFile(e.ArchivePath, e.SourcePath, e.ModTime); err != nil {
			return err
		}
		cfg.Stats.AddFile(e.Size)
		emitEvent(cfg.Events, event.Event{Type: event.FileAdded, Path: e.ArchivePath, Size: e.Size})
	}
	return nil
}

// aggregate folds per-file errors into one, preserving the first and
// counting the rest.
func aggregate(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	err := errs[0]
	if len(errs) > 1 {
		err = fmt.Errorf("%w (and %d more errors)", err, len(errs)-1)
	}
	return err
}

func emitEvent(ch chan<- event.Event, e event.Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}
