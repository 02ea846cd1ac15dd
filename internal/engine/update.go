package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/klauspost/compress/zip"

	"github.com/Rounak-Paul/gbzip/internal/archive"
	"github.com/Rounak-Paul/gbzip/internal/diff"
	"github.com/Rounak-Paul/gbzip/internal/event"
	"github.com/Rounak-Paul/gbzip/internal/stats"
)

// transplantSet holds raw entries of the prior archive that assembly may
// copy into the rewrite without recompressing.
type transplantSet struct {
	files map[string]*zip.File
}

func (s *transplantSet) has(name string) bool {
	return s != nil && s.files[name] != nil
}

func (s *transplantSet) file(name string) *zip.File { return s.files[name] }

// Update refreshes an existing archive: unchanged entries transplant raw,
// added and modified files run through the full pipeline, deleted files are
// dropped. An archive with no drift is left byte-identical on disk. A
// missing archive degrades to Create.
func Update(ctx context.Context, cfg Config) Result {
	if _, err := os.Stat(cfg.Archive); err != nil {
		if os.IsNotExist(err) {
			slog.Info("archive does not exist yet, creating", "path", cfg.Archive)
			return Create(ctx, cfg)
		}
		return Result{Archive: cfg.Archive, Err: fmt.Errorf("stat archive: %w", err)}
	}

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

	r, err := archive.OpenReader(cfg.Archive)
	if err != nil {
		return Result{Archive: cfg.Archive, Stats: cfg.Stats.Snapshot(), Err: err}
	}
	defer r.Close()

	changes, sum := diffQueue(queue, r)
	if sum.None() {
		slog.Debug("archive is current", "path", cfg.Archive)
		return Result{
			Archive: cfg.Archive,
			Stats:   cfg.Stats.Snapshot(),
			Changes: &sum,
			Err:     aggregate(errs),
		}
	}

	changed := make(map[string]diff.Type, len(changes))
	for _, ch := range changes {
		changed[ch.Path] = ch.Type
		if ch.Type == diff.Deleted {
			emitEvent(cfg.Events, event.Event{Type: event.EntryDeleted, Path: ch.Path})
		}
	}

	if cfg.DryRun {
		previewQueue(cfg, queue)
		return Result{
			Archive: cfg.Archive,
			Stats:   cfg.Stats.Snapshot(),
			Changes: &sum,
			Err:     aggregate(errs),
		}
	}

	// Pool only over files the rewrite will recompress; unchanged entries
	// never leave their raw form.
	limiter := NewBWLimiter(cfg.BWLimit)
	var candidates []*Entry
	var candidateBytes int64
	for _, e := range queue.FileEntries() {
		if _, ok := changed[e.ArchivePath]; !ok {
			continue
		}
		if e.Size >= LargeFileThreshold {
			candidates = append(candidates, e)
			candidateBytes += e.Size
		}
	}
	runPool(ctx, cfg, candidates, candidateBytes, limiter)

	prior := &transplantSet{files: make(map[string]*zip.File, len(r.Files()))}
	for _, f := range r.Files() {
		if f.FileInfo().IsDir() {
			continue
		}
		if _, ok := changed[f.Name]; ok {
			continue
		}
		prior.files[f.Name] = f
	}

	addErrs, err := writeArchive(ctx, cfg, queue.Entries(), prior, limiter)
	errs = append(errs, addErrs...)
	if err != nil {
		return Result{Archive: cfg.Archive, Stats: cfg.Stats.Snapshot(), Changes: &sum, Err: err}
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
		Changes: &sum,
		Verify:  verify,
		Err:     aggregate(errs),
	}
}

// diffQueue compares the collected tree against the open archive,
// considering file entries only; directories carry no content to drift.
func diffQueue(queue *Queue, r *archive.Reader) ([]diff.Change, diff.Summary) {
	files := queue.FileEntries()
	disk := make([]diff.File, 0, len(files))
	for _, e := range files {
		disk = append(disk, diff.File{Path: e.ArchivePath, Size: e.Size, ModTime: e.ModTime})
	}

	var archived []diff.Archived
	for _, ent := range r.Entries() {
		if ent.IsDir {
			continue
		}
		archived = append(archived, diff.Archived{Path: ent.Name, Size: ent.Size, ModTime: ent.ModTime})
	}
	return diff.Compare(disk, archived)
}
