package engine

import (
	"context"
	"sync"

	"github.com/klauspost/compress/zip"

	"github.com/Rounak-Paul/gbzip/internal/archive"
	"github.com/Rounak-Paul/gbzip/internal/event"
	"github.com/Rounak-Paul/gbzip/internal/stats"
)

// VerifyResult holds the outcome of a verification pass.
type VerifyResult struct {
	Verified int64
	Failed   int64
	Errors   []VerifyError
}

// VerifyError records a single mismatch between archive and source.
type VerifyError struct {
	Path        string
	SourceHash  string
	ArchiveHash string
}

// Verify re-opens the finished archive and compares the BLAKE3 digest of
// every entry stream against its source file. It fans out to cfg.Workers
// goroutines; a read error on either side counts as a failure.
func Verify(ctx context.Context, cfg Config, entries []*Entry) VerifyResult {
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	emitEvent(cfg.Events, event.Event{Type: event.VerifyStarted, Total: int64(len(entries))})

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(entries) && len(entries) > 0 {
		workers = len(entries)
	}

	r, err := archive.OpenReader(cfg.Archive)
	if err != nil {
		result := VerifyResult{Failed: int64(len(entries))}
		for _, e := range entries {
			result.Errors = append(result.Errors, VerifyError{Path: e.ArchivePath, ArchiveHash: "error"})
			cfg.Stats.AddVerifyFailed()
		}
		return result
	}
	defer r.Close()

	members := make(map[string]*zip.File, len(r.Files()))
	for _, f := range r.Files() {
		members[f.Name] = f
	}

	taskCh := make(chan *Entry, workers*2)
	var mu sync.Mutex
	var result VerifyResult
	var wg sync.WaitGroup

	fail := func(path, srcHash, arcHash string, err error) {
		mu.Lock()
		result.Failed++
		result.Errors = append(result.Errors, VerifyError{
			Path:        path,
			SourceHash:  srcHash,
			ArchiveHash: arcHash,
		})
		mu.Unlock()
		cfg.Stats.AddVerifyFailed()
		emitEvent(cfg.Events, event.Event{Type: event.VerifyFailed, Path: path, Error: err})
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range taskCh {
				select {
				case <-ctx.Done():
					return
				default:
				}

				srcHash, err := HashFile(e.SourcePath)
				if err != nil {
					fail(e.ArchivePath, "error", "n/a", err)
					continue
				}

				member, ok := members[e.ArchivePath]
				if !ok {
					fail(e.ArchivePath, srcHash, "missing", nil)
					continue
				}
				stream, err := member.Open()
				if err != nil {
					fail(e.ArchivePath, srcHash, "error", err)
					continue
				}
				arcHash, err := HashReader(stream)
				stream.Close()
				if err != nil {
					fail(e.ArchivePath, srcHash, "error", err)
					continue
				}

				if srcHash != arcHash {
					fail(e.ArchivePath, srcHash, arcHash, nil)
					continue
				}

				mu.Lock()
				result.Verified++
				mu.Unlock()
				cfg.Stats.AddVerified()
				emitEvent(cfg.Events, event.Event{Type: event.VerifyOK, Path: e.ArchivePath})
			}
		}()
	}

	for _, e := range entries {
		select {
		case <-ctx.Done():
		case taskCh <- e:
		}
	}
	close(taskCh)
	wg.Wait()

	return result
}
