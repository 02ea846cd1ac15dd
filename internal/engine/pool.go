package engine

import (
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"golang.org/x/time/rate"

	"github.com/Rounak-Paul/gbzip/internal/archive"
	"github.com/Rounak-Paul/gbzip/internal/event"
	"github.com/Rounak-Paul/gbzip/internal/stats"
)

// DefaultWorkers returns the pool size for this machine: one worker per
// logical core, clamped to [1, MaxWorkers].
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	if n > MaxWorkers {
		n = MaxWorkers
	}
	return n
}

// Pool compresses large files into per-entry buffers ahead of serial
// assembly. Each job owns exactly one entry, so workers never share
// mutable state beyond the stats counters.
type Pool struct {
	Workers int
	Method  uint16
	Level   int
	Limiter *rate.Limiter
	Stats   *stats.Collector
	Events  chan<- event.Event
}

// Compress runs every entry through the pool and returns only when all of
// them have settled: a successful buffer or CompressFailed. Failures mark
// the entry for the fallback path; they never abort the run.
func (p *Pool) Compress(ctx context.Context, entries []*Entry) {
	if len(entries) == 0 {
		return
	}

	workers := p.Workers
	if workers <= 0 || workers > MaxWorkers {
		workers = DefaultWorkers()
	}
	if workers > len(entries) {
		workers = len(entries)
	}

	// Single producer, then drain: the full job list is known up front.
	jobs := make(chan *Entry, len(entries))
	for _, e := range entries {
		jobs <- e
	}
	close(jobs)

	var wg sync.WaitGroup
	for id := 0; id < workers; id++ {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				if ctx.Err() != nil {
					p.fail(e, ctx.Err())
					continue
				}
				p.compressEntry(ctx, id, e)
			}
		}()
	}
	wg.Wait()
}

func (p *Pool) compressEntry(ctx context.Context, id int, e *Entry) {
	f, err := os.Open(e.SourcePath)
	if err != nil {
		p.fail(e, fmt.Errorf("open: %w", err))
		return
	}
	defer f.Close()

	var src io.Reader = f
	if p.Limiter != nil {
		src = newRateLimitedReader(ctx, f, p.Limiter)
	}

	buf := bytes.NewBuffer(make([]byte, 0, bufferHint(e.Size)))
	cw, err := archive.NewMethodWriter(buf, p.Method, p.Level)
	if err != nil {
		p.fail(e, err)
		return
	}

	crc := crc32.NewIEEE()
	n, err := io.Copy(cw, io.TeeReader(src, crc))
	if cerr := cw.Close(); err == nil {
		err = cerr
	}
	switch {
	case err != nil:
		p.fail(e, fmt.Errorf("compress: %w", err))
	case n != e.Size:
		// The file changed under us; let assembly reread it fresh.
		p.fail(e, fmt.Errorf("size changed during read: read %d, expected %d", n, e.Size))
	default:
		e.Compressed = buf.Bytes()
		e.CRC32 = crc.Sum32()
		p.Stats.AddPrecompressed(e.Size, int64(buf.Len()))
		emitEvent(p.Events, event.Event{Type: event.FileCompressed, Path: e.ArchivePath, Size: e.Size, WorkerID: id})
	}
}

func (p *Pool) fail(e *Entry, err error) {
	e.Compressed = nil
	e.CompressFailed = true
	p.Stats.AddFallback()
	slog.Warn("pre-compression failed, falling back to inline",
		"path", e.ArchivePath, "error", err)
	emitEvent(p.Events, event.Event{Type: event.CompressFallback, Path: e.ArchivePath, Error: err})
}

// bufferHint sizes the initial buffer from a worst-case bound, capped so a
// single huge file does not pre-claim its whole size in one allocation.
func bufferHint(size int64) int {
	bound := size + size/16 + 64
	if bound > 64<<20 {
		bound = 64 << 20
	}
	return int(bound)
}
