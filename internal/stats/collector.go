package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks archive operation statistics using lock-free atomic
// counters. One collector lives for the duration of a single operation.
type Collector struct {
	scanned          atomic.Int64
	ignored          atomic.Int64
	failed           atomic.Int64
	filesArchived    atomic.Int64
	dirsArchived     atomic.Int64
	bytesArchived    atomic.Int64 // uncompressed bytes consumed
	precompressed    atomic.Int64
	precompressedIn  atomic.Int64
	precompressedOut atomic.Int64
	fallbacks        atomic.Int64
	extracted        atomic.Int64
	bytesExtracted   atomic.Int64
	verified         atomic.Int64
	verifyFailed     atomic.Int64
	filesTotal       atomic.Int64
	bytesTotal       atomic.Int64
	startTime        time.Time

	// Ring buffer — written only by the presenter's Tick(), not workers.
	mu          sync.Mutex
	throughput  [ringSize]int64 // bytes delta per second
	filesPerSec [ringSize]int64 // files delta per second
	ringIdx     int
	ringCount   int // how many samples have been written (capped at ringSize)
	lastBytes   int64
	lastFiles   int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotals records collection totals (called once when the scan completes).
func (c *Collector) SetTotals(files, bytes int64) {
	c.filesTotal.Store(files)
	c.bytesTotal.Store(bytes)
}

func (c *Collector) AddScanned() { c.scanned.Add(1) }
func (c *Collector) AddIgnored() { c.ignored.Add(1) }
func (c *Collector) AddFailed()  { c.failed.Add(1) }
func (c *Collector) AddDir()     { c.dirsArchived.Add(1) }

// AddFile records a file entry landing in the archive; size is the
// uncompressed content size.
func (c *Collector) AddFile(size int64) {
	c.filesArchived.Add(1)
	c.bytesArchived.Add(size)
}

// AddPrecompressed records one pool success: in is the source size, out the
// compressed stream size.
func (c *Collector) AddPrecompressed(in, out int64) {
	c.precompressed.Add(1)
	c.precompressedIn.Add(in)
	c.precompressedOut.Add(out)
}

// AddFallback records a pool failure that assembly will compress inline.
func (c *Collector) AddFallback() { c.fallbacks.Add(1) }

// AddExtracted records one entry written to disk during extraction.
func (c *Collector) AddExtracted(size int64) {
	c.extracted.Add(1)
	c.bytesExtracted.Add(size)
}

func (c *Collector) AddVerified()     { c.verified.Add(1) }
func (c *Collector) AddVerifyFailed() { c.verifyFailed.Add(1) }

// Reader provides read access to collected statistics.
type Reader interface {
	Snapshot() Snapshot
	Elapsed() time.Duration
}

// ReadTicker extends Reader with the sampling hooks presenters drive.
type ReadTicker interface {
	Reader
	Tick()
	RollingSpeed(seconds int) float64
	RollingFilesPerSec(seconds int) float64
	SparklineData(n int) []float64
	ETA() time.Duration
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	Scanned          int64
	Ignored          int64
	Failed           int64
	FilesArchived    int64
	DirsArchived     int64
	BytesArchived    int64
	Precompressed    int64
	PrecompressedIn  int64
	PrecompressedOut int64
	Fallbacks        int64
	Extracted        int64
	BytesExtracted   int64
	Verified         int64
	VerifyFailed     int64
	FilesTotal       int64
	BytesTotal       int64
	Elapsed          time.Duration
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Scanned:          c.scanned.Load(),
		Ignored:          c.ignored.Load(),
		Failed:           c.failed.Load(),
		FilesArchived:    c.filesArchived.Load(),
		DirsArchived:     c.dirsArchived.Load(),
		BytesArchived:    c.bytesArchived.Load(),
		Precompressed:    c.precompressed.Load(),
		PrecompressedIn:  c.precompressedIn.Load(),
		PrecompressedOut: c.precompressedOut.Load(),
		Fallbacks:        c.fallbacks.Load(),
		Extracted:        c.extracted.Load(),
		BytesExtracted:   c.bytesExtracted.Load(),
		Verified:         c.verified.Load(),
		VerifyFailed:     c.verifyFailed.Load(),
		FilesTotal:       c.filesTotal.Load(),
		BytesTotal:       c.bytesTotal.Load(),
		Elapsed:          c.Elapsed(),
	}
}

// progress returns the bytes and entries processed so far. Creation and
// extraction never run in the same operation, so summing both sides is safe.
func (c *Collector) progress() (bytes, files int64) {
	return c.bytesArchived.Load() + c.bytesExtracted.Load(),
		c.filesArchived.Load() + c.extracted.Load()
}

// Tick snapshots byte/file deltas into the ring buffer. Called 1/sec by the
// presenter.
func (c *Collector) Tick() {
	currentBytes, currentFiles := c.progress()

	c.mu.Lock()
	defer c.mu.Unlock()

	bytesDelta := currentBytes - c.lastBytes
	filesDelta := currentFiles - c.lastFiles
	c.lastBytes = currentBytes
	c.lastFiles = currentFiles

	c.throughput[c.ringIdx] = bytesDelta
	c.filesPerSec[c.ringIdx] = filesDelta
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollingAvg(c.throughput[:], seconds)
}

// RollingFilesPerSec returns average files/sec over the last n seconds.
func (c *Collector) RollingFilesPerSec(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollingAvg(c.filesPerSec[:], seconds)
}

func (c *Collector) rollingAvg(buf []int64, n int) float64 {
	count := n
	if count > c.ringCount {
		count = c.ringCount
	}
	if count == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < count; i++ {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += buf[idx]
	}
	return float64(sum) / float64(count)
}

// SparklineData returns the last n bytes/sec samples for rendering.
func (c *Collector) SparklineData(n int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := n
	if count > c.ringCount {
		count = c.ringCount
	}
	if count == 0 {
		return nil
	}

	data := make([]float64, count)
	for i := 0; i < count; i++ {
		// oldest first
		idx := (c.ringIdx - count + i + ringSize) % ringSize
		data[i] = float64(c.throughput[idx])
	}
	return data
}

// ETA estimates remaining time based on rolling speed and remaining bytes.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	bytes, _ := c.progress()
	remaining := c.bytesTotal.Load() - bytes
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"scanned=%d archived=%d dirs=%d ignored=%d failed=%d bytes=%d",
		s.Scanned, s.FilesArchived, s.DirsArchived, s.Ignored,
		s.Failed, s.BytesArchived,
	)
}

// Ratio returns the pool's achieved compression ratio, or 0 when the pool
// produced nothing.
func (s Snapshot) Ratio() float64 {
	if s.PrecompressedIn == 0 {
		return 0
	}
	return float64(s.PrecompressedOut) / float64(s.PrecompressedIn)
}

// FilesDone returns the entries processed so far, whichever direction the
// operation runs.
func (s Snapshot) FilesDone() int64 {
	return s.FilesArchived + s.Extracted
}

// BytesDone returns the content bytes processed so far.
func (s Snapshot) BytesDone() int64 {
	return s.BytesArchived + s.BytesExtracted
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
