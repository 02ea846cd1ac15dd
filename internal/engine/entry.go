package engine

import "time"

// Thresholds governing the pre-compression pool.
const (
	// LargeFileThreshold is the minimum size for a file to be compressed
	// on the pool instead of inline during assembly.
	LargeFileThreshold = 1 << 20

	// MinParallelBytes is the minimum aggregate size of pool candidates
	// before spinning up workers is worthwhile.
	MinParallelBytes = 5 << 20

	// MaxWorkers caps the pool regardless of core count.
	MaxWorkers = 16
)

// Entry is one archive member discovered during collection. The collector
// writes the identity fields; the pool writes Compressed, CRC32 and
// CompressFailed on entries assigned to it; assembly only reads. Archive
// paths are slash-separated and carry a trailing slash for directories.
type Entry struct {
	SourcePath  string
	ArchivePath string
	Size        int64
	ModTime     time.Time
	IsDir       bool

	Compressed     []byte
	CRC32          uint32
	CompressFailed bool
}

// Precompressed reports whether assembly can insert the entry from its
// in-memory buffer.
func (e *Entry) Precompressed() bool {
	return !e.IsDir && !e.CompressFailed && len(e.Compressed) > 0
}
