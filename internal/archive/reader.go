package archive

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// Entry describes one archive member.
type Entry struct {
	Name       string
	Size       int64 // uncompressed
	Compressed int64
	ModTime    time.Time
	Method     uint16
	CRC32      uint32
	IsDir      bool
}

// Reader wraps an open zip archive with the Zstandard method registered.
type Reader struct {
	rc *zip.ReadCloser
}

// OpenReader opens an archive for listing, extraction or updating.
func OpenReader(path string) (*Reader, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	rc.RegisterDecompressor(MethodZstd, func(r io.Reader) io.ReadCloser {
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return errReadCloser{err}
		}
		return zr.IOReadCloser()
	})
	return &Reader{rc: rc}, nil
}

// Entries lists members in central-directory order.
func (r *Reader) Entries() []Entry {
	out := make([]Entry, 0, len(r.rc.File))
	for _, f := range r.rc.File {
		out = append(out, entryOf(f))
	}
	return out
}

// Files exposes the raw members for streaming and raw copying.
func (r *Reader) Files() []*zip.File { return r.rc.File }

// Open returns the decompressed stream of the named member.
func (r *Reader) Open(name string) (io.ReadCloser, error) {
	for _, f := range r.rc.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("no entry %q in archive", name)
}

func (r *Reader) Close() error { return r.rc.Close() }

func entryOf(f *zip.File) Entry {
	return Entry{
		Name:       f.Name,
		Size:       int64(f.UncompressedSize64),
		Compressed: int64(f.CompressedSize64),
		ModTime:    f.Modified,
		Method:     f.Method,
		CRC32:      f.CRC32,
		IsDir:      strings.HasSuffix(f.Name, "/"),
	}
}

type errReadCloser struct{ err error }

func (e errReadCloser) Read([]byte) (int, error) { return 0, e.err }
func (e errReadCloser) Close() error             { return nil }
