package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
)

// ErrSource marks failures reading an input file, as opposed to failures of
// the archive container itself. Callers skip the entry and keep going.
var ErrSource = errors.New("source unreadable")

// ErrContainer marks failures of the container itself: the temp file, the
// zip stream, or the final rename. Once it fires the output cannot be
// trusted and the run aborts.
var ErrContainer = errors.New("container failure")

// Options configure a Writer.
type Options struct {
	// Method is the compression method for file entries.
	Method uint16

	// Level tunes the method (1..9 zip convention). Ignored for store.
	Level int

	// WrapReader, when set, wraps every source file reader. Used for
	// bandwidth limiting.
	WrapReader func(io.Reader) io.Reader
}

// Writer assembles a zip archive at a temporary path next to the target and
// renames it into place on Close, so a crashed or interrupted run never
// leaves a half-written archive under the target name.
type Writer struct {
	zw   *zip.Writer
	f    *os.File
	path string
	tmp  string
	opts Options
}

// NewWriter creates the temporary container for path.
func NewWriter(path string, opts Options) (*Writer, error) {
	if opts.Method == MethodDeflate && (opts.Level < 1 || opts.Level > 9) {
		opts.Level = DefaultLevel
	}

	tmp := filepath.Join(filepath.Dir(path),
		fmt.Sprintf(".%s.%s.gbzip-tmp", filepath.Base(path), uuid.New().String()[:8]))
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: create temp archive: %w", ErrContainer, err)
	}
	tmpFiles.add(tmp)

	w := &Writer{zw: zip.NewWriter(f), f: f, path: path, tmp: tmp, opts: opts}
	switch opts.Method {
	case MethodDeflate:
		w.zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return NewMethodWriter(out, MethodDeflate, opts.Level)
		})
	case MethodZstd:
		w.zw.RegisterCompressor(MethodZstd, func(out io.Writer) (io.WriteCloser, error) {
			return NewMethodWriter(out, MethodZstd, opts.Level)
		})
	}
	return w, nil
}

// Path returns the final archive path.
func (w *Writer) Path() string { return w.path }

// AddDir records a directory marker. name must end in a slash.
func (w *Writer) AddDir(name string, mtime time.Time) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Store, Modified: mtime}
	hdr.SetMode(0o755 | os.ModeDir)
	if _, err := w.zw.CreateHeader(hdr); err != nil {
		return fmt.Errorf("%w: add directory %s: %w", ErrContainer, name, err)
	}
	return nil
}

// AddFile streams a source file through the container's own compressor.
// Failures opening the source wrap ErrSource; failures past that point mean
// the container is no longer trustworthy.
func (w *Writer) AddFile(name, source string, mtime time.Time) error {
	f, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSource, source, err)
	}
	defer f.Close()

	hdr := &zip.FileHeader{Name: name, Method: w.entryMethod(), Modified: mtime}
	hdr.SetMode(0o644)
	dst, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("%w: add %s: %w", ErrContainer, name, err)
	}

	var r io.Reader = f
	if w.opts.WrapReader != nil {
		r = w.opts.WrapReader(f)
	}
	if _, err := io.Copy(dst, r); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrContainer, name, err)
	}
	return nil
}

// AddRaw inserts an already-compressed stream without recompressing. crc
// and size describe the uncompressed content.
func (w *Writer) AddRaw(name string, data []byte, crc uint32, size int64, mtime time.Time) error {
	hdr := &zip.FileHeader{
		Name:               name,
		Method:             w.entryMethod(),
		Modified:           mtime,
		CRC32:              crc,
		CompressedSize64:   uint64(len(data)),
		UncompressedSize64: uint64(size),
	}
	hdr.SetMode(0o644)
	dst, err := w.zw.CreateRaw(hdr)
	if err != nil {
		return fmt.Errorf("%w: add %s: %w", ErrContainer, name, err)
	}
	if _, err := dst.Write(data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrContainer, name, err)
	}
	return nil
}

// Copy transplants an entry from an open archive without recompressing.
func (w *Writer) Copy(f *zip.File) error {
	if err := w.zw.Copy(f); err != nil {
		return fmt.Errorf("%w: copy %s: %w", ErrContainer, f.Name, err)
	}
	return nil
}

// Close finalizes the container and renames it over the target.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		w.discard()
		return fmt.Errorf("%w: close archive: %w", ErrContainer, err)
	}
	if err := w.f.Sync(); err != nil {
		w.discard()
		return fmt.Errorf("%w: sync archive: %w", ErrContainer, err)
	}
	if err := w.f.Close(); err != nil {
		w.discard()
		return fmt.Errorf("%w: close archive file: %w", ErrContainer, err)
	}
	if err := os.Rename(w.tmp, w.path); err != nil {
		w.discard()
		return fmt.Errorf("%w: rename archive into place: %w", ErrContainer, err)
	}
	tmpFiles.remove(w.tmp)
	return nil
}

// Abort discards the temporary file. Safe after a failed Close.
func (w *Writer) Abort() {
	_ = w.zw.Close()
	_ = w.f.Close()
	w.discard()
}

func (w *Writer) discard() {
	_ = os.Remove(w.tmp)
	tmpFiles.remove(w.tmp)
}

func (w *Writer) entryMethod() uint16 {
	if w.opts.Method == MethodStore {
		return zip.Store
	}
	return w.opts.Method
}
