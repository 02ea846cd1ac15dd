package archive

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// Compression methods recorded in entry headers. Zstandard carries the
// method ID assigned by the zip specification (APPNOTE 4.4.5).
const (
	MethodStore   = zip.Store
	MethodDeflate = zip.Deflate
	MethodZstd    uint16 = 93
)

// DefaultLevel is the compression level used when none is configured.
const DefaultLevel = 6

// ParseMethod resolves a command-line method name.
func ParseMethod(name string) (uint16, error) {
	switch strings.ToLower(name) {
	case "", "deflate":
		return MethodDeflate, nil
	case "store", "none":
		return MethodStore, nil
	case "zstd", "zstandard":
		return MethodZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression method %q", name)
	}
}

// MethodName returns the display name for a method ID.
func MethodName(m uint16) string {
	switch m {
	case MethodStore:
		return "store"
	case MethodDeflate:
		return "deflate"
	case MethodZstd:
		return "zstd"
	default:
		return fmt.Sprintf("method-%d", m)
	}
}

// NewMethodWriter returns a compressor producing the raw stream for a
// method, suitable both for pre-compression buffers and for registration
// with a zip writer.
func NewMethodWriter(w io.Writer, method uint16, level int) (io.WriteCloser, error) {
	switch method {
	case MethodDeflate:
		if level < 1 || level > 9 {
			level = DefaultLevel
		}
		return flate.NewWriter(w, level)
	case MethodZstd:
		return zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstdLevel(level)),
			zstd.WithEncoderConcurrency(1))
	default:
		return nil, fmt.Errorf("no compressor for %s", MethodName(method))
	}
}

// zstdLevel maps zip-style 1..9 levels onto the encoder's named levels.
func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 0:
		return zstd.SpeedDefault
	case level <= 2:
		return zstd.SpeedFastest
	case level <= 5:
		return zstd.SpeedDefault
	case level <= 8:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}
