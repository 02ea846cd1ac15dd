//go:build !linux

package engine

import (
	"os"
	"time"
)

// restoreTimes sets mtime on an extracted path. Without UTIME_OMIT the
// atime is set to the same instant.
func restoreTimes(path string, mtime time.Time) error {
	return os.Chtimes(path, mtime, mtime)
}
