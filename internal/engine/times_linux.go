//go:build linux

package engine

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// restoreTimes sets mtime on an extracted path with nanosecond precision,
// leaving atime untouched.
func restoreTimes(path string, mtime time.Time) error {
	times := []unix.Timespec{
		{Nsec: unix.UTIME_OMIT},
		unix.NsecToTimespec(mtime.UnixNano()),
	}
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, path, times, 0); err != nil {
		return fmt.Errorf("utimensat: %w", err)
	}
	return nil
}
