//go:build linux

package platform

import (
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// atime returns the access time recorded in info, or its mtime when the
// platform stat is unavailable.
func atime(info os.FileInfo) time.Time {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(stat.Atim.Sec, stat.Atim.Nsec)
}

// setFileTimes sets atime and mtime on an open file descriptor.
//
//nolint:gosec // G115: fd values are small non-negative integers
func setFileTimes(f *os.File, accTime, modTime time.Time) error {
	times := []unix.Timespec{
		unix.NsecToTimespec(accTime.UnixNano()),
		unix.NsecToTimespec(modTime.UnixNano()),
	}
	if err := unix.UtimesNanoAt(int(f.Fd()), "", times, unix.AT_EMPTY_PATH); err != nil {
		// Fallback: some systems don't support AT_EMPTY_PATH.
		if err2 := unix.UtimesNanoAt(unix.AT_FDCWD, f.Name(), times, 0); err2 != nil {
			return err
		}
	}
	return nil
}
