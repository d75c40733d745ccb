//go:build darwin

package platform

import (
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func atime(info os.FileInfo) time.Time {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(stat.Atimespec.Sec, stat.Atimespec.Nsec)
}

// Darwin lacks AT_EMPTY_PATH, so times are always set by path.
func setFileTimes(f *os.File, accTime, modTime time.Time) error {
	times := []unix.Timespec{
		unix.NsecToTimespec(accTime.UnixNano()),
		unix.NsecToTimespec(modTime.UnixNano()),
	}
	return unix.UtimesNanoAt(unix.AT_FDCWD, f.Name(), times, 0)
}
