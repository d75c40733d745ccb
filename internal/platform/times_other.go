//go:build !linux && !darwin

package platform

import (
	"os"
	"time"
)

func atime(info os.FileInfo) time.Time {
	return info.ModTime()
}

func setFileTimes(f *os.File, accTime, modTime time.Time) error {
	return os.Chtimes(f.Name(), accTime, modTime)
}
