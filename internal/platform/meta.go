package platform

import (
	"fmt"
	"os"
)

// SetMetadata copies permission bits and access/modification times from
// src onto the open destination file dst.
func SetMetadata(dst *os.File, src os.FileInfo) error {
	if err := dst.Chmod(src.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod %s: %w", dst.Name(), err)
	}
	if err := setFileTimes(dst, atime(src), src.ModTime()); err != nil {
		return fmt.Errorf("set times %s: %w", dst.Name(), err)
	}
	return nil
}
