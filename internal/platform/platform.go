// Package platform holds the OS-specific byte copy primitive and metadata
// helpers used by the copy engine.
package platform

import (
	"context"
	"os"
)

// CopyMethod identifies which syscall/strategy was used for a copy.
type CopyMethod int

const (
	ReadWrite     CopyMethod = iota
	CopyFileRange            // Linux copy_file_range(2)
	Sendfile                 // Linux sendfile(2)
)

func (m CopyMethod) String() string {
	switch m {
	case ReadWrite:
		return "read_write"
	case CopyFileRange:
		return "copy_file_range"
	case Sendfile:
		return "sendfile"
	default:
		return "unknown"
	}
}

// ChunkSize bounds a single kernel copy call so cancellation is observed
// between chunks.
const ChunkSize = 8 << 20 // 8 MiB

// CopyResult reports the outcome of a copy operation.
type CopyResult struct {
	BytesWritten int64
	Method       CopyMethod
}

// CopyFileParams describes what to copy. The whole source is copied into
// DstFd starting at offset zero.
type CopyFileParams struct {
	DstFd   *os.File
	SrcPath string
	SrcSize int64
}

// checkCtx returns ctx.Err() once ctx is done, nil otherwise.
func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
