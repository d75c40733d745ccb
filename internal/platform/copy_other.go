//go:build !linux

package platform

import "context"

// CopyFile falls back to read/write on platforms without an in-kernel copy.
// Space is not preallocated: fallocate is Linux-only.
func CopyFile(ctx context.Context, params CopyFileParams) (CopyResult, error) {
	return copyReadWrite(ctx, params)
}
