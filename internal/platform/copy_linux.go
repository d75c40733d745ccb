//go:build linux

package platform

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// CopyFile tries the most efficient copy method available on Linux,
// falling through on unsupported/cross-device errors. ctx is checked
// between chunks; a cancelled copy returns ctx.Err().
func CopyFile(ctx context.Context, params CopyFileParams) (CopyResult, error) {
	preallocate(params.DstFd, params.SrcSize)

	result, err := copyFileRange(ctx, params)
	if err == nil {
		return result, nil
	}
	if !isFallbackErr(err) || result.BytesWritten > 0 {
		return result, err
	}

	result, err = copySendfile(ctx, params)
	if err == nil {
		return result, nil
	}
	if !isFallbackErr(err) || result.BytesWritten > 0 {
		return result, err
	}

	return copyReadWrite(ctx, params)
}

func copyFileRange(ctx context.Context, params CopyFileParams) (CopyResult, error) {
	srcFd, err := os.Open(params.SrcPath)
	if err != nil {
		return CopyResult{}, err
	}
	defer srcFd.Close()

	var roff, woff int64
	var total int64
	for {
		if err := checkCtx(ctx); err != nil {
			return CopyResult{BytesWritten: total, Method: CopyFileRange}, err
		}
		//nolint:gosec // G115: fd values are small non-negative integers
		n, err := unix.CopyFileRange(int(srcFd.Fd()), &roff, int(params.DstFd.Fd()), &woff, ChunkSize, 0)
		if err != nil {
			return CopyResult{BytesWritten: total, Method: CopyFileRange}, err
		}
		if n == 0 {
			break
		}
		total += int64(n)
	}
	return CopyResult{BytesWritten: total, Method: CopyFileRange}, nil
}

func copySendfile(ctx context.Context, params CopyFileParams) (CopyResult, error) {
	srcFd, err := os.Open(params.SrcPath)
	if err != nil {
		return CopyResult{}, err
	}
	defer srcFd.Close()

	var offset, total int64
	for {
		if err := checkCtx(ctx); err != nil {
			return CopyResult{BytesWritten: total, Method: Sendfile}, err
		}
		//nolint:gosec // G115: fd values are small non-negative integers
		n, err := unix.Sendfile(int(params.DstFd.Fd()), int(srcFd.Fd()), &offset, ChunkSize)
		if err != nil {
			return CopyResult{BytesWritten: total, Method: Sendfile}, err
		}
		if n == 0 {
			break
		}
		total += int64(n)
	}
	return CopyResult{BytesWritten: total, Method: Sendfile}, nil
}

// isFallbackErr returns true if err should trigger a fallback to the next copy strategy.
func isFallbackErr(err error) bool {
	return errors.Is(err, unix.ENOSYS) ||
		errors.Is(err, unix.EXDEV) ||
		errors.Is(err, unix.EINVAL) ||
		errors.Is(err, unix.ENOTSUP) ||
		errors.Is(err, unix.EOPNOTSUPP)
}
