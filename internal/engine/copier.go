package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bamsammich/extcopy/internal/platform"
)

// tmpSuffix marks in-progress copies inside destination folders.
const tmpSuffix = ".extcopy-tmp"

// Copier copies the bytes and metadata of src to dst, overwriting dst.
// Implementations should return promptly with ctx.Err() once ctx is done;
// the engine stops waiting at the deadline either way.
type Copier interface {
	Copy(ctx context.Context, src, dst string) (int64, error)
}

// CopierFunc adapts a function to the Copier interface.
type CopierFunc func(ctx context.Context, src, dst string) (int64, error)

// Copy calls f(ctx, src, dst).
func (f CopierFunc) Copy(ctx context.Context, src, dst string) (int64, error) {
	return f(ctx, src, dst)
}

// FileCopier is the default Copier. Data lands in a hidden temp file next
// to dst which is renamed over dst only after a complete, uncancelled copy,
// so readers never observe a partial file under the final name.
//
// A deadline that fires while the rename is in progress withdraws the
// published file again, unless a later copy has already replaced it. The
// remaining gap is between Copy returning nil and the caller reading the
// result: a caller that gives up at that instant reports a timeout for a
// file that was copied in full.
type FileCopier struct {
	Preserve bool          // copy mode and timestamps
	Verify   bool          // compare BLAKE3 digests before publishing
	Limiter  *rate.Limiter // shared bandwidth cap; nil means unlimited

	tmps   tmpRegistry
	rename func(oldpath, newpath string) error // nil: os.Rename
}

// Copy implements Copier.
func (c *FileCopier) Copy(ctx context.Context, src, dst string) (int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", src, err)
	}

	dir := filepath.Dir(dst)
	tmpName := fmt.Sprintf(".%s.%s%s", filepath.Base(dst), uuid.New().String()[:8], tmpSuffix)
	tmpPath := filepath.Join(dir, tmpName)

	c.tmps.register(tmpPath)
	defer func() {
		c.tmps.deregister(tmpPath)
		_ = os.Remove(tmpPath) // no-op if rename succeeded
	}()

	tmpFd, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return 0, fmt.Errorf("create tmp %s: %w", tmpPath, err)
	}

	n, err := c.copyData(ctx, src, info.Size(), tmpFd)
	if err != nil {
		tmpFd.Close()
		return n, fmt.Errorf("copy data %s: %w", src, err)
	}

	tmpInfo, err := tmpFd.Stat()
	if err != nil {
		tmpFd.Close()
		return n, fmt.Errorf("stat tmp %s: %w", tmpPath, err)
	}

	if c.Preserve {
		if err := platform.SetMetadata(tmpFd, info); err != nil {
			tmpFd.Close()
			return n, fmt.Errorf("set metadata %s: %w", dst, err)
		}
	}

	if err := tmpFd.Close(); err != nil {
		return n, fmt.Errorf("close tmp %s: %w", tmpPath, err)
	}

	if c.Verify {
		if err := verifyCopy(src, tmpPath); err != nil {
			return n, err
		}
	}

	// An abandoned copy must not publish a file after its deadline.
	if err := ctx.Err(); err != nil {
		return n, err
	}

	rename := c.rename
	if rename == nil {
		rename = os.Rename
	}
	if err := rename(tmpPath, dst); err != nil {
		return n, fmt.Errorf("rename %s -> %s: %w", tmpPath, dst, err)
	}
	if err := ctx.Err(); err != nil {
		if cur, serr := os.Stat(dst); serr == nil && os.SameFile(cur, tmpInfo) {
			_ = os.Remove(dst)
		}
		return n, err
	}
	return n, nil
}

func (c *FileCopier) copyData(ctx context.Context, src string, size int64, dstFd *os.File) (int64, error) {
	if c.Limiter == nil {
		result, err := platform.CopyFile(ctx, platform.CopyFileParams{
			SrcPath: src,
			DstFd:   dstFd,
			SrcSize: size,
		})
		return result.BytesWritten, err
	}

	srcFd, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer srcFd.Close()
	return platform.CopyStream(ctx, dstFd, newRateLimitedReader(ctx, srcFd, c.Limiter))
}

// Cleanup removes temp files left behind by copies that never returned.
func (c *FileCopier) Cleanup() {
	c.tmps.cleanup()
}
