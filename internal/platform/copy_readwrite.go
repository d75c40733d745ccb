package platform

import (
	"context"
	"io"
	"os"
	"sync"
)

const bufferSize = 1 << 20 // 1 MiB

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, bufferSize)
		return &b
	},
}

// copyReadWrite copies data with a pooled buffer, checking ctx per buffer.
func copyReadWrite(ctx context.Context, params CopyFileParams) (CopyResult, error) {
	srcFd, err := os.Open(params.SrcPath)
	if err != nil {
		return CopyResult{}, err
	}
	defer srcFd.Close()

	n, err := CopyStream(ctx, params.DstFd, srcFd)
	return CopyResult{BytesWritten: n, Method: ReadWrite}, err
}

// CopyStream copies r to w with a pooled buffer until EOF, returning early
// with ctx.Err() once ctx is done.
func CopyStream(ctx context.Context, w io.Writer, r io.Reader) (int64, error) {
	bufp, _ := bufPool.Get().(*[]byte) //nolint:errcheck // pool only holds *[]byte
	defer bufPool.Put(bufp)
	buf := *bufp

	var total int64
	for {
		if err := checkCtx(ctx); err != nil {
			return total, err
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				return total, werr
			}
			if written != n {
				return total, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}
