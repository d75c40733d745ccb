package engine

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxBurst caps the limiter bucket so a fresh limiter cannot let a large
// first read through unthrottled.
const maxBurst = 1 << 20

// NewBWLimiter returns a limiter capping the combined throughput of every
// copy that shares it to bytesPerSec.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	burst := int(min(bytesPerSec, maxBurst))
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// rateLimitedReader charges every read against a shared limiter.
type rateLimitedReader struct {
	ctx     context.Context //nolint:containedctx // bound to one copy
	r       io.Reader
	limiter *rate.Limiter
}

func newRateLimitedReader(ctx context.Context, r io.Reader, limiter *rate.Limiter) *rateLimitedReader {
	return &rateLimitedReader{ctx: ctx, r: r, limiter: limiter}
}

func (rl *rateLimitedReader) Read(p []byte) (int, error) {
	// WaitN rejects requests larger than the burst.
	if burst := rl.limiter.Burst(); burst > 0 && len(p) > burst {
		p = p[:burst]
	}
	n, err := rl.r.Read(p)
	if n > 0 {
		if werr := rl.limiter.WaitN(rl.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
