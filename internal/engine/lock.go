package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"
)

// lockPath returns the advisory lock file guarding a destination root.
// It lives outside the destination so the copied tree stays clean.
func lockPath(dstAbs string) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("extcopy-%016x.lock", xxhash.Sum64String(dstAbs)))
}

// acquireDestLock takes the destination lock without blocking.
func acquireDestLock(dstAbs string) (*flock.Flock, error) {
	fl := flock.New(lockPath(dstAbs))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock destination %s: %w", dstAbs, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDestinationBusy, dstAbs)
	}
	return fl, nil
}
