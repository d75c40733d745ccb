package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bamsammich/extcopy/internal/event"
	"github.com/bamsammich/extcopy/internal/filter"
	"github.com/bamsammich/extcopy/internal/fsys"
	"github.com/bamsammich/extcopy/internal/stats"
)

// DefaultTimeout bounds a single file copy.
const DefaultTimeout = 10 * time.Second

var (
	// ErrDestinationBusy is returned when another run holds the destination lock.
	ErrDestinationBusy = errors.New("destination is in use by another run")
	// ErrSameRoot is returned when source and destination are the same directory.
	ErrSameRoot = errors.New("source and destination are the same directory")
	// ErrVerifyMismatch is returned by FileCopier when a copy does not hash
	// to the same digest as its source.
	ErrVerifyMismatch = errors.New("checksum mismatch")
)

// Config describes a copy run.
type Config struct {
	Src      string
	Dst      string
	Workers  int           // max concurrent copies; 0 means unbounded
	Timeout  time.Duration // per-file deadline; 0 means DefaultTimeout
	Preserve bool          // keep mode and timestamps
	Verify   bool          // BLAKE3 check before publishing each copy
	DryRun   bool
	BWLimit  int64 // bytes/sec across all copies; 0 means unlimited
	Filter   *filter.Chain
	Copier   Copier // nil: FileCopier built from the fields above
	Events   event.Sink
	Stats    *stats.Collector
}

// Result is the outcome of a copy run. Err is set only for fatal setup
// errors and interruption; per-file failures are reported through events
// and counted in Stats.
type Result struct {
	Stats stats.Snapshot
	Err   error
}

// Run copies every file under cfg.Src into cfg.Dst/{extension}/, blocking
// until the whole tree has been resolved or ctx is cancelled.
//
//nolint:gocyclo // setup validation is a flat sequence of fatal checks
func Run(ctx context.Context, cfg Config) Result {
	events := cfg.Events
	if events == nil {
		events = event.Discard
	}
	collector := cfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	srcAbs, err := filepath.Abs(cfg.Src)
	if err != nil {
		return Result{Err: fmt.Errorf("source: %w", err)}
	}
	srcInfo, err := os.Stat(srcAbs)
	if err != nil {
		return Result{Err: fmt.Errorf("source: %w", err)}
	}
	dstAbs, err := filepath.Abs(cfg.Dst)
	if err != nil {
		return Result{Err: fmt.Errorf("destination: %w", err)}
	}
	if srcAbs == dstAbs {
		return Result{Err: fmt.Errorf("%w: %s", ErrSameRoot, srcAbs)}
	}
	if err := checkReadable(srcAbs, srcInfo); err != nil {
		return Result{Err: fmt.Errorf("source: %w", err)}
	}

	if !cfg.DryRun {
		if err := ensureRoot(dstAbs, events); err != nil {
			return Result{Err: err}
		}
		lock, err := acquireDestLock(dstAbs)
		if err != nil {
			return Result{Err: err}
		}
		defer lock.Unlock() //nolint:errcheck // releasing an advisory lock
	}

	srcRoot, startRel := srcAbs, "."
	if !srcInfo.IsDir() {
		srcRoot, startRel = filepath.Dir(srcAbs), filepath.Base(srcAbs)
	}

	copier := cfg.Copier
	if copier == nil {
		fc := &FileCopier{Preserve: cfg.Preserve, Verify: cfg.Verify}
		if cfg.BWLimit > 0 {
			fc.Limiter = NewBWLimiter(cfg.BWLimit)
		}
		copier = fc
	}

	t := &traverser{
		src:     fsys.New(srcRoot),
		skipDir: nestedRel(srcRoot, dstAbs),
		filter:  cfg.Filter,
		worker:  newWorker(fsys.New(dstAbs), copier, cfg, events, collector),
		events:  events,
		stats:   collector,
	}

	events.Emit(event.Event{
		Type:      event.RunStarted,
		Timestamp: time.Now(),
		Path:      srcAbs,
		Dst:       dstAbs,
	})

	t.walk(ctx, startRel)

	if c, ok := copier.(interface{ Cleanup() }); ok {
		c.Cleanup()
	}

	if err := ctx.Err(); err != nil {
		return Result{Stats: collector.Snapshot(), Err: err}
	}

	events.Emit(event.Event{Type: event.RunComplete, Timestamp: time.Now()})
	return Result{Stats: collector.Snapshot()}
}

// checkReadable fails when the source root cannot be listed (directory)
// or opened (single file), so nothing is created for a run that cannot
// copy anything.
func checkReadable(srcAbs string, info os.FileInfo) error {
	if info.IsDir() {
		_, err := fsys.New(srcAbs).ReadDir(".")
		return err
	}
	f, err := os.Open(srcAbs)
	if err != nil {
		return err
	}
	return f.Close()
}

// ensureRoot creates the destination root and its parents when missing.
func ensureRoot(dstAbs string, events event.Sink) error {
	info, err := os.Stat(dstAbs)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("create destination: %s is not a directory", dstAbs)
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("create destination: %w", err)
	}

	if err := os.MkdirAll(dstAbs, folderPerm); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	events.Emit(event.Event{Type: event.DirCreated, Timestamp: time.Now(), Dst: dstAbs})
	return nil
}

// nestedRel returns dst relative to src when dst lies inside src, so the
// traversal can skip the run's own output. Empty otherwise.
func nestedRel(src, dst string) string {
	rel, err := filepath.Rel(src, dst)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return rel
}
