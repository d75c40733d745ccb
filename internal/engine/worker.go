package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/bamsammich/extcopy/internal/event"
	"github.com/bamsammich/extcopy/internal/fsys"
	"github.com/bamsammich/extcopy/internal/stats"
)

const folderPerm = 0o755

// worker copies single files into {dst}/{label}/{basename}.
type worker struct {
	dst     *fsys.FS
	copier  Copier
	timeout time.Duration
	dryRun  bool
	sem     chan struct{} // nil: unbounded
	events  event.Sink
	stats   *stats.Collector
	folders sync.Map // label -> *folder
}

// folder records the first creation attempt of one extension folder so
// DirCreated is reported once per label.
type folder struct {
	once sync.Once
}

type copyResult struct {
	n   int64
	err error
}

func newWorker(dst *fsys.FS, copier Copier, cfg Config, events event.Sink, collector *stats.Collector) *worker {
	w := &worker{
		dst:     dst,
		copier:  copier,
		timeout: cfg.Timeout,
		dryRun:  cfg.DryRun,
		events:  events,
		stats:   collector,
	}
	if cfg.Workers > 0 {
		w.sem = make(chan struct{}, cfg.Workers)
	}
	return w
}

// ensureFolder makes {dst}/{label} exist. Safe for concurrent callers on
// the same label; an existing folder is not an error.
func (w *worker) ensureFolder(label string) error {
	v, _ := w.folders.LoadOrStore(label, &folder{})
	f := v.(*folder) //nolint:forcetypeassert // map only holds *folder

	f.once.Do(func() {
		existed, err := w.dst.IsDir(label)
		if err != nil || existed {
			return
		}
		if err := w.dst.MkdirAll(label, folderPerm); err != nil {
			return
		}
		w.stats.AddFoldersMade(1)
		w.events.Emit(event.Event{
			Type:      event.DirCreated,
			Timestamp: time.Now(),
			Dst:       w.dst.Abs(label),
			Label:     label,
		})
	})

	return w.dst.MkdirAll(label, folderPerm)
}

func (w *worker) acquire(ctx context.Context) bool {
	if w.sem == nil {
		return true
	}
	select {
	case w.sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *worker) release() {
	if w.sem != nil {
		<-w.sem
	}
}

// copy resolves one task. Per-file errors never escape: they become
// events and counters.
func (w *worker) copy(ctx context.Context, task FileTask) Outcome {
	dstRel := filepath.Join(task.Label, filepath.Base(task.SrcRel))
	dstPath := w.dst.Abs(dstRel)

	if w.dryRun {
		w.events.Emit(event.Event{
			Type:      event.FilePlanned,
			Timestamp: time.Now(),
			Path:      task.SrcPath,
			Dst:       dstPath,
			Label:     task.Label,
			Size:      task.Size,
		})
		return Planned
	}

	if !w.acquire(ctx) {
		return Canceled
	}
	defer w.release()

	if err := w.ensureFolder(task.Label); err != nil {
		return w.fail(task, dstPath, err)
	}

	w.stats.CopyStarted()
	defer w.stats.CopyFinished()

	// The deadline starts now, not when the task was scheduled.
	cctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	done := make(chan copyResult, 1)
	go func() {
		n, err := w.copier.Copy(cctx, task.SrcPath, dstPath)
		done <- copyResult{n: n, err: err}
	}()

	var res copyResult
	select {
	case res = <-done:
	case <-cctx.Done():
		// Prefer a result that raced in with the deadline.
		select {
		case res = <-done:
		default:
			res.err = cctx.Err()
		}
	}

	switch {
	case res.err == nil:
		w.stats.AddFilesCopied(1)
		w.stats.AddBytesCopied(res.n)
		w.events.Emit(event.Event{
			Type:      event.FileCopied,
			Timestamp: time.Now(),
			Path:      task.SrcPath,
			Dst:       dstPath,
			Label:     task.Label,
			Size:      res.n,
		})
		return Copied
	case ctx.Err() != nil:
		return Canceled
	case errors.Is(res.err, context.DeadlineExceeded):
		w.stats.AddFilesTimedOut(1)
		w.events.Emit(event.Event{
			Type:      event.FileTimedOut,
			Timestamp: time.Now(),
			Path:      task.SrcPath,
			Dst:       dstPath,
			Label:     task.Label,
			Error:     res.err,
		})
		return TimedOut
	default:
		return w.fail(task, dstPath, res.err)
	}
}

func (w *worker) fail(task FileTask, dstPath string, err error) Outcome {
	w.stats.AddFilesFailed(1)
	w.events.Emit(event.Event{
		Type:      event.FileFailed,
		Timestamp: time.Now(),
		Path:      task.SrcPath,
		Dst:       dstPath,
		Label:     task.Label,
		Error:     err,
	})
	return Failed
}
