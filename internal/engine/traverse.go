package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bamsammich/extcopy/internal/event"
	"github.com/bamsammich/extcopy/internal/filter"
	"github.com/bamsammich/extcopy/internal/fsys"
	"github.com/bamsammich/extcopy/internal/stats"
)

// traverser walks the source tree, one goroutine per directory entry.
// A directory's walk returns only after every descendant has resolved.
type traverser struct {
	src     *fsys.FS
	skipDir string // destination root relative to src, "" when outside
	filter  *filter.Chain
	worker  *worker
	events  event.Sink
	stats   *stats.Collector
}

func (t *traverser) walk(ctx context.Context, rel string) {
	if ctx.Err() != nil {
		return
	}

	info, err := t.src.Stat(rel)
	if err != nil {
		t.skipFile(rel, event.ReasonUnreadable, err)
		return
	}

	switch {
	case info.IsDir():
		t.walkDir(ctx, rel)
	case info.Mode().IsRegular():
		t.visitFile(ctx, rel, info)
	default:
		t.skipFile(rel, event.ReasonSpecial, nil)
	}
}

func (t *traverser) walkDir(ctx context.Context, rel string) {
	if t.skipDir != "" && rel == t.skipDir {
		t.skipDirectory(rel, event.ReasonDestination, nil)
		return
	}
	if rel != "." && t.filter != nil && !t.filter.Match(filepath.ToSlash(rel), true, 0) {
		t.skipDirectory(rel, event.ReasonExcluded, nil)
		return
	}

	entries, err := t.src.ReadDir(rel)
	if err != nil {
		t.skipDirectory(rel, event.ReasonUnreadable, err)
		return
	}
	t.stats.AddDirsScanned(1)

	var wg sync.WaitGroup
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		child := filepath.Join(rel, entry.Name())
		wg.Go(func() {
			t.walk(ctx, child)
		})
	}
	wg.Wait()
}

func (t *traverser) visitFile(ctx context.Context, rel string, info os.FileInfo) {
	t.stats.AddFilesScanned(1)

	label := ExtensionLabel(filepath.Base(rel))
	if label == "" {
		t.skipFile(rel, event.ReasonNoExtension, nil)
		return
	}
	if t.filter != nil && !t.filter.Match(filepath.ToSlash(rel), false, info.Size()) {
		t.skipFile(rel, event.ReasonExcluded, nil)
		return
	}

	t.worker.copy(ctx, FileTask{
		SrcRel:  rel,
		SrcPath: t.src.Abs(rel),
		Label:   label,
		Size:    info.Size(),
	})
}

func (t *traverser) skipFile(rel, reason string, err error) {
	t.stats.AddFilesSkipped(1)
	t.emitSkip(rel, reason, err, false)
}

// skipDirectory drops a whole subtree. It is counted apart from files so
// the summary's skipped count stays a file count.
func (t *traverser) skipDirectory(rel, reason string, err error) {
	t.stats.AddDirsSkipped(1)
	t.emitSkip(rel, reason, err, true)
}

func (t *traverser) emitSkip(rel, reason string, err error, dir bool) {
	t.events.Emit(event.Event{
		Type:      event.FileSkipped,
		Timestamp: time.Now(),
		Path:      t.src.Abs(rel),
		Reason:    reason,
		Dir:       dir,
		Error:     err,
	})
}
