package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/extcopy/internal/event"
	"github.com/bamsammich/extcopy/internal/filter"
	"github.com/bamsammich/extcopy/internal/stats"
)

func TestRun_GroupsByExtension(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	writeFiles(t, src, map[string]string{
		"a.txt":     "alpha",
		"sub/b.txt": "bravo",
		"sub/c.jpg": "charlie",
		"noext":     "skipped",
	})

	rec := &recorder{}
	res := Run(context.Background(), Config{Src: src, Dst: dst, Events: rec})
	require.NoError(t, res.Err)

	assert.Equal(t, map[string]string{
		"txt/a.txt": "alpha",
		"txt/b.txt": "bravo",
		"jpg/c.jpg": "charlie",
	}, listTree(t, dst))

	assert.Equal(t, int64(3), res.Stats.FilesCopied)
	assert.Equal(t, int64(1), res.Stats.FilesSkipped)
	assert.Equal(t, int64(4), res.Stats.FilesScanned)
	assert.Equal(t, int64(2), res.Stats.DirsScanned)
	assert.Equal(t, int64(2), res.Stats.FoldersMade)
	assert.Equal(t, int64(len("alpha")+len("bravo")+len("charlie")), res.Stats.BytesCopied)
	assert.Zero(t, res.Stats.Errors())

	skipped := rec.ofType(event.FileSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, event.ReasonNoExtension, skipped[0].Reason)
	assert.Equal(t, filepath.Join(src, "noext"), skipped[0].Path)

	assert.Len(t, rec.ofType(event.RunStarted), 1)
	assert.Len(t, rec.ofType(event.RunComplete), 1)
	assert.Len(t, rec.ofType(event.FileCopied), 3)
}

func TestRun_CreatesDestinationRoot(t *testing.T) {
	t.Parallel()
	src, base := testDirs(t)
	dst := filepath.Join(base, "deep", "nested", "out")
	writeFiles(t, src, map[string]string{"a.txt": "x"})

	rec := &recorder{}
	res := Run(context.Background(), Config{Src: src, Dst: dst, Events: rec})
	require.NoError(t, res.Err)

	assert.FileExists(t, filepath.Join(dst, "txt", "a.txt"))

	var rootEvents int
	for _, e := range rec.ofType(event.DirCreated) {
		if e.Label == "" {
			rootEvents++
			assert.Equal(t, dst, e.Dst)
		}
	}
	assert.Equal(t, 1, rootEvents)
}

func TestRun_DestinationIsFile(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	require.NoError(t, os.WriteFile(dst, []byte("not a dir"), 0o644))

	res := Run(context.Background(), Config{Src: src, Dst: dst})
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "not a directory")
}

func TestRun_NameCollisionLastWriterWins(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	writeFiles(t, src, map[string]string{
		"x/a.txt": "from x",
		"y/a.txt": "from y",
		"z/a.txt": "from z",
	})

	res := Run(context.Background(), Config{Src: src, Dst: dst})
	require.NoError(t, res.Err)

	tree := listTree(t, dst)
	require.Len(t, tree, 1, "colliding names share one destination entry")
	assert.Contains(t, []string{"from x", "from y", "from z"}, tree["txt/a.txt"])
	assert.Equal(t, int64(3), res.Stats.FilesCopied)
}

func TestRun_Idempotent(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	writeFiles(t, src, map[string]string{
		"a.txt":     "one",
		"b.md":      "two",
		"sub/c.txt": "three",
	})

	first := Run(context.Background(), Config{Src: src, Dst: dst})
	require.NoError(t, first.Err)
	want := listTree(t, dst)

	rec := &recorder{}
	second := Run(context.Background(), Config{Src: src, Dst: dst, Events: rec})
	require.NoError(t, second.Err)

	assert.Equal(t, want, listTree(t, dst))
	assert.Equal(t, int64(3), second.Stats.FilesCopied)
	assert.Zero(t, second.Stats.FoldersMade, "existing folders are reused")
	assert.Empty(t, rec.ofType(event.DirCreated))
}

func TestRun_PreservesExistingFolders(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	writeFiles(t, src, map[string]string{"a.txt": "new"})
	writeFiles(t, dst, map[string]string{"txt/other.txt": "untouched"})

	res := Run(context.Background(), Config{Src: src, Dst: dst})
	require.NoError(t, res.Err)

	assert.Equal(t, map[string]string{
		"txt/a.txt":     "new",
		"txt/other.txt": "untouched",
	}, listTree(t, dst))
}

func TestRun_SkipsDotfilesAndTrailingDot(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	writeFiles(t, src, map[string]string{
		".bashrc":        "rc",
		"trailing.":      "dot",
		"archive.tar.gz": "gz",
	})

	rec := &recorder{}
	res := Run(context.Background(), Config{Src: src, Dst: dst, Events: rec})
	require.NoError(t, res.Err)

	assert.Equal(t, map[string]string{"gz/archive.tar.gz": "gz"}, listTree(t, dst))
	assert.Len(t, rec.ofType(event.FileSkipped), 2)
	assert.Equal(t, int64(2), res.Stats.FilesSkipped)
}

func TestRun_EmptySource(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)

	res := Run(context.Background(), Config{Src: src, Dst: dst})
	require.NoError(t, res.Err)
	assert.Empty(t, listTree(t, dst))
	assert.DirExists(t, dst)
	assert.Equal(t, int64(1), res.Stats.DirsScanned)
}

func TestRun_SingleFileSource(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	writeFiles(t, src, map[string]string{"report.pdf": "pdf bytes", "other.pdf": "ignored"})

	res := Run(context.Background(), Config{Src: filepath.Join(src, "report.pdf"), Dst: dst})
	require.NoError(t, res.Err)

	assert.Equal(t, map[string]string{"pdf/report.pdf": "pdf bytes"}, listTree(t, dst))
}

func TestRun_MissingSource(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)

	res := Run(context.Background(), Config{Src: filepath.Join(src, "nope"), Dst: dst})
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, os.ErrNotExist)
	assert.NoDirExists(t, dst)
}

func TestRun_UnreadableSource(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits do not restrict root")
	}
	t.Parallel()

	t.Run("directory", func(t *testing.T) {
		t.Parallel()
		src, dst := testDirs(t)
		writeFiles(t, src, map[string]string{"a.txt": "a"})
		require.NoError(t, os.Chmod(src, 0o000))
		t.Cleanup(func() { _ = os.Chmod(src, 0o755) })

		rec := &recorder{}
		res := Run(context.Background(), Config{Src: src, Dst: dst, Events: rec})
		require.Error(t, res.Err)
		assert.ErrorIs(t, res.Err, os.ErrPermission)
		assert.NoDirExists(t, dst)
		assert.Empty(t, rec.ofType(event.RunStarted))
	})

	t.Run("single file", func(t *testing.T) {
		t.Parallel()
		src, dst := testDirs(t)
		writeFiles(t, src, map[string]string{"secret.txt": "s"})
		file := filepath.Join(src, "secret.txt")
		require.NoError(t, os.Chmod(file, 0o000))

		res := Run(context.Background(), Config{Src: file, Dst: dst})
		require.Error(t, res.Err)
		assert.ErrorIs(t, res.Err, os.ErrPermission)
		assert.NoDirExists(t, dst)
	})
}

func TestCheckReadable(t *testing.T) {
	t.Parallel()
	src, _ := testDirs(t)
	writeFiles(t, src, map[string]string{"a.txt": "a"})

	dirInfo, err := os.Stat(src)
	require.NoError(t, err)
	require.NoError(t, checkReadable(src, dirInfo))

	file := filepath.Join(src, "a.txt")
	fileInfo, err := os.Stat(file)
	require.NoError(t, err)
	require.NoError(t, checkReadable(file, fileInfo))

	// A root removed between stat and the check cannot be listed.
	require.NoError(t, os.RemoveAll(src))
	assert.ErrorIs(t, checkReadable(src, dirInfo), os.ErrNotExist)
}

func TestRun_SameRoot(t *testing.T) {
	t.Parallel()
	src, _ := testDirs(t)

	res := Run(context.Background(), Config{Src: src, Dst: src + string(filepath.Separator)})
	assert.ErrorIs(t, res.Err, ErrSameRoot)
}

func TestRun_DestinationInsideSource(t *testing.T) {
	t.Parallel()
	src, _ := testDirs(t)
	dst := filepath.Join(src, "sorted")
	writeFiles(t, src, map[string]string{
		"a.txt":     "a",
		"sub/b.txt": "b",
	})

	rec := &recorder{}
	first := Run(context.Background(), Config{Src: src, Dst: dst, Events: rec})
	require.NoError(t, first.Err)
	assert.Equal(t, map[string]string{"txt/a.txt": "a", "txt/b.txt": "b"}, listTree(t, dst))

	var destSkips int
	for _, e := range rec.ofType(event.FileSkipped) {
		if e.Reason == event.ReasonDestination {
			destSkips++
			assert.Equal(t, dst, e.Path)
			assert.True(t, e.Dir)
		}
	}
	assert.Equal(t, 1, destSkips)
	assert.Zero(t, first.Stats.FilesSkipped, "a skipped directory is not a skipped file")
	assert.Equal(t, int64(1), first.Stats.DirsSkipped)

	// A second run must not pick up its own previous output.
	second := Run(context.Background(), Config{Src: src, Dst: dst})
	require.NoError(t, second.Err)
	assert.Equal(t, int64(2), second.Stats.FilesCopied)
}

func TestRun_FollowsSymlinks(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	writeFiles(t, src, map[string]string{"real.txt": "target"})
	require.NoError(t, os.Symlink(filepath.Join(src, "real.txt"), filepath.Join(src, "link.log")))
	require.NoError(t, os.Symlink(filepath.Join(src, "missing"), filepath.Join(src, "dangling.txt")))

	rec := &recorder{}
	res := Run(context.Background(), Config{Src: src, Dst: dst, Events: rec})
	require.NoError(t, res.Err)

	assert.Equal(t, map[string]string{
		"txt/real.txt": "target",
		"log/link.log": "target",
	}, listTree(t, dst))

	skipped := rec.ofType(event.FileSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, event.ReasonUnreadable, skipped[0].Reason)
	assert.Error(t, skipped[0].Error)
}

func TestRun_Filter(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	writeFiles(t, src, map[string]string{
		"a.txt":          "a",
		"b.jpg":          "b",
		"cache/c.txt":    "c",
		"keep/d.tmp":     "d",
		"keep/other.tmp": "o",
	})

	chain := filter.NewChain()
	require.NoError(t, chain.AddExclude("*.jpg"))
	require.NoError(t, chain.AddExclude("cache/"))
	require.NoError(t, chain.AddInclude("keep/d.tmp"))
	require.NoError(t, chain.AddExclude("*.tmp"))

	rec := &recorder{}
	res := Run(context.Background(), Config{Src: src, Dst: dst, Filter: chain, Events: rec})
	require.NoError(t, res.Err)

	assert.Equal(t, map[string]string{
		"txt/a.txt": "a",
		"tmp/d.tmp": "d",
	}, listTree(t, dst))

	var excluded int
	for _, e := range rec.ofType(event.FileSkipped) {
		if e.Reason == event.ReasonExcluded {
			excluded++
		}
	}
	assert.Equal(t, 3, excluded, "b.jpg, cache/ and other.tmp")
	assert.Equal(t, int64(2), res.Stats.FilesSkipped)
	assert.Equal(t, int64(1), res.Stats.DirsSkipped)
}

func TestRun_DryRun(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	writeFiles(t, src, map[string]string{
		"a.txt":     "a",
		"sub/b.png": "b",
		"noext":     "n",
	})

	rec := &recorder{}
	res := Run(context.Background(), Config{Src: src, Dst: dst, DryRun: true, Events: rec})
	require.NoError(t, res.Err)

	assert.NoDirExists(t, dst)
	planned := rec.ofType(event.FilePlanned)
	require.Len(t, planned, 2)

	dsts := []string{planned[0].Dst, planned[1].Dst}
	assert.ElementsMatch(t, []string{
		filepath.Join(dst, "txt", "a.txt"),
		filepath.Join(dst, "png", "b.png"),
	}, dsts)
	assert.Zero(t, res.Stats.FilesCopied)
	assert.Equal(t, int64(1), res.Stats.FilesSkipped)
}

func TestRun_TimeoutIsolation(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	writeFiles(t, src, map[string]string{
		"fast1.txt":     "1",
		"slow.txt":      "s",
		"sub/fast2.txt": "2",
		"sub/fast3.bin": "3",
	})

	base := &FileCopier{}
	copier := CopierFunc(func(ctx context.Context, s, d string) (int64, error) {
		if filepath.Base(s) == "slow.txt" {
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return base.Copy(ctx, s, d)
	})

	rec := &recorder{}
	res := Run(context.Background(), Config{
		Src:     src,
		Dst:     dst,
		Timeout: 100 * time.Millisecond,
		Copier:  copier,
		Events:  rec,
	})
	require.NoError(t, res.Err, "a timed-out file does not fail the run")

	assert.Equal(t, map[string]string{
		"txt/fast1.txt": "1",
		"txt/fast2.txt": "2",
		"bin/fast3.bin": "3",
	}, listTree(t, dst))
	assert.Equal(t, int64(1), res.Stats.FilesTimedOut)
	assert.Equal(t, int64(3), res.Stats.FilesCopied)

	timeouts := rec.ofType(event.FileTimedOut)
	require.Len(t, timeouts, 1)
	assert.Equal(t, filepath.Join(src, "slow.txt"), timeouts[0].Path)
	assert.ErrorIs(t, timeouts[0].Error, context.DeadlineExceeded)
}

func TestRun_NonCooperativeCopierStillTimesOut(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	writeFiles(t, src, map[string]string{"stuck.txt": "s"})

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	copier := CopierFunc(func(context.Context, string, string) (int64, error) {
		<-release
		return 0, nil
	})

	start := time.Now()
	res := Run(context.Background(), Config{
		Src:     src,
		Dst:     dst,
		Timeout: 50 * time.Millisecond,
		Copier:  copier,
	})
	require.NoError(t, res.Err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int64(1), res.Stats.FilesTimedOut)
	assert.Zero(t, res.Stats.FilesCopied)
}

func TestRun_FailureIsolation(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	writeFiles(t, src, map[string]string{
		"good.txt": "g",
		"bad.txt":  "b",
	})

	boom := errors.New("disk on fire")
	base := &FileCopier{}
	copier := CopierFunc(func(ctx context.Context, s, d string) (int64, error) {
		if filepath.Base(s) == "bad.txt" {
			return 0, boom
		}
		return base.Copy(ctx, s, d)
	})

	rec := &recorder{}
	res := Run(context.Background(), Config{Src: src, Dst: dst, Copier: copier, Events: rec})
	require.NoError(t, res.Err)

	assert.Equal(t, map[string]string{"txt/good.txt": "g"}, listTree(t, dst))
	assert.Equal(t, int64(1), res.Stats.FilesFailed)
	failed := rec.ofType(event.FileFailed)
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0].Error, boom)
}

func TestRun_PerFileDeadlineStartsAtCopy(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	files := make(map[string]string)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		files[name+".txt"] = name
	}
	writeFiles(t, src, files)

	base := &FileCopier{}
	copier := CopierFunc(func(ctx context.Context, s, d string) (int64, error) {
		time.Sleep(40 * time.Millisecond)
		return base.Copy(ctx, s, d)
	})

	// Serialized, the run takes far longer than one deadline; no single
	// copy does.
	res := Run(context.Background(), Config{
		Src:     src,
		Dst:     dst,
		Workers: 1,
		Timeout: 250 * time.Millisecond,
		Copier:  copier,
	})
	require.NoError(t, res.Err)
	assert.Zero(t, res.Stats.FilesTimedOut)
	assert.Equal(t, int64(len(files)), res.Stats.FilesCopied)
}

func TestRun_WorkerCap(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	files := make(map[string]string)
	for i := range 24 {
		files[filepath.Join("d"+string(rune('a'+i%4)), string(rune('a'+i))+".txt")] = "x"
	}
	writeFiles(t, src, files)

	var inFlight, peak atomic.Int64
	base := &FileCopier{}
	copier := CopierFunc(func(ctx context.Context, s, d string) (int64, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return base.Copy(ctx, s, d)
	})

	collector := stats.NewCollector()
	res := Run(context.Background(), Config{
		Src:     src,
		Dst:     dst,
		Workers: 3,
		Copier:  copier,
		Stats:   collector,
	})
	require.NoError(t, res.Err)

	assert.Equal(t, int64(24), res.Stats.FilesCopied)
	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.LessOrEqual(t, res.Stats.PeakInFlight, int64(3))
	assert.Positive(t, res.Stats.PeakInFlight)
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	writeFiles(t, src, map[string]string{"a.txt": "a", "sub/b.txt": "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	res := Run(ctx, Config{Src: src, Dst: dst, Events: rec})
	require.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, res.Stats.FilesCopied)
	assert.Empty(t, rec.ofType(event.RunComplete))
}

func TestRun_CancelDuringCopy(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	writeFiles(t, src, map[string]string{"a.txt": "a", "b.txt": "b", "c.txt": "c"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{}, 3)
	copier := CopierFunc(func(ctx context.Context, _, _ string) (int64, error) {
		started <- struct{}{}
		<-ctx.Done()
		return 0, ctx.Err()
	})
	go func() {
		<-started
		cancel()
	}()

	res := Run(ctx, Config{Src: src, Dst: dst, Copier: copier, Timeout: time.Minute})
	require.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, res.Stats.FilesTimedOut, "interruption is not a timeout")
	assert.Zero(t, res.Stats.FilesFailed)
}

func TestRun_DestinationLocked(t *testing.T) {
	t.Parallel()
	src, dst := testDirs(t)
	writeFiles(t, src, map[string]string{"a.txt": "a"})
	require.NoError(t, os.MkdirAll(dst, 0o755))

	held := flock.New(lockPath(dst))
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() { _ = held.Unlock() })

	res := Run(context.Background(), Config{Src: src, Dst: dst})
	require.ErrorIs(t, res.Err, ErrDestinationBusy)
	assert.NoFileExists(t, filepath.Join(dst, "txt", "a.txt"))

	require.NoError(t, held.Unlock())
	res = Run(context.Background(), Config{Src: src, Dst: dst})
	require.NoError(t, res.Err)
	assert.FileExists(t, filepath.Join(dst, "txt", "a.txt"))
}

func TestNestedRel(t *testing.T) {
	t.Parallel()

	sep := string(filepath.Separator)
	root := sep + filepath.Join("data", "src")
	assert.Equal(t, "out", nestedRel(root, filepath.Join(root, "out")))
	assert.Equal(t, filepath.Join("a", "b"), nestedRel(root, filepath.Join(root, "a", "b")))
	assert.Empty(t, nestedRel(root, root))
	assert.Empty(t, nestedRel(root, sep+filepath.Join("data", "dst")))
	assert.Empty(t, nestedRel(root, sep+"data"))
	assert.Equal(t, "..out", nestedRel(root, filepath.Join(root, "..out")))
}
