package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Collector tracks copy run statistics using lock-free atomic counters.
// Safe for use from any number of traversal and copy goroutines.
type Collector struct {
	dirsScanned   atomic.Int64
	filesScanned  atomic.Int64
	filesCopied   atomic.Int64
	filesSkipped  atomic.Int64
	dirsSkipped   atomic.Int64
	filesTimedOut atomic.Int64
	filesFailed   atomic.Int64
	bytesCopied   atomic.Int64
	foldersMade   atomic.Int64
	inFlight      atomic.Int64
	peakInFlight  atomic.Int64
	startTime     time.Time
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	DirsScanned   int64
	FilesScanned  int64
	FilesCopied   int64
	FilesSkipped  int64
	DirsSkipped   int64
	FilesTimedOut int64
	FilesFailed   int64
	BytesCopied   int64
	FoldersMade   int64
	PeakInFlight  int64
	Elapsed       time.Duration
}

func (c *Collector) AddDirsScanned(n int64)   { c.dirsScanned.Add(n) }
func (c *Collector) AddFilesScanned(n int64)  { c.filesScanned.Add(n) }
func (c *Collector) AddFilesCopied(n int64)   { c.filesCopied.Add(n) }
func (c *Collector) AddFilesSkipped(n int64)  { c.filesSkipped.Add(n) }
func (c *Collector) AddDirsSkipped(n int64)   { c.dirsSkipped.Add(n) }
func (c *Collector) AddFilesTimedOut(n int64) { c.filesTimedOut.Add(n) }
func (c *Collector) AddFilesFailed(n int64)   { c.filesFailed.Add(n) }
func (c *Collector) AddBytesCopied(n int64)   { c.bytesCopied.Add(n) }
func (c *Collector) AddFoldersMade(n int64)   { c.foldersMade.Add(n) }

// CopyStarted marks one copy as in flight and records the high-water mark.
func (c *Collector) CopyStarted() {
	n := c.inFlight.Add(1)
	for {
		peak := c.peakInFlight.Load()
		if n <= peak || c.peakInFlight.CompareAndSwap(peak, n) {
			return
		}
	}
}

// CopyFinished marks one in-flight copy as done.
func (c *Collector) CopyFinished() { c.inFlight.Add(-1) }

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		DirsScanned:   c.dirsScanned.Load(),
		FilesScanned:  c.filesScanned.Load(),
		FilesCopied:   c.filesCopied.Load(),
		FilesSkipped:  c.filesSkipped.Load(),
		DirsSkipped:   c.dirsSkipped.Load(),
		FilesTimedOut: c.filesTimedOut.Load(),
		FilesFailed:   c.filesFailed.Load(),
		BytesCopied:   c.bytesCopied.Load(),
		FoldersMade:   c.foldersMade.Load(),
		PeakInFlight:  c.peakInFlight.Load(),
		Elapsed:       c.Elapsed(),
	}
}

// Elapsed returns time since collector creation. A zero-value Collector
// reports zero.
func (c *Collector) Elapsed() time.Duration {
	if c.startTime.IsZero() {
		return 0
	}
	return time.Since(c.startTime)
}

// Errors is the number of files that were not copied because of a
// timeout or failure.
func (s Snapshot) Errors() int64 {
	return s.FilesTimedOut + s.FilesFailed
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"dirs=%d dirs_skipped=%d scanned=%d copied=%d skipped=%d timeouts=%d failed=%d bytes=%d folders=%d",
		s.DirsScanned, s.DirsSkipped, s.FilesScanned, s.FilesCopied, s.FilesSkipped,
		s.FilesTimedOut, s.FilesFailed, s.BytesCopied, s.FoldersMade,
	)
}
