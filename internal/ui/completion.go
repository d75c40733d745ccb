package ui

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/bamsammich/extcopy/internal/stats"
)

// CompletionSummary builds the end-of-run line from a snapshot.
// Format: done ✓  copied 1,204  size 2.1 GiB  skipped 3  timeouts 0  errors 0  time 12s
func CompletionSummary(snap stats.Snapshot) string {
	icon := color.GreenString("✓")
	if snap.Errors() > 0 {
		icon = color.RedString("✗")
	}

	return fmt.Sprintf("done %s  copied %s  size %s  skipped %s  timeouts %d  errors %d  time %s",
		icon,
		FormatCount(snap.FilesCopied),
		FormatBytes(snap.BytesCopied),
		FormatCount(snap.FilesSkipped),
		snap.FilesTimedOut,
		snap.FilesFailed,
		FormatDuration(snap.Elapsed),
	)
}
