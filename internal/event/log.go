package event

import (
	"context"
	"log/slog"
)

// LogSink renders events as leveled slog records.
type LogSink struct {
	Logger *slog.Logger
}

// NewLogSink returns a LogSink writing to logger, or to slog.Default when
// logger is nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{Logger: logger}
}

// Emit implements Sink.
func (s *LogSink) Emit(ev Event) {
	ctx := context.Background()
	l := s.Logger

	switch ev.Type {
	case RunStarted:
		l.InfoContext(ctx, "starting file copy", "source", ev.Path, "destination", ev.Dst)
	case RunComplete:
		l.InfoContext(ctx, "file copying completed")
	case DirCreated:
		if ev.Label == "" {
			l.InfoContext(ctx, "created destination directory", "path", ev.Dst)
			return
		}
		l.DebugContext(ctx, "created folder", "path", ev.Dst, "extension", ev.Label)
	case FileCopied:
		l.InfoContext(ctx, "copied", "source", ev.Path, "destination", ev.Dst, "size", ev.Size)
	case FilePlanned:
		l.InfoContext(ctx, "would copy", "source", ev.Path, "destination", ev.Dst)
	case FileSkipped:
		level := slog.LevelWarn
		if ev.Reason == ReasonExcluded || ev.Reason == ReasonDestination {
			level = slog.LevelDebug
		}
		attrs := []any{"path", ev.Path, "reason", ev.Reason}
		if ev.Error != nil {
			attrs = append(attrs, "error", ev.Error)
		}
		msg := "skipping file"
		if ev.Dir {
			msg = "skipping directory"
		}
		l.Log(ctx, level, msg, attrs...)
	case FileTimedOut:
		l.ErrorContext(ctx, "timeout copying file, skipped", "path", ev.Path)
	case FileFailed:
		l.ErrorContext(ctx, "copy failed", "path", ev.Path, "destination", ev.Dst, "error", ev.Error)
	}
}
