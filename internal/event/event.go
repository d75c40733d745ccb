package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	RunStarted Type = iota + 1
	RunComplete
	DirCreated
	FileCopied
	FilePlanned
	FileSkipped
	FileTimedOut
	FileFailed
)

var typeNames = [...]string{
	RunStarted:   "RunStarted",
	RunComplete:  "RunComplete",
	DirCreated:   "DirCreated",
	FileCopied:   "FileCopied",
	FilePlanned:  "FilePlanned",
	FileSkipped:  "FileSkipped",
	FileTimedOut: "FileTimedOut",
	FileFailed:   "FileFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Skip reasons carried in Event.Reason for FileSkipped.
const (
	ReasonNoExtension = "no_extension"
	ReasonExcluded    = "excluded"
	ReasonUnreadable  = "unreadable"
	ReasonSpecial     = "special_file"
	ReasonDestination = "destination_root"
)

// Event represents a single progress event from the engine.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // absolute source path (source root for RunStarted)
	Dst       string // absolute destination path, when known
	Label     string // extension label
	Reason    string // skip reason
	Dir       bool   // FileSkipped: the skipped entry is a directory
	Size      int64
	Error     error
}

// Sink receives engine events. Implementations must be safe for
// concurrent use: the engine emits from many goroutines at once.
type Sink interface {
	Emit(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit calls f(ev).
func (f SinkFunc) Emit(ev Event) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})
