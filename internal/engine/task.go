package engine

// FileTask describes a single file handed from the traversal to the copy
// worker.
type FileTask struct {
	SrcRel  string // relative to the source root
	SrcPath string // absolute source path
	Label   string // extension label, never empty
	Size    int64
}

// Outcome is the resolved state of one copy.
type Outcome int

const (
	Copied Outcome = iota
	TimedOut
	Failed
	Canceled
	Planned // dry run
)

func (o Outcome) String() string {
	switch o {
	case Copied:
		return "copied"
	case TimedOut:
		return "timed_out"
	case Failed:
		return "failed"
	case Canceled:
		return "canceled"
	case Planned:
		return "planned"
	default:
		return "unknown"
	}
}
