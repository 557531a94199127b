package model

// Operation is the file-level action a diff header implies.
type Operation int

const (
	Update Operation = iota
	Create
	Delete
	Rename
)

func (o Operation) String() string {
	switch o {
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	case Rename:
		return "rename"
	default:
		return "unknown"
	}
}

// FileRef names one side of a diff header. A FileRef that is not Present
// stands for a file that does not exist on that side.
type FileRef struct {
	Path    string
	Present bool
}

// NullFile is the absent side of a create or delete diff.
var NullFile = FileRef{}

// File returns a present FileRef for path.
func File(path string) FileRef {
	return FileRef{Path: path, Present: true}
}

func (f FileRef) String() string {
	if !f.Present {
		return "<none>"
	}
	return f.Path
}

// LineKind tags a line inside a hunk.
type LineKind int

const (
	Context LineKind = iota
	Added
	Removed
)

func (k LineKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "context"
	}
}

// Line is one tagged line of a hunk, without its marker and line terminator.
type Line struct {
	Kind LineKind
	Text string
}

// Hunk is one contiguous edit region of a diff.
type Hunk struct {
	OrigStart int
	OrigCount int
	NewStart  int
	NewCount  int
	// Section is the optional text after the closing "@@", usually a function name.
	Section string
	Lines   []Line
	// OrigMissingEOL and NewMissingEOL record a "\ No newline at end of file"
	// marker on the original or new side of the hunk's last line.
	OrigMissingEOL bool
	NewMissingEOL  bool
}

// DiffFile is one parsed file section of a unified diff.
type DiffFile struct {
	Operation Operation
	Source    FileRef
	Target    FileRef
	Hunks     []Hunk
}

// Path returns the path the operation is keyed on: the target, or the
// source for a delete.
func (d DiffFile) Path() string {
	if d.Operation == Delete {
		return d.Source.Path
	}
	return d.Target.Path
}

// Outcome records one file section that was applied.
type Outcome struct {
	Index     int
	DiffPath  string
	Operation Operation
	Source    string
	Target    string
}

// Summary holds the results of a run for display.
type Summary struct {
	Created []string
	Updated []string
	Deleted []string
	Renamed []string
	Failed  string
	Message string
}

// Summarize groups outcomes by operation.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Operation {
		case Create:
			s.Created = append(s.Created, o.Target)
		case Update:
			s.Updated = append(s.Updated, o.Target)
		case Delete:
			s.Deleted = append(s.Deleted, o.Source)
		case Rename:
			s.Renamed = append(s.Renamed, o.Source+" -> "+o.Target)
		}
	}
	return s
}
