package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a patch failure so callers can branch without
// matching messages.
type ErrorKind string

const (
	KindUnknown       ErrorKind = "UNKNOWN"
	KindMalformedDiff ErrorKind = "MALFORMED_DIFF"
	KindPrecondition  ErrorKind = "PRECONDITION"
	KindHunkApply     ErrorKind = "HUNK_APPLY"
	KindIO            ErrorKind = "IO"
)

// Precondition failure subjects.
const (
	ReasonCreateExists    = "cannot create: already exists"
	ReasonUpdateMissing   = "cannot update: does not exist"
	ReasonDeleteMissing   = "cannot delete: does not exist"
	ReasonRenameMissing   = "cannot rename: source missing"
	ReasonRenameExists    = "cannot rename: target exists"
	ReasonPathEscapesRoot = "path escapes root"
	ReasonSymlink         = "refusing to patch through a symlink"
)

// MalformedDiffError reports diff text that has no valid header and hunk structure.
type MalformedDiffError struct {
	// Line is the 1-based line of the diff text, or 0 when not tied to a line.
	Line   int
	Reason string
}

func (e *MalformedDiffError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed diff: line %d: %s", e.Line, e.Reason)
	}
	return "malformed diff: " + e.Reason
}

// PreconditionError reports an operation that is illegal for the current
// state of the target directory.
type PreconditionError struct {
	Operation Operation
	Path      string
	Reason    string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}

// HunkApplyError reports a hunk whose context or removed lines do not match
// the file.
type HunkApplyError struct {
	Path string
	// Hunk is the 1-based index of the failing hunk.
	Hunk   int
	Header string
	// Line is the 1-based line of the original file where matching failed.
	Line     int
	Expected string
	Actual   string
	Reason   string
}

func (e *HunkApplyError) Error() string {
	msg := fmt.Sprintf("hunk #%d %s failed at line %d", e.Hunk, e.Header, e.Line)
	if e.Path != "" {
		msg += " of " + e.Path
	}
	return msg + ": " + e.Reason
}

// IOError wraps a filesystem failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Stage is the step of the per-diff pipeline in which a failure happened.
type Stage int

const (
	StageReading Stage = iota
	StageParsing
	StageValidating
	StageApplying
	StageCommitting
)

func (s Stage) String() string {
	switch s {
	case StageReading:
		return "reading"
	case StageParsing:
		return "parsing"
	case StageValidating:
		return "validating"
	case StageApplying:
		return "applying"
	case StageCommitting:
		return "committing"
	default:
		return "unknown"
	}
}

// PatchApplicationError identifies the diff that stopped a run.
type PatchApplicationError struct {
	// Index is the 0-based position of the diff in the input sequence.
	Index    int
	DiffPath string
	Stage    Stage
	Err      error
}

func (e *PatchApplicationError) Error() string {
	return fmt.Sprintf("patch #%d (%s) failed while %s: %v", e.Index+1, e.DiffPath, e.Stage, e.Err)
}

func (e *PatchApplicationError) Unwrap() error { return e.Err }

// KindOf returns the kind of the first tagged error in err's chain.
func KindOf(err error) ErrorKind {
	var (
		malformed    *MalformedDiffError
		precondition *PreconditionError
		hunk         *HunkApplyError
		ioErr        *IOError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &malformed):
		return KindMalformedDiff
	case errors.As(err, &precondition):
		return KindPrecondition
	case errors.As(err, &hunk):
		return KindHunkApply
	case errors.As(err, &ioErr):
		return KindIO
	default:
		return KindUnknown
	}
}
