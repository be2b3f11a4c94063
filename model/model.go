package model

import "time"

// FragmentKind tells where a fragment's text came from.
type FragmentKind int

const (
	BuiltIn FragmentKind = iota
	ExternalText
	ExternalBinary
)

func (k FragmentKind) String() string {
	switch k {
	case BuiltIn:
		return "builtin"
	case ExternalText:
		return "external-text"
	case ExternalBinary:
		return "external-binary"
	default:
		return "unknown"
	}
}

// Stage is one of the three fixed steps of an action sequence.
type Stage string

const (
	StageOpen   Stage = "open"
	StageMiddle Stage = "middle"
	StageClose  Stage = "close"
)

// Operation asks the fragment library for one stage. Path is only read for
// the middle stage.
type Operation struct {
	Stage Stage
	Path  string
}

// Fragment is a block of script text representing one logical editing step.
type Fragment struct {
	Kind   FragmentKind
	Stage  Stage
	Text   string
	Source string // Portable path of the external file, empty for built-ins.
}

// ActionSequence is the fixed open -> middle -> close ordering.
type ActionSequence struct {
	Open   Fragment
	Middle Fragment
	Close  Fragment
}

// Fragments returns the three stages in execution order.
func (s ActionSequence) Fragments() []Fragment {
	return []Fragment{s.Open, s.Middle, s.Close}
}

// ComposedScript is a fully substituted script persisted to disk.
type ComposedScript struct {
	Path   string
	Text   string
	Input  string
	Output string
	SaveAs string // Save branch the script takes for Output: jpeg, png or psd.
}

// Disposition is the outcome of classifying a log block.
type Disposition int

const (
	Unset Disposition = iota
	Kept
	Skipped
)

func (d Disposition) String() string {
	switch d {
	case Kept:
		return "kept"
	case Skipped:
		return "skipped"
	default:
		return "unset"
	}
}

// LogBlock is a contiguous slice of a recorded log between delimiters.
type LogBlock struct {
	Index       int
	Text        string
	Disposition Disposition
	Reason      string // Matched blacklist keyword when Skipped.
}

// Handle identifies a launched script run.
type Handle struct {
	ID         string
	PID        int
	Script     string
	Executable string
	StartedAt  time.Time
}

// Completion is the result of waiting for a dispatched script.
type Completion int

const (
	Completed Completion = iota
	TimedOut
	Interrupted
)

func (c Completion) String() string {
	switch c {
	case Completed:
		return "completed"
	case TimedOut:
		return "timed-out"
	default:
		return "interrupted"
	}
}

// Summary holds the results of an operation for display.
type Summary struct {
	Created  []string
	Modified []string
	Failed   []string
	Skipped  []string
	Message  string
}
