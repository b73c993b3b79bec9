package table

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a table error.
type Kind int

const (
	// Other is an error without a more specific kind.
	Other Kind = iota
	// DataFormat means a required column is absent.
	DataFormat
	// Data means the file contents are inconsistent, e.g. truncated or
	// mismatched inputs detected by a join.
	Data
	// Parse means a line could not be parsed: wrong field count, or a
	// non-numeric value where a number is expected.
	Parse
)

func (k Kind) String() string {
	switch k {
	case DataFormat:
		return "data format error"
	case Data:
		return "data error"
	case Parse:
		return "parse error"
	default:
		return "error"
	}
}

// Error is returned by the table, merge and augment packages for problems
// with input data.
type Error struct {
	Kind Kind
	// Path is the file the error was found in, if any.
	Path string
	// Line is the 1-based line number, or 0 if unknown.
	Line int
	Msg  string
}

func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %v: %s", e.Path, e.Line, e.Kind, e.Msg)
	case e.Path != "":
		return fmt.Sprintf("%s: %v: %s", e.Path, e.Kind, e.Msg)
	default:
		return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
	}
}

// E creates a new *Error.
func E(kind Kind, path string, line int, format string, args ...interface{}) error {
	return &Error{Kind: kind, Path: path, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Is reports whether err, or the error it wraps, is an *Error of the given
// kind.
func Is(kind Kind, err error) bool {
	if err == nil {
		return false
	}
	e, ok := errors.Cause(err).(*Error)
	return ok && e.Kind == kind
}
