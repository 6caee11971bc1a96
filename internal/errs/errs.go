// Package errs defines the error kinds shared by the indexing engine.
//
// Callers classify failures with errors.Is against the sentinel kinds; the
// wrapped cause stays reachable through the same chain.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidArgument reports an empty key or path passed by the caller.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotAccessible reports a missing, hidden or unreadable path.
	ErrNotAccessible = errors.New("not accessible")
	// ErrIO reports a read or tokenize failure inside a single task.
	ErrIO = errors.New("io failure")
	// ErrInvariant reports index corruption. It is never recovered from.
	ErrInvariant = errors.New("structural invariant violation")
)

type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Path != "" {
			b.WriteString(" ")
		}
	}
	if e.Path != "" {
		fmt.Fprintf(&b, "%q", e.Path)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		if e.Kind != nil {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// E builds an *Error of the given kind. err may be nil.
func E(kind error, op string, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func Invalid(op string, format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidArgument, Op: op, Err: fmt.Errorf(format, args...)}
}

// Invariant panics with an ErrInvariant error. The index is corrupt at
// that point and there is nothing sensible left to do with it.
func Invariant(op string, format string, args ...any) {
	panic(&Error{Kind: ErrInvariant, Op: op, Err: fmt.Errorf(format, args...)})
}
