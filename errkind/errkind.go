// Package errkind provides the single error sum type dnfcore propagates to
// its callers, replacing the exception hierarchy of the original C/C++
// implementation (spec.md §9, "Exception-based control flow ... becomes a
// single error sum type with the kinds in §7").
package errkind

import "fmt"

// Kind enumerates the failure taxonomy from spec.md §7.
type Kind string

const (
	Cancelled         Kind = "cancelled"
	LockBusy          Kind = "lock_busy"
	FileInvalid       Kind = "file_invalid"
	FileNotFound      Kind = "file_not_found"
	CannotWriteCache  Kind = "cannot_write_cache"
	NoCapability      Kind = "no_capability"
	CannotFetchSource Kind = "cannot_fetch_source"
	BadGPG            Kind = "bad_gpg"
	BadSelector       Kind = "bad_selector"
	NoSuchPackage     Kind = "no_such_package"
	PackageConflicts  Kind = "package_conflicts"
	NoSolution        Kind = "no_solution"
	ConfigParse       Kind = "config_parse"
	InvalidArch       Kind = "invalid_architecture"
	Internal          Kind = "internal"
)

// Error is a typed, wrappable error. Source carries the originating URL for
// fetch-shaped failures so the Context boundary can surface it verbatim
// (spec.md §7, "propagation policy").
type Error struct {
	Kind    Kind
	Msg     string
	Source  string // optional: URL, file path, or similar locus
	Wrapped error  // optional: underlying cause
}

func (e *Error) Error() string {
	if e.Source != "" {
		if e.Wrapped != nil {
			return fmt.Sprintf("%s: %s (source: %s): %v", e.Kind, e.Msg, e.Source, e.Wrapped)
		}
		return fmt.Sprintf("%s: %s (source: %s)", e.Kind, e.Msg, e.Source)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New creates a bare *Error with no wrapped cause or source.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a bare *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error under the given kind.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Wrapped: err}
}

// WithSource attaches a source locus (URL, path) to an *Error, returning a
// copy so callers can decorate an error built elsewhere without mutating it.
func WithSource(err *Error, source string) *Error {
	cp := *err
	cp.Source = source
	return &cp
}

// Is reports whether err (or any error in its chain) is an *Error of kind k.
func Is(err error, k Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == k {
				return true
			}
			err = e.Wrapped
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
