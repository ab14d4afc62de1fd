// Package thetaerr defines the error taxonomy shared across git-theta's
// components, so every fatal condition carries enough context (parameter
// name, path, plug-in) to print a useful diagnostic from the CLI's
// top-level error handler.
package thetaerr

import (
	"errors"
	"fmt"
)

// Kind categorizes an Error per the failure taxonomy.
type Kind string

const (
	// Configuration covers malformed config files, unknown plug-in names,
	// and conflicting attribute entries.
	Configuration Kind = "configuration"
	// Decode covers malformed metadata JSON, pointer documents, or tensor
	// chunks.
	Decode Kind = "decode"
	// Integrity covers signature-length mismatches and malformed OID or
	// commit-hash strings.
	Integrity Kind = "integrity"
	// MissingData covers absent last_commit pointers, unresolvable OIDs,
	// and unreadable prior commits.
	MissingData Kind = "missing_data"
	// Plugin covers errors raised from inside a user or built-in plug-in.
	Plugin Kind = "plugin"
	// Transient covers object-store subprocess failures. Never retried
	// automatically.
	Transient Kind = "transient"
)

// Error wraps an underlying error with a Kind and optional context.
type Error struct {
	Kind   Kind
	Param  string // parameter key, slash-joined form; empty if not applicable
	Path   string // checkpoint path; empty if not applicable
	Plugin string // plug-in name; empty if not applicable
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Plugin != "" {
		msg += fmt.Sprintf(" [%s]", e.Plugin)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" %s", e.Path)
	}
	if e.Param != "" {
		msg += fmt.Sprintf(" (%s)", e.Param)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind wrapping err.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// WithParam returns a copy of e with Param set.
func (e *Error) WithParam(name string) *Error {
	cp := *e
	cp.Param = name
	return &cp
}

// WithPath returns a copy of e with Path set.
func (e *Error) WithPath(path string) *Error {
	cp := *e
	cp.Path = path
	return &cp
}

// WithPlugin returns a copy of e with Plugin set.
func (e *Error) WithPlugin(name string) *Error {
	cp := *e
	cp.Plugin = name
	return &cp
}

// Sentinel errors for common missing-data conditions, matched with errors.Is.
var (
	// ErrMissingPreviousValue is returned when an incremental update
	// plug-in is selected for a parameter that has no prior commit.
	ErrMissingPreviousValue = errors.New("missing previous value for incremental update")
	// ErrDimensionMismatch is returned when an update plug-in receives
	// tensors of incompatible shape.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrObjectNotFound is returned when the LFS adapter cannot resolve
	// an OID.
	ErrObjectNotFound = errors.New("object not found in object store")
	// ErrObjectStoreUnavailable is returned when the LFS subprocess
	// cannot be reached.
	ErrObjectStoreUnavailable = errors.New("object store unavailable")
	// ErrPointerParse is returned when a pointer document fails to match
	// the expected grammar.
	ErrPointerParse = errors.New("malformed pointer document")
)

// Of reports whether err (or something it wraps) is a *Error of kind k.
func Of(err error, k Kind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == k
	}
	return false
}
