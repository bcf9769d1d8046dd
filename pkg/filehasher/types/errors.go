package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by all filehasher packages.
var (
	// ErrIO indicates a file or directory could not be read or written.
	ErrIO = errors.New("i/o error")

	// ErrLockContention indicates the registry write lock is already held.
	ErrLockContention = errors.New("registry is locked by another operation")

	// ErrNotLocked indicates a mutation was attempted without holding the write lock.
	ErrNotLocked = errors.New("registry is not locked")

	// ErrParse indicates a malformed manifest line.
	ErrParse = errors.New("manifest parse error")

	// ErrUnknownAlgorithm indicates an unrecognized algorithm tag.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
)

// IOError describes a failed file operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

// NewIOError wraps err for the operation op on path.
func NewIOError(op, path string, err error) *IOError {
	return &IOError{Op: op, Path: path, Err: err}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns both the sentinel and the cause so errors.Is matches either.
func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

// ParseError describes a manifest line that could only be partially read.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Unwrap returns ErrParse.
func (e *ParseError) Unwrap() error {
	return ErrParse
}
