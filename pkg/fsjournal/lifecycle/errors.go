package lifecycle

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by a Manager matches exactly one of
// these with errors.Is.
var (
	ErrDirectoryCreate = errors.New("directory create failed")
	ErrDirectoryOpen   = errors.New("directory open failed")
	ErrDirectoryDelete = errors.New("directory delete failed")
	ErrFileCreate      = errors.New("file create failed")
	ErrFileWrite       = errors.New("file write failed")
	ErrFileDelete      = errors.New("file delete failed")
)

// OpError records a failed lifecycle operation and the path it failed on.
type OpError struct {
	Op   string // Manager method, e.g. "CreateFiles"
	Path string
	Kind error // One of the Err* sentinels
	Err  error // Underlying cause, may be nil
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func opErr(op, path string, kind, err error) error {
	return &OpError{Op: op, Path: path, Kind: kind, Err: err}
}
