package model

import (
	"errors"
	"fmt"
)

// Error kinds. Compare with errors.Is against any error returned by the
// pipeline to learn which stage failed.
var (
	ErrCollection = errors.New("collection error")
	ErrDecode     = errors.New("decode error")
	ErrRender     = errors.New("render error")
	ErrEncode     = errors.New("encode error")
	ErrArchive    = errors.New("archive error")
	ErrCancelled  = errors.New("cancelled")
)

// Error is a pipeline failure attributed to a single logical path.
type Error struct {
	Kind      error  // one of the Err* kinds above
	Path      string // logical path of the failing item, may be empty
	Retryable bool
	Err       error
}

// NewError wraps err as a failure of the given kind for path.
func NewError(kind error, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// Failure records one item that did not make it into the archive.
type Failure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}
