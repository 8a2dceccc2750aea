package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can branch on it.
type ErrorKind string

const (
	KindFetch  ErrorKind = "fetch"  // network, HTTP status or remote parse failure
	KindIO     ErrorKind = "io"     // local filesystem failure
	KindTool   ErrorKind = "tool"   // external tool (git) invocation failure
	KindConfig ErrorKind = "config" // missing credential or invalid configuration
)

// OpError is an error tagged with the operation and kind that produced it.
type OpError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewError wraps err with an operation name and kind. It returns nil for a nil err.
func NewError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first OpError in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return ""
}
