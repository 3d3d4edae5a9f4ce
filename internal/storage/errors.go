package storage

import (
	"errors"
	"fmt"
)

var ErrPermissionDenied = errors.New("folder access denied")

var ErrNotDirectory = errors.New("not a directory")

// AccessError is the typed outcome of a refused RequestAccess.
type AccessError struct {
	URI    string
	Reason string
	Err    error
}

func (e *AccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("access %s: %s: %v", e.URI, e.Reason, e.Err)
	}
	return fmt.Sprintf("access %s: %s", e.URI, e.Reason)
}

func (e *AccessError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrPermissionDenied, e.Err}
	}
	return []error{ErrPermissionDenied}
}

// EnumerateError reports a listing failure for one subtree. Root is true
// when the folder itself could not be listed.
type EnumerateError struct {
	URI  string
	Root bool
	Err  error
}

func (e *EnumerateError) Error() string {
	return fmt.Sprintf("enumerate %s: %v", e.URI, e.Err)
}

func (e *EnumerateError) Unwrap() error {
	return e.Err
}

func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}
