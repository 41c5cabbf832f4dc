package gateway

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNetwork    ErrorKind = "NETWORK"
	KindValidation ErrorKind = "VALIDATION"
	KindServer     ErrorKind = "SERVER"
)

// RemoteError is a classified failure of a backend call.
type RemoteError struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the user may resubmit unchanged. Validation
// failures need a different selection.
func (e *RemoteError) Retryable() bool {
	return e.Kind != KindValidation
}

func IsRemoteError(err error) (*RemoteError, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

func IsKind(err error, kind ErrorKind) bool {
	re, ok := IsRemoteError(err)
	return ok && re.Kind == kind
}
