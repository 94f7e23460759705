package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingInput is returned when a required request field is empty
	ErrMissingInput = errors.New("missing required input")
	// ErrInvalidTarget is returned when apiUrl is not an absolute http(s) URL
	ErrInvalidTarget = errors.New("invalid apiUrl")
	// ErrTargetNotAllowed is returned when apiUrl is rejected by the fetch rules
	ErrTargetNotAllowed = errors.New("apiUrl is not allowed")
	// ErrNoData is returned when asking before anything was fetched
	ErrNoData = errors.New("no data fetched yet")
)

// UpstreamStatusError reports a non-200 reply from the fetch target
type UpstreamStatusError struct {
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream responded with status %d", e.StatusCode)
}

// FetchError wraps a transport failure while fetching the target
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ModelError wraps a failure of the chat-completion call
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string {
	return e.Err.Error()
}

func (e *ModelError) Unwrap() error {
	return e.Err
}
