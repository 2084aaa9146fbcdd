package client

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingJobID means the queue accepted an upload but returned no job identifier
	ErrMissingJobID  = errors.New("job id not found in response")
	ErrInvalidUpload = errors.New("invalid upload")
	ErrInvalidNotify = errors.New("invalid notification request")
	ErrNoImage       = errors.New("no image url")
	ErrNotArchived   = errors.New("image not archived")
)

// NetworkError wraps transport failures, timeouts and non-2xx answers
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: remote API error (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err carries a NetworkError
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
