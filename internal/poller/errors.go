package poller

import (
	"errors"
	"fmt"
)

var (
	ErrNoJob     = errors.New("no job to watch")
	ErrPollLimit = errors.New("poll limit reached before the job finished")
)

// ServerReportedError is a terminal error status sent by the queue
type ServerReportedError struct {
	JobID   string
	Message string
}

func (e *ServerReportedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("job %s failed", e.JobID)
	}
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}

// UnknownStatusError is returned when the queue reports a status the client does not know
type UnknownStatusError struct {
	JobID string
	Raw   string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("job %s: unknown status %q", e.JobID, e.Raw)
}
