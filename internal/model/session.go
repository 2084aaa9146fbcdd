package model

import "time"

// Session holds the state a submission hands to the result view.
// It has a single job slot; each new submission overwrites it.
type Session struct {
	ID          string    `json:"id"`
	JobID       string    `json:"jobId,omitempty"`
	AccentColor string    `json:"accentColor,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HasJob reports whether a submission has been recorded
func (s *Session) HasJob() bool {
	return s != nil && s.JobID != ""
}

// Track records a new job in the slot
func (s *Session) Track(handle *JobHandle, accentColor string, now time.Time) {
	s.JobID = handle.JobID
	s.AccentColor = accentColor
	s.UpdatedAt = now
}
