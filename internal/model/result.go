package model

import "time"

// GenerateResponse is returned once a submission was accepted by the queue
type GenerateResponse struct {
	JobID         string   `json:"jobId"`
	AccentColor   string   `json:"accentColor"`
	Template      string   `json:"template"`
	Position      *int     `json:"position,omitempty"`
	EstimatedWait *float64 `json:"eta,omitempty"`
	Redirect      string   `json:"redirect"`
}

// ResultResponse is a single look at the session's job
type ResultResponse struct {
	JobID       string    `json:"jobId,omitempty"`
	AccentColor string    `json:"accentColor,omitempty"`
	Status      JobStatus `json:"status"`
	Text        string    `json:"text"`
	Pending     bool      `json:"pending"`
}

// ShareResponse carries the link handed to the share sheet
type ShareResponse struct {
	JobID     string     `json:"jobId"`
	URL       string     `json:"url"`
	Archived  bool       `json:"archived"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// DownloadFile is a finished image ready to be saved by the user
type DownloadFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ArchivePayload is the body of an archive task
type ArchivePayload struct {
	JobID    string `json:"jobId"`
	ImageURL string `json:"imageUrl"`
}

// ArchiveRecord points at the stored copy of a finished image
type ArchiveRecord struct {
	JobID      string    `json:"jobId"`
	Key        string    `json:"key"`
	PublicURL  string    `json:"publicUrl"`
	ArchivedAt time.Time `json:"archivedAt"`
}
