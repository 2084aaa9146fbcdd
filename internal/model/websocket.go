package model

// WebSocket message types
const (
	WSMessageTypeStatus   = "status"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypeSlide    = "slide"
	WSMessageTypeArchived = "archived"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"

	// carousel commands sent by the client
	WSCommandNext     = "next"
	WSCommandPrevious = "previous"
	WSCommandSelect   = "select"
	WSCommandPause    = "pause"
	WSCommandResume   = "resume"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type  string `json:"type"`
	Index int    `json:"index,omitempty"`
}

// WSStatusMessage carries one polling update
type WSStatusMessage struct {
	Type   string       `json:"type"`
	Update StatusUpdate `json:"update"`
}

// WSCompleteMessage is sent once the job reached a terminal status
type WSCompleteMessage struct {
	Type     string    `json:"type"`
	JobID    string    `json:"jobId"`
	Status   JobStatus `json:"status"`
	Text     string    `json:"text"`
	ImageURL string    `json:"imageUrl,omitempty"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId,omitempty"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WSSlideMessage announces the carousel's current template
type WSSlideMessage struct {
	Type     string   `json:"type"`
	Index    int      `json:"index"`
	Previous int      `json:"previous"`
	Paused   bool     `json:"paused"`
	Reason   string   `json:"reason"`
	Template Template `json:"template"`
}

// WSArchivedMessage tells result viewers that a durable copy exists
type WSArchivedMessage struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
	Key   string `json:"key"`
}
