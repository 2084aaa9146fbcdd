package client

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/dbdemo/showcase/internal/model"
)

// Accepted response keys, in order of preference
var (
	JobIDAliases    = []string{"request_id", "job_id"}
	PositionAliases = []string{"position", "position_in_queue"}
	ETAAliases      = []string{"eta", "estimated_wait_seconds"}
)

// SubmitResponse is the decoded body of a submission. Aliased keys are
// resolved once, while decoding.
type SubmitResponse struct {
	JobID         string
	Position      *int
	EstimatedWait *float64
}

func (r *SubmitResponse) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.JobID = firstString(raw, JobIDAliases)

	for _, key := range PositionAliases {
		var pos int
		if v, ok := raw[key]; ok && json.Unmarshal(v, &pos) == nil {
			r.Position = &pos
			break
		}
	}
	for _, key := range ETAAliases {
		var eta float64
		if v, ok := raw[key]; ok && json.Unmarshal(v, &eta) == nil {
			r.EstimatedWait = &eta
			break
		}
	}
	return nil
}

// Handle converts the response into a job handle
func (r *SubmitResponse) Handle() (*model.JobHandle, error) {
	if r.JobID == "" {
		return nil, ErrMissingJobID
	}
	return &model.JobHandle{
		JobID:         r.JobID,
		Position:      r.Position,
		EstimatedWait: r.EstimatedWait,
	}, nil
}

// firstString returns the first alias holding a non-empty string or number
func firstString(raw map[string]json.RawMessage, aliases []string) string {
	for _, key := range aliases {
		v, ok := raw[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(v))
		dec.UseNumber()
		var n json.Number
		if err := dec.Decode(&n); err == nil && n != "" {
			return n.String()
		}
	}
	return ""
}

// Raw status strings reported by the queue
const (
	RemoteStatusQueued     = "queued"
	RemoteStatusProcessing = "processing"
	RemoteStatusDone       = "done"
	RemoteStatusError      = "error"
)

// StatusResponse is the body of the status endpoint
type StatusResponse struct {
	Status   string `json:"status"`
	ImageURL string `json:"image_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// JobStatus maps the payload onto the client's status variant
func (r *StatusResponse) JobStatus() model.JobStatus {
	switch r.Status {
	case RemoteStatusQueued:
		return model.JobStatus{Kind: model.StatusQueued, Raw: r.Status}
	case RemoteStatusProcessing:
		return model.JobStatus{Kind: model.StatusProcessing, Raw: r.Status}
	case RemoteStatusDone:
		return model.JobStatus{Kind: model.StatusDone, ImageURL: r.ImageURL, Raw: r.Status}
	case RemoteStatusError:
		return model.JobStatus{Kind: model.StatusError, Message: r.Error, Raw: r.Status}
	default:
		return model.JobStatus{Kind: model.StatusUnknown, Raw: r.Status}
	}
}
