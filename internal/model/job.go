package model

import "time"

// StatusKind identifies a stage of a remote generation job as seen by the client
type StatusKind string

const (
	StatusSubmitted  StatusKind = "submitted"
	StatusQueued     StatusKind = "queued"
	StatusProcessing StatusKind = "processing"
	StatusDone       StatusKind = "done"
	StatusError      StatusKind = "error"
	StatusUnknown    StatusKind = "unknown"
	StatusNoJob      StatusKind = "no_job"
)

// User-facing status messages
const (
	TextSubmitted      = "Enviando job e aguardando resultado..."
	TextQueued         = "Na fila. Aguardando início do processamento..."
	TextProcessing     = "Processando imagem..."
	TextDone           = "Imagem pronta!"
	TextErrorPrefix    = "Erro: "
	TextErrorFallback  = "Erro desconhecido."
	TextUnknown        = "Status desconhecido."
	TextNoJob          = "Nenhum ID de job encontrado."
	TextPollFailed     = "Erro ao consultar status do job."
	TextPollLimit      = "Tempo de espera esgotado. Tente novamente mais tarde."
	TextSubmitFailed   = "Erro ao enviar job: "
	TextImageNotFound  = "Imagem não encontrada. Não conseguimos carregar sua imagem. Tente novamente."
	TextDownloadFailed = "Falha no download. Não foi possível baixar a imagem. Tente novamente mais tarde."
	TextShareMissing   = "Imagem não disponível para compartilhamento."
)

// JobStatus is the client-side view of a job at one point in time.
// ImageURL is only set for StatusDone, Message only for StatusError and
// Raw keeps the status string the server sent.
type JobStatus struct {
	Kind     StatusKind `json:"kind"`
	ImageURL string     `json:"imageUrl,omitempty"`
	Message  string     `json:"message,omitempty"`
	Raw      string     `json:"raw,omitempty"`
}

// Terminal reports whether polling stops at this status
func (s JobStatus) Terminal() bool {
	switch s.Kind {
	case StatusDone, StatusError, StatusUnknown, StatusNoJob:
		return true
	}
	return false
}

// Text renders the message shown to the user for this status
func (s JobStatus) Text() string {
	switch s.Kind {
	case StatusSubmitted:
		return TextSubmitted
	case StatusQueued:
		return TextQueued
	case StatusProcessing:
		return TextProcessing
	case StatusDone:
		return TextDone
	case StatusError:
		msg := s.Message
		if msg == "" {
			msg = TextErrorFallback
		}
		return TextErrorPrefix + msg
	case StatusNoJob:
		return TextNoJob
	default:
		return TextUnknown
	}
}

// Pending reports whether the result view should still show the loading card
func (s JobStatus) Pending() bool {
	return s.Kind == StatusSubmitted || s.Kind == StatusQueued || s.Kind == StatusProcessing
}

// JobHandle identifies a submitted job
type JobHandle struct {
	JobID         string   `json:"jobId"`
	Position      *int     `json:"position,omitempty"`
	EstimatedWait *float64 `json:"eta,omitempty"`
}

// UploadRequest is the input of a submission
type UploadRequest struct {
	Filename    string `validate:"required"`
	ContentType string `validate:"required,startswith=image/"`
	Data        []byte `validate:"required,min=1"`
	Workflow    string `validate:"required,workflow"`
}

// NotifyRequest registers a phone number to be notified when a job finishes
type NotifyRequest struct {
	JobID string `json:"requestId" validate:"required"`
	Phone string `json:"phone" validate:"required,min=8,max=20"`
}

// StatusUpdate is one observation emitted by the polling workflow
type StatusUpdate struct {
	JobID     string    `json:"jobId"`
	Attempt   int       `json:"attempt"`
	Status    JobStatus `json:"status"`
	Text      string    `json:"text"`
	Transient bool      `json:"transient,omitempty"`
	Limited   bool      `json:"limited,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}
