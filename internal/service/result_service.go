package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"

	"github.com/dbdemo/showcase/internal/client"
	"github.com/dbdemo/showcase/internal/model"
	"github.com/dbdemo/showcase/internal/poller"
)

var ErrImageNotReady = errors.New("image not ready")

// PhoneRegistrar registers a phone number for a finished-job text message
type PhoneRegistrar interface {
	RegisterPhone(ctx context.Context, req *model.NotifyRequest) error
}

// ResultService backs the result view: status lookups, live watches and the
// download, share and notify actions
type ResultService struct {
	watcher  *poller.Watcher
	images   client.ImageFetcher
	notifier PhoneRegistrar
	archive  *ArchiveService
	suffix   func() int
}

// NewResultService wires the result view. archive may be nil.
func NewResultService(watcher *poller.Watcher, images client.ImageFetcher, notifier PhoneRegistrar, archive *ArchiveService) *ResultService {
	return &ResultService{
		watcher:  watcher,
		images:   images,
		notifier: notifier,
		archive:  archive,
		suffix:   func() int { return 10000 + rand.Intn(90000) },
	}
}

// Snapshot polls the session's job once
func (s *ResultService) Snapshot(ctx context.Context, sess *model.Session) (*model.ResultResponse, error) {
	if !sess.HasJob() {
		return newResultResponse(sess, model.JobStatus{Kind: model.StatusNoJob}), nil
	}

	status, err := s.watcher.Poll(ctx, sess.JobID)
	if err != nil {
		return nil, err
	}
	if status.Kind == model.StatusDone {
		s.archiveDone(ctx, sess.JobID, status.ImageURL)
	}
	return newResultResponse(sess, status), nil
}

// Watch polls the session's job in the background until it is terminal.
// A job with no id ends at once with a no_job update.
func (s *ResultService) Watch(ctx context.Context, sess *model.Session, observe poller.Observer) *poller.Watch {
	jobID := ""
	if sess.HasJob() {
		jobID = sess.JobID
	}
	return s.WatchJob(ctx, jobID, observe)
}

// WatchJob is Watch for a bare job id
func (s *ResultService) WatchJob(ctx context.Context, jobID string, observe poller.Observer) *poller.Watch {
	return s.watcher.Start(ctx, jobID, func(u model.StatusUpdate) {
		if observe != nil {
			observe(u)
		}
		if !u.Transient && u.Status.Kind == model.StatusDone {
			s.archiveDone(ctx, jobID, u.Status.ImageURL)
		}
	})
}

// Download fetches the finished image under a randomised file name
func (s *ResultService) Download(ctx context.Context, sess *model.Session) (*model.DownloadFile, error) {
	status, err := s.finished(ctx, sess)
	if err != nil {
		return nil, err
	}

	img, err := s.images.FetchImage(ctx, status.ImageURL)
	if err != nil {
		return nil, err
	}

	return &model.DownloadFile{
		Filename:    s.DownloadFilename(),
		ContentType: img.ContentType,
		Data:        img.Data,
	}, nil
}

// DownloadFilename returns <5 random digits>_db_IA.png
func (s *ResultService) DownloadFilename() string {
	return fmt.Sprintf("%d_db_IA.png", s.suffix())
}

// Share returns a signed link to the archived copy when there is one, and
// the queue's own image URL otherwise
func (s *ResultService) Share(ctx context.Context, sess *model.Session) (*model.ShareResponse, error) {
	status, err := s.finished(ctx, sess)
	if err != nil {
		return nil, err
	}

	resp := &model.ShareResponse{JobID: sess.JobID, URL: status.ImageURL}
	if !s.archive.Enabled() {
		return resp, nil
	}

	signed, expiresAt, err := s.archive.SignedURL(ctx, sess.JobID)
	switch {
	case err == nil:
		resp.URL = signed
		resp.Archived = true
		resp.ExpiresAt = &expiresAt
	case errors.Is(err, client.ErrNotArchived):
		s.archiveDone(ctx, sess.JobID, status.ImageURL)
	default:
		log.Printf("[Result] job=%s — presign failed, sharing remote URL: %v", sess.JobID, err)
	}
	return resp, nil
}

// Notify registers phone for the session's job
func (s *ResultService) Notify(ctx context.Context, sess *model.Session, phone string) error {
	if !sess.HasJob() {
		return poller.ErrNoJob
	}
	return s.notifier.RegisterPhone(ctx, &model.NotifyRequest{JobID: sess.JobID, Phone: phone})
}

func (s *ResultService) finished(ctx context.Context, sess *model.Session) (model.JobStatus, error) {
	if !sess.HasJob() {
		return model.JobStatus{}, poller.ErrNoJob
	}
	status, err := s.watcher.Poll(ctx, sess.JobID)
	if err != nil {
		return model.JobStatus{}, err
	}
	if status.Kind != model.StatusDone || status.ImageURL == "" {
		return status, ErrImageNotReady
	}
	return status, nil
}

func (s *ResultService) archiveDone(ctx context.Context, jobID, imageURL string) {
	if !s.archive.Enabled() || imageURL == "" {
		return
	}
	if err := s.archive.Enqueue(ctx, jobID, imageURL); err != nil {
		log.Printf("[Result] job=%s — archive enqueue failed: %v", jobID, err)
	}
}

func newResultResponse(sess *model.Session, status model.JobStatus) *model.ResultResponse {
	return &model.ResultResponse{
		JobID:       sess.JobID,
		AccentColor: sess.AccentColor,
		Status:      status,
		Text:        status.Text(),
		Pending:     status.Pending(),
	}
}
