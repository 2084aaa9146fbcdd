package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dbdemo/showcase/internal/client"
	"github.com/dbdemo/showcase/internal/model"
	"github.com/dbdemo/showcase/internal/session"
)

// ResultPath is where the browser goes after a successful submission
const ResultPath = "/result"

var ErrUnknownTemplate = errors.New("unknown template")

// GenerateService submits photos to the generation queue and records the
// resulting job in the caller's session
type GenerateService struct {
	submitter client.JobSubmitter
	sessions  session.Store
	now       func() time.Time
}

func NewGenerateService(submitter client.JobSubmitter, sessions session.Store) *GenerateService {
	return &GenerateService{
		submitter: submitter,
		sessions:  sessions,
		now:       time.Now,
	}
}

// Generate submits the upload with the workflow of the chosen template. On
// success the session slot is overwritten with the new job and saved.
func (s *GenerateService) Generate(ctx context.Context, sess *model.Session, templateKey string, upload *model.UploadRequest) (*model.GenerateResponse, error) {
	tmpl, ok := model.ResolveTemplate(templateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, templateKey)
	}
	upload.Workflow = tmpl.Workflow

	handle, err := s.submitter.Submit(ctx, upload)
	if err != nil {
		log.Printf("[Generate] session=%s template=%s — submit failed: %v", sess.ID, tmpl.ID, err)
		return nil, err
	}

	sess.Track(handle, tmpl.AccentColor, s.now())
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	log.Printf("[Generate] session=%s template=%s — job %s submitted", sess.ID, tmpl.ID, handle.JobID)

	return &model.GenerateResponse{
		JobID:         handle.JobID,
		AccentColor:   tmpl.AccentColor,
		Template:      tmpl.ID,
		Position:      handle.Position,
		EstimatedWait: handle.EstimatedWait,
		Redirect:      ResultPath,
	}, nil
}
