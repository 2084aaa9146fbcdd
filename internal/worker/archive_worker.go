package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/dbdemo/showcase/internal/model"
	"github.com/dbdemo/showcase/internal/service"
)

// Archiver stores a finished image
type Archiver interface {
	Archive(ctx context.Context, payload *model.ArchivePayload) (*model.ArchiveRecord, error)
}

// ArchivedNotifier tells result viewers that an archive exists
type ArchivedNotifier interface {
	BroadcastArchived(jobID, key string)
}

// ArchiveWorker processes archive tasks
type ArchiveWorker struct {
	archiver Archiver
	hub      ArchivedNotifier
}

// NewArchiveWorker creates a new archive worker. hub may be nil.
func NewArchiveWorker(archiver Archiver, hub ArchivedNotifier) *ArchiveWorker {
	return &ArchiveWorker{
		archiver: archiver,
		hub:      hub,
	}
}

// ProcessTask handles archive task processing. Returning an error lets asynq
// retry the task.
func (w *ArchiveWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.ArchivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.JobID == "" || payload.ImageURL == "" {
		return fmt.Errorf("archive task without job id or image url: %w", asynq.SkipRetry)
	}

	log.Printf("[Archive] Starting archive job: %s", payload.JobID)

	record, err := w.archiver.Archive(ctx, &payload)
	if err != nil {
		log.Printf("[Archive] job=%s — failed: %v", payload.JobID, err)
		return err
	}

	if w.hub != nil {
		w.hub.BroadcastArchived(payload.JobID, record.Key)
	}

	log.Printf("[Archive] job=%s completed", payload.JobID)
	return nil
}

// NewServeMux routes archive tasks to w
func NewServeMux(w *ArchiveWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeArchive, w.ProcessTask)
	return mux
}
