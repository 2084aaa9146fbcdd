package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/dbdemo/showcase/internal/client"
	"github.com/dbdemo/showcase/internal/model"
)

const (
	TaskTypeArchive = "archive:image"
	QueueArchive    = "archive"

	archiveTTL = 24 * time.Hour
)

// ArchiveService copies finished images into the bucket so shared links
// outlive the queue's own storage
type ArchiveService struct {
	redis         *redis.Client
	asynqClient   *asynq.Client
	storage       client.StorageClient
	images        client.ImageFetcher
	presignExpiry time.Duration
	now           func() time.Time
}

func NewArchiveService(redisClient *redis.Client, asynqClient *asynq.Client, storage client.StorageClient, images client.ImageFetcher, presign time.Duration) *ArchiveService {
	return &ArchiveService{
		redis:         redisClient,
		asynqClient:   asynqClient,
		storage:       storage,
		images:        images,
		presignExpiry: presignExpiry(presign),
		now:           time.Now,
	}
}

// Enabled reports whether the pipeline has everything it needs. A nil
// service is disabled.
func (s *ArchiveService) Enabled() bool {
	return s != nil && s.redis != nil && s.asynqClient != nil && s.storage != nil
}

// Enqueue schedules the archive task. Each job is enqueued at most once
// while its task is retained.
func (s *ArchiveService) Enqueue(ctx context.Context, jobID, imageURL string) error {
	if !s.Enabled() {
		return nil
	}

	task, err := NewArchiveTask(&model.ArchivePayload{JobID: jobID, ImageURL: imageURL})
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.asynqClient.EnqueueContext(ctx, task,
		asynq.Queue(QueueArchive),
		asynq.TaskID(jobID),
		asynq.MaxRetry(3),
		asynq.Retention(archiveTTL),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Printf("[Archive] job=%s — queued", jobID)
	return nil
}

// Archive downloads the image, stores it under output/<jobId>/<uuid>.png and
// records where it went. An already archived job is returned as is.
func (s *ArchiveService) Archive(ctx context.Context, payload *model.ArchivePayload) (*model.ArchiveRecord, error) {
	if existing, err := s.Lookup(ctx, payload.JobID); err == nil {
		return existing, nil
	} else if !errors.Is(err, client.ErrNotArchived) {
		return nil, err
	}

	img, err := s.images.FetchImage(ctx, payload.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}

	key := fmt.Sprintf("output/%s/%s.png", payload.JobID, uuid.New().String())
	publicURL, err := s.storage.Upload(ctx, key, bytes.NewReader(img.Data), img.ContentType)
	if err != nil {
		return nil, err
	}

	record := &model.ArchiveRecord{
		JobID:      payload.JobID,
		Key:        key,
		PublicURL:  publicURL,
		ArchivedAt: s.now(),
	}
	if err := s.saveRecord(ctx, record); err != nil {
		// the retry uploads under a new key, so drop this one
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			log.Printf("[Archive] job=%s — failed to remove orphan %s: %v", payload.JobID, key, delErr)
		}
		return nil, fmt.Errorf("failed to save archive record: %w", err)
	}

	log.Printf("[Archive] job=%s — stored %s (%d bytes)", payload.JobID, key, len(img.Data))
	return record, nil
}

// Lookup returns the archive record of a job or client.ErrNotArchived
func (s *ArchiveService) Lookup(ctx context.Context, jobID string) (*model.ArchiveRecord, error) {
	data, err := s.redis.Get(ctx, archiveKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, client.ErrNotArchived
		}
		return nil, err
	}

	var record model.ArchiveRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal archive record: %w", err)
	}
	return &record, nil
}

// SignedURL presigns the archived copy of a job
func (s *ArchiveService) SignedURL(ctx context.Context, jobID string) (string, time.Time, error) {
	record, err := s.Lookup(ctx, jobID)
	if err != nil {
		return "", time.Time{}, err
	}
	url, err := s.storage.GetSignedURL(ctx, record.Key, s.presignExpiry)
	if err != nil {
		return "", time.Time{}, err
	}
	return url, s.now().Add(s.presignExpiry), nil
}

func (s *ArchiveService) saveRecord(ctx context.Context, record *model.ArchiveRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, archiveKey(record.JobID), data, archiveTTL).Err()
}

// presignExpiry falls back to a day
func presignExpiry(d time.Duration) time.Duration {
	if d <= 0 {
		return 24 * time.Hour
	}
	return d
}

func archiveKey(jobID string) string {
	return fmt.Sprintf("archive:%s", jobID)
}

// NewArchiveTask builds the asynq task for payload
func NewArchiveTask(payload *model.ArchivePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeArchive, data), nil
}
