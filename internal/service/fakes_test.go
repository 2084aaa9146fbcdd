package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dbdemo/showcase/internal/client"
	"github.com/dbdemo/showcase/internal/model"
)

type fakeSubmitter struct {
	handle *model.JobHandle
	err    error
	got    *model.UploadRequest
}

func (f *fakeSubmitter) Submit(ctx context.Context, req *model.UploadRequest) (*model.JobHandle, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return f.handle, nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	resp  *client.StatusResponse
	err   error
	calls int
}

func (f *fakeFetcher) GetStatus(ctx context.Context, jobID string) (*client.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.resp, f.err
}

type fakeImages struct {
	img  *client.Image
	urls []string
}

func (f *fakeImages) FetchImage(ctx context.Context, imageURL string) (*client.Image, error) {
	f.urls = append(f.urls, imageURL)
	if imageURL == "" {
		return nil, client.ErrNoImage
	}
	return f.img, nil
}

type fakeNotifier struct {
	got *model.NotifyRequest
	err error
}

func (f *fakeNotifier) RegisterPhone(ctx context.Context, req *model.NotifyRequest) error {
	f.got = req
	return f.err
}

type fakeStorage struct {
	mu          sync.Mutex
	objects     map[string][]byte
	types       map[string]string
	deleted     []string
	afterUpload func()
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.objects[key] = data
	f.types[key] = contentType
	hook := f.afterUpload
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return f.GetPublicURL(key), nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStorage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://signed.example/%s?expires=%d", key, int(expiry.Seconds())), nil
}

func (f *fakeStorage) GetPublicURL(key string) string {
	return "https://public.example/" + key
}
