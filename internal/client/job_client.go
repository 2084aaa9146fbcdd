package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dbdemo/showcase/internal/config"
	"github.com/dbdemo/showcase/internal/model"
)

// JobSubmitter sends uploads to the remote generation queue
type JobSubmitter interface {
	Submit(ctx context.Context, req *model.UploadRequest) (*model.JobHandle, error)
}

// StatusFetcher reads the raw status of a job
type StatusFetcher interface {
	GetStatus(ctx context.Context, jobID string) (*StatusResponse, error)
}

// ImageFetcher downloads a finished image
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (*Image, error)
}

// JobClient talks to the image-generation queue API
type JobClient struct {
	httpClient *http.Client
	baseURL    string
	validate   *validator.Validate
}

// Image is a downloaded result
type Image struct {
	Data        []byte
	ContentType string
}

// NewJobClient creates a new queue API client
func NewJobClient(cfg *config.RemoteConfig) *JobClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &JobClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		validate: NewValidator(),
	}
}

// NewValidator returns a validator that knows the catalog's workflow identifiers
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("workflow", func(fl validator.FieldLevel) bool {
		return model.IsValidWorkflow(fl.Field().String())
	})
	return v
}

// Submit uploads the image with the selected workflow and returns the job handle
func (c *JobClient) Submit(ctx context.Context, req *model.UploadRequest) (*model.JobHandle, error) {
	upload := *req
	if upload.ContentType == "" && len(upload.Data) > 0 {
		upload.ContentType = http.DetectContentType(upload.Data)
	}
	if err := c.validate.Struct(&upload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}

	body, contentType, err := encodeUpload(&upload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/test", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	var resp SubmitResponse
	if err := c.doRequest(httpReq, "submit", &resp); err != nil {
		return nil, err
	}

	return resp.Handle()
}

// GetStatus queries the status endpoint once
func (c *JobClient) GetStatus(ctx context.Context, jobID string) (*StatusResponse, error) {
	endpoint := fmt.Sprintf("%s/result?%s", c.baseURL, url.Values{"request_id": {jobID}}.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	var result StatusResponse
	if err := c.doRequest(httpReq, "status", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RegisterPhone asks the queue to text the result link to phone when the job finishes
func (c *JobClient) RegisterPhone(ctx context.Context, req *model.NotifyRequest) error {
	if err := c.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidNotify, err)
	}

	form := url.Values{
		"request_id": {req.JobID},
		"phone":      {req.Phone},
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/notify", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var result struct {
		Status string `json:"status"`
	}
	if err := c.doRequest(httpReq, "notify", &result); err != nil {
		return err
	}
	if result.Status != "PHONE_REGISTERED" {
		return &NetworkError{Op: "notify", Err: fmt.Errorf("unexpected status %q", result.Status)}
	}
	return nil
}

// FetchImage downloads a result image bypassing intermediate caches
func (c *JobClient) FetchImage(ctx context.Context, imageURL string) (*Image, error) {
	if imageURL == "" {
		return nil, ErrNoImage
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("Pragma", "no-cache")

	log.Printf("[Remote API] → %s %s", httpReq.Method, httpReq.URL.String())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Op: "download", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "download", Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkError{Op: "download", StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	log.Printf("[Remote API] ← %d %s %s — %d bytes", resp.StatusCode, httpReq.Method, httpReq.URL.String(), len(data))

	return &Image{Data: data, ContentType: contentType}, nil
}

// IsConfigured returns true if the client has a base URL
func (c *JobClient) IsConfigured() bool {
	return c.baseURL != ""
}

// doRequest executes an HTTP request and parses the JSON response
func (c *JobClient) doRequest(req *http.Request, op string, result interface{}) error {
	log.Printf("[Remote API] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Remote API] ✗ %s %s — request failed: %v", req.Method, req.URL.String(), err)
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[Remote API] ✗ %s %s — failed to read response: %v", req.Method, req.URL.String(), err)
		return &NetworkError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	log.Printf("[Remote API] ← %d %s %s — %s", resp.StatusCode, req.Method, req.URL.String(), string(respBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &NetworkError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(respBody))),
		}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		log.Printf("[Remote API] ✗ unmarshal error for %s %s: %v (body: %s)", req.Method, req.URL.String(), err, string(respBody))
		return &NetworkError{Op: op, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	return nil
}

func encodeUpload(req *model.UploadRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, escapeQuotes(req.Filename)))
	partHeader.Set("Content-Type", req.ContentType)
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("workflow", req.Workflow); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
