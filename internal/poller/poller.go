package poller

import (
	"context"
	"log"
	"time"

	"github.com/dbdemo/showcase/internal/client"
	"github.com/dbdemo/showcase/internal/model"
)

// Observer receives every status the loop produces, in order
type Observer func(update model.StatusUpdate)

// Watcher drives the job-status state machine
// Submitted → Queued → Processing → {Done | Error}.
type Watcher struct {
	fetcher client.StatusFetcher
	policy  Policy
	clock   Clock
}

// Option configures a Watcher
type Option func(*Watcher)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(w *Watcher) {
		w.clock = c
	}
}

// New creates a watcher polling through fetcher with the given policy
func New(fetcher client.StatusFetcher, policy Policy, opts ...Option) *Watcher {
	w := &Watcher{
		fetcher: fetcher,
		policy:  policy,
		clock:   realClock{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Policy returns the watcher's policy
func (w *Watcher) Policy() Policy {
	return w.policy
}

// Poll queries the status endpoint once
func (w *Watcher) Poll(ctx context.Context, jobID string) (model.JobStatus, error) {
	resp, err := w.fetcher.GetStatus(ctx, jobID)
	if err != nil {
		return model.JobStatus{}, err
	}
	return resp.JobStatus(), nil
}

// Run polls until the job reaches a terminal status, the policy cap is hit
// or ctx is cancelled. Transport failures are reported as transient updates
// and retried after the regular delay. Polls never overlap. Hitting a cap
// emits a last update with Limited set.
//
// The returned error is nil for Done, *ServerReportedError for Error,
// *UnknownStatusError for an unrecognised status, ErrNoJob for an empty job
// id, ErrPollLimit when the policy gives up, or the context's error.
func (w *Watcher) Run(ctx context.Context, jobID string, observe Observer) (model.JobStatus, error) {
	if observe == nil {
		observe = func(model.StatusUpdate) {}
	}

	if jobID == "" {
		status := model.JobStatus{Kind: model.StatusNoJob}
		observe(w.update(jobID, 0, status, nil))
		return status, ErrNoJob
	}

	start := w.clock.Now()
	last := model.JobStatus{Kind: model.StatusSubmitted}
	attempt := 0

	for {
		attempt++
		status, err := w.Poll(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			log.Printf("[Poller] Poll #%d (job=%s) — error: %v", attempt, jobID, err)
			observe(w.update(jobID, attempt, last, err))
		} else {
			log.Printf("[Poller] Poll #%d (job=%s) — status: %s", attempt, jobID, status.Raw)
			last = status
			observe(w.update(jobID, attempt, status, nil))
			if status.Terminal() {
				return status, terminalError(jobID, status)
			}
		}

		delay := w.policy.Delay(attempt)
		if w.exhausted(attempt, start, delay) {
			log.Printf("[Poller] job=%s — giving up after %d polls", jobID, attempt)
			u := w.update(jobID, attempt, last, nil)
			u.Limited = true
			u.Text = model.TextPollLimit
			observe(u)
			return last, ErrPollLimit
		}

		if err := w.wait(ctx, delay); err != nil {
			log.Printf("[Poller] job=%s — cancelled", jobID)
			return last, err
		}
	}
}

// Watch is a polling loop running in the background
type Watch struct {
	cancel context.CancelFunc
	done   chan struct{}
	status model.JobStatus
	err    error
}

// Start runs the loop on its own goroutine. Stop must be called (or the
// parent context cancelled) to release it before it reaches a terminal status.
func (w *Watcher) Start(ctx context.Context, jobID string, observe Observer) *Watch {
	ctx, cancel := context.WithCancel(ctx)
	h := &Watch{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		defer cancel()
		h.status, h.err = w.Run(ctx, jobID, observe)
	}()
	return h
}

// Stop cancels the pending wait or poll and blocks until the loop has exited
func (h *Watch) Stop() {
	h.cancel()
	<-h.done
}

// Done is closed when the loop has exited
func (h *Watch) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the loop exits and returns its final status
func (h *Watch) Wait() (model.JobStatus, error) {
	<-h.done
	return h.status, h.err
}

func (w *Watcher) wait(ctx context.Context, d time.Duration) error {
	timer := w.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

func (w *Watcher) exhausted(attempt int, start time.Time, nextDelay time.Duration) bool {
	if w.policy.MaxAttempts > 0 && attempt >= w.policy.MaxAttempts {
		return true
	}
	if w.policy.MaxDuration > 0 && w.clock.Now().Add(nextDelay).Sub(start) > w.policy.MaxDuration {
		return true
	}
	return false
}

func (w *Watcher) update(jobID string, attempt int, status model.JobStatus, err error) model.StatusUpdate {
	u := model.StatusUpdate{
		JobID:   jobID,
		Attempt: attempt,
		Status:  status,
		Text:    status.Text(),
		At:      w.clock.Now(),
	}
	if err != nil {
		u.Transient = true
		u.Text = model.TextPollFailed
		u.Error = err.Error()
	}
	return u
}

func terminalError(jobID string, status model.JobStatus) error {
	switch status.Kind {
	case model.StatusError:
		return &ServerReportedError{JobID: jobID, Message: status.Message}
	case model.StatusUnknown:
		return &UnknownStatusError{JobID: jobID, Raw: status.Raw}
	}
	return nil
}
