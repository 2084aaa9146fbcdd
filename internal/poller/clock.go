package poller

import "time"

// Clock abstracts time so the polling loop can be driven by tests
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer is a cancellable one-shot timer
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) Timer {
	return &realTimer{t: time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r *realTimer) C() <-chan time.Time { return r.t.C }
func (r *realTimer) Stop() bool          { return r.t.Stop() }
