package poller

import (
	"math"
	"strings"
	"time"

	"github.com/dbdemo/showcase/internal/config"
)

// Backoff selects how the wait between polls grows
type Backoff string

const (
	BackoffFixed       Backoff = "fixed"
	BackoffExponential Backoff = "exponential"
)

// DefaultInterval is the wait between two polls of the result page
const DefaultInterval = 2 * time.Second

// Policy controls the polling loop. Zero MaxAttempts and MaxDuration mean
// the loop runs until the job reaches a terminal status.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
	MaxDuration time.Duration
	Backoff     Backoff
	MaxInterval time.Duration
}

// DefaultPolicy polls every two seconds without any cap
func DefaultPolicy() Policy {
	return Policy{
		Interval: DefaultInterval,
		Backoff:  BackoffFixed,
	}
}

// PolicyFromConfig builds a policy from the poll section of the config
func PolicyFromConfig(cfg *config.PollConfig) Policy {
	p := DefaultPolicy()
	if cfg == nil {
		return p
	}
	if cfg.Interval > 0 {
		p.Interval = cfg.Interval
	}
	p.MaxAttempts = cfg.MaxAttempts
	p.MaxDuration = cfg.MaxDuration
	p.MaxInterval = cfg.MaxInterval
	if strings.EqualFold(cfg.Backoff, string(BackoffExponential)) {
		p.Backoff = BackoffExponential
	}
	return p
}

// Delay returns the wait after the given number of completed polls
func (p Policy) Delay(attempt int) time.Duration {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if p.Backoff != BackoffExponential || attempt <= 1 {
		return interval
	}

	d := interval
	for i := 1; i < attempt; i++ {
		if d > math.MaxInt64/2 {
			break
		}
		d *= 2
		if p.MaxInterval > 0 && d >= p.MaxInterval {
			return p.MaxInterval
		}
	}
	return d
}

// Bounded reports whether the policy caps the loop
func (p Policy) Bounded() bool {
	return p.MaxAttempts > 0 || p.MaxDuration > 0
}
