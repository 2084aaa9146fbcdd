package carousel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dbdemo/showcase/internal/model"
)

// DefaultInterval is the auto-advance period
const DefaultInterval = 10 * time.Second

// Reasons attached to a slide change
const (
	ReasonAuto     = "auto"
	ReasonNext     = "next"
	ReasonPrevious = "previous"
	ReasonSelect   = "select"
	ReasonPause    = "pause"
	ReasonResume   = "resume"
)

// ErrOutOfRange is returned by Select for an index outside the catalog
var ErrOutOfRange = errors.New("template index out of range")

// Slide describes the carousel state after a change
type Slide struct {
	Index    int
	Previous int
	Paused   bool
	Reason   string
	Template model.Template
}

// Ticker delivers auto-advance ticks
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Carousel cycles through the template catalog. Navigation is safe from any
// goroutine; Run owns the auto-advance ticker.
type Carousel struct {
	mu        sync.Mutex
	templates []model.Template
	index     int
	paused    bool
	observers []func(Slide)

	interval  time.Duration
	newTicker func(time.Duration) Ticker
	toggled   chan struct{}
}

// Option configures a Carousel
type Option func(*Carousel)

// WithInterval overrides the auto-advance period
func WithInterval(d time.Duration) Option {
	return func(c *Carousel) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithTicker replaces the ticker factory
func WithTicker(fn func(time.Duration) Ticker) Option {
	return func(c *Carousel) {
		c.newTicker = fn
	}
}

// New creates a carousel over templates, starting at the first one
func New(templates []model.Template, opts ...Option) *Carousel {
	c := &Carousel{
		templates: templates,
		interval:  DefaultInterval,
		newTicker: func(d time.Duration) Ticker { return &realTicker{t: time.NewTicker(d)} },
		toggled:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers an observer for every slide change
func (c *Carousel) OnChange(fn func(Slide)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Current returns the selected template
func (c *Carousel) Current() Slide {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slideLocked(c.index, "")
}

// Len returns the catalog size
func (c *Carousel) Len() int {
	return len(c.templates)
}

// Paused reports whether auto-advance is suspended
func (c *Carousel) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Next moves forward, wrapping to the first template
func (c *Carousel) Next() Slide {
	return c.move(1, ReasonNext)
}

// Previous moves backward, wrapping to the last template
func (c *Carousel) Previous() Slide {
	return c.move(-1, ReasonPrevious)
}

// Select jumps to template i
func (c *Carousel) Select(i int) (Slide, error) {
	if i < 0 || i >= len(c.templates) {
		return Slide{}, fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	c.mu.Lock()
	prev := c.index
	c.index = i
	s := c.slideLocked(prev, ReasonSelect)
	observers := c.observers
	c.mu.Unlock()

	notify(observers, s)
	return s, nil
}

// Pause suspends auto-advance
func (c *Carousel) Pause() Slide {
	return c.setPaused(true, ReasonPause)
}

// Resume restarts auto-advance with a full interval
func (c *Carousel) Resume() Slide {
	return c.setPaused(false, ReasonResume)
}

// Run auto-advances until ctx is cancelled. Ticks are skipped while paused
// and the period restarts on resume.
func (c *Carousel) Run(ctx context.Context) error {
	if len(c.templates) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		if c.Paused() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.toggled:
				continue
			}
		}
		if err := c.tick(ctx); err != nil {
			return err
		}
	}
}

// tick advances on every period until a pause toggle or cancellation
func (c *Carousel) tick(ctx context.Context) error {
	ticker := c.newTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.toggled:
			return nil
		case <-ticker.C():
			if c.Paused() {
				return nil
			}
			c.move(1, ReasonAuto)
		}
	}
}

func (c *Carousel) move(step int, reason string) Slide {
	c.mu.Lock()
	n := len(c.templates)
	if n == 0 {
		c.mu.Unlock()
		return Slide{}
	}
	prev := c.index
	c.index = ((c.index+step)%n + n) % n
	s := c.slideLocked(prev, reason)
	observers := c.observers
	c.mu.Unlock()

	notify(observers, s)
	return s
}

func (c *Carousel) setPaused(paused bool, reason string) Slide {
	c.mu.Lock()
	changed := c.paused != paused
	c.paused = paused
	s := c.slideLocked(c.index, reason)
	observers := c.observers
	c.mu.Unlock()

	if !changed {
		return s
	}
	select {
	case c.toggled <- struct{}{}:
	default:
	}
	notify(observers, s)
	return s
}

func (c *Carousel) slideLocked(prev int, reason string) Slide {
	s := Slide{
		Index:    c.index,
		Previous: prev,
		Paused:   c.paused,
		Reason:   reason,
	}
	if c.index < len(c.templates) {
		s.Template = c.templates[c.index]
	}
	return s
}

func notify(observers []func(Slide), s Slide) {
	for _, fn := range observers {
		fn(s)
	}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }
