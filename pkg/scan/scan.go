// Package scan implements auditory scanning: a timer-driven state machine
// that cycles a highlight across a screen's selectable items on a fixed
// cadence and announces each item it lands on.
//
// The controller deliberately decouples visual cadence from narration length.
// A scan step fires the announcement and returns; narration that outlasts the
// cadence is absorbed by the announcement queue's own serialisation, never by
// slowing the scanner.
package scan

import (
	"log/slog"
	"sync"
	"time"
)

// Kind describes what activating an item does. It has no effect on scanning
// itself.
type Kind string

const (
	// KindNormal items are spoken and selected in place.
	KindNormal Kind = "normal"

	// KindNavigation items move the user to another screen.
	KindNavigation Kind = "navigation"

	// KindRefresh items reload the current screen's content.
	KindRefresh Kind = "refresh"
)

// Item is one scannable unit. Items are immutable for the lifetime of a
// screen; a re-render replaces the whole list.
type Item struct {
	// Label is the exact text displayed and announced.
	Label string

	// Position is the stable ordering key; scanning visits items in Position
	// order, wrapping.
	Position int

	// Kind selects the activation behaviour.
	Kind Kind
}

// Announcer receives the label of each item the scanner lands on. Announce
// must not block; the scanner calls it from its timer goroutine on every step.
type Announcer interface {
	Announce(label string)
}

// Option configures a [Controller] during construction.
type Option func(*Controller)

// WithHighlightFunc registers a callback invoked with the newly highlighted
// item index on every scan step, and with -1 when scanning stops. It runs on
// the scanner's goroutine and must not block.
func WithHighlightFunc(fn func(index int)) Option {
	return func(c *Controller) {
		c.onHighlight = fn
	}
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// Controller owns at most one running scan session. Starting a new session
// implicitly stops the previous one; stopping is idempotent and safe to call
// at any time, including before the first start.
//
// All exported methods are safe for concurrent use.
type Controller struct {
	announcer   Announcer
	log         *slog.Logger
	onHighlight func(int)

	mu      sync.Mutex
	session *session
}

// session is the live state of one running scan. It is created by Start and
// torn down by stop; a stopped session is never resumed.
type session struct {
	items     []Item
	current   int // -1 until the first step
	loopLimit int // 0 = unlimited
	cycles    int // completed full passes
	ticker    *time.Ticker
	stopCh    chan struct{}
}

// New creates a Controller that announces through announcer.
func New(announcer Announcer, opts ...Option) *Controller {
	c := &Controller{
		announcer: announcer,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start begins scanning items at the given cadence, replacing any session
// already running. The first item is highlighted immediately rather than
// after a full delay. loopLimit caps the number of complete passes before the
// controller stops itself; 0 means unlimited.
//
// The item list is snapshotted: mutations by the caller after Start are not
// observed by the running scan. delay must already be validated by the caller.
func (c *Controller) Start(items []Item, delay time.Duration, loopLimit int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	snapshot := make([]Item, len(items))
	copy(snapshot, items)

	s := &session{
		items:     snapshot,
		current:   -1,
		loopLimit: loopLimit,
		ticker:    time.NewTicker(delay),
		stopCh:    make(chan struct{}),
	}
	c.session = s
	c.log.Debug("scan started", "items", len(snapshot), "delay", delay, "loop_limit", loopLimit)

	// Highlight the first item without waiting a full delay.
	c.stepLocked(s)

	go c.run(s)
}

// run drives ticks for one session until it is stopped.
func (c *Controller) run(s *session) {
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.ticker.C:
			c.mu.Lock()
			// A tick may already be in flight when the session is stopped or
			// replaced; it must not act on stale state.
			if c.session == s {
				c.stepLocked(s)
			}
			c.mu.Unlock()
		}
	}
}

// stepLocked performs one scan step: advance the highlight, wrapping, and
// fire the announcement. Caller holds c.mu.
func (c *Controller) stepLocked(s *session) {
	n := len(s.items)
	if n == 0 {
		return
	}

	if s.current == n-1 {
		s.cycles++
		if s.loopLimit > 0 && s.cycles >= s.loopLimit {
			c.log.Debug("scan loop limit reached", "cycles", s.cycles)
			c.stopLocked()
			return
		}
	}

	s.current = (s.current + 1) % n
	if c.onHighlight != nil {
		c.onHighlight(s.current)
	}
	c.announcer.Announce(s.items[s.current].Label)
}

// Stop halts the running session, removes the highlight, and resets the
// index. Calling Stop when nothing is running is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// stopLocked tears down the current session. Caller holds c.mu. Safe to call
// with no session.
func (c *Controller) stopLocked() {
	s := c.session
	if s == nil {
		return
	}
	c.session = nil
	s.ticker.Stop()
	close(s.stopCh)
	if c.onHighlight != nil {
		c.onHighlight(-1)
	}
	c.log.Debug("scan stopped")
}

// Activate stops scanning and returns the item that was highlighted at the
// moment of activation. ok is false when nothing was highlighted. Stopping
// first guarantees the timer cannot fire during whatever action the caller
// performs next.
func (c *Controller) Activate() (item Item, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || s.current < 0 {
		c.stopLocked()
		return Item{}, false
	}
	item = s.items[s.current]
	c.stopLocked()
	return item, true
}

// Running reports whether a scan session is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// CurrentIndex returns the highlighted item index, or -1 when idle or not yet
// highlighted.
func (c *Controller) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return -1
	}
	return c.session.current
}
