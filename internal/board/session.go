package board

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/voxboard/voxboard/internal/observe"
	"github.com/voxboard/voxboard/pkg/announce"
	"github.com/voxboard/voxboard/pkg/provider/speech"
	"github.com/voxboard/voxboard/pkg/scan"
	"github.com/voxboard/voxboard/pkg/symbolcache"
)

// minScanDelay is the floor for the per-screen scan cadence. Screens arriving
// with a faster delay are clamped, matching the config loader's normalization.
const minScanDelay = 100 * time.Millisecond

// Defaults supplies fallback scan settings for screens that do not carry
// their own.
type Defaults struct {
	// ScanDelay is used when a screen's ScanDelayMS is zero.
	ScanDelay time.Duration

	// LoopLimit is used when a screen's settings are entirely zero-valued.
	LoopLimit int
}

// Option configures a [Session] during construction.
type Option func(*Session)

// WithNavigateFunc registers the callback invoked when a navigation item is
// activated. The render collaborator uses it to switch screens.
func WithNavigateFunc(fn func(item Item)) Option {
	return func(s *Session) {
		s.onNavigate = fn
	}
}

// WithRefreshFunc registers the callback invoked when a refresh item is
// activated.
func WithRefreshFunc(fn func()) Option {
	return func(s *Session) {
		s.onRefresh = fn
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// Session is the screen controller: it owns the scan session, the announcement
// queue, and the symbol resolution for exactly one screen at a time.
// All exported methods are safe for concurrent use.
type Session struct {
	queue    *announce.Queue
	resolver *symbolcache.Resolver // nil disables symbol resolution
	scanner  *scan.Controller
	metrics  *observe.Metrics
	log      *slog.Logger
	defaults Defaults

	onNavigate func(Item)
	onRefresh  func()

	mu       sync.Mutex
	screen   Screen
	images   map[string]string // item label -> resolved image URL
	gen      int               // bumped per SetScreen; stale resolutions are discarded
	cacheLen int
}

// NewSession creates a Session narrating through queue. resolver may be nil
// when no symbol service is configured.
func NewSession(queue *announce.Queue, resolver *symbolcache.Resolver, defaults Defaults, opts ...Option) *Session {
	if defaults.ScanDelay < minScanDelay {
		defaults.ScanDelay = time.Second
	}
	s := &Session{
		queue:    queue,
		resolver: resolver,
		defaults: defaults,
		metrics:  observe.DefaultMetrics(),
		log:      slog.Default(),
		images:   make(map[string]string),
	}
	for _, o := range opts {
		o(s)
	}
	s.scanner = scan.New(
		stepAnnouncer{s},
		scan.WithLogger(s.log),
		scan.WithHighlightFunc(s.highlighted),
	)
	return s
}

// stepAnnouncer feeds scan steps into the session's queue without blocking
// the scan timer.
type stepAnnouncer struct {
	s *Session
}

func (a stepAnnouncer) Announce(label string) {
	a.s.Announce(label, speech.TargetSystem, true)
}

// highlighted is the scan highlight callback. It runs on the scanner's
// goroutine with the scanner's lock held, so it only touches metrics.
func (s *Session) highlighted(index int) {
	if index >= 0 {
		s.metrics.ScanSteps.Add(context.Background(), 1)
		return
	}
	s.metrics.ActiveScans.Add(context.Background(), -1)
}

// SetScreen replaces the current screen wholesale: the running scan stops,
// pending narration is dropped (in-flight audio finishes), items are re-sorted
// by position, symbol resolution restarts for the new items, and scanning
// auto-starts unless the screen's settings turn it off.
func (s *Session) SetScreen(screen Screen) {
	slices.SortStableFunc(screen.Items, func(a, b Item) int {
		return a.Position - b.Position
	})

	s.mu.Lock()
	s.scanner.Stop()
	s.queue.Clear()

	s.screen = screen
	s.images = make(map[string]string)
	s.gen++
	gen := s.gen

	autostart := !screen.Settings.ScanningOff && len(screen.Items) > 0
	if autostart {
		s.startScanLocked()
	}
	s.mu.Unlock()

	s.log.Info("screen replaced",
		"name", screen.Name,
		"items", len(screen.Items),
		"scanning", autostart,
	)

	if s.resolver != nil {
		go s.resolveImages(gen, screen.Items)
	}
}

// StartScan starts (or restarts) scanning over the current screen. A screen
// with scanning_off can still be scanned by an explicit start request.
func (s *Session) StartScan() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.screen.Items) == 0 {
		return
	}
	s.startScanLocked()
}

// startScanLocked derives the cadence from the screen settings and launches
// the scanner. Caller holds s.mu.
func (s *Session) startScanLocked() {
	set := s.screen.Settings

	delay := time.Duration(set.ScanDelayMS) * time.Millisecond
	if delay == 0 {
		delay = s.defaults.ScanDelay
	}
	if delay < minScanDelay {
		delay = minScanDelay
	}

	loopLimit := set.LoopLimit
	if set == (Settings{}) {
		loopLimit = s.defaults.LoopLimit
	}

	items := make([]scan.Item, len(s.screen.Items))
	for i, it := range s.screen.Items {
		items[i] = scan.Item{Label: it.Label, Position: it.Position, Kind: it.Kind}
	}

	s.scanner.Start(items, delay, loopLimit)
	s.metrics.ActiveScans.Add(context.Background(), 1)
}

// SetDefaults replaces the fallback scan settings. Takes effect the next time
// a scan starts; a running scan keeps its cadence.
func (s *Session) SetDefaults(d Defaults) {
	if d.ScanDelay < minScanDelay {
		d.ScanDelay = time.Second
	}
	s.mu.Lock()
	s.defaults = d
	s.mu.Unlock()
}

// StopScan halts scanning. Safe to call at any time, including when idle.
func (s *Session) StopScan() {
	s.scanner.Stop()
}

// Announce narrates text through the session's queue and returns the request
// for callers that want to await completion. Never blocks on playback.
func (s *Session) Announce(text string, target speech.RoutingTarget, showVisualCue bool) *announce.Request {
	r := s.queue.Enqueue(text, target, showVisualCue)

	ctx := context.Background()
	s.metrics.QueueDepth.Add(ctx, 1)
	start := time.Now()
	go func() {
		<-r.Done()
		s.metrics.QueueDepth.Add(ctx, -1)
		s.metrics.AnnounceDuration.Record(ctx, time.Since(start).Seconds())
		status := "ok"
		if r.Err() != nil {
			status = "error"
		}
		s.metrics.RecordAnnouncement(ctx, string(target), status)
	}()
	return r
}

// Activate performs the switch-press action on the highlighted item: scanning
// stops first, then the item's kind-specific behaviour runs. ok is false when
// nothing was highlighted.
func (s *Session) Activate() (Item, bool) {
	target, ok := s.scanner.Activate()
	if !ok {
		return Item{}, false
	}

	s.mu.Lock()
	item := s.itemAtLocked(target.Position)
	s.mu.Unlock()

	s.metrics.RecordActivation(context.Background(), string(item.Kind))
	s.log.Info("item activated", "label", item.Label, "kind", string(item.Kind))

	switch item.Kind {
	case scan.KindNavigation:
		if s.onNavigate != nil {
			s.onNavigate(item)
		}
	case scan.KindRefresh:
		if s.onRefresh != nil {
			s.onRefresh()
		}
	default:
		s.Announce(item.Label, speech.TargetUser, true)
	}
	return item, true
}

// itemAtLocked finds the screen item at position. Caller holds s.mu.
func (s *Session) itemAtLocked(position int) Item {
	for _, it := range s.screen.Items {
		if it.Position == position {
			return it
		}
	}
	return Item{}
}

// State returns a snapshot for the control API, with resolved image URLs
// merged into the items.
func (s *Session) State() State {
	s.mu.Lock()
	screen := s.screen
	screen.Items = make([]Item, len(s.screen.Items))
	copy(screen.Items, s.screen.Items)
	for i := range screen.Items {
		if url, ok := s.images[screen.Items[i].Label]; ok {
			screen.Items[i].ImageURL = url
		}
	}
	s.mu.Unlock()

	return State{
		Screen:         screen,
		HighlightIndex: s.scanner.CurrentIndex(),
		Scanning:       s.scanner.Running(),
		QueueDepth:     s.queue.Depth(),
	}
}

// resolveImages fills the image map for one screen generation. Runs on its
// own goroutine; results for a superseded screen are discarded.
func (s *Session) resolveImages(gen int, items []Item) {
	ctx := context.Background()
	for _, it := range items {
		start := time.Now()
		url := s.resolver.Resolve(ctx, it.Label, it.Keywords)
		s.metrics.SymbolLookupDuration.Record(ctx, time.Since(start).Seconds())
		if url == "" {
			continue
		}

		s.mu.Lock()
		if s.gen == gen {
			s.images[it.Label] = url
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	if n := s.resolver.Len(); n != s.cacheLen {
		s.metrics.CachedSymbols.Add(ctx, int64(n-s.cacheLen))
		s.cacheLen = n
	}
	s.mu.Unlock()
}

// Close tears the session down: scanning stops, the backlog is dropped, and
// the call waits for in-flight audio or ctx, whichever ends first.
func (s *Session) Close(ctx context.Context) error {
	s.scanner.Stop()
	return s.queue.Close(ctx)
}
