// Package symbolcache resolves a best-match image URL for an item label,
// caching results — including confirmed misses — with a time-based expiry.
//
// Resolution is strictly best-effort and fully independent of the
// scan/announce pipeline: it shares no locks or ordering with it, never
// returns an error to the caller, and a transient lookup failure degrades to
// "no image" without poisoning the cache. The in-memory map can be mirrored
// to a durable per-session store so thumbnails survive a reload.
package symbolcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/voxboard/voxboard/pkg/provider/symbols"
)

// DefaultTTL is how long a cache entry — positive or negative — stays fresh.
const DefaultTTL = time.Hour

// Entry is one cached lookup result. An empty ImageURL is a negative entry:
// the service was asked and confirmed it has nothing, which is distinct from
// never having looked.
type Entry struct {
	ImageURL  string `json:"image_url"`
	FetchedAt int64  `json:"fetched_at"` // epoch milliseconds
}

// Mirror is a durable store for the cache contents, keyed the same way as the
// in-memory map. Both directions are best-effort; a Mirror failure is logged
// and ignored, never surfaced to resolution callers.
type Mirror interface {
	Load(ctx context.Context) (map[string]Entry, error)
	Store(ctx context.Context, entries map[string]Entry) error
}

// Option configures a [Resolver] during construction.
type Option func(*Resolver)

// WithTTL overrides the entry expiry. Defaults to [DefaultTTL].
func WithTTL(d time.Duration) Option {
	return func(r *Resolver) {
		r.ttl = d
	}
}

// WithMirror attaches a durable mirror. Without one the cache is purely
// in-memory.
func WithMirror(m Mirror) Option {
	return func(r *Resolver) {
		r.mirror = m
	}
}

// WithLookupLimit sets how many candidates are requested from the search
// service per lookup. Defaults to 1; higher values give the best-match
// ranking more to choose from.
func WithLookupLimit(n int) Option {
	return func(r *Resolver) {
		r.lookupLimit = n
	}
}

// WithClock injects a time source. Tests use this to cross the TTL boundary
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(r *Resolver) {
		r.log = log
	}
}

// Resolver is the symbol lookup front end.
// All exported methods are safe for concurrent use.
type Resolver struct {
	searcher    symbols.Searcher
	mirror      Mirror
	ttl         time.Duration
	lookupLimit int
	now         func() time.Time
	log         *slog.Logger

	mu      sync.Mutex
	entries map[string]Entry

	sf singleflight.Group
}

// New creates a Resolver backed by searcher.
func New(searcher symbols.Searcher, opts ...Option) *Resolver {
	r := &Resolver{
		searcher:    searcher,
		ttl:         DefaultTTL,
		lookupLimit: 1,
		now:         time.Now,
		log:         slog.Default(),
		entries:     make(map[string]Entry),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Key builds the cache key for a label and optional keywords: the normalised
// label plus a JSON serialisation of the keywords as context disambiguator.
func Key(label string, keywords []string) string {
	key := strings.ToLower(strings.TrimSpace(label))
	if len(keywords) > 0 {
		kw, err := json.Marshal(keywords)
		if err == nil {
			key += "|" + string(kw)
		}
	}
	return key
}

// Resolve returns the best-match image URL for label, or "" when no image is
// available for any reason — a confirmed miss, a transport failure, or a
// timeout. It never returns an error; callers render a placeholder on "".
//
// Fresh cache hits, including negative ones, are served without touching the
// network. Concurrent resolutions of the same key are collapsed into a single
// lookup.
func (r *Resolver) Resolve(ctx context.Context, label string, keywords []string) string {
	key := Key(label, keywords)
	if key == "" {
		return ""
	}

	if e, ok := r.fresh(key); ok {
		return e.ImageURL
	}

	v, _, _ := r.sf.Do(key, func() (any, error) {
		// Re-check under singleflight: a concurrent caller may have just
		// populated the entry.
		if e, ok := r.fresh(key); ok {
			return e.ImageURL, nil
		}
		return r.lookup(ctx, key, label, keywords), nil
	})
	url, _ := v.(string)
	return url
}

// lookup performs one network search and caches its outcome. Transport
// failures are not cached, so the next call retries.
func (r *Resolver) lookup(ctx context.Context, key, label string, keywords []string) string {
	candidates, err := r.searcher.Search(ctx, label, keywords, r.lookupLimit)
	if err != nil {
		r.log.Debug("symbol lookup failed", "label", label, "err", err)
		return ""
	}

	best := symbols.Best(label, candidates)
	entry := Entry{ImageURL: best.URL, FetchedAt: r.now().UnixMilli()}

	r.mu.Lock()
	r.entries[key] = entry
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	return entry.ImageURL
}

// fresh returns the entry for key if present and within TTL.
func (r *Resolver) fresh(key string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return Entry{}, false
	}
	if r.now().UnixMilli()-e.FetchedAt > r.ttl.Milliseconds() {
		return Entry{}, false
	}
	return e, true
}

// Restore loads the mirrored cache, discarding entries past their TTL.
// Failures are logged and ignored: the cache may be silently rebuilt without
// correctness impact.
func (r *Resolver) Restore(ctx context.Context) {
	if r.mirror == nil {
		return
	}
	stored, err := r.mirror.Load(ctx)
	if err != nil {
		r.log.Warn("symbol cache restore failed", "err", err)
		return
	}

	cutoff := r.now().UnixMilli() - r.ttl.Milliseconds()
	kept := 0
	r.mu.Lock()
	for k, e := range stored {
		if e.FetchedAt > cutoff {
			r.entries[k] = e
			kept++
		}
	}
	r.mu.Unlock()
	r.log.Debug("symbol cache restored", "entries", kept, "discarded", len(stored)-kept)
}

// persist mirrors the snapshot. Best-effort: a failed persist is logged and
// ignored.
func (r *Resolver) persist(ctx context.Context, snapshot map[string]Entry) {
	if r.mirror == nil {
		return
	}
	if err := r.mirror.Store(ctx, snapshot); err != nil {
		r.log.Warn("symbol cache persist failed", "err", err)
	}
}

// snapshotLocked copies the entry map. Caller holds r.mu.
func (r *Resolver) snapshotLocked() map[string]Entry {
	out := make(map[string]Entry, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// Len returns the number of cached entries, fresh or expired.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
