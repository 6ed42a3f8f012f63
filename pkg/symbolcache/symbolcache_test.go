package symbolcache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxboard/voxboard/pkg/provider/symbols"
	"github.com/voxboard/voxboard/pkg/provider/symbols/mock"
	"github.com/voxboard/voxboard/pkg/symbolcache"
)

// fakeClock is an adjustable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestResolve_CachesPositiveResult(t *testing.T) {
	t.Parallel()
	searcher := mock.New()
	searcher.Results["dog"] = []symbols.Symbol{{URL: "https://img.example/dog.png", Name: "dog"}}
	r := symbolcache.New(searcher)

	ctx := context.Background()
	if got := r.Resolve(ctx, "dog", nil); got != "https://img.example/dog.png" {
		t.Fatalf("Resolve = %q, want dog URL", got)
	}
	if got := r.Resolve(ctx, "dog", nil); got != "https://img.example/dog.png" {
		t.Fatalf("second Resolve = %q, want dog URL", got)
	}
	if got := searcher.SearchCount(); got != 1 {
		t.Errorf("SearchCount = %d, want 1 (second call must hit the cache)", got)
	}
}

func TestResolve_NegativeCacheWithinTTL(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	searcher := mock.New() // no results scripted: every query confirms a miss
	r := symbolcache.New(searcher, symbolcache.WithClock(clock.Now))

	ctx := context.Background()
	if got := r.Resolve(ctx, "xylophone", nil); got != "" {
		t.Fatalf("Resolve = %q, want empty for a confirmed miss", got)
	}
	if got := r.Resolve(ctx, "xylophone", nil); got != "" {
		t.Fatalf("repeat Resolve = %q, want empty", got)
	}
	if got := searcher.SearchCount(); got != 1 {
		t.Errorf("SearchCount = %d, want 1 (miss must be cached)", got)
	}

	// Past the TTL the miss must be re-verified on the network.
	clock.Advance(symbolcache.DefaultTTL + time.Minute)
	r.Resolve(ctx, "xylophone", nil)
	if got := searcher.SearchCount(); got != 2 {
		t.Errorf("SearchCount after TTL expiry = %d, want 2", got)
	}
}

func TestResolve_TransportErrorNotCached(t *testing.T) {
	t.Parallel()
	searcher := mock.New()
	searcher.SetErr(errors.New("connection refused"))
	r := symbolcache.New(searcher)

	ctx := context.Background()
	if got := r.Resolve(ctx, "cat", nil); got != "" {
		t.Fatalf("Resolve during outage = %q, want empty", got)
	}
	if got := r.Len(); got != 0 {
		t.Fatalf("cache holds %d entries after a transport failure, want 0", got)
	}

	// Once the service recovers the very next call must retry and succeed.
	searcher.SetErr(nil)
	searcher.Results["cat"] = []symbols.Symbol{{URL: "https://img.example/cat.png", Name: "cat"}}
	if got := r.Resolve(ctx, "cat", nil); got != "https://img.example/cat.png" {
		t.Errorf("Resolve after recovery = %q, want cat URL", got)
	}
	if got := searcher.SearchCount(); got != 2 {
		t.Errorf("SearchCount = %d, want 2", got)
	}
}

func TestResolve_BestMatchAmongCandidates(t *testing.T) {
	t.Parallel()
	searcher := mock.New()
	searcher.Results["drink"] = []symbols.Symbol{
		{URL: "https://img.example/dring-bell.png", Name: "dring dring"},
		{URL: "https://img.example/drink.png", Name: "drink"},
	}
	r := symbolcache.New(searcher, symbolcache.WithLookupLimit(5))

	if got := r.Resolve(context.Background(), "drink", nil); got != "https://img.example/drink.png" {
		t.Errorf("Resolve = %q, want the closest-named candidate", got)
	}
}

func TestResolve_KeywordsDisambiguateKeys(t *testing.T) {
	t.Parallel()
	searcher := mock.New()
	searcher.Results["bat"] = []symbols.Symbol{{URL: "https://img.example/bat.png", Name: "bat"}}
	r := symbolcache.New(searcher)

	ctx := context.Background()
	r.Resolve(ctx, "bat", []string{"animal"})
	r.Resolve(ctx, "bat", []string{"sports"})
	if got := searcher.SearchCount(); got != 2 {
		t.Errorf("SearchCount = %d, want 2 (different keywords must not share an entry)", got)
	}
	if got := r.Len(); got != 2 {
		t.Errorf("Len = %d, want 2", got)
	}
}

func TestResolve_EmptyLabel(t *testing.T) {
	t.Parallel()
	searcher := mock.New()
	r := symbolcache.New(searcher)

	if got := r.Resolve(context.Background(), "   ", nil); got != "" {
		t.Errorf("Resolve of blank label = %q, want empty", got)
	}
	if got := searcher.SearchCount(); got != 0 {
		t.Errorf("SearchCount = %d, want 0", got)
	}
}

func TestResolve_ConcurrentLookupsCollapse(t *testing.T) {
	t.Parallel()
	searcher := mock.New()
	searcher.Results["sun"] = []symbols.Symbol{{URL: "https://img.example/sun.png", Name: "sun"}}
	r := symbolcache.New(searcher)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := r.Resolve(context.Background(), "sun", nil); got != "https://img.example/sun.png" {
				t.Errorf("Resolve = %q, want sun URL", got)
			}
		}()
	}
	wg.Wait()

	if got := searcher.SearchCount(); got > 2 {
		t.Errorf("SearchCount = %d, want concurrent lookups collapsed", got)
	}
}

func TestRestore_DiscardsExpiredEntries(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	fresh := clock.Now().Add(-time.Minute).UnixMilli()
	stale := clock.Now().Add(-2 * time.Hour).UnixMilli()

	mirror := symbolcache.NewFileMirror(t.TempDir() + "/cache.json")
	seed := map[string]symbolcache.Entry{
		"dog": {ImageURL: "https://img.example/dog.png", FetchedAt: fresh},
		"cat": {ImageURL: "https://img.example/cat.png", FetchedAt: stale},
	}
	if err := mirror.Store(context.Background(), seed); err != nil {
		t.Fatalf("seed mirror: %v", err)
	}

	searcher := mock.New()
	r := symbolcache.New(searcher,
		symbolcache.WithMirror(mirror),
		symbolcache.WithClock(clock.Now),
	)
	r.Restore(context.Background())

	if got := r.Len(); got != 1 {
		t.Fatalf("Len after restore = %d, want 1 (stale entry discarded)", got)
	}
	if got := r.Resolve(context.Background(), "dog", nil); got != "https://img.example/dog.png" {
		t.Errorf("Resolve restored entry = %q, want dog URL", got)
	}
	if got := searcher.SearchCount(); got != 0 {
		t.Errorf("SearchCount = %d, want 0 (restored entry must serve from memory)", got)
	}
}

func TestResolve_PersistsThroughMirror(t *testing.T) {
	t.Parallel()
	path := t.TempDir() + "/cache.json"
	searcher := mock.New()
	searcher.Results["tree"] = []symbols.Symbol{{URL: "https://img.example/tree.png", Name: "tree"}}

	r := symbolcache.New(searcher, symbolcache.WithMirror(symbolcache.NewFileMirror(path)))
	r.Resolve(context.Background(), "tree", nil)

	stored, err := symbolcache.NewFileMirror(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	e, ok := stored[symbolcache.Key("tree", nil)]
	if !ok {
		t.Fatalf("mirror is missing the resolved entry; stored = %v", stored)
	}
	if e.ImageURL != "https://img.example/tree.png" {
		t.Errorf("mirrored URL = %q, want tree URL", e.ImageURL)
	}
}
