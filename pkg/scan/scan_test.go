package scan_test

import (
	"sync"
	"testing"
	"time"

	"github.com/voxboard/voxboard/pkg/announce"
	audiomock "github.com/voxboard/voxboard/pkg/audio/mock"
	speechmock "github.com/voxboard/voxboard/pkg/provider/speech/mock"
	"github.com/voxboard/voxboard/pkg/scan"
)

// recorder is a non-blocking Announcer that records labels.
type recorder struct {
	mu     sync.Mutex
	labels []string
}

func (r *recorder) Announce(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = append(r.labels, label)
}

func (r *recorder) Labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

// highlights collects highlight callback events.
type highlights struct {
	mu     sync.Mutex
	events []int
}

func (h *highlights) record(i int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, i)
}

func (h *highlights) Events() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int, len(h.events))
	copy(out, h.events)
	return out
}

func threeItems() []scan.Item {
	return []scan.Item{
		{Label: "yes", Position: 0, Kind: scan.KindNormal},
		{Label: "no", Position: 1, Kind: scan.KindNormal},
		{Label: "more", Position: 2, Kind: scan.KindNavigation},
	}
}

func TestStart_ImmediateFirstStep(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	c := scan.New(rec)
	defer c.Stop()

	c.Start(threeItems(), time.Hour, 0)

	if got := c.CurrentIndex(); got != 0 {
		t.Errorf("CurrentIndex right after Start = %d, want 0", got)
	}
	if got := rec.Labels(); len(got) != 1 || got[0] != "yes" {
		t.Errorf("announcements = %v, want [yes]", got)
	}
}

func TestScan_WrapAround(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	h := &highlights{}
	c := scan.New(rec, scan.WithHighlightFunc(h.record))

	c.Start(threeItems(), 20*time.Millisecond, 0)
	time.Sleep(150 * time.Millisecond)
	c.Stop()

	events := h.Events()
	if len(events) < 4 {
		t.Fatalf("got %d highlight events, want at least 4", len(events))
	}
	for i, got := range events {
		if got == -1 {
			break // stop marker
		}
		if want := i % 3; got != want {
			t.Fatalf("highlight %d = %d, want %d (strict wrap order)", i, got, want)
		}
	}
	if last := events[len(events)-1]; last != -1 {
		t.Errorf("final highlight event = %d, want -1 after Stop", last)
	}
}

func TestStop_Idempotent(t *testing.T) {
	t.Parallel()
	c := scan.New(&recorder{})

	// Stop before any Start must be a no-op.
	c.Stop()
	c.Stop()
	if got := c.CurrentIndex(); got != -1 {
		t.Errorf("CurrentIndex = %d, want -1", got)
	}

	c.Start(threeItems(), 10*time.Millisecond, 0)
	c.Stop()
	c.Stop()
	if c.Running() {
		t.Error("Running = true after double Stop")
	}
	if got := c.CurrentIndex(); got != -1 {
		t.Errorf("CurrentIndex after Stop = %d, want -1", got)
	}
}

func TestStart_ReplacesRunningSession(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	c := scan.New(rec)
	defer c.Stop()

	c.Start(threeItems(), time.Hour, 0)
	c.Start([]scan.Item{{Label: "only", Position: 0, Kind: scan.KindNormal}}, time.Hour, 0)

	if got := c.CurrentIndex(); got != 0 {
		t.Errorf("CurrentIndex = %d, want 0 (restart begins from scratch)", got)
	}
	if got := rec.Labels(); len(got) != 2 || got[1] != "only" {
		t.Errorf("announcements = %v, want [yes only]", got)
	}
}

func TestScan_LoopLimitStopsAutomatically(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	c := scan.New(rec)
	defer c.Stop()

	items := threeItems()[:2]
	c.Start(items, 10*time.Millisecond, 2)

	deadline := time.After(2 * time.Second)
	for c.Running() {
		select {
		case <-deadline:
			t.Fatal("controller did not stop itself at the loop limit")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Two items, two full passes: each item announced exactly twice.
	if got := rec.Labels(); len(got) != 4 {
		t.Errorf("announcements = %v, want exactly 4", got)
	}
	if got := c.CurrentIndex(); got != -1 {
		t.Errorf("CurrentIndex after auto-stop = %d, want -1", got)
	}
}

func TestScan_ZeroLoopLimitIsUnlimited(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	c := scan.New(rec)
	defer c.Stop()

	c.Start(threeItems()[:1], 5*time.Millisecond, 0)
	time.Sleep(80 * time.Millisecond)

	if !c.Running() {
		t.Error("controller stopped despite loop limit 0")
	}
	if got := len(rec.Labels()); got < 5 {
		t.Errorf("announcements = %d, want several (unlimited cycling)", got)
	}
}

func TestActivate_StopsAndReturnsHighlighted(t *testing.T) {
	t.Parallel()
	c := scan.New(&recorder{})
	c.Start(threeItems(), time.Hour, 0)

	item, ok := c.Activate()
	if !ok {
		t.Fatal("Activate reported no highlighted item")
	}
	if item.Label != "yes" {
		t.Errorf("activated %q, want %q", item.Label, "yes")
	}
	if c.Running() {
		t.Error("scanning continued after Activate")
	}
}

func TestActivate_IdleIsNoop(t *testing.T) {
	t.Parallel()
	c := scan.New(&recorder{})
	if _, ok := c.Activate(); ok {
		t.Error("Activate on idle controller reported a highlighted item")
	}
}

func TestScan_EmptyItemsIsHarmless(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	c := scan.New(rec)
	defer c.Stop()

	c.Start(nil, 5*time.Millisecond, 0)
	time.Sleep(30 * time.Millisecond)

	if got := len(rec.Labels()); got != 0 {
		t.Errorf("announcements = %d, want 0 for empty screen", got)
	}
	if got := c.CurrentIndex(); got != -1 {
		t.Errorf("CurrentIndex = %d, want -1", got)
	}
}

func TestScan_TimingAfterTwoAndAHalfDelays(t *testing.T) {
	t.Parallel()
	c := scan.New(&recorder{})
	defer c.Stop()

	c.Start(threeItems(), 100*time.Millisecond, 0)
	time.Sleep(250 * time.Millisecond)

	// Initial immediate step plus ticks at 100 ms and 200 ms.
	if got := c.CurrentIndex(); got != 2 {
		t.Errorf("CurrentIndex after 2.5 delays = %d, want 2", got)
	}
}

// TestScan_CadenceIndependentOfNarration wires the controller to a real
// announcement queue whose playback is far slower than the scan cadence and
// verifies ticks keep firing on the wall clock.
func TestScan_CadenceIndependentOfNarration(t *testing.T) {
	t.Parallel()
	player := audiomock.New()
	player.PlayDuration = 300 * time.Millisecond
	q := announce.New(speechmock.New(), player, announce.WithSegmentGap(0))

	c := scan.New(queueAnnouncer{q})
	defer c.Stop()

	c.Start(threeItems(), 25*time.Millisecond, 0)
	time.Sleep(150 * time.Millisecond)
	c.Stop()

	// 150 ms at a 25 ms cadence is six-ish steps; slow narration must not
	// have throttled them down to the one or two plays that finished.
	if got := q.Depth() + player.PlayCount(); got < 4 {
		t.Errorf("scan produced %d announcements in 150ms, want at least 4 (ticks must not wait for narration)", got)
	}
}

// queueAnnouncer adapts announce.Queue to scan.Announcer the way the board
// session does.
type queueAnnouncer struct {
	q *announce.Queue
}

func (a queueAnnouncer) Announce(label string) {
	a.q.Enqueue(label, "system", true)
}
