// Package announce serialises narration into an ordered, at-most-one-playing
// audio queue.
//
// Callers hand the queue whole announcements; the queue segments each one at
// its pause points and plays the segments as an atomic sub-sequence, so two
// concurrently enqueued announcements never interleave. A single consumer
// drains the queue in strict submission order: one synthesis, one playback,
// and one inter-segment pause at a time. A failing request settles with its
// error and the drain moves on — one bad announcement must not silence the
// rest of the session.
package announce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxboard/voxboard/pkg/audio"
	"github.com/voxboard/voxboard/pkg/provider/speech"
	"github.com/voxboard/voxboard/pkg/segment"
)

// DefaultSegmentGap is the pause inserted between the segments of a single
// announcement.
const DefaultSegmentGap = 1500 * time.Millisecond

var (
	// ErrCleared settles requests that were dropped from the backlog by
	// [Queue.Clear] before playback began.
	ErrCleared = errors.New("announce: request cleared before playback")

	// ErrClosed settles requests enqueued after [Queue.Close].
	ErrClosed = errors.New("announce: queue is closed")

	// ErrEmptyText is returned for announcements whose text contains no
	// speakable segment.
	ErrEmptyText = errors.New("announce: no speakable text")
)

// Option configures a [Queue] during construction.
type Option func(*Queue)

// WithSegmentGap overrides the inter-segment pause. Tests use this to keep
// multi-segment announcements fast.
func WithSegmentGap(d time.Duration) Option {
	return func(q *Queue) {
		q.segmentGap = d
	}
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(q *Queue) {
		q.log = log
	}
}

// WithSpeakingFunc registers a callback invoked with true when a request that
// wants a visual cue starts playing and false when it settles. The callback
// runs on the drain goroutine and must not block.
func WithSpeakingFunc(fn func(speaking bool)) Option {
	return func(q *Queue) {
		q.onSpeaking = fn
	}
}

// Queue is the serialised announcement pipeline.
// All exported methods are safe for concurrent use.
type Queue struct {
	synth      speech.Synthesizer
	player     audio.Player
	log        *slog.Logger
	segmentGap time.Duration
	onSpeaking func(bool)

	mu         sync.Mutex
	pending    []*Request
	processing bool
	closed     bool

	// idle is closed whenever the drain goroutine exits; replaced on restart.
	idle chan struct{}
}

// New creates a Queue that synthesises with synth and plays through player.
func New(synth speech.Synthesizer, player audio.Player, opts ...Option) *Queue {
	q := &Queue{
		synth:      synth,
		player:     player,
		log:        slog.Default(),
		segmentGap: DefaultSegmentGap,
		idle:       closedChan(),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue appends one announcement to the backlog and returns its [Request].
// The call never blocks on playback; wait on the request to observe
// completion. Announcements settle in exactly submission order.
func (q *Queue) Enqueue(text string, target speech.RoutingTarget, showVisualCue bool) *Request {
	r := newRequest(text, target, showVisualCue)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		r.settle(ErrClosed)
		return r
	}
	q.pending = append(q.pending, r)
	start := !q.processing
	if start {
		q.processing = true
		q.idle = make(chan struct{})
	}
	q.mu.Unlock()

	q.log.Debug("announcement enqueued", "id", r.ID(), "target", string(target), "len", len(text))
	if start {
		go q.drain()
	}
	return r
}

// SetSegmentGap changes the inter-segment pause for announcements processed
// after the call. Supports configuration hot-reload.
func (q *Queue) SetSegmentGap(d time.Duration) {
	q.mu.Lock()
	q.segmentGap = d
	q.mu.Unlock()
}

// Clear empties the backlog, settling every dropped request with [ErrCleared].
// A request already mid-playback is allowed to finish; callers that need
// immediate silence must also stop whatever is producing announcements.
func (q *Queue) Clear() {
	q.mu.Lock()
	dropped := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, r := range dropped {
		r.settle(ErrCleared)
	}
	if len(dropped) > 0 {
		q.log.Debug("announcement backlog cleared", "dropped", len(dropped))
	}
}

// Depth returns the number of requests waiting in the backlog, excluding any
// request currently playing.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close clears the backlog, rejects future enqueues, and waits for any
// in-flight playback to finish or ctx to expire.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	idle := q.idle
	q.mu.Unlock()

	q.Clear()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("announce: close: %w", ctx.Err())
	}
}

// drain is the single-consumer processor loop. Exactly one drain goroutine
// runs at a time, guarded by q.processing.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.processing = false
			close(q.idle)
			q.mu.Unlock()
			return
		}
		r := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		r.settle(q.process(r))
	}
}

// process plays all segments of one request in order, with the configured gap
// between them. It returns the request's settlement error.
func (q *Queue) process(r *Request) error {
	segs := segment.Split(r.Text)
	if len(segs) == 0 {
		return ErrEmptyText
	}

	if r.ShowVisualCue && q.onSpeaking != nil {
		q.onSpeaking(true)
		defer q.onSpeaking(false)
	}

	q.mu.Lock()
	gap := q.segmentGap
	q.mu.Unlock()

	ctx := context.Background()
	for i, seg := range segs {
		wav, err := q.synth.Synthesize(ctx, seg, r.Target)
		if err != nil {
			q.log.Warn("synthesis failed", "id", r.ID(), "segment", i, "err", err)
			return fmt.Errorf("announce: synthesize segment %d: %w", i, err)
		}
		if err := q.player.Play(ctx, wav); err != nil {
			q.log.Warn("playback failed", "id", r.ID(), "segment", i, "err", err)
			return fmt.Errorf("announce: play segment %d: %w", i, err)
		}
		if i < len(segs)-1 {
			time.Sleep(gap)
		}
	}
	q.log.Debug("announcement complete", "id", r.ID(), "segments", len(segs))
	return nil
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
