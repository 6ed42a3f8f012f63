package announce

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/voxboard/voxboard/pkg/provider/speech"
)

// entropy feeds ULID generation for request ids. ULIDs here only need to be
// unique within one process's logs, so math/rand entropy is sufficient.
var (
	entropyMu sync.Mutex
	entropy   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func newRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Request is one caller-visible narration request. It is created by
// [Queue.Enqueue], consumed exactly once by the queue processor, and settles
// exactly once — successfully after its last segment finishes playing, or with
// an error if synthesis or playback failed or the queue was cleared.
type Request struct {
	// Text is the announcement text; it may contain the pause marker.
	Text string

	// Target is forwarded opaquely to the synthesis service.
	Target speech.RoutingTarget

	// ShowVisualCue reports whether a companion "now speaking" affordance
	// should be shown while this request plays.
	ShowVisualCue bool

	id   string
	done chan struct{}

	mu  sync.Mutex
	err error
}

func newRequest(text string, target speech.RoutingTarget, showVisualCue bool) *Request {
	return &Request{
		Text:          text,
		Target:        target,
		ShowVisualCue: showVisualCue,
		id:            newRequestID(),
		done:          make(chan struct{}),
	}
}

// ID returns the request's log-correlation id.
func (r *Request) ID() string { return r.id }

// Done returns a channel that is closed once the request has settled.
func (r *Request) Done() <-chan struct{} { return r.done }

// Err returns the settlement error. It is only meaningful after [Request.Done]
// is closed; before that it returns nil.
func (r *Request) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Wait blocks until the request settles or ctx is cancelled, returning the
// settlement error in the former case and ctx's error in the latter.
func (r *Request) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settle records err and closes the done channel. It must be called at most
// once; the queue processor guarantees this.
func (r *Request) settle(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	close(r.done)
}
