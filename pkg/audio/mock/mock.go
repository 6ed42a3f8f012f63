// Package mock provides an in-memory [audio.Player] for tests. It records
// every payload it is asked to play and tracks how many plays are in flight so
// tests can assert the at-most-one-playing invariant.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/voxboard/voxboard/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Player = (*Player)(nil)

// Player is a configurable fake audio device.
// All methods are safe for concurrent use.
type Player struct {
	// PlayDuration is how long each Play blocks to simulate playback.
	// Zero means Play returns immediately.
	PlayDuration time.Duration

	// PlayErr, when non-nil, is returned by every Play call.
	PlayErr error

	mu          sync.Mutex
	played      [][]byte
	inFlight    int
	maxInFlight int
	closed      bool
}

// New returns an idle mock player.
func New() *Player {
	return &Player{}
}

// Play implements [audio.Player].
func (p *Player) Play(ctx context.Context, wav []byte) error {
	p.mu.Lock()
	buf := make([]byte, len(wav))
	copy(buf, wav)
	p.played = append(p.played, buf)
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	d := p.PlayDuration
	err := p.PlayErr
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()

	if d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	return err
}

// Close implements [audio.Player].
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Played returns a copy of every payload played so far, in order.
func (p *Player) Played() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.played))
	copy(out, p.played)
	return out
}

// PlayCount returns how many Play calls have been made.
func (p *Player) PlayCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.played)
}

// MaxInFlight returns the highest number of Play calls that were ever active
// simultaneously. A serialised pipeline keeps this at 1.
func (p *Player) MaxInFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxInFlight
}
