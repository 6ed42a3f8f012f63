// Package mock provides an in-memory [speech.Synthesizer] for tests and for
// running the engine without a synthesis backend.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/voxboard/voxboard/pkg/audio"
	"github.com/voxboard/voxboard/pkg/provider/speech"
)

// Compile-time interface assertion.
var _ speech.Synthesizer = (*Synthesizer)(nil)

// Call records one Synthesize invocation.
type Call struct {
	Text   string
	Target speech.RoutingTarget
}

// Synthesizer is a scripted fake synthesis backend.
// All methods are safe for concurrent use.
type Synthesizer struct {
	// Delay is how long each Synthesize blocks before returning.
	Delay time.Duration

	// Err, when non-nil, is returned by every Synthesize call.
	Err error

	// ErrFor makes Synthesize fail only for specific input texts.
	ErrFor map[string]error

	mu    sync.Mutex
	calls []Call
}

// New returns a Synthesizer that yields a tiny valid WAV payload for any text.
func New() *Synthesizer {
	return &Synthesizer{}
}

// Synthesize implements [speech.Synthesizer]. The returned payload is a valid
// silent WAV clip whose PCM body embeds nothing useful; tests that care about
// payload identity should compare against [PayloadFor].
func (s *Synthesizer) Synthesize(ctx context.Context, text string, target speech.RoutingTarget) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Text: text, Target: target})
	err := s.Err
	if err == nil && s.ErrFor != nil {
		err = s.ErrFor[text]
	}
	d := s.Delay
	s.mu.Unlock()

	if d > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
		}
	}
	if err != nil {
		return nil, err
	}
	return PayloadFor(text), nil
}

// Calls returns a copy of all recorded invocations, in order.
func (s *Synthesizer) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Texts returns just the text of each recorded invocation, in order.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.Text
	}
	return out
}

// PayloadFor returns the deterministic WAV payload the mock produces for text.
// The text itself is stored as the PCM body, padded to sample alignment, which
// keeps payloads distinguishable in ordering assertions.
func PayloadFor(text string) []byte {
	pcm := []byte(text)
	if len(pcm)%2 == 1 {
		pcm = append(pcm, 0)
	}
	return audio.EncodeWAV(audio.Format{SampleRate: 22050, Channels: 1, BitDepth: 16}, pcm)
}
