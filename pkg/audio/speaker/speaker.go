// Package speaker implements [audio.Player] on top of the oto library,
// playing decoded PCM through the host's default output device.
package speaker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/voxboard/voxboard/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Player = (*Speaker)(nil)

// pollInterval is how often an in-flight Play checks whether the device has
// finished draining the current payload.
const pollInterval = 10 * time.Millisecond

// Speaker plays WAV payloads through the default output device.
//
// oto allows a single device context per process, so a Speaker owns one
// context for its configured format and creates a fresh one-shot player per
// [Speaker.Play] call. Every payload must match the configured sample rate and
// channel count; text-to-speech backends emit a fixed format, so this is a
// setup-time decision rather than a per-call one.
//
// All methods are safe for concurrent use, but playback itself is serialised:
// a second Play blocks until the first has finished.
type Speaker struct {
	format audio.Format

	mu     sync.Mutex
	otoCtx *oto.Context
	closed bool
}

// New opens the default output device for the given PCM format. The device is
// held until [Speaker.Close].
func New(format audio.Format) (*Speaker, error) {
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("speaker: unsupported bit depth %d (want 16)", format.BitDepth)
	}
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("speaker: open output device: %w", err)
	}
	<-ready

	return &Speaker{format: format, otoCtx: otoCtx}, nil
}

// Play implements [audio.Player]. It decodes wav, plays it to completion, and
// releases the one-shot player before returning. A decode failure or a format
// mismatch is reported without touching the device.
func (s *Speaker) Play(ctx context.Context, wav []byte) error {
	format, pcm, err := audio.DecodeWAV(wav)
	if err != nil {
		return err
	}
	if format != s.format {
		return fmt.Errorf("speaker: payload format %+v does not match device format %+v", format, s.format)
	}
	if len(pcm) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("speaker: closed")
	}

	player := s.otoCtx.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	if err := player.Err(); err != nil {
		return fmt.Errorf("speaker: playback: %w", err)
	}
	return nil
}

// Close implements [audio.Player]. The oto context has no close operation; the
// device is released when the process exits, so Close only marks the Speaker
// unusable.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
