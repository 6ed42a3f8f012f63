// Package audio defines the playback primitive used by the announcement
// pipeline: decode one audio payload and play it to the default output device,
// blocking until playback ends naturally.
//
// The package is deliberately unaware of queues and segmentation. Serialising
// playback is the announcement queue's job; a [Player] just plays one buffer.
package audio

import "context"

// Player plays a single WAV payload to completion.
type Player interface {
	// Play decodes wav and plays it, returning once playback has ended
	// naturally. It returns an error if the payload cannot be decoded or the
	// output device rejects it. Cancelling ctx abandons the wait; it does not
	// guarantee the device is silenced immediately.
	Play(ctx context.Context, wav []byte) error

	// Close releases the output device. After Close, Play returns an error.
	Close() error
}
