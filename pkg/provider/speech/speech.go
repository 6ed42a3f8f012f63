// Package speech defines the text-to-speech synthesis contract consumed by the
// announcement queue. Implementations live in subpackages: [rest] talks to the
// remote synthesis service over HTTP, [mock] is an in-memory fake for tests
// and offline use.
package speech

import "context"

// RoutingTarget is an opaque destination hint forwarded to the synthesis
// service. The announcement pipeline never interprets it.
type RoutingTarget string

const (
	// TargetSystem marks narration originating from the scanner or other
	// system affordances.
	TargetSystem RoutingTarget = "system"

	// TargetUser marks narration the user explicitly composed.
	TargetUser RoutingTarget = "user"
)

// Synthesizer converts one text segment into a playable WAV payload.
type Synthesizer interface {
	// Synthesize returns synthesized audio for text. It must respect ctx
	// cancellation and apply its own transport timeout.
	Synthesize(ctx context.Context, text string, target RoutingTarget) ([]byte, error)
}
