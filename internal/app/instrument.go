package app

import (
	"context"
	"time"

	"github.com/voxboard/voxboard/internal/observe"
	"github.com/voxboard/voxboard/pkg/audio"
	"github.com/voxboard/voxboard/pkg/provider/speech"
	"github.com/voxboard/voxboard/pkg/provider/symbols"
)

// Compile-time interface assertions.
var (
	_ speech.Synthesizer = observedSynthesizer{}
	_ audio.Player       = observedPlayer{}
	_ symbols.Searcher   = observedSearcher{}
)

// observedSynthesizer times synthesis calls and counts failures.
type observedSynthesizer struct {
	inner   speech.Synthesizer
	metrics *observe.Metrics
}

func (o observedSynthesizer) Synthesize(ctx context.Context, text string, target speech.RoutingTarget) ([]byte, error) {
	start := time.Now()
	wav, err := o.inner.Synthesize(ctx, text, target)
	o.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		o.metrics.RecordServiceError(ctx, "speech")
	}
	return wav, err
}

// observedPlayer times playback per segment.
type observedPlayer struct {
	inner   audio.Player
	metrics *observe.Metrics
}

func (o observedPlayer) Play(ctx context.Context, wav []byte) error {
	start := time.Now()
	err := o.inner.Play(ctx, wav)
	o.metrics.PlaybackDuration.Record(ctx, time.Since(start).Seconds())
	return err
}

func (o observedPlayer) Close() error {
	return o.inner.Close()
}

// observedSearcher counts symbol service failures.
type observedSearcher struct {
	inner   symbols.Searcher
	metrics *observe.Metrics
}

func (o observedSearcher) Search(ctx context.Context, query string, keywords []string, limit int) ([]symbols.Symbol, error) {
	res, err := o.inner.Search(ctx, query, keywords, limit)
	if err != nil {
		o.metrics.RecordServiceError(ctx, "symbols")
	}
	return res, err
}
