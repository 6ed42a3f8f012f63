package resilience

import (
	"context"

	"github.com/voxboard/voxboard/pkg/provider/speech"
)

// Compile-time interface assertion.
var _ speech.Synthesizer = (*Synthesizer)(nil)

// Synthesizer wraps a [speech.Synthesizer] with a circuit breaker. While the
// breaker is open every call fails immediately with [ErrCircuitOpen]; the
// announcement queue treats that like any other synthesis failure, so pending
// requests drain quickly instead of each waiting out a transport timeout.
type Synthesizer struct {
	inner   speech.Synthesizer
	breaker *CircuitBreaker
}

// NewSynthesizer wraps inner with a breaker built from cfg.
func NewSynthesizer(inner speech.Synthesizer, cfg CircuitBreakerConfig) *Synthesizer {
	if cfg.Name == "" {
		cfg.Name = "speech"
	}
	return &Synthesizer{
		inner:   inner,
		breaker: NewCircuitBreaker(cfg),
	}
}

// Synthesize implements [speech.Synthesizer].
func (s *Synthesizer) Synthesize(ctx context.Context, text string, target speech.RoutingTarget) ([]byte, error) {
	var audio []byte
	err := s.breaker.Execute(func() error {
		var callErr error
		audio, callErr = s.inner.Synthesize(ctx, text, target)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return audio, nil
}

// Breaker exposes the underlying circuit breaker for health reporting.
func (s *Synthesizer) Breaker() *CircuitBreaker {
	return s.breaker
}
