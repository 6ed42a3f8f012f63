// Package mock provides an in-memory [symbols.Searcher] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/voxboard/voxboard/pkg/provider/symbols"
)

// Compile-time interface assertion.
var _ symbols.Searcher = (*Searcher)(nil)

// Searcher is a scripted fake symbol-search backend.
// All methods are safe for concurrent use.
type Searcher struct {
	// Results maps query text to the symbols returned for it. Queries with no
	// entry yield an empty result, not an error.
	Results map[string][]symbols.Symbol

	// Err, when non-nil, is returned by every Search call.
	Err error

	mu      sync.Mutex
	queries []string
}

// New returns an empty Searcher.
func New() *Searcher {
	return &Searcher{Results: make(map[string][]symbols.Symbol)}
}

// Search implements [symbols.Searcher].
func (s *Searcher) Search(ctx context.Context, query string, _ []string, limit int) ([]symbols.Symbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.queries = append(s.queries, query)
	err := s.Err
	res := s.Results[query]
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// SetErr makes subsequent Search calls fail with err (nil to clear).
func (s *Searcher) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
}

// Queries returns every query received so far, in order.
func (s *Searcher) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queries))
	copy(out, s.queries)
	return out
}

// SearchCount returns how many Search calls have been made.
func (s *Searcher) SearchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}
