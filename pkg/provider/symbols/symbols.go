// Package symbols defines the pictographic symbol-search contract used to
// decorate board items with images. Lookups are strictly best-effort: the
// resolver built on top of this package never lets a failed search reach the
// rendering path.
package symbols

import (
	"context"

	"github.com/antzucaro/matchr"
)

// Symbol is one candidate image returned by the search service.
type Symbol struct {
	// URL locates the image.
	URL string `json:"url"`

	// Name is the symbol's catalogue name, when the service provides one.
	Name string `json:"name,omitempty"`
}

// Searcher finds candidate symbols for a text query.
type Searcher interface {
	// Search returns up to limit symbols matching query. keywords optionally
	// narrows the search context. A service that finds nothing returns an
	// empty slice and a nil error; errors are reserved for transport failures.
	Search(ctx context.Context, query string, keywords []string, limit int) ([]Symbol, error)
}

// Best picks the candidate whose name most closely matches label, using
// Jaro-Winkler similarity. Candidates without names score as the service's own
// ranking (their position), so a service that returns unnamed results keeps
// its first result selected. Returns the zero Symbol when candidates is empty.
func Best(label string, candidates []Symbol) Symbol {
	if len(candidates) == 0 {
		return Symbol{}
	}
	best, bestScore := candidates[0], -1.0
	for i, c := range candidates {
		var score float64
		if c.Name != "" {
			score = matchr.JaroWinkler(label, c.Name, true)
		} else {
			// Positional fallback: earlier results rank higher.
			score = 1.0 / float64(i+2)
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}
