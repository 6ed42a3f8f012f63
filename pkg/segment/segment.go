// Package segment splits announcement text into spoken segments.
//
// Announcement text may carry the literal pause marker "[PAUSE]" to force a
// narrated pause between clauses. Content arriving from upstream generators
// that do not mark pauses explicitly is split once at a natural pause point
// found by a small set of punctuation heuristics. Splitting is pure and
// synchronous; the only "failure" is that no split point is found, in which
// case the input comes back as a single segment.
package segment

import "strings"

// PauseMarker is the only explicit segmentation marker recognised by [Split].
// It must survive transport from any upstream content generator verbatim.
const PauseMarker = "[PAUSE]"

// Split returns the ordered spoken segments of text.
//
// If text contains [PauseMarker], it is split at every occurrence; each piece
// is trimmed and empty pieces are dropped. Otherwise a single implied pause
// point is synthesised by the first matching heuristic, in priority order:
//
//  1. the first '?' that is not at the end of the string — pause after it;
//  2. the first " - ";
//  3. the first " — " (em dash);
//  4. the first ": ";
//  5. no split — text is returned unchanged as one segment.
//
// Split never returns zero segments for non-empty input and never mutates its
// argument. Empty or all-whitespace input yields an empty slice.
func Split(text string) []string {
	if strings.Contains(text, PauseMarker) {
		parts := strings.Split(text, PauseMarker)
		segs := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				segs = append(segs, p)
			}
		}
		return segs
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if head, tail, ok := splitImplied(trimmed); ok {
		return []string{head, tail}
	}
	return []string{trimmed}
}

// splitImplied applies the fallback heuristics to text, which must already be
// trimmed. It reports whether a pause point was found.
func splitImplied(text string) (head, tail string, ok bool) {
	// A '?' mid-string marks the end of a question clause; pause right after it.
	if i := strings.Index(text, "?"); i >= 0 && i < len(text)-1 {
		if tail = strings.TrimSpace(text[i+1:]); tail != "" {
			return text[:i+1], tail, true
		}
		return "", "", false
	}

	for _, sep := range []string{" - ", " — ", ": "} {
		if i := strings.Index(text, sep); i >= 0 {
			head = strings.TrimSpace(text[:i])
			tail = strings.TrimSpace(text[i+len(sep):])
			if head != "" && tail != "" {
				return head, tail, true
			}
		}
	}
	return "", "", false
}
