// Package board owns the live state of one communication screen: the item
// list supplied by the render collaborator, the scan session cycling over it,
// the announcement queue narrating it, and the symbol resolver decorating it
// with images.
//
// A [Session] replaces its screen wholesale on re-render. There are no partial
// item updates; setting a new screen stops the running scan, drops pending
// narration, and re-resolves symbols for the new items.
package board

import (
	"github.com/voxboard/voxboard/pkg/scan"
)

// Item is one selectable unit of the current screen as supplied by the render
// collaborator. ImageURL is output-only, filled in by symbol resolution.
type Item struct {
	Label    string    `json:"label"`
	Position int       `json:"position"`
	Kind     scan.Kind `json:"kind"`
	Keywords []string  `json:"keywords,omitempty"`
	ImageURL string    `json:"image_url,omitempty"`
}

// Settings is the per-screen scanning configuration. Zero values fall back to
// the session defaults.
type Settings struct {
	// ScanDelayMS is the dwell time per item in milliseconds.
	ScanDelayMS int `json:"scan_delay_ms"`

	// LoopLimit caps complete passes before scanning stops itself.
	// 0 means unlimited.
	LoopLimit int `json:"loop_limit"`

	// ScanningOff disables auto-start of scanning for this screen.
	ScanningOff bool `json:"scanning_off"`
}

// Screen is one rendered page of items plus its scan settings.
type Screen struct {
	Name     string   `json:"name"`
	Items    []Item   `json:"items"`
	Settings Settings `json:"settings"`
}

// State is a point-in-time snapshot of the session, served by the control API.
type State struct {
	Screen         Screen `json:"screen"`
	HighlightIndex int    `json:"highlight_index"`
	Scanning       bool   `json:"scanning"`
	QueueDepth     int    `json:"queue_depth"`
}
