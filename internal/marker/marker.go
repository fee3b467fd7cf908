// Package marker renders the traveling marker's visual descriptor as a pure
// function of the current leg mode and map zoom. It owns no animation state;
// callers recompute on zoom or mode changes and discard the old descriptor.
package marker

import "route-animator/internal/route"

// Visual describes how the traveling marker should be drawn.
type Visual struct {
	Glyph string  `json:"glyph"`
	Scale float64 `json:"scale"`
}

const (
	minScale = 0.6
	maxScale = 1.8
	// baseZoom is the zoom level at which the marker renders at scale 1.
	baseZoom = 13.0
	// scalePerZoom grows the marker as the camera zooms in.
	scalePerZoom = 0.12
)

var glyphs = map[route.Mode]string{
	route.ModeWalk:    "🚶",
	route.ModeBike:    "🚴",
	route.ModeBus:     "🚌",
	route.ModeCar:     "🚗",
	route.ModeTransit: "🚆",
	route.ModeFerry:   "⛴️",
	route.ModeFlight:  "✈️",
	route.ModeCustom:  "📍",
}

const fallbackGlyph = "📍"

// For returns the marker visual for the given leg mode and zoom. The scale
// shrinks at low zoom and grows at high zoom, clamped to a fixed range.
func For(mode route.Mode, zoom float64) Visual {
	glyph, ok := glyphs[mode]
	if !ok {
		glyph = fallbackGlyph
	}
	scale := 1 + (zoom-baseZoom)*scalePerZoom
	if scale < minScale {
		scale = minScale
	} else if scale > maxScale {
		scale = maxScale
	}
	return Visual{Glyph: glyph, Scale: scale}
}
