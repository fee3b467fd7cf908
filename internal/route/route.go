package route

import (
	"errors"
	"fmt"

	"route-animator/internal/geo"
)

// Mode is the travel mode of a single leg.
type Mode string

const (
	ModeWalk    Mode = "walk"
	ModeBike    Mode = "bike"
	ModeBus     Mode = "bus"
	ModeCar     Mode = "car"
	ModeTransit Mode = "transit"
	ModeFerry   Mode = "ferry"
	ModeFlight  Mode = "flight"
	ModeCustom  Mode = "custom"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeWalk, ModeBike, ModeBus, ModeCar, ModeTransit, ModeFerry, ModeFlight, ModeCustom:
		return true
	}
	return false
}

// ErrNotAnimatable is returned when a route snapshot cannot produce a
// playable path (too few waypoints, or all waypoints identical).
var ErrNotAnimatable = errors.New("route is not animatable")

// Waypoint is a user-placed stop. Immutable once placed; edits replace the
// whole waypoint.
type Waypoint struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label,omitempty"`
}

func (w Waypoint) LatLng() geo.LatLng { return geo.LatLng{Lat: w.Lat, Lng: w.Lng} }

// SourceKind discriminates the geometry source of a leg.
type SourceKind int

const (
	// SourceProvider is a polyline already resolved by the directions
	// provider (or a straight-line substitute when resolution failed).
	SourceProvider SourceKind = iota
	// SourceCustom is a hand-drawn raw point list supplied by the user.
	SourceCustom
	// SourceArc is a generated curved path between two endpoints, used for
	// flight legs and as a provider fallback.
	SourceArc
)

// Source is the tagged geometry source of one leg. Exactly one variant
// applies: Points for provider/custom legs, Origin/Dest for arcs.
type Source struct {
	Kind   SourceKind
	Points []geo.LatLng
	Origin geo.LatLng
	Dest   geo.LatLng
}

func ProviderSource(points []geo.LatLng) Source {
	return Source{Kind: SourceProvider, Points: points}
}

func CustomSource(points []geo.LatLng) Source {
	return Source{Kind: SourceCustom, Points: points}
}

func ArcSource(origin, dest geo.LatLng) Source {
	return Source{Kind: SourceArc, Origin: origin, Dest: dest}
}

// Leg is the edge between two consecutive waypoints. Degraded marks legs
// whose provider resolution failed and were substituted with a straight line
// or arc; playback continues but the UI may render them differently.
type Leg struct {
	Mode     Mode
	Source   Source
	Degraded bool
}

// Route is an immutable snapshot supplied by the caller. The animation core
// never mutates one; every change arrives as a fresh snapshot.
type Route struct {
	Waypoints []Waypoint
	Legs      []Leg
}

// Validate reports whether the snapshot can be animated. Structural problems
// (leg/waypoint count mismatch, unknown modes, custom legs without points)
// are returned as plain errors; degenerate-but-well-formed routes wrap
// ErrNotAnimatable so callers can show a "nothing to animate" state.
func (r Route) Validate() error {
	if len(r.Waypoints) < 2 {
		return fmt.Errorf("%w: need at least 2 waypoints, have %d", ErrNotAnimatable, len(r.Waypoints))
	}
	if len(r.Legs) != len(r.Waypoints)-1 {
		return fmt.Errorf("route has %d legs for %d waypoints", len(r.Legs), len(r.Waypoints))
	}
	for i, leg := range r.Legs {
		if !leg.Mode.Valid() {
			return fmt.Errorf("leg %d: unknown mode %q", i, leg.Mode)
		}
		if leg.Source.Kind == SourceCustom && len(leg.Source.Points) < 2 {
			return fmt.Errorf("leg %d: custom leg needs at least 2 points, has %d", i, len(leg.Source.Points))
		}
	}
	first := r.Waypoints[0]
	allSame := true
	for _, w := range r.Waypoints[1:] {
		if w.Lat != first.Lat || w.Lng != first.Lng {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("%w: all waypoints share the same coordinate", ErrNotAnimatable)
	}
	return nil
}
