package path

import (
	"route-animator/internal/geo"
	"route-animator/internal/route"
)

// arcPointCount is the number of segments generated for arc legs.
const arcPointCount = 100

// LegSpan marks the contiguous sub-range of Flattened.Points that belongs to
// one leg. An empty contribution is recorded as Start > End.
type LegSpan struct {
	Start   int
	End     int
	Mode    route.Mode
	Ordinal int
}

func (s LegSpan) Empty() bool { return s.Start > s.End }

// Flattened is the stitched path across all legs plus the index of which
// point ranges belong to which leg. It is rebuilt wholesale on every route
// change and never mutated in place.
type Flattened struct {
	Points []geo.LatLng
	Legs   []LegSpan
}

// Build stitches the per-leg geometry sources into one flat path. Custom
// legs after the first are prefixed with the previous leg's final point so
// the stitched path has no coordinate gap. Legs contributing zero points get
// an empty span; downstream mode lookups fall back to the nearest non-empty
// neighbor.
func Build(legs []route.Leg) Flattened {
	var f Flattened
	for ord, leg := range legs {
		pts := legPoints(leg)
		if len(pts) > 0 && leg.Source.Kind == route.SourceCustom && len(f.Points) > 0 {
			if last := f.Points[len(f.Points)-1]; pts[0] != last {
				pts = append([]geo.LatLng{last}, pts...)
			}
		}
		span := LegSpan{Mode: leg.Mode, Ordinal: ord}
		if len(pts) == 0 {
			span.Start = len(f.Points)
			span.End = span.Start - 1
		} else {
			span.Start = len(f.Points)
			span.End = span.Start + len(pts) - 1
			f.Points = append(f.Points, pts...)
		}
		f.Legs = append(f.Legs, span)
	}
	return f
}

func legPoints(leg route.Leg) []geo.LatLng {
	switch leg.Source.Kind {
	case route.SourceArc:
		return geo.GenerateArc(leg.Source.Origin, leg.Source.Dest, arcPointCount)
	default:
		return leg.Source.Points
	}
}

// ModeAt resolves the travel mode for a path point index. Exact boundary
// points and empty spans fall back to the nearest non-empty span by index
// distance rather than reporting a stale or missing mode.
func (f Flattened) ModeAt(idx int) (route.Mode, bool) {
	span, ok := f.spanAt(idx)
	if !ok {
		return "", false
	}
	return span.Mode, true
}

func (f Flattened) spanAt(idx int) (LegSpan, bool) {
	var best LegSpan
	bestDist := -1
	for _, span := range f.Legs {
		if span.Empty() {
			continue
		}
		if idx >= span.Start && idx <= span.End {
			return span, true
		}
		d := span.Start - idx
		if idx > span.End {
			d = idx - span.End
		}
		if bestDist < 0 || d < bestDist {
			best = span
			bestDist = d
		}
	}
	if bestDist < 0 {
		return LegSpan{}, false
	}
	return best, true
}

// Animatable reports whether the stitched path has enough geometry to play.
func (f Flattened) Animatable() bool { return len(f.Points) >= 2 }
