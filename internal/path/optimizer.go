package path

import (
	"route-animator/internal/geo"
)

// Resampling policy. Three regimes keyed on point count and total distance;
// the thresholds are deliberately named so the ladder itself is testable.
const (
	// MaxPoints bounds per-frame interpolation cost regardless of raw
	// provider density.
	MaxPoints = 3000
	// LongRouteMeters disables densification: polylines of such routes are
	// already coarse relative to the distance covered.
	LongRouteMeters = 200_000.0
	// Gaps inside [DensifyMinGapMeters, DensifyMaxGapMeters] get one
	// midpoint inserted; shorter gaps are already smooth, longer ones are
	// intentional straight stretches.
	DensifyMinGapMeters = 25.0
	DensifyMaxGapMeters = 400.0
)

// Optimize resamples a flattened path for smooth bounded-cost animation and
// remaps the leg span table to the new indices. The span invariants
// (contiguous, non-overlapping, covering) are preserved by processing one
// leg at a time.
func Optimize(f Flattened, totalMeters float64) Flattened {
	switch {
	case len(f.Points) > MaxPoints:
		return rebuild(f, decimateLeg)
	case totalMeters >= LongRouteMeters:
		return f
	default:
		return rebuild(f, densifyLeg)
	}
}

// rebuild applies a per-leg resampler and reassembles the span table.
func rebuild(f Flattened, resample func(pts []geo.LatLng, stride int) []geo.LatLng) Flattened {
	stride := 1
	if len(f.Points) > MaxPoints {
		stride = (len(f.Points) + MaxPoints - 1) / MaxPoints
	}

	out := Flattened{Legs: make([]LegSpan, 0, len(f.Legs))}
	for _, span := range f.Legs {
		ns := LegSpan{Mode: span.Mode, Ordinal: span.Ordinal}
		if span.Empty() {
			ns.Start = len(out.Points)
			ns.End = ns.Start - 1
			out.Legs = append(out.Legs, ns)
			continue
		}
		pts := resample(f.Points[span.Start:span.End+1], stride)
		ns.Start = len(out.Points)
		ns.End = ns.Start + len(pts) - 1
		out.Points = append(out.Points, pts...)
		out.Legs = append(out.Legs, ns)
	}
	return out
}

// decimateLeg keeps every stride-th point plus the first and last.
func decimateLeg(pts []geo.LatLng, stride int) []geo.LatLng {
	if stride <= 1 || len(pts) <= 2 {
		return pts
	}
	out := make([]geo.LatLng, 0, len(pts)/stride+2)
	for i := 0; i < len(pts); i += stride {
		out = append(out, pts[i])
	}
	if out[len(out)-1] != pts[len(pts)-1] {
		out = append(out, pts[len(pts)-1])
	}
	return out
}

// densifyLeg inserts a midpoint on gaps in the medium band.
func densifyLeg(pts []geo.LatLng, _ int) []geo.LatLng {
	if len(pts) < 2 {
		return pts
	}
	out := make([]geo.LatLng, 0, len(pts)*2)
	out = append(out, pts[0])
	for i := 1; i < len(pts); i++ {
		gap := geo.HaversineMeters(pts[i-1], pts[i])
		if gap >= DensifyMinGapMeters && gap <= DensifyMaxGapMeters {
			out = append(out, geo.Interpolate(pts[i-1], pts[i], 0.5))
		}
		out = append(out, pts[i])
	}
	return out
}
