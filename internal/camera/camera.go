package camera

import (
	"math"

	"route-animator/internal/geo"
)

// ViewMode selects how the camera frames playback.
type ViewMode string

const (
	// ViewFollow keeps the camera centered on the moving marker.
	ViewFollow ViewMode = "follow"
	// ViewWhole frames the entire route and stays put.
	ViewWhole ViewMode = "whole"
)

func (v ViewMode) Valid() bool { return v == ViewFollow || v == ViewWhole }

// Viewport is the pixel size of the map widget being framed.
type Viewport struct {
	WidthPx  int
	HeightPx int
}

// View is a computed camera placement.
type View struct {
	Center geo.LatLng `json:"center"`
	Zoom   float64    `json:"zoom"`
}

const (
	// fitPaddingFactor shrinks the usable viewport so the route box does not
	// touch the edges.
	fitPaddingFactor = 0.85
	// boundsSampleStride: every Nth path point is folded into the bounding
	// box on top of the waypoints, which is enough for arc legs that bow
	// outside the waypoint hull.
	boundsSampleStride = 10

	minZoom = 2.0
	maxZoom = 18.0

	tileSizePx = 256.0
)

// followZoomStep maps a route-length ceiling to the fixed follow-mode zoom
// used below it. A 2 km walk and a 2000 km road trip should not share a
// camera distance.
type followZoomStep struct {
	MaxKm float64
	Zoom  float64
}

var followZoomLadder = []followZoomStep{
	{MaxKm: 10, Zoom: 15},
	{MaxKm: 300, Zoom: 12},
	{MaxKm: math.Inf(1), Zoom: 8},
}

// FollowZoom returns the follow-mode zoom level for a route of the given
// total length.
func FollowZoom(totalKm float64) float64 {
	for _, step := range followZoomLadder {
		if totalKm <= step.MaxKm {
			return step.Zoom
		}
	}
	return followZoomLadder[len(followZoomLadder)-1].Zoom
}

// FitWholeRoute computes the center and zoom that frame the full path inside
// the viewport with padding. Waypoints plus a sparse sample of path points
// feed the bounding box. Degenerate boxes (single coordinate) return the
// maximum zoom centered on that point.
func FitWholeRoute(waypoints []geo.LatLng, pathPoints []geo.LatLng, vp Viewport) View {
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLng, maxLng := math.Inf(1), math.Inf(-1)
	grow := func(p geo.LatLng) {
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
		minLng = math.Min(minLng, p.Lng)
		maxLng = math.Max(maxLng, p.Lng)
	}
	for _, w := range waypoints {
		grow(w)
	}
	for i := 0; i < len(pathPoints); i += boundsSampleStride {
		grow(pathPoints[i])
	}
	if len(pathPoints) > 0 {
		grow(pathPoints[len(pathPoints)-1])
	}
	if math.IsInf(minLat, 1) {
		return View{Zoom: minZoom}
	}

	center := geo.LatLng{Lat: (minLat + maxLat) / 2, Lng: (minLng + maxLng) / 2}
	if minLat == maxLat && minLng == maxLng {
		return View{Center: center, Zoom: maxZoom}
	}

	zoom := math.Min(
		zoomForSpan(mercatorYSpan(minLat, maxLat), float64(vp.HeightPx)),
		zoomForSpan((maxLng-minLng)/360, float64(vp.WidthPx)),
	)
	return View{Center: center, Zoom: clampZoom(zoom)}
}

// mercatorYSpan is the fraction of the Web-Mercator world height covered by
// the latitude range.
func mercatorYSpan(minLat, maxLat float64) float64 {
	y := func(lat float64) float64 {
		s := math.Sin(lat * math.Pi / 180)
		// clamp near the poles where the projection diverges
		s = math.Max(-0.9999, math.Min(0.9999, s))
		return 0.5 - math.Log((1+s)/(1-s))/(4*math.Pi)
	}
	return math.Abs(y(minLat) - y(maxLat))
}

// zoomForSpan solves tileSize * 2^zoom * span = viewport*padding for zoom.
func zoomForSpan(worldFraction, viewportPx float64) float64 {
	if worldFraction <= 0 || viewportPx <= 0 {
		return maxZoom
	}
	return math.Log2(viewportPx * fitPaddingFactor / (tileSizePx * worldFraction))
}

func clampZoom(z float64) float64 {
	return math.Max(minZoom, math.Min(maxZoom, z))
}
