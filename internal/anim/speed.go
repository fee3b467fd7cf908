package anim

import (
	"math"

	"route-animator/internal/camera"
)

// PlaybackSpeed is the user-selected speed multiplier.
type PlaybackSpeed string

const (
	SpeedSlow   PlaybackSpeed = "slow"
	SpeedMedium PlaybackSpeed = "medium"
	SpeedFast   PlaybackSpeed = "fast"
)

func (p PlaybackSpeed) Valid() bool {
	return p == SpeedSlow || p == SpeedMedium || p == SpeedFast
}

func (p PlaybackSpeed) Multiplier() float64 {
	switch p {
	case SpeedSlow:
		return 0.5
	case SpeedFast:
		return 2
	default:
		return 1
	}
}

// speedStep maps a route-length ceiling to base marker speeds. Longer routes
// move faster in absolute meters per second so they still finish in
// reasonable wall-clock time; follow view uses smaller speeds since the
// camera is tightly zoomed.
type speedStep struct {
	MaxKm     float64
	WholeMps  float64
	FollowMps float64
}

// baseSpeedLadder is a first-class design artifact: the exact values are
// tuned for visual feel, the shape (monotonic step function of distance) is
// what matters.
var baseSpeedLadder = []speedStep{
	{MaxKm: 5, WholeMps: 40, FollowMps: 20},
	{MaxKm: 50, WholeMps: 200, FollowMps: 80},
	{MaxKm: 500, WholeMps: 1200, FollowMps: 400},
	{MaxKm: math.Inf(1), WholeMps: 5000, FollowMps: 1500},
}

func baseSpeedMps(totalKm float64, view camera.ViewMode) float64 {
	for _, step := range baseSpeedLadder {
		if totalKm <= step.MaxKm {
			if view == camera.ViewFollow {
				return step.FollowMps
			}
			return step.WholeMps
		}
	}
	last := baseSpeedLadder[len(baseSpeedLadder)-1]
	if view == camera.ViewFollow {
		return last.FollowMps
	}
	return last.WholeMps
}

// Zoom multiplier: zoomed-out views cover more ground per pixel, so the
// marker speeds up; zoomed-in views slow it down. Bounded so playback never
// stalls or explodes under extreme zoom.
const (
	zoomPivot         = 12.0
	zoomHalvingLevels = 4.0
	minZoomMultiplier = 0.5
	maxZoomMultiplier = 3.0
)

func zoomMultiplier(zoom float64) float64 {
	m := math.Pow(2, (zoomPivot-zoom)/zoomHalvingLevels)
	if m < minZoomMultiplier {
		return minZoomMultiplier
	}
	if m > maxZoomMultiplier {
		return maxZoomMultiplier
	}
	return m
}
