package camera

import (
	"testing"

	"route-animator/internal/geo"
)

func TestFollowZoomLadder(t *testing.T) {
	short := FollowZoom(2)
	medium := FollowZoom(100)
	long := FollowZoom(2000)

	if short <= medium || medium <= long {
		t.Errorf("follow zoom should decrease with distance: %f, %f, %f", short, medium, long)
	}
	if FollowZoom(2) != FollowZoom(5) {
		t.Error("routes in the same band should share a zoom level")
	}
}

func TestFitWholeRoute(t *testing.T) {
	wps := []geo.LatLng{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}
	vp := Viewport{WidthPx: 800, HeightPx: 600}

	v := FitWholeRoute(wps, nil, vp)
	if v.Center.Lat != 0.5 || v.Center.Lng != 0.5 {
		t.Errorf("center = %+v, want (0.5, 0.5)", v.Center)
	}
	if v.Zoom < minZoom || v.Zoom > maxZoom {
		t.Errorf("zoom %f outside [%f, %f]", v.Zoom, minZoom, maxZoom)
	}

	// A tighter box should zoom in further.
	tight := FitWholeRoute([]geo.LatLng{{Lat: 0, Lng: 0}, {Lat: 0.01, Lng: 0.01}}, nil, vp)
	if tight.Zoom <= v.Zoom {
		t.Errorf("tight box zoom %f should exceed wide box zoom %f", tight.Zoom, v.Zoom)
	}
}

func TestFitWholeRouteSamplesPath(t *testing.T) {
	// An arc bows north of the waypoint chord; the path sample must widen
	// the box.
	wps := []geo.LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 10}}
	arc := geo.GenerateArc(wps[0], wps[1], 100)
	vp := Viewport{WidthPx: 800, HeightPx: 600}

	withPath := FitWholeRoute(wps, arc, vp)
	withoutPath := FitWholeRoute(wps, nil, vp)
	if withPath.Center.Lat <= withoutPath.Center.Lat {
		t.Errorf("arc sample should pull the center north: %f vs %f",
			withPath.Center.Lat, withoutPath.Center.Lat)
	}
}

func TestFitWholeRouteDegenerate(t *testing.T) {
	v := FitWholeRoute([]geo.LatLng{{Lat: 5, Lng: 5}, {Lat: 5, Lng: 5}}, nil, Viewport{WidthPx: 800, HeightPx: 600})
	if v.Zoom != maxZoom {
		t.Errorf("single-coordinate box zoom = %f, want %f", v.Zoom, maxZoom)
	}

	empty := FitWholeRoute(nil, nil, Viewport{})
	if empty.Zoom != minZoom {
		t.Errorf("empty input zoom = %f, want %f", empty.Zoom, minZoom)
	}
}
