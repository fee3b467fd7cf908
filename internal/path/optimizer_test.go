package path

import (
	"testing"

	"route-animator/internal/geo"
	"route-animator/internal/route"
)

func TestOptimizeDecimatesDensePaths(t *testing.T) {
	// One leg with far more points than the ceiling.
	pts := line(geo.LatLng{Lat: 0, Lng: 0}, geo.LatLng{Lat: 0, Lng: 1}, MaxPoints*3)
	f := Build([]route.Leg{{Mode: route.ModeCar, Source: route.ProviderSource(pts)}})

	total := geo.CumDistances(f.Points)
	opt := Optimize(f, total[len(total)-1])

	checkSpans(t, opt)
	if len(opt.Points) > MaxPoints+2 {
		t.Errorf("optimized points = %d, want <= %d", len(opt.Points), MaxPoints+2)
	}
	if opt.Points[0] != pts[0] {
		t.Error("first point not preserved")
	}
	if opt.Points[len(opt.Points)-1] != pts[len(pts)-1] {
		t.Error("last point not preserved")
	}
}

func TestOptimizeLongRoutePassthrough(t *testing.T) {
	pts := line(geo.LatLng{Lat: 0, Lng: 0}, geo.LatLng{Lat: 0, Lng: 5}, 50)
	f := Build([]route.Leg{{Mode: route.ModeCar, Source: route.ProviderSource(pts)}})

	opt := Optimize(f, LongRouteMeters*2)
	if len(opt.Points) != len(f.Points) {
		t.Errorf("long route was resampled: %d -> %d points", len(f.Points), len(opt.Points))
	}
	if len(opt.Legs) != len(f.Legs) || opt.Legs[0] != f.Legs[0] {
		t.Error("long route span table should pass through unchanged")
	}
}

func TestOptimizeDensifiesMediumGaps(t *testing.T) {
	// ~111 m between consecutive points: inside the medium band.
	pts := line(geo.LatLng{Lat: 0, Lng: 0}, geo.LatLng{Lat: 0, Lng: 0.01}, 10)
	f := Build([]route.Leg{{Mode: route.ModeWalk, Source: route.ProviderSource(pts)}})

	total := geo.CumDistances(f.Points)
	opt := Optimize(f, total[len(total)-1])

	checkSpans(t, opt)
	if len(opt.Points) <= len(f.Points) {
		t.Errorf("expected densification: %d -> %d points", len(f.Points), len(opt.Points))
	}
	if opt.Points[0] != pts[0] || opt.Points[len(opt.Points)-1] != pts[len(pts)-1] {
		t.Error("endpoints not preserved by densification")
	}
}

func TestOptimizeLeavesShortGapsAlone(t *testing.T) {
	// ~11 m gaps: below the densify band, nothing to add.
	pts := line(geo.LatLng{Lat: 0, Lng: 0}, geo.LatLng{Lat: 0, Lng: 0.001}, 10)
	f := Build([]route.Leg{{Mode: route.ModeWalk, Source: route.ProviderSource(pts)}})

	total := geo.CumDistances(f.Points)
	opt := Optimize(f, total[len(total)-1])
	if len(opt.Points) != len(f.Points) {
		t.Errorf("short gaps should not be densified: %d -> %d", len(f.Points), len(opt.Points))
	}
}

func TestOptimizeRemapsMultiLegSpans(t *testing.T) {
	a := geo.LatLng{Lat: 0, Lng: 0}
	b := geo.LatLng{Lat: 0, Lng: 0.01}
	c := geo.LatLng{Lat: 0.01, Lng: 0.01}
	f := Build([]route.Leg{
		{Mode: route.ModeWalk, Source: route.ProviderSource(line(a, b, 10))},
		{Mode: route.ModeCar, Source: route.ProviderSource(line(b, c, 10))},
	})

	total := geo.CumDistances(f.Points)
	opt := Optimize(f, total[len(total)-1])

	checkSpans(t, opt)
	if mode, _ := opt.ModeAt(opt.Legs[0].Start); mode != route.ModeWalk {
		t.Error("first span lost its mode after remap")
	}
	if mode, _ := opt.ModeAt(opt.Legs[1].End); mode != route.ModeCar {
		t.Error("second span lost its mode after remap")
	}
}
