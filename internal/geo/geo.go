package geo

import "math"

const earthRadiusMeters = 6371000.0

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func toRad(d float64) float64 { return d * math.Pi / 180 }
func toDeg(r float64) float64 { return r * 180 / math.Pi }

// HaversineMeters returns the great-circle distance between a and b.
func HaversineMeters(a, b LatLng) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// Interpolate returns the point a fraction t of the way from a to b along the
// great circle through them. t is clamped to [0,1]. Degenerate pairs (a == b,
// or antipodal points where the interpolation is undefined) return a.
func Interpolate(a, b LatLng, t float64) LatLng {
	if t <= 0 || a == b {
		return a
	}
	if t >= 1 {
		return b
	}
	d := HaversineMeters(a, b) / earthRadiusMeters // central angle
	sinD := math.Sin(d)
	if sinD == 0 {
		return a
	}
	fA := math.Sin((1-t)*d) / sinD
	fB := math.Sin(t*d) / sinD

	lat1, lng1 := toRad(a.Lat), toRad(a.Lng)
	lat2, lng2 := toRad(b.Lat), toRad(b.Lng)
	x := fA*math.Cos(lat1)*math.Cos(lng1) + fB*math.Cos(lat2)*math.Cos(lng2)
	y := fA*math.Cos(lat1)*math.Sin(lng1) + fB*math.Cos(lat2)*math.Sin(lng2)
	z := fA*math.Sin(lat1) + fB*math.Sin(lat2)

	return LatLng{
		Lat: toDeg(math.Atan2(z, math.Sqrt(x*x+y*y))),
		Lng: toDeg(math.Atan2(y, x)),
	}
}

// CumDistances builds cumulative haversine distances for a polyline. The
// result has the same length as pts; cum[0] is 0.
func CumDistances(pts []LatLng) []float64 {
	n := len(pts)
	if n == 0 {
		return nil
	}
	cum := make([]float64, n)
	sum := 0.0
	for i := 1; i < n; i++ {
		sum += HaversineMeters(pts[i-1], pts[i])
		cum[i] = sum
	}
	return cum
}

// PositionAtDistance walks cumulative segment lengths and returns the point
// at the target distance along the polyline, plus the index of the segment's
// start point. Distances beyond either end clamp to the respective endpoint
// rather than erroring; zero-length paths return the start point.
func PositionAtDistance(pts []LatLng, cum []float64, dist float64) (LatLng, int) {
	n := len(pts)
	if n == 0 {
		return LatLng{}, 0
	}
	if len(cum) != n {
		cum = CumDistances(pts)
	}
	total := cum[n-1]
	if total == 0 || dist <= 0 {
		return pts[0], 0
	}
	if dist >= total {
		return pts[n-1], n - 1
	}
	i := 1
	for i < n && cum[i] < dist {
		i++
	}
	if i >= n {
		i = n - 1
	}
	d0, d1 := cum[i-1], cum[i]
	if d1 == d0 {
		return pts[i-1], i - 1
	}
	frac := (dist - d0) / (d1 - d0)
	return Interpolate(pts[i-1], pts[i], frac), i - 1
}

// BearingDeg returns the initial bearing from a to b in degrees [0,360).
func BearingDeg(a, b LatLng) float64 {
	y := math.Sin(toRad(b.Lng-a.Lng)) * math.Cos(toRad(b.Lat))
	x := math.Cos(toRad(a.Lat))*math.Sin(toRad(b.Lat)) -
		math.Sin(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Cos(toRad(b.Lng-a.Lng))
	brng := toDeg(math.Atan2(y, x))
	if brng < 0 {
		brng += 360
	}
	return brng
}

// arcPeakFraction is the peak lateral offset of a generated arc relative to
// the straight-line distance between its endpoints.
const arcPeakFraction = 0.02

// metersPerLatDegree is the approximate north-south span of one degree of
// latitude, used to convert the arc offset into a latitude perturbation.
const metersPerLatDegree = 111320.0

// GenerateArc produces a curved visual path between origin and destination
// with numPoints+1 points inclusive of both endpoints. The curve is a
// parabolic latitude perturbation, maximal at the midpoint and zero at the
// ends; it is not geodesically exact and is intended for flight legs and
// provider fallbacks only.
func GenerateArc(origin, destination LatLng, numPoints int) []LatLng {
	if numPoints < 1 {
		numPoints = 1
	}
	span := HaversineMeters(origin, destination)
	peakDeg := span * arcPeakFraction / metersPerLatDegree

	pts := make([]LatLng, 0, numPoints+1)
	for i := 0; i <= numPoints; i++ {
		t := float64(i) / float64(numPoints)
		p := LatLng{
			Lat: origin.Lat + (destination.Lat-origin.Lat)*t,
			Lng: origin.Lng + (destination.Lng-origin.Lng)*t,
		}
		p.Lat += peakDeg * 4 * t * (1 - t)
		pts = append(pts, p)
	}
	// Endpoints must be exact regardless of float accumulation.
	pts[0] = origin
	pts[numPoints] = destination
	return pts
}
