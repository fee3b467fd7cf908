// Package provider resolves leg geometry through an external directions
// service, fronted by a two-tier response cache (in-memory plus Postgres).
// The animation core never talks to this package during playback: every leg
// is resolved before the path builder runs.
package provider

import (
	"context"
	"fmt"
	"time"

	"route-animator/internal/geo"
	"route-animator/internal/route"
)

// DefaultTTL is how long a cached directions response stays valid.
const DefaultTTL = 30 * 24 * time.Hour

// RouteResult is the resolved geometry for one leg.
type RouteResult struct {
	Points          []geo.LatLng `json:"points"`
	DistanceMeters  float64      `json:"distanceMeters"`
	DurationSeconds float64      `json:"durationSeconds"`
}

// ProviderError is a typed failure from the directions service. Callers use
// it to decide fallback policy; it never aborts playback.
type ProviderError struct {
	Status int
	Msg    string
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("directions provider: status %d: %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("directions provider: %s", e.Msg)
}

// Directions is the external routing collaborator contract.
type Directions interface {
	Resolve(ctx context.Context, origin, dest geo.LatLng, mode route.Mode) (RouteResult, error)
}

// Store is the persistent cache tier. Implementations own TTL enforcement.
type Store interface {
	Get(ctx context.Context, key string) (RouteResult, bool, error)
	Put(ctx context.Context, key string, res RouteResult) error
}

// cacheKey identifies a response by origin, destination and mode. Six
// decimal places (~11 cm) keeps keys stable against float noise.
func cacheKey(origin, dest geo.LatLng, mode route.Mode) string {
	return fmt.Sprintf("%.6f,%.6f|%.6f,%.6f|%s",
		origin.Lat, origin.Lng, dest.Lat, dest.Lng, mode)
}
