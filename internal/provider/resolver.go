package provider

import (
	"context"
	"fmt"
	"log/slog"

	"route-animator/internal/geo"
	"route-animator/internal/route"
)

// ResolverMetrics is implemented by the metrics collector; nil disables
// instrumentation.
type ResolverMetrics interface {
	CacheHit(tier string)
	CacheMiss()
	ProviderErrorInc()
}

// LegSpec is the caller-supplied description of one leg before resolution.
type LegSpec struct {
	Mode         route.Mode
	CustomPoints []geo.LatLng
}

// Resolver turns leg specs into fully resolved legs. Provider lookups go
// through the two-tier cache; failures degrade to a straight line (or an arc
// for ferry legs) with the leg marked Degraded instead of failing the route.
type Resolver struct {
	dir     Directions
	mem     *MemoryCache
	store   Store
	metrics ResolverMetrics
	logger  *slog.Logger
}

func NewResolver(dir Directions, mem *MemoryCache, store Store, m ResolverMetrics, logger *slog.Logger) *Resolver {
	return &Resolver{
		dir:     dir,
		mem:     mem,
		store:   store,
		metrics: m,
		logger:  logger.With("component", "leg_resolver"),
	}
}

// BuildLegs resolves every leg of a route snapshot. Custom legs keep their
// raw points, flight legs get generated arcs, everything else is routed by
// the directions provider.
func (r *Resolver) BuildLegs(ctx context.Context, waypoints []route.Waypoint, specs []LegSpec) ([]route.Leg, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 waypoints", route.ErrNotAnimatable)
	}
	if len(specs) != len(waypoints)-1 {
		return nil, fmt.Errorf("have %d legs for %d waypoints", len(specs), len(waypoints))
	}

	legs := make([]route.Leg, 0, len(specs))
	for i, spec := range specs {
		origin := waypoints[i].LatLng()
		dest := waypoints[i+1].LatLng()

		switch {
		case spec.Mode == route.ModeCustom || len(spec.CustomPoints) > 0:
			legs = append(legs, route.Leg{
				Mode:   route.ModeCustom,
				Source: route.CustomSource(spec.CustomPoints),
			})
		case spec.Mode == route.ModeFlight:
			legs = append(legs, route.Leg{
				Mode:   route.ModeFlight,
				Source: route.ArcSource(origin, dest),
			})
		default:
			legs = append(legs, r.resolveLeg(ctx, origin, dest, spec.Mode))
		}
	}
	return legs, nil
}

func (r *Resolver) resolveLeg(ctx context.Context, origin, dest geo.LatLng, mode route.Mode) route.Leg {
	res, err := r.resolve(ctx, origin, dest, mode)
	if err == nil {
		return route.Leg{Mode: mode, Source: route.ProviderSource(res.Points)}
	}

	if r.metrics != nil {
		r.metrics.ProviderErrorInc()
	}
	r.logger.Warn("provider resolution failed, degrading leg",
		"mode", mode, "error", err)

	// Ferry legs degrade to an arc; road legs to a straight line.
	if mode == route.ModeFerry {
		return route.Leg{Mode: mode, Source: route.ArcSource(origin, dest), Degraded: true}
	}
	return route.Leg{
		Mode:     mode,
		Source:   route.ProviderSource([]geo.LatLng{origin, dest}),
		Degraded: true,
	}
}

// resolve consults the memory tier, then the persistent tier (promoting hits
// to memory), then the provider (filling both tiers).
func (r *Resolver) resolve(ctx context.Context, origin, dest geo.LatLng, mode route.Mode) (RouteResult, error) {
	key := cacheKey(origin, dest, mode)

	if r.mem != nil {
		if res, ok := r.mem.Get(key); ok {
			if r.metrics != nil {
				r.metrics.CacheHit("memory")
			}
			return res, nil
		}
	}
	if r.store != nil {
		res, ok, err := r.store.Get(ctx, key)
		if err != nil {
			r.logger.Error("persistent cache read failed", "error", err)
		} else if ok {
			if r.metrics != nil {
				r.metrics.CacheHit("persistent")
			}
			if r.mem != nil {
				r.mem.Put(key, res)
			}
			return res, nil
		}
	}
	if r.metrics != nil {
		r.metrics.CacheMiss()
	}

	res, err := r.dir.Resolve(ctx, origin, dest, mode)
	if err != nil {
		return RouteResult{}, err
	}
	if r.mem != nil {
		r.mem.Put(key, res)
	}
	if r.store != nil {
		if err := r.store.Put(ctx, key, res); err != nil {
			r.logger.Error("persistent cache write failed", "error", err)
		}
	}
	return res, nil
}
