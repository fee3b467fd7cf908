package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"route-animator/internal/geo"
	"route-animator/internal/route"
)

// OSRMClient resolves legs against an OSRM-compatible routing endpoint.
// Transient failures (network errors, 5xx) are retried with exponential
// backoff while respecting context cancellation.
type OSRMClient struct {
	baseURL string
	client  *http.Client
}

func NewOSRMClient(baseURL string) *OSRMClient {
	return &OSRMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// profileFor maps travel modes onto OSRM routing profiles. Flight and ferry
// have no road profile; callers generate arcs for those instead of asking
// the provider.
func profileFor(mode route.Mode) string {
	switch mode {
	case route.ModeWalk:
		return "foot"
	case route.ModeBike:
		return "bike"
	default:
		return "driving"
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // [lng, lat]
		} `json:"geometry"`
	} `json:"routes"`
}

func (c *OSRMClient) Resolve(ctx context.Context, origin, dest geo.LatLng, mode route.Mode) (RouteResult, error) {
	url := fmt.Sprintf("%s/route/v1/%s/%f,%f;%f,%f?overview=full&geometries=geojson",
		c.baseURL, profileFor(mode), origin.Lng, origin.Lat, dest.Lng, dest.Lat)

	body, err := c.getWithRetry(ctx, url)
	if err != nil {
		return RouteResult{}, err
	}

	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return RouteResult{}, &ProviderError{Msg: fmt.Sprintf("decode response: %v", err)}
	}
	if parsed.Code != "Ok" || len(parsed.Routes) == 0 {
		return RouteResult{}, &ProviderError{Msg: fmt.Sprintf("no route (code %q)", parsed.Code)}
	}

	r := parsed.Routes[0]
	pts := make([]geo.LatLng, 0, len(r.Geometry.Coordinates))
	for _, c := range r.Geometry.Coordinates {
		if len(c) < 2 {
			continue
		}
		pts = append(pts, geo.LatLng{Lat: c[1], Lng: c[0]})
	}
	if len(pts) < 2 {
		return RouteResult{}, &ProviderError{Msg: "route geometry has fewer than 2 points"}
	}
	return RouteResult{
		Points:          pts,
		DistanceMeters:  r.Distance,
		DurationSeconds: r.Duration,
	}, nil
}

func (c *OSRMClient) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	const maxAttempts = 3
	backoff := 200 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, retryable, err := c.get(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable || attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (c *OSRMClient) get(ctx context.Context, url string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, &ProviderError{Msg: fmt.Sprintf("create request: %v", err)}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, &ProviderError{Msg: err.Error()}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, &ProviderError{Msg: fmt.Sprintf("read response: %v", err)}
	}
	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode >= 500, &ProviderError{
			Status: resp.StatusCode,
			Msg:    strings.TrimSpace(string(b)),
		}
	}
	return b, false, nil
}
