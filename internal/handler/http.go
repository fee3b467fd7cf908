// Package handler exposes the animation engine over HTTP: session lifecycle,
// route installation, playback controls and the websocket frame stream.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"route-animator/internal/anim"
	"route-animator/internal/camera"
	"route-animator/internal/geo"
	"route-animator/internal/hub"
	"route-animator/internal/path"
	"route-animator/internal/provider"
	"route-animator/internal/quota"
	"route-animator/internal/route"
)

type API struct {
	manager  *anim.Manager
	resolver *provider.Resolver
	hub      *hub.Hub
	logger   *slog.Logger
}

func NewAPI(manager *anim.Manager, resolver *provider.Resolver, h *hub.Hub, logger *slog.Logger) *API {
	return &API{
		manager:  manager,
		resolver: resolver,
		hub:      h,
		logger:   logger.With("component", "api"),
	}
}

// Routes registers every endpoint on a fresh mux.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/sessions", a.CreateSession)
	mux.HandleFunc("GET /v1/sessions/{id}", a.GetSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", a.DeleteSession)
	mux.HandleFunc("PUT /v1/sessions/{id}/route", a.SetRoute)

	mux.HandleFunc("POST /v1/sessions/{id}/play", a.Play)
	mux.HandleFunc("POST /v1/sessions/{id}/pause", a.Pause)
	mux.HandleFunc("POST /v1/sessions/{id}/resume", a.Resume)
	mux.HandleFunc("POST /v1/sessions/{id}/stop", a.Stop)
	mux.HandleFunc("POST /v1/sessions/{id}/seek", a.Seek)

	mux.HandleFunc("GET /v1/sessions/{id}/fit", a.FitView)
	mux.HandleFunc("PUT /v1/sessions/{id}/view", a.SetView)
	mux.HandleFunc("PUT /v1/sessions/{id}/speed", a.SetSpeed)
	mux.HandleFunc("PUT /v1/sessions/{id}/zoom", a.SetZoom)

	mux.HandleFunc("/v1/sessions/{id}/ws", a.ServeWS)

	mux.HandleFunc("GET /healthz", a.Healthz)

	return mux
}

type sessionResponse struct {
	SessionID       string     `json:"sessionId"`
	State           anim.State `json:"state"`
	ProgressPercent float64    `json:"progressPercent"`
	Mode            route.Mode `json:"mode,omitempty"`
	ViewMode        string     `json:"viewMode"`
	TotalMeters     float64    `json:"totalMeters"`
}

func sessionJSON(s *anim.Session) sessionResponse {
	snap := s.Snapshot()
	return sessionResponse{
		SessionID:       s.ID,
		State:           snap.State,
		ProgressPercent: snap.ProgressPercent,
		Mode:            snap.Mode,
		ViewMode:        string(s.ViewMode()),
		TotalMeters:     s.TotalMeters(),
	}
}

func (a *API) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := a.manager.Create()
	respondJSON(w, http.StatusCreated, sessionJSON(s))
}

func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.manager.Get(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, sessionJSON(s))
}

func (a *API) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := a.manager.Get(id); !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	a.manager.Remove(id)
	a.hub.CloseSession(id)
	w.WriteHeader(http.StatusNoContent)
}

type legRequest struct {
	Mode         string       `json:"mode"`
	CustomPoints []geo.LatLng `json:"customPoints,omitempty"`
}

type routeRequest struct {
	Waypoints []route.Waypoint `json:"waypoints"`
	Legs      []legRequest     `json:"legs"`
}

type routeResponse struct {
	sessionResponse
	PointCount   int   `json:"pointCount"`
	DegradedLegs []int `json:"degradedLegs,omitempty"`
}

// SetRoute resolves, validates, flattens and optimizes a route snapshot, then
// installs it on the session. Any playing animation is cut over by the route
// generation bump inside SetRoute.
func (a *API) SetRoute(w http.ResponseWriter, r *http.Request) {
	s, ok := a.manager.Get(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	specs := make([]provider.LegSpec, 0, len(req.Legs))
	for i, l := range req.Legs {
		mode := route.Mode(l.Mode)
		if !mode.Valid() {
			respondError(w, http.StatusBadRequest, "leg "+strconv.Itoa(i)+": unknown mode "+l.Mode)
			return
		}
		specs = append(specs, provider.LegSpec{Mode: mode, CustomPoints: l.CustomPoints})
	}

	legs, err := a.resolver.BuildLegs(r.Context(), req.Waypoints, specs)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, route.ErrNotAnimatable) {
			status = http.StatusUnprocessableEntity
		}
		respondError(w, status, err.Error())
		return
	}

	snapshot := route.Route{Waypoints: req.Waypoints, Legs: legs}
	if err := snapshot.Validate(); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, route.ErrNotAnimatable) {
			status = http.StatusUnprocessableEntity
		}
		respondError(w, status, err.Error())
		return
	}

	flat := path.Build(legs)
	cum := geo.CumDistances(flat.Points)
	total := 0.0
	if len(cum) > 0 {
		total = cum[len(cum)-1]
	}
	flat = path.Optimize(flat, total)
	s.SetRoute(flat)

	resp := routeResponse{sessionResponse: sessionJSON(s), PointCount: len(flat.Points)}
	for i, leg := range legs {
		if leg.Degraded {
			resp.DegradedLegs = append(resp.DegradedLegs, i)
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (a *API) Play(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := quota.WithCaller(r.Context(), callerID(r))
	if err := a.manager.Play(ctx, id); err != nil {
		switch {
		case errors.Is(err, anim.ErrSessionNotFound):
			respondError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, route.ErrNotAnimatable):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, anim.ErrStartDenied):
			respondError(w, http.StatusTooManyRequests, "daily animation start limit reached")
		default:
			a.logger.Error("play failed", "session_id", id, "error", err)
			respondError(w, http.StatusInternalServerError, "play failed")
		}
		return
	}
	a.respondSnapshot(w, id)
}

func (a *API) Pause(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.manager.Pause(id); err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	a.respondSnapshot(w, id)
}

func (a *API) Resume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.manager.Resume(id); err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	a.respondSnapshot(w, id)
}

func (a *API) Stop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.manager.Stop(id); err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	a.respondSnapshot(w, id)
}

type seekRequest struct {
	ProgressPercent float64 `json:"progressPercent"`
}

func (a *API) Seek(w http.ResponseWriter, r *http.Request) {
	s, ok := a.manager.Get(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	// Seeking while playing pauses the session, which also winds down its
	// frame loop via the next Tick.
	s.Seek(req.ProgressPercent)
	respondJSON(w, http.StatusOK, sessionJSON(s))
}

// FitView returns the camera placement that frames the whole route in the
// client's viewport.
func (a *API) FitView(w http.ResponseWriter, r *http.Request) {
	s, ok := a.manager.Get(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	width, errW := strconv.Atoi(r.URL.Query().Get("width"))
	height, errH := strconv.Atoi(r.URL.Query().Get("height"))
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		respondError(w, http.StatusBadRequest, "width and height query params must be positive integers")
		return
	}
	respondJSON(w, http.StatusOK, s.FitView(camera.Viewport{WidthPx: width, HeightPx: height}))
}

type viewRequest struct {
	ViewMode string `json:"viewMode"`
}

func (a *API) SetView(w http.ResponseWriter, r *http.Request) {
	s, ok := a.manager.Get(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	var req viewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	vm := camera.ViewMode(req.ViewMode)
	if !vm.Valid() {
		respondError(w, http.StatusBadRequest, "unknown view mode "+req.ViewMode)
		return
	}
	s.SetViewMode(vm)
	respondJSON(w, http.StatusOK, sessionJSON(s))
}

type speedRequest struct {
	Speed string `json:"speed"`
}

func (a *API) SetSpeed(w http.ResponseWriter, r *http.Request) {
	s, ok := a.manager.Get(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	var req speedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sp := anim.PlaybackSpeed(req.Speed)
	if !sp.Valid() {
		respondError(w, http.StatusBadRequest, "unknown speed "+req.Speed)
		return
	}
	s.SetPlaybackSpeed(sp)
	respondJSON(w, http.StatusOK, sessionJSON(s))
}

type zoomRequest struct {
	Zoom float64 `json:"zoom"`
}

func (a *API) SetZoom(w http.ResponseWriter, r *http.Request) {
	s, ok := a.manager.Get(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	var req zoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.SetZoom(req.Zoom)
	respondJSON(w, http.StatusOK, sessionJSON(s))
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) respondSnapshot(w http.ResponseWriter, id string) {
	s, ok := a.manager.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, sessionJSON(s))
}

// callerID identifies the caller for the daily start quota: an explicit
// header when the frontend supplies one, the peer address otherwise.
func callerID(r *http.Request) string {
	if v := r.Header.Get("X-Caller-ID"); v != "" {
		return v
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
