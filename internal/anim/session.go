package anim

import (
	"context"
	"errors"
	"sync"
	"time"

	"route-animator/internal/camera"
	"route-animator/internal/geo"
	"route-animator/internal/marker"
	"route-animator/internal/path"
	"route-animator/internal/route"
)

// State is the playback state machine position:
// idle -> playing -> {paused <-> playing} -> stopped (-> idle on new route).
type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

// ErrStartDenied is returned by Play when the injected rate-limit check
// refuses an animation start.
var ErrStartDenied = errors.New("animation start denied by rate limit")

// StartCheck is the injected rate-limit predicate awaited by Play. The
// policy behind it belongs to the surrounding application.
type StartCheck func(ctx context.Context) (bool, error)

// Frame is one animation frame emitted to the notification channel.
type Frame struct {
	SessionID       string        `json:"sessionId"`
	Timestamp       time.Time     `json:"timestamp"`
	Position        geo.LatLng    `json:"position"`
	BearingDeg      float64       `json:"bearingDeg"`
	ProgressPercent float64       `json:"progressPercent"`
	Mode            route.Mode    `json:"mode"`
	Marker          marker.Visual `json:"marker"`
	// Camera is set in follow mode: the client should recenter (and, right
	// after a view switch, re-zoom) to it.
	Camera *camera.View `json:"camera,omitempty"`
}

// StateChange announces a playback state transition.
type StateChange struct {
	SessionID       string     `json:"sessionId"`
	State           State      `json:"state"`
	ProgressPercent float64    `json:"progressPercent"`
	Mode            route.Mode `json:"mode,omitempty"`
}

// Notifier receives frames and state transitions for the surrounding UI.
type Notifier interface {
	Frame(Frame)
	StateChange(StateChange)
}

// DefaultFrameInterval approximates a 30 fps display refresh.
const DefaultFrameInterval = 33 * time.Millisecond

// DefaultMaxFrameGap is the anomalous-gap cutoff: a tick arriving later than
// this after the previous one moves the clock but not the marker, so a
// stalled driver cannot produce one enormous catch-up jump.
const DefaultMaxFrameGap = time.Second

// Session owns the animation state for one route. It is the single writer of
// progress; external mutators (seek/pause/resume/stop) leave the state
// consistent before returning. Tick is driven by an external loop, which
// keeps the control flow testable without a display refresh signal.
type Session struct {
	ID string

	mu  sync.Mutex
	gen uint64

	flat        path.Flattened
	cum         []float64
	totalMeters float64

	state    State
	progress float64 // percent, [0,100]
	mode     route.Mode

	viewMode      camera.ViewMode
	speed         PlaybackSpeed
	zoom          float64
	pendingFollow bool // apply follow zoom once on the next frame

	lastTick time.Time
	maxGap   time.Duration
	notifier Notifier
}

// NewSession returns an idle session with no route.
func NewSession(id string, notifier Notifier) *Session {
	return &Session{
		ID:       id,
		state:    StateIdle,
		viewMode: camera.ViewWhole,
		speed:    SpeedMedium,
		zoom:     zoomPivot,
		maxGap:   DefaultMaxFrameGap,
		notifier: notifier,
	}
}

// SetRoute installs a freshly built path, advancing the generation so any
// pending tick issued under the old route becomes a no-op. State returns to
// idle and progress to zero.
func (s *Session) SetRoute(flat path.Flattened) {
	s.mu.Lock()
	s.gen++
	s.flat = flat
	s.cum = geo.CumDistances(flat.Points)
	s.totalMeters = 0
	if len(s.cum) > 0 {
		s.totalMeters = s.cum[len(s.cum)-1]
	}
	s.state = StateIdle
	s.progress = 0
	s.mode = ""
	if m, ok := flat.ModeAt(0); ok {
		s.mode = m
	}
	s.lastTick = time.Time{}
	change := s.stateChangeLocked()
	s.mu.Unlock()
	s.notify(nil, &change)
}

// Generation returns the current route generation. Scheduled work captures
// it and passes it back to Tick, which drops stale invocations.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// State returns a snapshot of the externally visible animation state.
func (s *Session) Snapshot() StateChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateChangeLocked()
}

// TotalMeters returns the resampled path's total length.
func (s *Session) TotalMeters() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalMeters
}

// Play starts playback from the beginning. It refuses degenerate routes with
// route.ErrNotAnimatable and awaits the rate-limit check before any state
// changes, so a denied start leaves the machine exactly where it was.
func (s *Session) Play(ctx context.Context, check StartCheck) error {
	s.mu.Lock()
	if s.state == StatePlaying || s.state == StatePaused {
		s.mu.Unlock()
		return nil
	}
	if !s.flat.Animatable() || s.totalMeters <= 0 {
		s.mu.Unlock()
		return route.ErrNotAnimatable
	}
	gen := s.gen
	s.mu.Unlock()

	if check != nil {
		ok, err := check(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrStartDenied
		}
	}

	s.mu.Lock()
	// The route may have been swapped while the check was in flight.
	if s.gen != gen || s.state == StatePlaying || s.state == StatePaused {
		s.mu.Unlock()
		return nil
	}
	s.state = StatePlaying
	s.progress = 0
	s.lastTick = time.Time{}
	change := s.stateChangeLocked()
	s.mu.Unlock()
	s.notify(nil, &change)
	return nil
}

// Pause halts frame scheduling, retaining progress and the built path.
// Pausing when not playing is a no-op.
func (s *Session) Pause() {
	s.mu.Lock()
	if s.state != StatePlaying {
		s.mu.Unlock()
		return
	}
	s.state = StatePaused
	change := s.stateChangeLocked()
	s.mu.Unlock()
	s.notify(nil, &change)
}

// Resume continues playback from the retained progress. It never resets to
// zero; resuming when not paused is a no-op.
func (s *Session) Resume() {
	s.mu.Lock()
	if s.state != StatePaused {
		s.mu.Unlock()
		return
	}
	s.state = StatePlaying
	s.lastTick = time.Time{}
	change := s.stateChangeLocked()
	s.mu.Unlock()
	s.notify(nil, &change)
}

// Stop ends playback from any state and rewinds progress. Stopping an
// already-stopped or idle session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateStopped || s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.progress = 0
	change := s.stateChangeLocked()
	s.mu.Unlock()
	s.notify(nil, &change)
}

// Seek jumps to an arbitrary progress percentage, repositioning the marker
// synchronously. Scrubbing while playing forces a pause: the user wants to
// inspect a point in time, not keep racing forward.
func (s *Session) Seek(progressPercent float64) {
	s.mu.Lock()
	if !s.flat.Animatable() {
		s.mu.Unlock()
		return
	}
	if progressPercent < 0 {
		progressPercent = 0
	} else if progressPercent > 100 {
		progressPercent = 100
	}
	var change *StateChange
	if s.state == StatePlaying {
		s.state = StatePaused
		c := s.stateChangeLocked()
		change = &c
	}
	s.progress = progressPercent
	frame := s.frameLocked(time.Now())
	s.mu.Unlock()
	s.notify(&frame, change)
}

// SetViewMode switches between follow and whole-route framing. Switching to
// follow while playing defers the camera jump to the next frame to avoid a
// visible mid-frame snap; while not playing it emits a centering frame
// immediately.
func (s *Session) SetViewMode(vm camera.ViewMode) {
	if !vm.Valid() {
		return
	}
	s.mu.Lock()
	if s.viewMode == vm {
		s.mu.Unlock()
		return
	}
	s.viewMode = vm
	var frame *Frame
	if vm == camera.ViewFollow {
		if s.state == StatePlaying {
			s.pendingFollow = true
		} else if s.flat.Animatable() {
			s.zoom = camera.FollowZoom(s.totalMeters / 1000)
			f := s.frameLocked(time.Now())
			frame = &f
		}
	} else {
		s.pendingFollow = false
	}
	s.mu.Unlock()
	s.notify(frame, nil)
}

// FitView frames the whole installed route for the given viewport.
func (s *Session) FitView(vp camera.Viewport) camera.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return camera.FitWholeRoute(nil, s.flat.Points, vp)
}

// ViewMode returns the current framing mode.
func (s *Session) ViewMode() camera.ViewMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewMode
}

// SetPlaybackSpeed selects the user speed multiplier.
func (s *Session) SetPlaybackSpeed(sp PlaybackSpeed) {
	if !sp.Valid() {
		return
	}
	s.mu.Lock()
	s.speed = sp
	s.mu.Unlock()
}

// SetZoom records the client-reported map zoom, which feeds the speed
// multiplier and the marker scale.
func (s *Session) SetZoom(zoom float64) {
	s.mu.Lock()
	s.zoom = zoom
	s.mu.Unlock()
}

// Tick advances the animation one frame. The caller passes the generation it
// captured when it began scheduling; a stale generation is silently dropped.
// The return value reports whether further ticks should be scheduled.
func (s *Session) Tick(now time.Time, gen uint64) bool {
	s.mu.Lock()
	if gen != s.gen || s.state != StatePlaying {
		s.mu.Unlock()
		return false
	}

	if s.lastTick.IsZero() {
		// First frame after play/resume establishes the clock.
		s.lastTick = now
		frame := s.frameLocked(now)
		s.mu.Unlock()
		s.notify(&frame, nil)
		return true
	}

	gap := now.Sub(s.lastTick)
	s.lastTick = now
	if gap <= 0 {
		s.mu.Unlock()
		return true
	}
	if gap > s.maxGap {
		// Backgrounded driver: move the clock, not the marker.
		s.mu.Unlock()
		return true
	}

	mps := baseSpeedMps(s.totalMeters/1000, s.viewMode) *
		zoomMultiplier(s.zoom) *
		s.speed.Multiplier()
	s.progress += mps * gap.Seconds() / s.totalMeters * 100
	if s.progress > 100 {
		s.progress = 100
	}

	frame := s.frameLocked(now)

	if s.progress >= 100 {
		s.state = StateStopped
		change := s.stateChangeLocked()
		s.mu.Unlock()
		s.notify(&frame, &change)
		return false
	}
	s.mu.Unlock()
	s.notify(&frame, nil)
	return true
}

// frameLocked resolves position, mode, marker and camera for the current
// progress. Caller holds s.mu.
func (s *Session) frameLocked(now time.Time) Frame {
	dist := s.totalMeters * s.progress / 100
	pos, seg := geo.PositionAtDistance(s.flat.Points, s.cum, dist)

	if m, ok := s.flat.ModeAt(seg); ok {
		s.mode = m
	}

	bearing := 0.0
	if seg+1 < len(s.flat.Points) {
		bearing = geo.BearingDeg(s.flat.Points[seg], s.flat.Points[seg+1])
	} else if seg > 0 {
		bearing = geo.BearingDeg(s.flat.Points[seg-1], s.flat.Points[seg])
	}

	f := Frame{
		SessionID:       s.ID,
		Timestamp:       now,
		Position:        pos,
		BearingDeg:      bearing,
		ProgressPercent: s.progress,
		Mode:            s.mode,
		Marker:          marker.For(s.mode, s.zoom),
	}
	if s.viewMode == camera.ViewFollow {
		zoom := s.zoom
		if s.pendingFollow {
			zoom = camera.FollowZoom(s.totalMeters / 1000)
			s.zoom = zoom
			s.pendingFollow = false
		}
		f.Camera = &camera.View{Center: pos, Zoom: zoom}
	}
	return f
}

func (s *Session) stateChangeLocked() StateChange {
	return StateChange{
		SessionID:       s.ID,
		State:           s.state,
		ProgressPercent: s.progress,
		Mode:            s.mode,
	}
}

// notify delivers events outside the session lock.
func (s *Session) notify(f *Frame, c *StateChange) {
	if s.notifier == nil {
		return
	}
	if c != nil {
		s.notifier.StateChange(*c)
	}
	if f != nil {
		s.notifier.Frame(*f)
	}
}
