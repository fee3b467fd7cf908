package anim

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"route-animator/internal/camera"
	"route-animator/internal/geo"
	"route-animator/internal/path"
	"route-animator/internal/route"
)

type recordingNotifier struct {
	mu     sync.Mutex
	frames []Frame
	states []StateChange
}

func (r *recordingNotifier) Frame(f Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

func (r *recordingNotifier) StateChange(c StateChange) {
	r.mu.Lock()
	r.states = append(r.states, c)
	r.mu.Unlock()
}

func (r *recordingNotifier) lastFrame() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return Frame{}, false
	}
	return r.frames[len(r.frames)-1], true
}

func line(from, to geo.LatLng, n int) []geo.LatLng {
	pts := make([]geo.LatLng, 0, n+1)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		pts = append(pts, geo.LatLng{
			Lat: from.Lat + (to.Lat-from.Lat)*t,
			Lng: from.Lng + (to.Lng-from.Lng)*t,
		})
	}
	return pts
}

// walkSession builds a playable session over A=(0,0) -> B=(0,0.01).
func walkSession(t *testing.T) (*Session, *recordingNotifier) {
	t.Helper()
	a := geo.LatLng{Lat: 0, Lng: 0}
	b := geo.LatLng{Lat: 0, Lng: 0.01}
	flat := path.Build([]route.Leg{
		{Mode: route.ModeWalk, Source: route.ProviderSource(line(a, b, 10))},
	})
	cum := geo.CumDistances(flat.Points)
	opt := path.Optimize(flat, cum[len(cum)-1])

	n := &recordingNotifier{}
	s := NewSession("test", n)
	s.SetRoute(opt)
	return s, n
}

func play(t *testing.T, s *Session) {
	t.Helper()
	if err := s.Play(context.Background(), nil); err != nil {
		t.Fatalf("Play = %v, want nil", err)
	}
}

// drive ticks the session at a fixed cadence until it stops or maxTicks is
// reached, returning the number of ticks delivered.
func drive(t *testing.T, s *Session, step time.Duration, maxTicks int) int {
	t.Helper()
	gen := s.Generation()
	now := time.Unix(0, 0)
	for i := 0; i < maxTicks; i++ {
		if !s.Tick(now, gen) {
			return i
		}
		now = now.Add(step)
	}
	return maxTicks
}

func TestTotalDistanceScenario(t *testing.T) {
	s, _ := walkSession(t)
	total := s.TotalMeters()
	if total < 1113*0.95 || total > 1113*1.05 {
		t.Errorf("total distance = %f, want ~1113", total)
	}
}

func TestPlayRefusesDegenerateRoute(t *testing.T) {
	n := &recordingNotifier{}
	s := NewSession("degenerate", n)

	if err := s.Play(context.Background(), nil); !errors.Is(err, route.ErrNotAnimatable) {
		t.Fatalf("Play without route = %v, want ErrNotAnimatable", err)
	}
	if got := s.Snapshot().State; got != StateIdle {
		t.Errorf("state = %q, want idle", got)
	}

	// All waypoints at the same coordinate yields a zero-length path.
	p := geo.LatLng{Lat: 5, Lng: 5}
	s.SetRoute(path.Build([]route.Leg{
		{Mode: route.ModeWalk, Source: route.ProviderSource([]geo.LatLng{p, p})},
	}))
	if err := s.Play(context.Background(), nil); !errors.Is(err, route.ErrNotAnimatable) {
		t.Fatalf("Play on zero-length route = %v, want ErrNotAnimatable", err)
	}
	if got := s.Snapshot().State; got != StateIdle {
		t.Errorf("state = %q, want idle", got)
	}
}

func TestPlayAwaitsRateLimitCheck(t *testing.T) {
	s, _ := walkSession(t)

	denied := func(ctx context.Context) (bool, error) { return false, nil }
	if err := s.Play(context.Background(), denied); !errors.Is(err, ErrStartDenied) {
		t.Fatalf("Play = %v, want ErrStartDenied", err)
	}
	if got := s.Snapshot().State; got != StateIdle {
		t.Errorf("state after denial = %q, want idle", got)
	}

	checkErr := errors.New("quota backend down")
	failing := func(ctx context.Context) (bool, error) { return false, checkErr }
	if err := s.Play(context.Background(), failing); !errors.Is(err, checkErr) {
		t.Fatalf("Play = %v, want the check error", err)
	}

	allowed := func(ctx context.Context) (bool, error) { return true, nil }
	if err := s.Play(context.Background(), allowed); err != nil {
		t.Fatalf("Play with allowing check = %v, want nil", err)
	}
	if got := s.Snapshot().State; got != StatePlaying {
		t.Errorf("state = %q, want playing", got)
	}
}

func TestMonotonicCompletion(t *testing.T) {
	s, n := walkSession(t)
	play(t, s)

	drive(t, s, 100*time.Millisecond, 100000)

	snap := s.Snapshot()
	if snap.State != StateStopped {
		t.Fatalf("state = %q, want stopped", snap.State)
	}
	if snap.ProgressPercent != 100 {
		t.Errorf("final progress = %f, want exactly 100", snap.ProgressPercent)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	prev := -1.0
	for i, f := range n.frames {
		if f.ProgressPercent < prev {
			t.Fatalf("frame %d progress %f decreased from %f", i, f.ProgressPercent, prev)
		}
		prev = f.ProgressPercent
	}
	last := n.frames[len(n.frames)-1]
	if last.ProgressPercent != 100 {
		t.Errorf("last frame progress = %f, want 100", last.ProgressPercent)
	}
	end := geo.LatLng{Lat: 0, Lng: 0.01}
	if last.Position != end {
		t.Errorf("final position = %+v, want %+v", last.Position, end)
	}
}

func TestTickDropsStaleGeneration(t *testing.T) {
	s, _ := walkSession(t)
	play(t, s)
	stale := s.Generation()

	// A new snapshot arrives while a frame is pending.
	a := geo.LatLng{Lat: 1, Lng: 1}
	b := geo.LatLng{Lat: 1, Lng: 1.01}
	s.SetRoute(path.Build([]route.Leg{
		{Mode: route.ModeCar, Source: route.ProviderSource(line(a, b, 4))},
	}))

	if s.Tick(time.Now(), stale) {
		t.Error("stale-generation tick should be dropped")
	}
	if got := s.Snapshot().ProgressPercent; got != 0 {
		t.Errorf("stale tick mutated progress to %f", got)
	}
}

func TestAnomalousFrameGapSkipped(t *testing.T) {
	s, _ := walkSession(t)
	play(t, s)
	gen := s.Generation()

	now := time.Unix(0, 0)
	s.Tick(now, gen) // establishes the clock
	s.Tick(now.Add(50*time.Millisecond), gen)
	moved := s.Snapshot().ProgressPercent
	if moved <= 0 {
		t.Fatal("normal frame should advance progress")
	}

	// Tab was backgrounded for a minute: no runaway jump.
	s.Tick(now.Add(50*time.Millisecond+time.Minute), gen)
	if got := s.Snapshot().ProgressPercent; got != moved {
		t.Errorf("anomalous gap advanced progress %f -> %f", moved, got)
	}
}

func TestPauseResumePreservesProgress(t *testing.T) {
	s, _ := walkSession(t)
	play(t, s)
	drive(t, s, 100*time.Millisecond, 10)

	s.Pause()
	atPause := s.Snapshot().ProgressPercent
	if atPause <= 0 {
		t.Fatal("expected progress before pausing")
	}

	// Pausing again changes nothing.
	s.Pause()
	if got := s.Snapshot(); got.State != StatePaused || got.ProgressPercent != atPause {
		t.Errorf("second pause changed state: %+v", got)
	}

	s.Resume()
	snap := s.Snapshot()
	if snap.State != StatePlaying {
		t.Fatalf("state after resume = %q, want playing", snap.State)
	}
	if snap.ProgressPercent != atPause {
		t.Errorf("resume moved progress %f -> %f", atPause, snap.ProgressPercent)
	}
}

func TestStopIdempotent(t *testing.T) {
	s, _ := walkSession(t)
	play(t, s)
	drive(t, s, 100*time.Millisecond, 5)

	s.Stop()
	first := s.Snapshot()
	if first.State != StateStopped {
		t.Fatalf("state = %q, want stopped", first.State)
	}
	s.Stop()
	if second := s.Snapshot(); second != first {
		t.Errorf("second stop changed state: %+v -> %+v", first, second)
	}
}

func TestSeekScenario(t *testing.T) {
	s, n := walkSession(t)
	play(t, s)

	end := geo.LatLng{Lat: 0, Lng: 0.01}
	prevLng := -1.0
	for p := 0.0; p <= 100; p += 10 {
		s.Seek(p)
		f, ok := n.lastFrame()
		if !ok {
			t.Fatal("seek emitted no frame")
		}
		if f.ProgressPercent != p {
			t.Errorf("seek(%f): progress = %f", p, f.ProgressPercent)
		}
		if f.Position.Lng < prevLng {
			t.Errorf("seek(%f): position moved backwards", p)
		}
		prevLng = f.Position.Lng
	}
	f, _ := n.lastFrame()
	if f.Position != end {
		t.Errorf("seek(100) position = %+v, want %+v", f.Position, end)
	}

	// Scrubbing while playing forces a pause.
	snap := s.Snapshot()
	if snap.State != StatePaused {
		t.Errorf("state after scrub = %q, want paused", snap.State)
	}
}

func TestSeekClampsAndNoOpsWithoutRoute(t *testing.T) {
	s, n := walkSession(t)
	s.Seek(250)
	if got := s.Snapshot().ProgressPercent; got != 100 {
		t.Errorf("seek(250) progress = %f, want 100", got)
	}
	s.Seek(-5)
	if got := s.Snapshot().ProgressPercent; got != 0 {
		t.Errorf("seek(-5) progress = %f, want 0", got)
	}

	empty := NewSession("empty", n)
	empty.Seek(50) // must not panic or emit
	if got := empty.Snapshot().ProgressPercent; got != 0 {
		t.Errorf("seek on empty session moved progress to %f", got)
	}
}

func TestTwoLegModeTransition(t *testing.T) {
	a := geo.LatLng{Lat: 0, Lng: 0}
	b := geo.LatLng{Lat: 0, Lng: 0.01}
	c := geo.LatLng{Lat: 0.01, Lng: 0.01}
	flat := path.Build([]route.Leg{
		{Mode: route.ModeWalk, Source: route.ProviderSource(line(a, b, 10))},
		{Mode: route.ModeCar, Source: route.ProviderSource(line(b, c, 10))},
	})
	cum := geo.CumDistances(flat.Points)
	opt := path.Optimize(flat, cum[len(cum)-1])

	n := &recordingNotifier{}
	s := NewSession("twoleg", n)
	s.SetRoute(opt)

	s.Seek(10)
	if f, _ := n.lastFrame(); f.Mode != route.ModeWalk {
		t.Errorf("mode at 10%% = %q, want walk", f.Mode)
	}
	s.Seek(90)
	if f, _ := n.lastFrame(); f.Mode != route.ModeCar {
		t.Errorf("mode at 90%% = %q, want car", f.Mode)
	}

	// Played through, the switch must be detected within one frame of
	// crossing the leg boundary.
	s.Seek(0)
	play(t, s)
	gen := s.Generation()
	now := time.Unix(0, 0)
	lastMode := route.ModeWalk
	transitionProgress := -1.0
	for i := 0; i < 100000; i++ {
		if !s.Tick(now, gen) {
			break
		}
		now = now.Add(100 * time.Millisecond)
		f, ok := n.lastFrame()
		if ok && f.Mode != lastMode {
			transitionProgress = f.ProgressPercent
			lastMode = f.Mode
		}
	}
	if lastMode != route.ModeCar {
		t.Fatal("mode never transitioned to car")
	}
	if math.Abs(transitionProgress-50) > 5 {
		t.Errorf("transition detected at %f%%, want near the 50%% boundary", transitionProgress)
	}
}

func TestFollowModeCamera(t *testing.T) {
	s, n := walkSession(t)

	// Switching to follow while idle emits an immediate centering frame.
	s.SetViewMode(camera.ViewFollow)
	f, ok := n.lastFrame()
	if !ok || f.Camera == nil {
		t.Fatal("follow switch while idle should emit a camera frame")
	}
	if f.Camera.Zoom != camera.FollowZoom(s.TotalMeters()/1000) {
		t.Errorf("camera zoom = %f, want follow ladder value", f.Camera.Zoom)
	}

	play(t, s)
	drive(t, s, 100*time.Millisecond, 5)
	f, _ = n.lastFrame()
	if f.Camera == nil {
		t.Fatal("follow-mode frames must carry a camera")
	}
	if f.Camera.Center != f.Position {
		t.Errorf("camera center %+v should track position %+v", f.Camera.Center, f.Position)
	}

	// Whole view drops the per-frame camera.
	s.SetViewMode(camera.ViewWhole)
	drive(t, s, 100*time.Millisecond, 2)
	f, _ = n.lastFrame()
	if f.Camera != nil {
		t.Error("whole-view frames should not carry a camera")
	}
}

func TestPlaybackSpeedScalesProgress(t *testing.T) {
	run := func(sp PlaybackSpeed) float64 {
		s, _ := walkSession(t)
		s.SetPlaybackSpeed(sp)
		play(t, s)
		drive(t, s, 100*time.Millisecond, 10)
		return s.Snapshot().ProgressPercent
	}
	slow := run(SpeedSlow)
	fast := run(SpeedFast)
	if fast <= slow {
		t.Errorf("fast progress %f should exceed slow %f", fast, slow)
	}
}
