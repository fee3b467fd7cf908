package anim

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"route-animator/internal/geo"
	"route-animator/internal/path"
	"route-animator/internal/route"
)

func testManager(check StartCheck) (*Manager, *recordingNotifier) {
	n := &recordingNotifier{}
	m := NewManager(2*time.Millisecond, n, check, nil, slog.Default())
	return m, n
}

func managedWalkSession(t *testing.T, m *Manager) *Session {
	t.Helper()
	s := m.Create()
	a := geo.LatLng{Lat: 0, Lng: 0}
	b := geo.LatLng{Lat: 0, Lng: 0.01}
	flat := path.Build([]route.Leg{
		{Mode: route.ModeWalk, Source: route.ProviderSource(line(a, b, 10))},
	})
	cum := geo.CumDistances(flat.Points)
	s.SetRoute(path.Optimize(flat, cum[len(cum)-1]))
	return s
}

func TestManagerLifecycle(t *testing.T) {
	m, _ := testManager(nil)
	defer m.Shutdown()

	s := managedWalkSession(t, m)
	if _, ok := m.Get(s.ID); !ok {
		t.Fatal("created session not retrievable")
	}

	if err := m.Play(context.Background(), s.ID); err != nil {
		t.Fatalf("Play = %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := s.Snapshot().ProgressPercent; got <= 0 {
		t.Fatal("loop did not advance progress")
	}

	if err := m.Pause(s.ID); err != nil {
		t.Fatalf("Pause = %v", err)
	}
	atPause := s.Snapshot().ProgressPercent
	time.Sleep(20 * time.Millisecond)
	if got := s.Snapshot().ProgressPercent; got != atPause {
		t.Errorf("progress advanced while paused: %f -> %f", atPause, got)
	}

	if err := m.Resume(s.ID); err != nil {
		t.Fatalf("Resume = %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if got := s.Snapshot().ProgressPercent; got <= atPause {
		t.Errorf("progress did not advance after resume: %f -> %f", atPause, got)
	}

	if err := m.Stop(s.ID); err != nil {
		t.Fatalf("Stop = %v", err)
	}
	if got := s.Snapshot().State; got != StateStopped {
		t.Errorf("state = %q, want stopped", got)
	}

	m.Remove(s.ID)
	if _, ok := m.Get(s.ID); ok {
		t.Error("removed session still retrievable")
	}
}

func TestManagerUnknownSession(t *testing.T) {
	m, _ := testManager(nil)
	defer m.Shutdown()

	if err := m.Play(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Play unknown = %v, want ErrSessionNotFound", err)
	}
	if err := m.Stop("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Stop unknown = %v, want ErrSessionNotFound", err)
	}
}

func TestManagerRateLimit(t *testing.T) {
	denied := func(ctx context.Context) (bool, error) { return false, nil }
	m, _ := testManager(denied)
	defer m.Shutdown()

	s := managedWalkSession(t, m)
	if err := m.Play(context.Background(), s.ID); !errors.Is(err, ErrStartDenied) {
		t.Fatalf("Play = %v, want ErrStartDenied", err)
	}
	if got := s.Snapshot().State; got != StateIdle {
		t.Errorf("state after denial = %q, want idle", got)
	}
}

func TestSpeedLadderMonotonic(t *testing.T) {
	prevWhole, prevFollow := 0.0, 0.0
	for _, km := range []float64{1, 20, 200, 2000} {
		whole := baseSpeedMps(km, "whole")
		follow := baseSpeedMps(km, "follow")
		if whole < prevWhole || follow < prevFollow {
			t.Fatalf("ladder not monotonic at %f km", km)
		}
		if follow >= whole {
			t.Errorf("follow speed %f should be below whole speed %f at %f km", follow, whole, km)
		}
		prevWhole, prevFollow = whole, follow
	}
}

func TestZoomMultiplierBounds(t *testing.T) {
	for _, z := range []float64{0, 5, 12, 18, 25} {
		m := zoomMultiplier(z)
		if m < minZoomMultiplier || m > maxZoomMultiplier {
			t.Errorf("zoomMultiplier(%f) = %f outside bounds", z, m)
		}
	}
	if zoomMultiplier(12) != 1 {
		t.Errorf("multiplier at pivot = %f, want 1", zoomMultiplier(12))
	}
	if zoomMultiplier(8) <= zoomMultiplier(16) {
		t.Error("zoomed-out views should move faster than zoomed-in views")
	}
}
