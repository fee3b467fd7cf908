package anim

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// loopHandle identifies one frame loop so a finished loop only clears its
// own registration, never a successor's.
type loopHandle struct {
	cancel context.CancelFunc
}

// ErrSessionNotFound is returned by manager operations on unknown ids.
var ErrSessionNotFound = errors.New("session not found")

// LoopMetrics is implemented by the metrics collector; nil disables
// instrumentation.
type LoopMetrics interface {
	SessionOpened()
	SessionClosed()
	FrameTicked(d time.Duration)
	StartDenied()
}

// Manager owns the live animation sessions and drives each playing session
// with a single-shot frame loop. One loop goroutine exists per playing
// session; pause, stop, seek and route swaps all terminate it, and resume
// starts a fresh one.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	loops    map[string]*loopHandle
	wg       sync.WaitGroup

	interval time.Duration
	notifier Notifier
	check    StartCheck
	metrics  LoopMetrics
	logger   *slog.Logger
}

func NewManager(interval time.Duration, notifier Notifier, check StartCheck, m LoopMetrics, logger *slog.Logger) *Manager {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Manager{
		sessions: make(map[string]*Session),
		loops:    make(map[string]*loopHandle),
		interval: interval,
		notifier: notifier,
		check:    check,
		metrics:  m,
		logger:   logger.With("component", "anim_manager"),
	}
}

// Create allocates a new idle session.
func (m *Manager) Create() *Session {
	s := NewSession(uuid.NewString(), m.notifier)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.SessionOpened()
	}
	m.logger.Info("session created", "session_id", s.ID)
	return s
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove stops and discards a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.cancelLoop(id)
	s.Stop()
	if m.metrics != nil {
		m.metrics.SessionClosed()
	}
	m.logger.Info("session removed", "session_id", id)
}

// Play starts playback for the session, consulting the rate-limit check
// before the state machine moves.
func (m *Manager) Play(ctx context.Context, id string) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	if err := s.Play(ctx, m.check); err != nil {
		if err == ErrStartDenied && m.metrics != nil {
			m.metrics.StartDenied()
		}
		return err
	}
	m.startLoop(s)
	return nil
}

// Resume restarts the frame loop from the retained progress.
func (m *Manager) Resume(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	s.Resume()
	if s.Snapshot().State == StatePlaying {
		m.startLoop(s)
	}
	return nil
}

// Pause cancels the frame loop and retains progress.
func (m *Manager) Pause(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	m.cancelLoop(id)
	s.Pause()
	return nil
}

// Stop cancels the frame loop and rewinds. Idempotent.
func (m *Manager) Stop(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	m.cancelLoop(id)
	s.Stop()
	return nil
}

// startLoop begins the per-session frame loop. Any previous loop for the
// session is cancelled first so only one writer ever advances progress.
func (m *Manager) startLoop(s *Session) {
	m.cancelLoop(s.ID)

	ctx, cancel := context.WithCancel(context.Background())
	handle := &loopHandle{cancel: cancel}
	m.mu.Lock()
	m.loops[s.ID] = handle
	m.mu.Unlock()

	gen := s.Generation()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.clearLoop(s.ID, handle)
		tick := time.NewTicker(m.interval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-tick.C:
				start := time.Now()
				cont := s.Tick(now, gen)
				if m.metrics != nil {
					m.metrics.FrameTicked(time.Since(start))
				}
				if !cont {
					return
				}
			}
		}
	}()
}

func (m *Manager) cancelLoop(id string) {
	m.mu.Lock()
	handle, ok := m.loops[id]
	if ok {
		delete(m.loops, id)
	}
	m.mu.Unlock()
	if ok {
		handle.cancel()
	}
}

// clearLoop drops the loop entry only if it still belongs to this loop.
func (m *Manager) clearLoop(id string, handle *loopHandle) {
	m.mu.Lock()
	if existing, ok := m.loops[id]; ok && existing == handle {
		delete(m.loops, id)
	}
	m.mu.Unlock()
}

// Shutdown cancels every frame loop and waits for them to exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for id, handle := range m.loops {
		handle.cancel()
		delete(m.loops, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
