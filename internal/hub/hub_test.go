package hub

import (
	"encoding/json"
	"log/slog"
	"testing"

	"route-animator/internal/anim"
)

func TestHubFanoutPerSession(t *testing.T) {
	h := NewHub(slog.Default())

	a := NewClient("a", "s1")
	b := NewClient("b", "s2")
	h.Register(a)
	h.Register(b)

	h.Frame(anim.Frame{SessionID: "s1", ProgressPercent: 50})

	select {
	case raw := <-a.Send:
		var env struct {
			Type    string     `json:"type"`
			Payload anim.Frame `json:"payload"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if env.Type != "frame" || env.Payload.ProgressPercent != 50 {
			t.Errorf("got %+v", env)
		}
	default:
		t.Fatal("client a received nothing")
	}

	select {
	case <-b.Send:
		t.Fatal("client b should not receive s1 frames")
	default:
	}
}

func TestHubSlowClientDropsFrames(t *testing.T) {
	h := NewHub(slog.Default())
	c := NewClient("slow", "s1")
	h.Register(c)

	// Saturate the buffer well beyond capacity; must not block.
	for i := 0; i < clientBufferSize*2; i++ {
		h.Frame(anim.Frame{SessionID: "s1", ProgressPercent: float64(i)})
	}
	if got := len(c.Send); got != clientBufferSize {
		t.Errorf("buffered = %d, want %d", got, clientBufferSize)
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	h := NewHub(slog.Default())
	c := NewClient("a", "s1")
	h.Register(c)
	h.Unregister(c)

	if _, open := <-c.Send; open {
		t.Error("Send should be closed after unregister")
	}

	// Double unregister must not panic on a closed channel.
	h.Unregister(c)

	// Frames for an empty session are discarded.
	h.Frame(anim.Frame{SessionID: "s1"})
}

func TestHubCloseSession(t *testing.T) {
	h := NewHub(slog.Default())
	a := NewClient("a", "s1")
	b := NewClient("b", "s1")
	h.Register(a)
	h.Register(b)

	h.CloseSession("s1")
	if _, open := <-a.Send; open {
		t.Error("a.Send should be closed")
	}
	if _, open := <-b.Send; open {
		t.Error("b.Send should be closed")
	}
}
