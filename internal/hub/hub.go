// Package hub fans animation frames out to websocket clients. Clients attach
// to one session; slow clients drop frames rather than stalling the
// animation loop.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"route-animator/internal/anim"
)

const clientBufferSize = 64

// Client is one websocket subscriber attached to a session stream.
type Client struct {
	ID        string
	SessionID string
	Send      chan []byte
}

func NewClient(id, sessionID string) *Client {
	return &Client{
		ID:        id,
		SessionID: sessionID,
		Send:      make(chan []byte, clientBufferSize),
	}
}

// Hub indexes clients by session and implements anim.Notifier.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Client]struct{}
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]map[*Client]struct{}),
		logger:   logger.With("component", "hub"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	clients, ok := h.sessions[c.SessionID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.sessions[c.SessionID] = clients
	}
	clients[c] = struct{}{}
	total := len(clients)
	h.mu.Unlock()
	h.logger.Debug("client registered", "client_id", c.ID, "session_id", c.SessionID, "session_clients", total)
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if clients, ok := h.sessions[c.SessionID]; ok {
		if _, present := clients[c]; present {
			delete(clients, c)
			close(c.Send)
		}
		if len(clients) == 0 {
			delete(h.sessions, c.SessionID)
		}
	}
	h.mu.Unlock()
}

// CloseSession disconnects every client of a removed session.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	clients := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	h.mu.Unlock()
	for c := range clients {
		close(c.Send)
	}
}

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Frame implements anim.Notifier.
func (h *Hub) Frame(f anim.Frame) {
	h.send(f.SessionID, envelope{Type: "frame", Payload: f})
}

// StateChange implements anim.Notifier.
func (h *Hub) StateChange(c anim.StateChange) {
	h.send(c.SessionID, envelope{Type: "state", Payload: c})
}

func (h *Hub) send(sessionID string, env envelope) {
	h.mu.RLock()
	clients := h.sessions[sessionID]
	if len(clients) == 0 {
		h.mu.RUnlock()
		return
	}
	b, err := json.Marshal(env)
	if err != nil {
		h.mu.RUnlock()
		h.logger.Error("marshal failed", "session_id", sessionID, "error", err)
		return
	}
	for c := range clients {
		select {
		case c.Send <- b:
		default:
			// client too slow, drop the frame
		}
	}
	h.mu.RUnlock()
}
