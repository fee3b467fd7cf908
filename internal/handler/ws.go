package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"route-animator/internal/hub"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

// ServeWS upgrades the connection and streams the session's frames and state
// changes until either side closes. The first message is the current state so
// late joiners render something before the next frame.
func (a *API) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s, ok := a.manager.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		a.logger.Error("websocket accept failed", "session_id", id, "error", err)
		return
	}

	client := hub.NewClient(uuid.NewString(), id)
	a.hub.Register(client)

	if snapshot, err := json.Marshal(map[string]any{
		"type":    "state",
		"payload": s.Snapshot(),
	}); err == nil {
		select {
		case client.Send <- snapshot:
		default:
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go a.writeLoop(ctx, conn, client)
	a.readLoop(ctx, conn, client)
}

// readLoop drains inbound messages; the stream is one-way, so reads only
// matter for close detection.
func (a *API) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		a.hub.Unregister(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				a.logger.Debug("websocket read ended", "client_id", client.ID, "error", err)
			}
			return
		}
	}
}

func (a *API) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
