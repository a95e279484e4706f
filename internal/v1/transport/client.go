package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
)

const writeWait = 10 * time.Second

// conn wraps one session's WebSocket connection. It owns no game state; it
// only moves bytes between the socket and the Hub's dispatch function.
type conn struct {
	ws           *websocket.Conn
	send         chan []byte
	sid          types.SessionID
	roomID       types.RoomID
	hub          *Hub
	cancelBusSub context.CancelFunc
}

func (c *conn) readPump() {
	defer c.hub.unregister(c)
	defer c.ws.Close()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			break
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("failed to unmarshal inbound frame", "sessionID", c.sid, "error", err)
			c.sendFrame("error", map[string]string{"code": "incorrect_format", "message": "malformed frame"})
			continue
		}

		ctx := context.Background()
		responses, err := c.hub.dispatch(ctx, c.sid, c.currentRoomID(), env.Event, env.Payload)
		if err != nil {
			slog.Warn("dispatch returned error", "sessionID", c.sid, "event", env.Event, "error", err)
			continue
		}
		c.hub.deliver(responses)
	}
}

func (c *conn) currentRoomID() types.RoomID {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if live, ok := c.hub.conns[c.sid]; ok {
		return live.roomID
	}
	return c.roomID
}

func (c *conn) writePump() {
	defer c.ws.Close()

	for message := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
			slog.Error("error writing frame", "sessionID", c.sid, "error", err)
			return
		}
	}
	c.ws.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *conn) sendFrame(event string, payload any) {
	data, err := json.Marshal(Envelope{Event: event, Payload: mustRaw(payload)})
	if err != nil {
		slog.Error("failed to marshal outbound frame", "sessionID", c.sid, "event", event, "error", err)
		return
	}

	select {
	case c.send <- data:
	default:
		slog.Warn("session send channel full, dropping frame", "sessionID", c.sid, "event", event)
	}
}

func mustRaw(payload any) json.RawMessage {
	if payload == nil {
		return nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw
	}
	b, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal frame payload", "error", err)
		return nil
	}
	return b
}
