// Package transport implements the WebSocket connection layer: the Hub
// upgrades connections, tracks which session belongs to which room, and
// fans outbound frames back out to sockets. It has no game knowledge of
// its own; every inbound frame is handed to a Dispatch func and every
// outbound frame is whatever that func returns (§4.1, §4.7 component A).
//
// This generalizes the teacher's session.Hub (room registry + grace-period
// cleanup) to a JSON-only envelope with no per-room in-memory struct: rooms
// here are store-backed, so the Hub only tracks live socket membership.
package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/bus"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/metrics"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
)

// Bus is the subset of bus.Service the Hub uses to present one logical
// room across multiple server processes: local Broadcast/Send also
// publish over the backplane, and the Hub subscribes each room and
// session so frames published by other instances reach locally-connected
// sockets. A nil Bus (set via SetBus) leaves the Hub single-instance.
type Bus interface {
	Publish(ctx context.Context, roomID string, event string, payload any, senderID string, roles []string) error
	PublishDirect(ctx context.Context, targetSessionID string, event string, payload any, senderID string) error
	Subscribe(ctx context.Context, roomID string, wg *sync.WaitGroup, handler func(bus.PubSubPayload))
	SubscribeSession(ctx context.Context, sessionID string, handler func(bus.PubSubPayload))
}

// Envelope is the sole wire format: every inbound and outbound frame is a
// JSON object with an event name and an opaque payload.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is one outbound frame targeted at a specific session, as
// produced by a Dispatch call.
type Response struct {
	SessionID types.SessionID
	Event     string
	Payload   any
}

// Dispatch handles one inbound frame from a session and returns zero or
// more outbound frames to deliver. sid identifies the originating
// connection; roomID is the room the Hub currently associates it with, if
// any ("" before JOIN_ROOM/CREATE_ROOM/REJOIN_ROOM succeeds); event and raw
// are the frame's event name and opaque payload.
type Dispatch func(ctx context.Context, sid types.SessionID, roomID types.RoomID, event string, raw json.RawMessage) ([]Response, error)

// DisconnectHook is invoked after a session's socket closes, so the
// application layer can run the disconnect bookkeeping of §4.6.
type DisconnectHook func(ctx context.Context, sid types.SessionID, roomID types.RoomID)

// Hub is the central registry of live WebSocket connections. It has no
// knowledge of game rules; it only knows which sessions exist and which
// room each currently belongs to.
type Hub struct {
	mu             sync.RWMutex
	conns          map[types.SessionID]*conn
	roomMembers    map[types.RoomID]map[types.SessionID]struct{}
	roomSubCancel  map[types.RoomID]context.CancelFunc
	dispatch       Dispatch
	onDisconnect   DisconnectHook
	allowedOrigins []string
	bus            Bus
	instanceID     string
}

// NewHub builds a Hub. allowedOrigins empty means allow any origin
// (development default); see ALLOWED_ORIGINS in config.
func NewHub(dispatch Dispatch, onDisconnect DisconnectHook, allowedOrigins []string) *Hub {
	return &Hub{
		conns:          make(map[types.SessionID]*conn),
		roomMembers:    make(map[types.RoomID]map[types.SessionID]struct{}),
		roomSubCancel:  make(map[types.RoomID]context.CancelFunc),
		dispatch:       dispatch,
		onDisconnect:   onDisconnect,
		allowedOrigins: allowedOrigins,
		instanceID:     uuid.NewString(),
	}
}

// SetBus attaches the Redis backplane once constructed, enabling
// cross-instance fan-out. Call before serving traffic.
func (h *Hub) SetBus(b Bus) {
	h.bus = b
}

var upgrader = websocket.Upgrader{
	WriteBufferPool: &sync.Pool{
		New: func() any { return make([]byte, 4096) },
	},
}

// ServeWS upgrades the request to a WebSocket and registers a new session.
func (h *Hub) ServeWS(c *gin.Context) {
	u := upgrader
	u.CheckOrigin = h.checkOrigin

	ws, err := u.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("failed to upgrade connection", "error", err)
		return
	}

	sid := types.SessionID(uuid.NewString())
	cn := &conn{
		ws:   ws,
		send: make(chan []byte, 256),
		sid:  sid,
		hub:  h,
	}

	if h.bus != nil {
		subCtx, cancel := context.WithCancel(context.Background())
		cn.cancelBusSub = cancel
		h.bus.SubscribeSession(subCtx, string(sid), func(payload bus.PubSubPayload) {
			if payload.SenderID == h.instanceID {
				return
			}
			cn.sendFrame(payload.Event, json.RawMessage(payload.Payload))
		})
	}

	h.mu.Lock()
	h.conns[sid] = cn
	h.mu.Unlock()

	metrics.IncConnection()

	go cn.writePump()
	go cn.readPump()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	for _, allowed := range h.allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return true
		}
	}
	return false
}

// JoinRoom records that sid now belongs to roomID, so future Broadcast
// calls for that room reach it. Called by the app layer once a JOIN/CREATE/
// REJOIN succeeds.
func (h *Hub) JoinRoom(sid types.SessionID, roomID types.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cn, ok := h.conns[sid]; ok {
		cn.roomID = roomID
	}

	members, ok := h.roomMembers[roomID]
	if !ok {
		members = make(map[types.SessionID]struct{})
		h.roomMembers[roomID] = members
		metrics.ActiveRooms.Inc()
		h.subscribeRoomLocked(roomID)
	}
	members[sid] = struct{}{}
	metrics.RoomParticipants.WithLabelValues(string(roomID)).Set(float64(len(members)))
}

// subscribeRoomLocked starts listening for frames published by other
// processes for roomID, the first time this instance gains a local
// member for it. Caller must hold h.mu.
func (h *Hub) subscribeRoomLocked(roomID types.RoomID) {
	if h.bus == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.roomSubCancel[roomID] = cancel
	h.bus.Subscribe(ctx, string(roomID), nil, func(payload bus.PubSubPayload) {
		if payload.SenderID == h.instanceID {
			return
		}
		h.broadcastLocal(roomID, payload.Event, json.RawMessage(payload.Payload))
	})
}

// LeaveRoom removes sid from roomID's membership set without closing its
// socket, used when a player is kicked or a room is torn down.
func (h *Hub) LeaveRoom(sid types.SessionID, roomID types.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoomLocked(sid, roomID)
}

func (h *Hub) removeFromRoomLocked(sid types.SessionID, roomID types.RoomID) {
	members, ok := h.roomMembers[roomID]
	if !ok {
		return
	}
	delete(members, sid)
	if len(members) == 0 {
		delete(h.roomMembers, roomID)
		metrics.ActiveRooms.Dec()
		metrics.RoomParticipants.DeleteLabelValues(string(roomID))
		if cancel, ok := h.roomSubCancel[roomID]; ok {
			cancel()
			delete(h.roomSubCancel, roomID)
		}
	} else {
		metrics.RoomParticipants.WithLabelValues(string(roomID)).Set(float64(len(members)))
	}
}

// Send delivers a single frame to one session. If the session isn't
// connected to this process and a Bus is attached, it's handed to the
// backplane so the process actually holding that socket can deliver it.
func (h *Hub) Send(sid types.SessionID, event string, payload any) {
	h.mu.RLock()
	cn, ok := h.conns[sid]
	h.mu.RUnlock()
	if ok {
		cn.sendFrame(event, payload)
		return
	}

	if h.bus != nil {
		if err := h.bus.PublishDirect(context.Background(), string(sid), event, payload, h.instanceID); err != nil {
			slog.Warn("failed to publish direct frame to backplane", "sessionID", sid, "event", event, "error", err)
		}
	}
}

// Broadcast delivers a frame to every session currently in roomID,
// locally and (via the backplane, if attached) on every other process
// that also has local members of that room.
func (h *Hub) Broadcast(roomID types.RoomID, event string, payload any) {
	h.broadcastLocal(roomID, event, payload)

	if h.bus != nil {
		if err := h.bus.Publish(context.Background(), string(roomID), event, payload, h.instanceID, nil); err != nil {
			slog.Warn("failed to publish frame to backplane", "roomID", roomID, "event", event, "error", err)
		}
	}
}

// broadcastLocal delivers a frame only to sessions connected to this
// process, used both by Broadcast and by the backplane relay so relayed
// frames are never republished.
func (h *Hub) broadcastLocal(roomID types.RoomID, event string, payload any) {
	h.mu.RLock()
	members := make([]types.SessionID, 0, len(h.roomMembers[roomID]))
	for sid := range h.roomMembers[roomID] {
		members = append(members, sid)
	}
	h.mu.RUnlock()

	for _, sid := range members {
		h.mu.RLock()
		cn, ok := h.conns[sid]
		h.mu.RUnlock()
		if ok {
			cn.sendFrame(event, payload)
		}
	}
}

func (h *Hub) deliver(responses []Response) {
	for _, r := range responses {
		h.Send(r.SessionID, r.Event, r.Payload)
	}
}

func (h *Hub) unregister(cn *conn) {
	h.mu.Lock()
	delete(h.conns, cn.sid)
	roomID := cn.roomID
	if roomID != "" {
		h.removeFromRoomLocked(cn.sid, roomID)
	}
	h.mu.Unlock()

	if cn.cancelBusSub != nil {
		cn.cancelBusSub()
	}

	metrics.DecConnection()

	if h.onDisconnect != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.onDisconnect(ctx, cn.sid, roomID)
	}
}
