// Package dispatch implements the event dispatcher (component I): a
// registered-handler table keyed by event name, one mutex per room id held
// for the duration of each dispatch, and the translation of any
// gameerrors.Coded failure into a single ERROR frame sent back to the
// originating session. It generalizes the teacher's assertPayload[T any]
// decode helper (internal/v1/session/handlers.go) from "decode this one
// payload type" to "route this event to its registered handler", and the
// outer-error/inner-event decorator ordering of event_manager.py's
// error_handler/event_handler decorators.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gameerrors"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/metrics"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/roomlock"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/transport"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
)

// HandlerContext is what a registered Handler needs beyond its decoded
// payload: which session and room the frame arrived on, and the hub it can
// use to join/leave rooms or broadcast further frames.
type HandlerContext struct {
	SessionID types.SessionID
	RoomID    types.RoomID
	Hub       *transport.Hub
}

// Handler processes one decoded event for a session, returning zero or
// more outbound frames. Returning an error that implements gameerrors.Coded
// produces a single ERROR frame to the originating session; any other
// error is logged and mapped to the generic server_error code.
type Handler func(ctx context.Context, hc HandlerContext, raw json.RawMessage) ([]transport.Response, error)

// Dispatcher routes inbound frames to registered handlers under a
// per-room lock, and satisfies transport.Dispatch via its Dispatch method.
type Dispatcher struct {
	hub      *transport.Hub
	handlers map[string]Handler
	locks    *roomlock.Table
}

// New builds an empty Dispatcher. Call SetHub once the transport.Hub has
// been constructed (the two are mutually referential: the Hub needs
// Dispatcher.Dispatch, the Dispatcher needs the Hub for broadcast/join).
func New() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		locks:    roomlock.NewTable(),
	}
}

// SetHub attaches the transport.Hub once constructed.
func (d *Dispatcher) SetHub(hub *transport.Hub) {
	d.hub = hub
}

// Register associates event with h. Registering the same event twice
// overwrites the previous handler.
func (d *Dispatcher) Register(event string, h Handler) {
	d.handlers[event] = h
}

// Dispatch implements transport.Dispatch: it looks up the handler for
// event, runs it with the room's lock held, and translates any error into
// an ERROR frame rather than propagating it to the transport layer.
func (d *Dispatcher) Dispatch(ctx context.Context, sid types.SessionID, roomID types.RoomID, event string, raw json.RawMessage) ([]transport.Response, error) {
	start := time.Now()
	defer func() {
		metrics.EventProcessingDuration.WithLabelValues(event).Observe(time.Since(start).Seconds())
	}()

	handler, ok := d.handlers[event]
	if !ok {
		metrics.EventsTotal.WithLabelValues(event, "unknown").Inc()
		return d.errorResponse(sid, gameerrors.IncorrectFormat("unknown event "+event)), nil
	}

	hc := HandlerContext{SessionID: sid, RoomID: roomID, Hub: d.hub}

	var (
		responses []transport.Response
		err       error
	)
	if roomID != "" {
		d.locks.WithLock(roomID, func() {
			responses, err = handler(ctx, hc, raw)
		})
	} else {
		responses, err = handler(ctx, hc, raw)
	}

	if err == nil {
		metrics.EventsTotal.WithLabelValues(event, "ok").Inc()
		return responses, nil
	}

	var coded gameerrors.Coded
	if errors.As(err, &coded) {
		metrics.EventsTotal.WithLabelValues(event, coded.Code()).Inc()
		return d.errorResponse(sid, coded), nil
	}

	metrics.EventsTotal.WithLabelValues(event, "server_error").Inc()
	slog.Error("unhandled dispatch error", "event", event, "room_id", string(roomID), "error", err)
	return d.errorResponse(sid, gameerrors.ServerError(err.Error())), nil
}

func (d *Dispatcher) errorResponse(sid types.SessionID, coded gameerrors.Coded) []transport.Response {
	return []transport.Response{{
		SessionID: sid,
		Event:     "error",
		Payload: map[string]string{
			"code":    coded.Code(),
			"message": coded.Error(),
		},
	}}
}
