package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gameerrors"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/transport"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchUnknownEventReturnsErrorFrame(t *testing.T) {
	d := New()

	responses, err := d.Dispatch(t.Context(), "sid-1", "", "NOT_REGISTERED", nil)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "error", responses[0].Event)
}

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	d := New()
	var gotRaw json.RawMessage
	d.Register("PING", func(ctx context.Context, hc HandlerContext, raw json.RawMessage) ([]transport.Response, error) {
		gotRaw = raw
		return []transport.Response{{SessionID: hc.SessionID, Event: "PONG"}}, nil
	})

	responses, err := d.Dispatch(t.Context(), "sid-1", "", "PING", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "PONG", responses[0].Event)
	assert.Equal(t, types.SessionID("sid-1"), responses[0].SessionID)
	assert.JSONEq(t, `{"a":1}`, string(gotRaw))
}

func TestDispatchCodedErrorBecomesErrorFrame(t *testing.T) {
	d := New()
	d.Register("JOIN_ROOM", func(ctx context.Context, hc HandlerContext, raw json.RawMessage) ([]transport.Response, error) {
		return nil, gameerrors.NicknameExists("Alice")
	})

	responses, err := d.Dispatch(t.Context(), "sid-1", "room-1", "JOIN_ROOM", nil)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	payload, ok := responses[0].Payload.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "room_join_fail", payload["code"])
}

func TestDispatchUncodedErrorBecomesServerError(t *testing.T) {
	d := New()
	d.Register("JOIN_ROOM", func(ctx context.Context, hc HandlerContext, raw json.RawMessage) ([]transport.Response, error) {
		return nil, errors.New("boom")
	})

	responses, err := d.Dispatch(t.Context(), "sid-1", "room-1", "JOIN_ROOM", nil)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	payload, ok := responses[0].Payload.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, gameerrors.ServerErrorCode, payload["code"])
}

func TestDispatchSerializesHandlersForSameRoom(t *testing.T) {
	d := New()
	var active int32
	var sawOverlap bool
	d.Register("SLOW", func(ctx context.Context, hc HandlerContext, raw json.RawMessage) ([]transport.Response, error) {
		if atomic.AddInt32(&active, 1) > 1 {
			sawOverlap = true
		}
		defer atomic.AddInt32(&active, -1)
		return nil, nil
	})

	done := make(chan struct{})
	go func() {
		_, _ = d.Dispatch(t.Context(), "sid-1", "room-1", "SLOW", nil)
		done <- struct{}{}
	}()
	_, _ = d.Dispatch(t.Context(), "sid-2", "room-1", "SLOW", nil)
	<-done

	assert.False(t, sawOverlap)
}
