package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
)

type fakePlayers struct {
	disconnected []types.Player
	removed      []types.PlayerID
}

func (f *fakePlayers) GetDisconnected(ctx context.Context, cutoff time.Time) ([]types.Player, error) {
	return f.disconnected, nil
}

func (f *fakePlayers) DisconnectPlayer(ctx context.Context, roomID types.RoomID, nickname string, graceSeconds int, now time.Time) (*types.Player, error) {
	for i, p := range f.disconnected {
		if p.Nickname != nickname {
			continue
		}
		p.RoomID = ""
		f.disconnected[i] = p
		f.removed = append(f.removed, p.PlayerID)
		return &p, nil
	}
	return nil, nil
}

type fakeRooms struct{ counts map[types.RoomID]int }

func (f *fakeRooms) Get(ctx context.Context, roomID types.RoomID) (*types.Room, error) {
	return &types.Room{RoomID: roomID, PlayerCount: f.counts[roomID]}, nil
}

func (f *fakeRooms) UpdatePlayerCount(ctx context.Context, room *types.Room, delta int) error {
	f.counts[room.RoomID] += delta
	return nil
}

func TestLivenessAlwaysReturnsOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := Deps{}
	router := NewRouter(deps, []string{"http://localhost:3000"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alive")
}

func TestReadinessWithNoDependenciesConfiguredIsReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := Deps{}
	router := NewRouter(deps, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSweepRemovesStalePlayerAndDecrementsCount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now()

	players := &fakePlayers{disconnected: []types.Player{
		{PlayerID: "p1", Nickname: "Alice", RoomID: "room-1"},
	}}
	rooms := &fakeRooms{counts: map[types.RoomID]int{"room-1": 2}}

	deps := Deps{
		Players:      players,
		Rooms:        rooms,
		GraceSeconds: 300,
		Now:          func() time.Time { return now },
	}
	router := NewRouter(deps, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/player:disconnect", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []types.PlayerID{"p1"}, players.removed)
	assert.Equal(t, 1, rooms.counts["room-1"])
}

func TestSweepWithNoStalePlayersRemovesNothing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := Deps{
		Players:      &fakePlayers{},
		Rooms:        &fakeRooms{counts: map[types.RoomID]int{}},
		GraceSeconds: 300,
		Now:          time.Now,
	}
	router := NewRouter(deps, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/player:disconnect", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed_player_ids":null}`, w.Body.String())
}
