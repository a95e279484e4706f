package player

import (
	"context"
	"testing"
	"time"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	players map[types.PlayerID]types.Player
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{players: map[types.PlayerID]types.Player{}}
}

func (f *fakeRepo) Add(ctx context.Context, p *types.Player) error {
	f.players[p.PlayerID] = *p
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, id types.PlayerID) (*types.Player, error) {
	p, ok := f.players[id]
	if !ok {
		return nil, assert.AnError
	}
	cp := p
	return &cp, nil
}

func (f *fakeRepo) Update(ctx context.Context, p *types.Player) error {
	f.players[p.PlayerID] = *p
	return nil
}

func (f *fakeRepo) GetAllInRoom(ctx context.Context, roomID types.RoomID) ([]types.Player, error) {
	var out []types.Player
	for _, p := range f.players {
		if p.RoomID == roomID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) AllWithDisconnectedSince(ctx context.Context, cutoff time.Time) ([]types.Player, error) {
	var out []types.Player
	for _, p := range f.players {
		if p.DisconnectedAt != nil && !p.DisconnectedAt.After(cutoff) {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestCreateAssignsRoomAndPersists(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo)

	p, err := svc.Create(t.Context(), "room-1", "Majiy", []byte("avatar"))
	require.NoError(t, err)
	assert.Equal(t, types.RoomID("room-1"), p.RoomID)
	assert.NotEmpty(t, p.PlayerID)
}

func TestRemoveFromRoomClearsRoomID(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo)
	p, _ := svc.Create(t.Context(), "room-1", "Majiy", nil)

	removed, err := svc.RemoveFromRoom(t.Context(), "room-1", "Majiy")
	require.NoError(t, err)
	assert.Equal(t, p.PlayerID, removed.PlayerID)
	assert.Empty(t, removed.RoomID)
}

func TestUpdateDisconnectedTimeIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo)
	p, _ := svc.Create(t.Context(), "room-1", "Majiy", nil)

	now := time.Now()
	_, err := svc.UpdateDisconnectedTime(t.Context(), p.PlayerID, now)
	require.NoError(t, err)

	updated, err := svc.UpdateDisconnectedTime(t.Context(), p.PlayerID, now)
	require.NoError(t, err)
	assert.True(t, updated.DisconnectedAt.Equal(now))
}

func TestDisconnectPlayerRequiresGracePeriodElapsed(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo)
	p, _ := svc.Create(t.Context(), "room-1", "Majiy", nil)

	now := time.Now()
	_, err := svc.UpdateDisconnectedTime(t.Context(), p.PlayerID, now)
	require.NoError(t, err)

	unchanged, err := svc.DisconnectPlayer(t.Context(), "room-1", "Majiy", 300, now.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, types.RoomID("room-1"), unchanged.RoomID)

	detached, err := svc.DisconnectPlayer(t.Context(), "room-1", "Majiy", 300, now.Add(301*time.Second))
	require.NoError(t, err)
	assert.Empty(t, detached.RoomID)
}

func TestGetDisconnectedReturnsOnlyStaleEntries(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo)
	p1, _ := svc.Create(t.Context(), "room-1", "A", nil)
	_, _ = svc.Create(t.Context(), "room-1", "B", nil)

	now := time.Now()
	_, err := svc.UpdateDisconnectedTime(t.Context(), p1.PlayerID, now.Add(-time.Hour))
	require.NoError(t, err)

	disconnected, err := svc.GetDisconnected(t.Context(), now)
	require.NoError(t, err)
	require.Len(t, disconnected, 1)
	assert.Equal(t, p1.PlayerID, disconnected[0].PlayerID)
}
