// Package room implements the room service (component E): room lifecycle
// (create/get), host/game-state/player-count persistence, and the
// pause/unpause preconditions that gate component G. Grounded on the
// teacher's service-wraps-repository shape (now shared across player, room,
// gamestate) rather than its original in-memory Room struct, since rooms
// here are store-backed records rather than long-lived goroutine-owning
// objects.
package room

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gameerrors"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
)

// Repo is the persistence contract this service depends on.
type Repo interface {
	Add(ctx context.Context, room *types.Room) error
	Get(ctx context.Context, roomID types.RoomID) (*types.Room, error)
	Update(ctx context.Context, room *types.Room) error
}

// GameStatePauser is implemented by the gamestate service (component G),
// which pause_game/unpause_game delegate to once the room-level
// preconditions are satisfied.
type GameStatePauser interface {
	PauseGame(ctx context.Context, roomID types.RoomID, playerDisconnected *types.PlayerID) (int, error)
	UnpauseGame(ctx context.Context, roomID types.RoomID, playerReconnected *types.PlayerID) (types.Paused, error)
}

// Service implements the room operations of §4.2.
type Service struct {
	repo      Repo
	gameState GameStatePauser
}

// New builds a Service over repo. gameState may be attached later via
// SetGameState when the gamestate service is constructed, breaking the
// import cycle between the two packages.
func New(repo Repo, gameState GameStatePauser) *Service {
	return &Service{repo: repo, gameState: gameState}
}

// SetGameState attaches the gamestate service once it has been constructed.
func (s *Service) SetGameState(gameState GameStatePauser) {
	s.gameState = gameState
}

// Create allocates a new room id and persists a freshly created room.
// Collision with an existing id is the only failure mode, never expected
// from a v4 UUID.
func (s *Service) Create(ctx context.Context) (*types.Room, error) {
	now := time.Now()
	room := &types.Room{
		RoomID:    types.RoomID(uuid.NewString()),
		State:     types.RoomStateCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Add(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// Get fetches a room by id.
func (s *Service) Get(ctx context.Context, roomID types.RoomID) (*types.Room, error) {
	return s.repo.Get(ctx, roomID)
}

// UpdateHost persists the room's new host.
func (s *Service) UpdateHost(ctx context.Context, room *types.Room, playerID types.PlayerID) error {
	room.Host = playerID
	room.UpdatedAt = time.Now()
	return s.repo.Update(ctx, room)
}

// UpdateGameState persists a new lifecycle state for the room.
func (s *Service) UpdateGameState(ctx context.Context, room *types.Room, state types.RoomState) error {
	room.State = state
	room.UpdatedAt = time.Now()
	return s.repo.Update(ctx, room)
}

// UpdatePlayerCount adjusts player_count by delta (typically ±1) and persists.
func (s *Service) UpdatePlayerCount(ctx context.Context, room *types.Room, delta int) error {
	room.PlayerCount += delta
	room.UpdatedAt = time.Now()
	return s.repo.Update(ctx, room)
}

// PauseGame validates the room is PLAYING and actorID is its host, then
// delegates to the gamestate service's pause_game.
func (s *Service) PauseGame(ctx context.Context, roomID types.RoomID, actorID types.PlayerID) (int, error) {
	room, err := s.repo.Get(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if !room.HasHost() {
		return 0, gameerrors.RoomHasNoHost(string(roomID))
	}
	if room.Host != actorID {
		return 0, gameerrors.PlayerNotHost(string(actorID))
	}
	if room.State != types.RoomStatePlaying {
		return 0, gameerrors.RoomInInvalidState(string(roomID), string(room.State))
	}
	return s.gameState.PauseGame(ctx, roomID, nil)
}

// UnpauseGame is the symmetric counterpart of PauseGame.
func (s *Service) UnpauseGame(ctx context.Context, roomID types.RoomID, actorID types.PlayerID) (types.Paused, error) {
	room, err := s.repo.Get(ctx, roomID)
	if err != nil {
		return types.Paused{}, err
	}
	if !room.HasHost() {
		return types.Paused{}, gameerrors.RoomHasNoHost(string(roomID))
	}
	if room.Host != actorID {
		return types.Paused{}, gameerrors.PlayerNotHost(string(actorID))
	}
	if room.State != types.RoomStatePlaying {
		return types.Paused{}, gameerrors.RoomInInvalidState(string(roomID), string(room.State))
	}
	return s.gameState.UnpauseGame(ctx, roomID, nil)
}
