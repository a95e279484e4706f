// Package player implements the player service (component D): CRUD over
// players within a room, the disconnect clock, and the admin sweep query.
// Grounded on the original PlayerService's thin service-wraps-repository
// shape (player/player_service.py), extended with the disconnect/rejoin
// operations spec.md assigns to this component.
package player

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gameerrors"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
)

func playerNotFoundByNickname(nickname string) error {
	return gameerrors.PlayerNotFound(nickname)
}

// Repo is the persistence contract this service depends on.
type Repo interface {
	Add(ctx context.Context, player *types.Player) error
	Get(ctx context.Context, playerID types.PlayerID) (*types.Player, error)
	Update(ctx context.Context, player *types.Player) error
	GetAllInRoom(ctx context.Context, roomID types.RoomID) ([]types.Player, error)
	AllWithDisconnectedSince(ctx context.Context, cutoff time.Time) ([]types.Player, error)
}

// Service implements the player operations of §4.3.
type Service struct {
	repo Repo
}

// New builds a Service over repo.
func New(repo Repo) *Service {
	return &Service{repo: repo}
}

// Create allocates a new player id and persists the player attached to roomID.
func (s *Service) Create(ctx context.Context, roomID types.RoomID, nickname string, avatar []byte) (*types.Player, error) {
	player := &types.Player{
		PlayerID: types.PlayerID(uuid.NewString()),
		Nickname: nickname,
		Avatar:   avatar,
		RoomID:   roomID,
	}
	if err := s.repo.Add(ctx, player); err != nil {
		return nil, err
	}
	return player, nil
}

// Get fetches a player by id.
func (s *Service) Get(ctx context.Context, playerID types.PlayerID) (*types.Player, error) {
	return s.repo.Get(ctx, playerID)
}

// GetAllInRoom returns every player currently attached to roomID.
func (s *Service) GetAllInRoom(ctx context.Context, roomID types.RoomID) ([]types.Player, error) {
	return s.repo.GetAllInRoom(ctx, roomID)
}

// RemoveFromRoom finds the player by (roomID, nickname) and clears their
// room_id, leaving host succession to the caller.
func (s *Service) RemoveFromRoom(ctx context.Context, roomID types.RoomID, nickname string) (*types.Player, error) {
	players, err := s.repo.GetAllInRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	for _, p := range players {
		if p.Nickname == nickname {
			p.RoomID = ""
			if err := s.repo.Update(ctx, &p); err != nil {
				return nil, err
			}
			return &p, nil
		}
	}
	return nil, playerNotFoundByNickname(nickname)
}

// UpdateDisconnectedTime stamps disconnected_at=t on the player playerID.
// Idempotent when t already equals the stored value.
func (s *Service) UpdateDisconnectedTime(ctx context.Context, playerID types.PlayerID, t time.Time) (*types.Player, error) {
	p, err := s.repo.Get(ctx, playerID)
	if err != nil {
		return nil, err
	}

	if p.DisconnectedAt != nil && p.DisconnectedAt.Equal(t) {
		return p, nil
	}

	p.DisconnectedAt = &t
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ClearDisconnectedTime clears disconnected_at, used on rejoin.
func (s *Service) ClearDisconnectedTime(ctx context.Context, playerID types.PlayerID) (*types.Player, error) {
	p, err := s.repo.Get(ctx, playerID)
	if err != nil {
		return nil, err
	}
	p.DisconnectedAt = nil
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateLatestSID overwrites the player's latest_sid (last-writer-wins).
func (s *Service) UpdateLatestSID(ctx context.Context, playerID types.PlayerID, sid types.SessionID) (*types.Player, error) {
	p, err := s.repo.Get(ctx, playerID)
	if err != nil {
		return nil, err
	}
	p.LatestSID = sid
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DisconnectPlayer clears room_id once the player has been disconnected for
// at least graceSeconds; otherwise it is a no-op returning the player
// unchanged.
func (s *Service) DisconnectPlayer(ctx context.Context, roomID types.RoomID, nickname string, graceSeconds int, now time.Time) (*types.Player, error) {
	players, err := s.repo.GetAllInRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	for _, p := range players {
		if p.Nickname != nickname {
			continue
		}
		if p.DisconnectedAt == nil || now.Sub(*p.DisconnectedAt) < time.Duration(graceSeconds)*time.Second {
			return &p, nil
		}
		p.RoomID = ""
		if err := s.repo.Update(ctx, &p); err != nil {
			return nil, err
		}
		return &p, nil
	}
	return nil, playerNotFoundByNickname(nickname)
}

// GetDisconnected returns all players with a disconnected_at timestamp
// older than cutoff, the source list for the admin sweep.
func (s *Service) GetDisconnected(ctx context.Context, cutoff time.Time) ([]types.Player, error) {
	return s.repo.AllWithDisconnectedSince(ctx, cutoff)
}
