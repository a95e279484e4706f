// Package lobby implements the lobby service (component H): join/rejoin,
// kick, host succession, and game start — the operations that sit on top
// of the room, player, and game-state services. Grounded on
// lobby_service.py / lobby_event_handlers.py / lobby_event_helpers.py,
// including their exact error strings for the seed scenarios.
package lobby

import (
	"context"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/catalog"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/fibbingit"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gameerrors"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
)

// PlayerService is the subset of the player service lobby depends on.
type PlayerService interface {
	Create(ctx context.Context, roomID types.RoomID, nickname string, avatar []byte) (*types.Player, error)
	Get(ctx context.Context, playerID types.PlayerID) (*types.Player, error)
	GetAllInRoom(ctx context.Context, roomID types.RoomID) ([]types.Player, error)
	RemoveFromRoom(ctx context.Context, roomID types.RoomID, nickname string) (*types.Player, error)
	UpdateLatestSID(ctx context.Context, playerID types.PlayerID, sid types.SessionID) (*types.Player, error)
	ClearDisconnectedTime(ctx context.Context, playerID types.PlayerID) (*types.Player, error)
}

// RoomService is the subset of the room service lobby depends on.
type RoomService interface {
	Get(ctx context.Context, roomID types.RoomID) (*types.Room, error)
	UpdateHost(ctx context.Context, room *types.Room, playerID types.PlayerID) error
	UpdateGameState(ctx context.Context, room *types.Room, state types.RoomState) error
	UpdatePlayerCount(ctx context.Context, room *types.Room, delta int) error
}

// GameStateService is the subset of the game-state service lobby depends on.
type GameStateService interface {
	Create(ctx context.Context, roomID types.RoomID, gameName string, players []types.Player, rounds types.FibbingItRounds) (*types.GameState, error)
}

// QuestionEngine fetches the catalog-drawn question set for a new match.
type QuestionEngine interface {
	FetchRounds(ctx context.Context, source fibbingit.QuestionSource, players []types.Player) (types.FibbingItRounds, error)
}

// GameCatalog is the subset of the catalog client lobby depends on: game
// metadata for start_game's enablement/player-count checks, plus the
// fibbingit.QuestionSource surface FetchRounds draws questions from.
// *catalog.Client satisfies this; the split exists so StartGame is testable
// without a live catalog HTTP server.
type GameCatalog interface {
	fibbingit.QuestionSource
	GetGame(ctx context.Context, gameName string) (catalog.Game, error)
}

// Service implements the lobby operations of §4.4.
type Service struct {
	players   PlayerService
	rooms     RoomService
	gameState GameStateService
	catalog   GameCatalog
	engine    QuestionEngine
}

// New builds a Service composing the room/player/game-state services, the
// catalog client, and the question engine.
func New(players PlayerService, rooms RoomService, gameState GameStateService, catalogClient GameCatalog, engine QuestionEngine) *Service {
	return &Service{players: players, rooms: rooms, gameState: gameState, catalog: catalogClient, engine: engine}
}

// JoinResult is what the JOIN_ROOM handler needs to build its frames.
type JoinResult struct {
	Players      []types.Player
	HostNickname string
	PlayerID     types.PlayerID
	RoomCode     types.RoomID
}

// Join admits newNickname into roomID: the room must be joinable, the
// nickname must be unique within the room, and if the room has no host yet
// the new player becomes it.
func (s *Service) Join(ctx context.Context, roomID types.RoomID, nickname string, avatar []byte) (*JoinResult, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.State.Joinable() {
		return nil, gameerrors.RoomNotJoinable(string(roomID))
	}

	members, err := s.players.GetAllInRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.Nickname == nickname {
			return nil, gameerrors.NicknameExists(nickname)
		}
	}

	player, err := s.players.Create(ctx, roomID, nickname, avatar)
	if err != nil {
		return nil, err
	}

	hostNickname := nickname
	if !room.HasHost() {
		if err := s.rooms.UpdateHost(ctx, room, player.PlayerID); err != nil {
			return nil, err
		}
	} else {
		for _, m := range members {
			if m.PlayerID == room.Host {
				hostNickname = m.Nickname
				break
			}
		}
	}

	if err := s.rooms.UpdatePlayerCount(ctx, room, 1); err != nil {
		return nil, err
	}

	if !room.HasHost() {
		return nil, gameerrors.RoomHasNoHost(string(roomID))
	}

	return &JoinResult{
		Players:      append(members, *player),
		HostNickname: hostNickname,
		PlayerID:     player.PlayerID,
		RoomCode:     roomID,
	}, nil
}

// RejoinResult is what the REJOIN_ROOM handler needs to build its frames.
type RejoinResult struct {
	Player       *types.Player
	Room         *types.Room
	Players      []types.Player
	HostNickname string
}

// Rejoin reattaches playerID's new connection (latestSID) to its room,
// requiring the room still be rejoinable and hosted.
func (s *Service) Rejoin(ctx context.Context, playerID types.PlayerID, latestSID types.SessionID) (*RejoinResult, error) {
	player, err := s.players.Get(ctx, playerID)
	if err != nil {
		return nil, err
	}

	player, err = s.players.UpdateLatestSID(ctx, playerID, latestSID)
	if err != nil {
		return nil, err
	}

	if !player.InRoom() {
		return nil, gameerrors.PlayerHasNoRoom(string(playerID))
	}

	player, err = s.players.ClearDisconnectedTime(ctx, playerID)
	if err != nil {
		return nil, err
	}

	room, err := s.rooms.Get(ctx, player.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.State.Rejoinable() {
		return nil, gameerrors.RoomInInvalidState(string(room.RoomID), string(room.State))
	}
	if !room.HasHost() {
		return nil, gameerrors.RoomHasNoHost(string(room.RoomID))
	}

	members, err := s.players.GetAllInRoom(ctx, room.RoomID)
	if err != nil {
		return nil, err
	}

	hostNickname := ""
	for _, m := range members {
		if m.PlayerID == room.Host {
			hostNickname = m.Nickname
			break
		}
	}

	return &RejoinResult{
		Player:       player,
		Room:         room,
		Players:      members,
		HostNickname: hostNickname,
	}, nil
}

// KickPlayer removes kickNickname from roomID at actorID's request. Only
// the host may kick, and only while the room is still CREATED.
func (s *Service) KickPlayer(ctx context.Context, roomID types.RoomID, actorID types.PlayerID, kickNickname string) (*types.Player, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Host != actorID {
		return nil, gameerrors.PlayerNotHost(string(actorID))
	}
	if room.State != types.RoomStateCreated {
		return nil, gameerrors.RoomInInvalidState(string(roomID), string(room.State))
	}

	kicked, err := s.players.RemoveFromRoom(ctx, roomID, kickNickname)
	if err != nil {
		return nil, err
	}
	if err := s.rooms.UpdatePlayerCount(ctx, room, -1); err != nil {
		return nil, err
	}
	return kicked, nil
}

// UpdateHost picks any room member other than oldHostID and persists them
// as the new host, failing with NoOtherHost if none remain.
func (s *Service) UpdateHost(ctx context.Context, room *types.Room, oldHostID types.PlayerID) (*types.Player, error) {
	members, err := s.players.GetAllInRoom(ctx, room.RoomID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.PlayerID != oldHostID {
			if err := s.rooms.UpdateHost(ctx, room, m.PlayerID); err != nil {
				return nil, err
			}
			return &m, nil
		}
	}
	return nil, gameerrors.NoOtherHost(string(room.RoomID))
}

// StartGame transitions roomID from CREATED to PLAYING and builds its
// initial game state, provided actorID is the host, the room is in the
// right lifecycle stage, the target game is enabled, and the current
// player count fits within the game's bounds.
func (s *Service) StartGame(ctx context.Context, gameName string, actorID types.PlayerID, roomID types.RoomID) (*types.GameState, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.State != types.RoomStateCreated {
		return nil, gameerrors.RoomInInvalidState(string(roomID), string(room.State))
	}
	if room.Host != actorID {
		return nil, gameerrors.PlayerNotHost(string(actorID))
	}

	game, err := s.catalog.GetGame(ctx, gameName)
	if err != nil {
		return nil, err
	}
	if !game.Enabled {
		return nil, gameerrors.GameNotEnabled(gameName)
	}
	if room.PlayerCount < game.MinimumPlayers {
		return nil, gameerrors.TooFewPlayersInRoom(string(roomID), game.MinimumPlayers)
	}
	if room.PlayerCount > game.MaximumPlayers {
		return nil, gameerrors.TooManyPlayersInRoom(string(roomID), game.MaximumPlayers)
	}

	players, err := s.players.GetAllInRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	rounds, err := s.engine.FetchRounds(ctx, s.catalog, players)
	if err != nil {
		return nil, err
	}

	if err := s.rooms.UpdateGameState(ctx, room, types.RoomStatePlaying); err != nil {
		return nil, err
	}

	return s.gameState.Create(ctx, roomID, gameName, players, rounds)
}
