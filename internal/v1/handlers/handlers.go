// Package handlers wires the room/player/lobby/gamestate/fibbingit services
// into the per-event dispatch.Handler table of §4.7. Each handler follows
// the teacher's assert-payload -> mutate -> broadcast/direct-send shape
// (internal/v1/session/handlers.go), generalized from protobuf messages to
// the JSON envelope and from a single in-memory Room to store-backed
// services.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/dispatch"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/fibbingit"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gameerrors"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gamestate"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/lobby"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/player"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/room"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/transport"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
)

// Deps composes every service the event handlers need. It also owns the
// session-to-player index and (once attached) the transport.Hub used for
// room broadcasts.
type Deps struct {
	Rooms        *room.Service
	Players      *player.Service
	GameState    *gamestate.Service
	Lobby        *lobby.Service
	Engine       fibbingit.Engine
	GraceSeconds int
	Now          func() time.Time

	sessions *sessionIndex
	hub      *transport.Hub
}

// NewDeps builds Deps over the given services. GraceSeconds is the
// disconnect grace period (BANTER_BUS_CORE_API_DISCONNECT_TIMER_IN_SECONDS).
func NewDeps(rooms *room.Service, players *player.Service, gameState *gamestate.Service, lobbySvc *lobby.Service, engine fibbingit.Engine, graceSeconds int) *Deps {
	return &Deps{
		Rooms:        rooms,
		Players:      players,
		GameState:    gameState,
		Lobby:        lobbySvc,
		Engine:       engine,
		GraceSeconds: graceSeconds,
		Now:          time.Now,
		sessions:     newSessionIndex(),
	}
}

// SetHub attaches the transport.Hub once constructed, so handlers can
// broadcast to a room beyond the single-sid responses they return.
func (d *Deps) SetHub(hub *transport.Hub) {
	d.hub = hub
}

// Register installs every §4.7 handler into disp.
func Register(disp *dispatch.Dispatcher, d *Deps) {
	disp.Register("CREATE_ROOM", d.handleCreateRoom)
	disp.Register("JOIN_ROOM", d.handleJoinRoom)
	disp.Register("REJOIN_ROOM", d.handleRejoinRoom)
	disp.Register("KICK_PLAYER", d.handleKickPlayer)
	disp.Register("START_GAME", d.handleStartGame)
	disp.Register("GET_NEXT_QUESTION", d.handleGetNextQuestion)
	disp.Register("PAUSE_GAME", d.handlePauseGame)
	disp.Register("UNPAUSE_GAME", d.handleUnpauseGame)
	disp.Register("SUBMIT_ANSWER_FIBBING_IT", d.handleSubmitAnswer)
	disp.Register("GET_ANSWERS_FIBBING_IT", d.handleGetAnswers)
	disp.Register("PERMANENTLY_DISCONNECT_PLAYER", d.handlePermanentlyDisconnect)
	disp.Register("connect", d.handleConnect)
}

// DisconnectHook builds the transport.DisconnectHook for d, implementing
// the socket-close composition of §4.7.
func (d *Deps) DisconnectHook() transport.DisconnectHook {
	return d.handleDisconnect
}

// decode unmarshals raw into T. A malformed payload is a server_error, not
// incorrect_format: the original implementation's model_validator.py /
// event_manager.py / exception_handlers.py resolve any payload that fails
// schema validation to server_error, reserving incorrect_format for other
// call sites.
func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, gameerrors.ServerError(err.Error())
	}
	return v, nil
}

// resolvePlayer looks up the player bound to hc's session and confirms it
// belongs to hc's room, the membership check most event handlers require.
func (d *Deps) resolvePlayer(ctx context.Context, hc dispatch.HandlerContext) (*types.Player, error) {
	playerID, ok := d.sessions.get(hc.SessionID)
	if !ok {
		return nil, gameerrors.IncorrectFormat("no player associated with this session")
	}
	p, err := d.Players.Get(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p.RoomID != hc.RoomID {
		return nil, gameerrors.PlayerNotInRoom(string(playerID), string(hc.RoomID))
	}
	return p, nil
}

// PlayerDTO is the wire shape for a room member.
type PlayerDTO struct {
	PlayerID types.PlayerID `json:"player_id"`
	Nickname string         `json:"nickname"`
	Avatar   []byte         `json:"avatar,omitempty"`
}

func playerDTOs(players []types.Player) []PlayerDTO {
	out := make([]PlayerDTO, 0, len(players))
	for _, p := range players {
		out = append(out, PlayerDTO{PlayerID: p.PlayerID, Nickname: p.Nickname, Avatar: p.Avatar})
	}
	return out
}

func playerIDs(players []types.Player) []types.PlayerID {
	out := make([]types.PlayerID, 0, len(players))
	for _, p := range players {
		out = append(out, p.PlayerID)
	}
	return out
}

func (d *Deps) handleConnect(ctx context.Context, hc dispatch.HandlerContext, raw json.RawMessage) ([]transport.Response, error) {
	return nil, nil
}

func (d *Deps) handleCreateRoom(ctx context.Context, hc dispatch.HandlerContext, raw json.RawMessage) ([]transport.Response, error) {
	r, err := d.Rooms.Create(ctx)
	if err != nil {
		return nil, err
	}
	return []transport.Response{{
		SessionID: hc.SessionID,
		Event:     "ROOM_CREATED",
		Payload:   map[string]string{"room_code": string(r.RoomID)},
	}}, nil
}

type joinRoomPayload struct {
	RoomCode string `json:"room_code"`
	Nickname string `json:"nickname"`
	Avatar   []byte `json:"avatar"`
}

func (d *Deps) handleJoinRoom(ctx context.Context, hc dispatch.HandlerContext, raw json.RawMessage) ([]transport.Response, error) {
	p, err := decode[joinRoomPayload](raw)
	if err != nil {
		return nil, err
	}

	roomID := types.RoomID(p.RoomCode)
	result, err := d.Lobby.Join(ctx, roomID, p.Nickname, p.Avatar)
	if err != nil {
		return nil, err
	}

	d.sessions.set(hc.SessionID, result.PlayerID)
	if d.hub != nil {
		d.hub.JoinRoom(hc.SessionID, roomID)
		d.hub.Broadcast(roomID, "ROOM_JOINED", map[string]any{
			"players":              playerDTOs(result.Players),
			"host_player_nickname": result.HostNickname,
		})
	}

	return []transport.Response{{
		SessionID: hc.SessionID,
		Event:     "NEW_ROOM_JOINED",
		Payload:   map[string]types.PlayerID{"player_id": result.PlayerID},
	}}, nil
}

type rejoinRoomPayload struct {
	PlayerID string `json:"player_id"`
}

func (d *Deps) handleRejoinRoom(ctx context.Context, hc dispatch.HandlerContext, raw json.RawMessage) ([]transport.Response, error) {
	p, err := decode[rejoinRoomPayload](raw)
	if err != nil {
		return nil, err
	}

	result, err := d.Lobby.Rejoin(ctx, types.PlayerID(p.PlayerID), hc.SessionID)
	if err != nil {
		return nil, err
	}

	d.sessions.set(hc.SessionID, result.Player.PlayerID)
	if d.hub != nil {
		d.hub.JoinRoom(hc.SessionID, result.Room.RoomID)
	}

	responses := []transport.Response{{
		SessionID: hc.SessionID,
		Event:     "ROOM_JOINED",
		Payload: map[string]any{
			"players":              playerDTOs(result.Players),
			"host_player_nickname": result.HostNickname,
		},
	}}

	if result.Room.State.RejoinableAndStarted() {
		gs, err := d.GameState.Get(ctx, result.Room.RoomID)
		if err == nil {
			responses = append(responses, transport.Response{
				SessionID: hc.SessionID,
				Event:     "GOT_NEXT_QUESTION",
				Payload:   questionPayloadFor(d.Engine, gs, result.Player.PlayerID),
			})
		}

		reconnected := result.Player.PlayerID
		paused, err := d.GameState.UnpauseGame(ctx, result.Room.RoomID, &reconnected)
		if err == nil && d.hub != nil && len(paused.WaitingForPlayers) == 0 {
			d.hub.Broadcast(result.Room.RoomID, "GAME_UNPAUSED", map[string]any{})
		}
	}

	return responses, nil
}

func questionPayloadFor(engine fibbingit.Engine, gs *types.GameState, playerID types.PlayerID) map[string]any {
	q := engine.GetNextQuestion(gs.State)
	payload := map[string]any{
		"round":            gs.State.CurrentRound,
		"timer_in_seconds": engine.GetTimer(gs.State.CurrentRound, gs.Action),
	}
	if q == nil {
		return payload
	}
	payload["answers"] = q.Answers
	if playerID == gs.State.CurrentFibberID {
		payload["fibber_question"] = q.FibberQuestion
	} else {
		payload["question"] = q.Question
	}
	return payload
}

type kickPlayerPayload struct {
	Nickname string `json:"nickname"`
}

func (d *Deps) handleKickPlayer(ctx context.Context, hc dispatch.HandlerContext, raw json.RawMessage) ([]transport.Response, error) {
	p, err := decode[kickPlayerPayload](raw)
	if err != nil {
		return nil, err
	}

	actor, err := d.resolvePlayer(ctx, hc)
	if err != nil {
		return nil, err
	}

	kicked, err := d.Lobby.KickPlayer(ctx, hc.RoomID, actor.PlayerID, p.Nickname)
	if err != nil {
		return nil, err
	}

	if d.hub != nil {
		d.hub.Broadcast(hc.RoomID, "PLAYER_KICKED", map[string]string{"nickname": p.Nickname})
		if kicked.LatestSID != "" {
			d.hub.LeaveRoom(kicked.LatestSID, hc.RoomID)
		}
	}
	d.sessions.delete(kicked.LatestSID)

	return nil, nil
}

type startGamePayload struct {
	GameName string `json:"game_name"`
}

func (d *Deps) handleStartGame(ctx context.Context, hc dispatch.HandlerContext, raw json.RawMessage) ([]transport.Response, error) {
	p, err := decode[startGamePayload](raw)
	if err != nil {
		return nil, err
	}

	actor, err := d.resolvePlayer(ctx, hc)
	if err != nil {
		return nil, err
	}

	gs, err := d.Lobby.StartGame(ctx, p.GameName, actor.PlayerID, hc.RoomID)
	if err != nil {
		return nil, err
	}

	if d.hub != nil {
		d.hub.Broadcast(hc.RoomID, "GAME_STARTED", map[string]string{"game_name": gs.GameName})
	}
	return nil, nil
}

func (d *Deps) handleGetNextQuestion(ctx context.Context, hc dispatch.HandlerContext, raw json.RawMessage) ([]transport.Response, error) {
	if _, err := d.resolvePlayer(ctx, hc); err != nil {
		return nil, err
	}

	if _, err := d.GameState.GetNextQuestion(ctx, hc.RoomID); err != nil {
		return nil, err
	}

	gs, err := d.GameState.Get(ctx, hc.RoomID)
	if err != nil {
		return nil, err
	}
	players, err := d.Players.GetAllInRoom(ctx, hc.RoomID)
	if err != nil {
		return nil, err
	}

	responses := make([]transport.Response, 0, len(players))
	for _, pl := range players {
		if pl.LatestSID == "" {
			continue
		}
		responses = append(responses, transport.Response{
			SessionID: pl.LatestSID,
			Event:     "GOT_NEXT_QUESTION",
			Payload:   questionPayloadFor(d.Engine, gs, pl.PlayerID),
		})
	}
	return responses, nil
}

func (d *Deps) handlePauseGame(ctx context.Context, hc dispatch.HandlerContext, raw json.RawMessage) ([]transport.Response, error) {
	actor, err := d.resolvePlayer(ctx, hc)
	if err != nil {
		return nil, err
	}

	seconds, err := d.Rooms.PauseGame(ctx, hc.RoomID, actor.PlayerID)
	if err != nil {
		return nil, err
	}

	if d.hub != nil {
		d.hub.Broadcast(hc.RoomID, "GAME_PAUSED", map[string]any{
			"paused_for": seconds,
			"message":    fmt.Sprintf("Game paused by host for %d seconds.", seconds),
		})
	}
	return nil, nil
}

func (d *Deps) handleUnpauseGame(ctx context.Context, hc dispatch.HandlerContext, raw json.RawMessage) ([]transport.Response, error) {
	actor, err := d.resolvePlayer(ctx, hc)
	if err != nil {
		return nil, err
	}

	if _, err := d.Rooms.UnpauseGame(ctx, hc.RoomID, actor.PlayerID); err != nil {
		return nil, err
	}

	if d.hub != nil {
		d.hub.Broadcast(hc.RoomID, "GAME_UNPAUSED", map[string]any{})
	}
	return nil, nil
}

type submitAnswerPayload struct {
	Answer string `json:"answer"`
}

func (d *Deps) handleSubmitAnswer(ctx context.Context, hc dispatch.HandlerContext, raw json.RawMessage) ([]transport.Response, error) {
	p, err := decode[submitAnswerPayload](raw)
	if err != nil {
		return nil, err
	}

	actor, err := d.resolvePlayer(ctx, hc)
	if err != nil {
		return nil, err
	}

	gs, err := d.GameState.Get(ctx, hc.RoomID)
	if err != nil {
		return nil, err
	}
	players, err := d.Players.GetAllInRoom(ctx, hc.RoomID)
	if err != nil {
		return nil, err
	}

	newState, err := d.Engine.SubmitAnswers(*gs, playerIDs(players), actor.PlayerID, p.Answer, d.Now())
	if err != nil {
		return nil, err
	}
	if err := d.GameState.UpdateState(ctx, gs, newState); err != nil {
		return nil, err
	}

	allSubmitted := len(newState.Questions.CurrentAnswers) == len(players)
	return []transport.Response{{
		SessionID: hc.SessionID,
		Event:     "ANSWER_SUBMITTED_FIBBING_IT",
		Payload:   map[string]bool{"all_players_submitted": allSubmitted},
	}}, nil
}

const getAnswersNextActionTimer = 300

func (d *Deps) handleGetAnswers(ctx context.Context, hc dispatch.HandlerContext, raw json.RawMessage) ([]transport.Response, error) {
	if _, err := d.resolvePlayer(ctx, hc); err != nil {
		return nil, err
	}

	gs, err := d.GameState.Get(ctx, hc.RoomID)
	if err != nil {
		return nil, err
	}
	players, err := d.Players.GetAllInRoom(ctx, hc.RoomID)
	if err != nil {
		return nil, err
	}

	newState, err := d.Engine.SelectRandomAnswer(*gs, playerIDs(players), d.Now())
	if err != nil {
		return nil, err
	}
	if err := d.GameState.UpdateState(ctx, gs, newState); err != nil {
		return nil, err
	}

	nextAction := d.Engine.GetNextAction(gs.Action)
	if err := d.GameState.UpdateNextAction(ctx, gs, nextAction, getAnswersNextActionTimer); err != nil {
		return nil, err
	}

	nicknames := make(map[types.PlayerID]string, len(players))
	for _, pl := range players {
		nicknames[pl.PlayerID] = pl.Nickname
	}
	answers := d.Engine.GetPlayerAnswers(newState, nicknames)

	return []transport.Response{{
		SessionID: hc.SessionID,
		Event:     "GOT_ANSWERS_FIBBING_IT",
		Payload: map[string]any{
			"answers":          answers,
			"timer_in_seconds": getAnswersNextActionTimer,
		},
	}}, nil
}

type permanentlyDisconnectPayload struct {
	Nickname string `json:"nickname"`
}

func (d *Deps) handlePermanentlyDisconnect(ctx context.Context, hc dispatch.HandlerContext, raw json.RawMessage) ([]transport.Response, error) {
	p, err := decode[permanentlyDisconnectPayload](raw)
	if err != nil {
		return nil, err
	}

	detached, err := d.Players.DisconnectPlayer(ctx, hc.RoomID, p.Nickname, d.GraceSeconds, d.Now())
	if err != nil {
		return nil, err
	}

	if !detached.InRoom() {
		r, err := d.Rooms.Get(ctx, hc.RoomID)
		if err != nil {
			return nil, err
		}
		if err := d.Rooms.UpdatePlayerCount(ctx, r, -1); err != nil {
			return nil, err
		}
	}

	if d.hub != nil {
		if detached.LatestSID != "" {
			d.hub.LeaveRoom(detached.LatestSID, hc.RoomID)
		}
		d.hub.Broadcast(hc.RoomID, "PERMANENTLY_DISCONNECTED_PLAYER", map[string]string{"nickname": p.Nickname})
	}

	return nil, nil
}

func (d *Deps) handleDisconnect(ctx context.Context, sid types.SessionID, roomID types.RoomID) {
	playerID, ok := d.sessions.get(sid)
	if !ok {
		return
	}
	d.sessions.delete(sid)

	p, err := d.Players.Get(ctx, playerID)
	if err != nil {
		return
	}

	now := d.Now()
	if _, err := d.Players.UpdateDisconnectedTime(ctx, playerID, now); err != nil {
		return
	}

	if !p.InRoom() {
		return
	}

	r, err := d.Rooms.Get(ctx, p.RoomID)
	if err != nil {
		return
	}

	if d.hub == nil {
		return
	}

	if r.Host == playerID {
		newHost, err := d.Lobby.UpdateHost(ctx, r, playerID)
		if err == nil {
			d.hub.Broadcast(r.RoomID, "HOST_DISCONNECTED", map[string]string{"new_host_nickname": newHost.Nickname})
		}
	}

	if r.State == types.RoomStatePlaying {
		disconnected := playerID
		seconds, err := d.GameState.PauseGame(ctx, r.RoomID, &disconnected)
		if err == nil {
			d.hub.Broadcast(r.RoomID, "GAME_PAUSED", map[string]any{
				"paused_for": seconds,
				"message":    fmt.Sprintf("Player %s disconnected, pausing game.", p.Nickname),
			})
		}
	}

	d.hub.Broadcast(r.RoomID, "PLAYER_DISCONNECTED", map[string]any{
		"nickname": p.Nickname,
		"avatar":   p.Avatar,
	})
}
