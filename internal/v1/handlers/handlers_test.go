package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/catalog"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/dispatch"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/fibbingit"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gameerrors"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gamestate"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/lobby"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/player"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/room"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoomRepo struct{ rooms map[types.RoomID]types.Room }

func newFakeRoomRepo() *fakeRoomRepo { return &fakeRoomRepo{rooms: map[types.RoomID]types.Room{}} }

func (f *fakeRoomRepo) Add(ctx context.Context, r *types.Room) error {
	f.rooms[r.RoomID] = *r
	return nil
}
func (f *fakeRoomRepo) Get(ctx context.Context, id types.RoomID) (*types.Room, error) {
	r, ok := f.rooms[id]
	if !ok {
		return nil, gameerrors.RoomNotFound(string(id))
	}
	cp := r
	return &cp, nil
}
func (f *fakeRoomRepo) Update(ctx context.Context, r *types.Room) error {
	f.rooms[r.RoomID] = *r
	return nil
}

type fakePlayerRepo struct{ players map[types.PlayerID]types.Player }

func newFakePlayerRepo() *fakePlayerRepo {
	return &fakePlayerRepo{players: map[types.PlayerID]types.Player{}}
}

func (f *fakePlayerRepo) Add(ctx context.Context, p *types.Player) error {
	f.players[p.PlayerID] = *p
	return nil
}
func (f *fakePlayerRepo) Get(ctx context.Context, id types.PlayerID) (*types.Player, error) {
	p, ok := f.players[id]
	if !ok {
		return nil, gameerrors.PlayerNotFound(string(id))
	}
	cp := p
	return &cp, nil
}
func (f *fakePlayerRepo) Update(ctx context.Context, p *types.Player) error {
	f.players[p.PlayerID] = *p
	return nil
}
func (f *fakePlayerRepo) GetAllInRoom(ctx context.Context, roomID types.RoomID) ([]types.Player, error) {
	var out []types.Player
	for _, p := range f.players {
		if p.RoomID == roomID {
			out = append(out, p)
		}
	}
	return out, nil
}
func (f *fakePlayerRepo) AllWithDisconnectedSince(ctx context.Context, cutoff time.Time) ([]types.Player, error) {
	return nil, nil
}

type fakeGameStateRepo struct{ states map[types.RoomID]types.GameState }

func newFakeGameStateRepo() *fakeGameStateRepo {
	return &fakeGameStateRepo{states: map[types.RoomID]types.GameState{}}
}

func (f *fakeGameStateRepo) Add(ctx context.Context, gs *types.GameState) error {
	f.states[gs.RoomID] = *gs
	return nil
}
func (f *fakeGameStateRepo) Get(ctx context.Context, id types.RoomID) (*types.GameState, error) {
	gs, ok := f.states[id]
	if !ok {
		return nil, gameerrors.GameStateNotFound(string(id))
	}
	cp := gs
	return &cp, nil
}
func (f *fakeGameStateRepo) Update(ctx context.Context, gs *types.GameState) error {
	f.states[gs.RoomID] = *gs
	return nil
}

type fakeCatalogEngine struct{}

func (fakeCatalogEngine) FetchRounds(ctx context.Context, source fibbingit.QuestionSource, players []types.Player) (types.FibbingItRounds, error) {
	return types.FibbingItRounds{
		Opinion:  []types.FibbingItQuestion{{Question: "q-op", FibberQuestion: "fq-op", Answers: []string{"a", "b"}}},
		Likely:   []types.FibbingItQuestion{{Question: "q-li", Answers: []string{"Alice", "Bob"}}},
		FreeForm: []types.FibbingItQuestion{{Question: "q-ff", FibberQuestion: "fq-ff"}},
	}, nil
}

type fakeGameCatalog struct{}

func (fakeGameCatalog) GetGame(ctx context.Context, gameName string) (catalog.Game, error) {
	return catalog.Game{Name: gameName, Enabled: true, MinimumPlayers: 1, MaximumPlayers: 10}, nil
}
func (fakeGameCatalog) GetRandomGroups(ctx context.Context, gameName, questionType string, count int) (catalog.QuestionGroups, error) {
	return catalog.QuestionGroups{}, nil
}
func (fakeGameCatalog) GetRandomQuestions(ctx context.Context, gameName, questionType, group string, count int) ([]catalog.Question, error) {
	return nil, nil
}

func newTestDeps(t *testing.T) (*Deps, *fakeRoomRepo, *fakePlayerRepo) {
	t.Helper()
	roomRepo := newFakeRoomRepo()
	playerRepo := newFakePlayerRepo()
	gsRepo := newFakeGameStateRepo()

	playerSvc := player.New(playerRepo)
	gsSvc := gamestate.New(gsRepo, fibbingit.Engine{})
	roomSvc := room.New(roomRepo, gsSvc)
	lobbySvc := lobby.New(playerSvc, roomSvc, gsSvc, fakeGameCatalog{}, fakeCatalogEngine{})

	deps := NewDeps(roomSvc, playerSvc, gsSvc, lobbySvc, fibbingit.Engine{}, 300)
	return deps, roomRepo, playerRepo
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHandleCreateRoomEmitsRoomCreated(t *testing.T) {
	deps, _, _ := newTestDeps(t)

	responses, err := deps.handleCreateRoom(t.Context(), dispatch.HandlerContext{SessionID: "sid-1"}, nil)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "ROOM_CREATED", responses[0].Event)
}

func TestHandleJoinRoomRegistersSessionAndReturnsPlayerID(t *testing.T) {
	deps, roomRepo, _ := newTestDeps(t)
	roomRepo.rooms["room-1"] = types.Room{RoomID: "room-1", State: types.RoomStateCreated}

	payload := rawJSON(t, joinRoomPayload{RoomCode: "room-1", Nickname: "Alice"})
	responses, err := deps.handleJoinRoom(t.Context(), dispatch.HandlerContext{SessionID: "sid-1"}, payload)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "NEW_ROOM_JOINED", responses[0].Event)

	playerID, ok := deps.sessions.get("sid-1")
	require.True(t, ok)
	assert.NotEmpty(t, playerID)
}

func TestHandleJoinRoomRejectsDuplicateNickname(t *testing.T) {
	deps, roomRepo, _ := newTestDeps(t)
	roomRepo.rooms["room-1"] = types.Room{RoomID: "room-1", State: types.RoomStateCreated}

	payload := rawJSON(t, joinRoomPayload{RoomCode: "room-1", Nickname: "Alice"})
	_, err := deps.handleJoinRoom(t.Context(), dispatch.HandlerContext{SessionID: "sid-1"}, payload)
	require.NoError(t, err)

	_, err = deps.handleJoinRoom(t.Context(), dispatch.HandlerContext{SessionID: "sid-2"}, payload)
	require.Error(t, err)
}

func TestHandleJoinRoomMalformedPayloadReturnsServerError(t *testing.T) {
	deps, roomRepo, _ := newTestDeps(t)
	roomRepo.rooms["room-1"] = types.Room{RoomID: "room-1", State: types.RoomStateCreated}

	malformed := json.RawMessage(`{"room_code": 123}`)
	_, err := deps.handleJoinRoom(t.Context(), dispatch.HandlerContext{SessionID: "sid-1"}, malformed)
	require.Error(t, err)

	var coded gameerrors.Coded
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, gameerrors.ServerErrorCode, coded.Code())
}

func TestHandleKickPlayerRequiresResolvedSession(t *testing.T) {
	deps, roomRepo, _ := newTestDeps(t)
	roomRepo.rooms["room-1"] = types.Room{RoomID: "room-1", State: types.RoomStateCreated}

	payload := rawJSON(t, kickPlayerPayload{Nickname: "Bob"})
	_, err := deps.handleKickPlayer(t.Context(), dispatch.HandlerContext{SessionID: "sid-unknown", RoomID: "room-1"}, payload)
	require.Error(t, err)
}

func TestHandleSubmitAnswerFlow(t *testing.T) {
	deps, roomRepo, playerRepo := newTestDeps(t)
	roomRepo.rooms["room-1"] = types.Room{RoomID: "room-1", State: types.RoomStateCreated}

	joinPayload := rawJSON(t, joinRoomPayload{RoomCode: "room-1", Nickname: "Alice"})
	hostResp, err := deps.handleJoinRoom(t.Context(), dispatch.HandlerContext{SessionID: "sid-1"}, joinPayload)
	require.NoError(t, err)
	hostID := hostResp[0].Payload.(map[string]types.PlayerID)["player_id"]

	joinPayload2 := rawJSON(t, joinRoomPayload{RoomCode: "room-1", Nickname: "Bob"})
	_, err = deps.handleJoinRoom(t.Context(), dispatch.HandlerContext{SessionID: "sid-2"}, joinPayload2)
	require.NoError(t, err)

	startPayload := rawJSON(t, startGamePayload{GameName: "fibbing_it"})
	_, err = deps.handleStartGame(t.Context(), dispatch.HandlerContext{SessionID: "sid-1", RoomID: "room-1"}, startPayload)
	require.NoError(t, err)

	gs, err := deps.GameState.Get(t.Context(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, types.ActionShowQuestion, gs.Action)

	_, err = deps.GameState.GetNextQuestion(t.Context(), "room-1")
	require.NoError(t, err)

	answerPayload := rawJSON(t, submitAnswerPayload{Answer: "a"})
	_, err = deps.handleSubmitAnswer(t.Context(), dispatch.HandlerContext{SessionID: "sid-1", RoomID: "room-1"}, answerPayload)
	require.NoError(t, err)
	_ = playerRepo
	_ = hostID
}

func TestHandlePauseGameRequiresHost(t *testing.T) {
	deps, roomRepo, _ := newTestDeps(t)
	roomRepo.rooms["room-1"] = types.Room{RoomID: "room-1", State: types.RoomStateCreated}

	joinPayload := rawJSON(t, joinRoomPayload{RoomCode: "room-1", Nickname: "Alice"})
	_, err := deps.handleJoinRoom(t.Context(), dispatch.HandlerContext{SessionID: "sid-1"}, joinPayload)
	require.NoError(t, err)

	joinPayload2 := rawJSON(t, joinRoomPayload{RoomCode: "room-1", Nickname: "Bob"})
	_, err = deps.handleJoinRoom(t.Context(), dispatch.HandlerContext{SessionID: "sid-2"}, joinPayload2)
	require.NoError(t, err)

	startPayload := rawJSON(t, startGamePayload{GameName: "fibbing_it"})
	_, err = deps.handleStartGame(t.Context(), dispatch.HandlerContext{SessionID: "sid-1", RoomID: "room-1"}, startPayload)
	require.NoError(t, err)

	_, err = deps.handlePauseGame(t.Context(), dispatch.HandlerContext{SessionID: "sid-2", RoomID: "room-1"}, nil)
	require.Error(t, err)

	_, err = deps.handlePauseGame(t.Context(), dispatch.HandlerContext{SessionID: "sid-1", RoomID: "room-1"}, nil)
	require.NoError(t, err)
}
