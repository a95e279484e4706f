package gamestate

import (
	"context"
	"testing"
	"time"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/fibbingit"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gameerrors"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	states map[types.RoomID]types.GameState
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{states: map[types.RoomID]types.GameState{}}
}

func (f *fakeRepo) Add(ctx context.Context, gs *types.GameState) error {
	f.states[gs.RoomID] = *gs
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, roomID types.RoomID) (*types.GameState, error) {
	gs, ok := f.states[roomID]
	if !ok {
		return nil, gameerrors.GameStateNotFound(string(roomID))
	}
	cp := gs
	return &cp, nil
}

func (f *fakeRepo) Update(ctx context.Context, gs *types.GameState) error {
	f.states[gs.RoomID] = *gs
	return nil
}

func samplePlayers() []types.Player {
	return []types.Player{
		{PlayerID: "p1", Nickname: "Alice"},
		{PlayerID: "p2", Nickname: "Bob"},
	}
}

func sampleRounds() types.FibbingItRounds {
	return types.FibbingItRounds{
		Opinion:  []types.FibbingItQuestion{{Question: "q-op-1", FibberQuestion: "fq-op-1", Answers: []string{"a", "b"}}},
		Likely:   []types.FibbingItQuestion{{Question: "q-li-1", Answers: []string{"Alice", "Bob"}}},
		FreeForm: []types.FibbingItQuestion{{Question: "q-ff-1", FibberQuestion: "fq-ff-1"}},
	}
}

func TestCreateRejectsUnknownGame(t *testing.T) {
	svc := New(newFakeRepo(), fibbingit.Engine{})

	_, err := svc.Create(t.Context(), "room-1", "not_fibbing_it", samplePlayers(), sampleRounds())
	require.Error(t, err)
	coded, ok := err.(gameerrors.Coded)
	require.True(t, ok)
	assert.Equal(t, "game_not_found", coded.Code())
}

func TestCreatePersistsStartingState(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, fibbingit.Engine{})

	gs, err := svc.Create(t.Context(), "room-1", "fibbing_it", samplePlayers(), sampleRounds())
	require.NoError(t, err)
	assert.Equal(t, types.ActionShowQuestion, gs.Action)
	assert.Equal(t, -1, gs.State.QuestionNb)
	assert.Len(t, gs.PlayerScores, 2)
}

func TestGetNextQuestionAdvancesAndArmsDeadline(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, fibbingit.Engine{})
	gs, err := svc.Create(t.Context(), "room-1", "fibbing_it", samplePlayers(), sampleRounds())
	require.NoError(t, err)
	require.NoError(t, repo.Update(t.Context(), gs))

	result, err := svc.GetNextQuestion(t.Context(), "room-1")
	require.NoError(t, err)
	assert.True(t, result.RoundChanged)
	assert.Equal(t, types.RoundOpinion, result.NewRound)
	require.NotNil(t, result.NextQuestion)
	assert.Equal(t, 30, result.TimerInSeconds)

	stored, err := svc.Get(t.Context(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, types.ActionSubmitAnswers, stored.Action)
	require.NotNil(t, stored.ActionCompletedBy)
}

func TestGetNextQuestionRejectsWrongAction(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, fibbingit.Engine{})
	gs, _ := svc.Create(t.Context(), "room-1", "fibbing_it", samplePlayers(), sampleRounds())
	gs.Action = types.ActionSubmitAnswers
	require.NoError(t, repo.Update(t.Context(), gs))

	_, err := svc.GetNextQuestion(t.Context(), "room-1")
	require.Error(t, err)
}

func TestGetNextQuestionRejectsWhenPaused(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, fibbingit.Engine{})
	gs, _ := svc.Create(t.Context(), "room-1", "fibbing_it", samplePlayers(), sampleRounds())
	past := time.Now().Add(-time.Minute)
	gs.Paused = types.Paused{IsPaused: true, PausedStoppedAt: &past}
	require.NoError(t, repo.Update(t.Context(), gs))

	_, err := svc.GetNextQuestion(t.Context(), "room-1")
	require.Error(t, err)
	coded, ok := err.(gameerrors.Coded)
	require.True(t, ok)
	assert.Equal(t, "game_is_paused", coded.Code())
}

func TestPauseGameRejectsDoublePauseWithoutDisconnect(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, fibbingit.Engine{})
	gs, _ := svc.Create(t.Context(), "room-1", "fibbing_it", samplePlayers(), sampleRounds())
	require.NoError(t, repo.Update(t.Context(), gs))

	_, err := svc.PauseGame(t.Context(), "room-1", nil)
	require.NoError(t, err)

	_, err = svc.PauseGame(t.Context(), "room-1", nil)
	require.Error(t, err)
}

func TestPauseGameAppendsDisconnectedPlayerEvenIfAlreadyPaused(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, fibbingit.Engine{})
	gs, _ := svc.Create(t.Context(), "room-1", "fibbing_it", samplePlayers(), sampleRounds())
	require.NoError(t, repo.Update(t.Context(), gs))

	_, err := svc.PauseGame(t.Context(), "room-1", nil)
	require.NoError(t, err)

	p1 := types.PlayerID("p1")
	seconds, err := svc.PauseGame(t.Context(), "room-1", &p1)
	require.NoError(t, err)
	assert.Equal(t, 300, seconds)

	stored, err := svc.Get(t.Context(), "room-1")
	require.NoError(t, err)
	assert.Contains(t, stored.Paused.WaitingForPlayers, p1)
}

func TestUnpauseGameClearsWhenNoOneWaiting(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, fibbingit.Engine{})
	gs, _ := svc.Create(t.Context(), "room-1", "fibbing_it", samplePlayers(), sampleRounds())
	require.NoError(t, repo.Update(t.Context(), gs))

	p1 := types.PlayerID("p1")
	_, err := svc.PauseGame(t.Context(), "room-1", &p1)
	require.NoError(t, err)

	paused, err := svc.UnpauseGame(t.Context(), "room-1", &p1)
	require.NoError(t, err)
	assert.False(t, paused.IsPaused)
	assert.Empty(t, paused.WaitingForPlayers)
}

func TestUnpauseGameKeepsPausedWithRemainingWaiters(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, fibbingit.Engine{})
	gs, _ := svc.Create(t.Context(), "room-1", "fibbing_it", samplePlayers(), sampleRounds())
	require.NoError(t, repo.Update(t.Context(), gs))

	p1 := types.PlayerID("p1")
	p2 := types.PlayerID("p2")
	_, err := svc.PauseGame(t.Context(), "room-1", &p1)
	require.NoError(t, err)
	_, err = svc.PauseGame(t.Context(), "room-1", &p2)
	require.NoError(t, err)

	paused, err := svc.UnpauseGame(t.Context(), "room-1", &p1)
	require.NoError(t, err)
	assert.True(t, paused.IsPaused)
	assert.Equal(t, []types.PlayerID{p2}, paused.WaitingForPlayers)
}

func TestUnpauseGameRejectsWhenNotPaused(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, fibbingit.Engine{})
	gs, _ := svc.Create(t.Context(), "room-1", "fibbing_it", samplePlayers(), sampleRounds())
	require.NoError(t, repo.Update(t.Context(), gs))

	_, err := svc.UnpauseGame(t.Context(), "room-1", nil)
	require.Error(t, err)
}
