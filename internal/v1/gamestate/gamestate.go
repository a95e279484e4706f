// Package gamestate implements the game-state service (component G):
// match creation, question-cursor advance, and the pause/unpause state
// machine that the room service and the disconnect handler drive. Grounded
// on game_state_service.py's store-injection shape, extended with the
// pause/unpause bodies that file leaves abbreviated.
package gamestate

import (
	"context"
	"time"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gameerrors"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
)

// pauseDuration is the fixed pause window (§4.6).
const pauseDuration = 300 * time.Second

// Repo is the persistence contract this service depends on.
type Repo interface {
	Add(ctx context.Context, gs *types.GameState) error
	Get(ctx context.Context, roomID types.RoomID) (*types.GameState, error)
	Update(ctx context.Context, gs *types.GameState) error
}

// Engine is the pure game-logic contract, implemented by fibbingit.Engine.
// Only fibbing_it is supported; Create rejects any other game name.
type Engine interface {
	GetStartingState(players []types.Player, rounds types.FibbingItRounds) types.FibbingItState
	UpdateQuestionState(current types.FibbingItState) (types.FibbingItState, bool)
	GetNextQuestion(state types.FibbingItState) *types.FibbingItQuestion
	GetTimer(round types.Round, action types.Action) int
	HasRoundChanged(state types.FibbingItState, oldRound, newRound types.Round) bool
	GetNextAction(current types.Action) types.Action
}

const fibbingItGameName = "fibbing_it"

// Service implements the game-state operations of §4.6.
type Service struct {
	repo   Repo
	engine Engine
	now    func() time.Time
}

// New builds a Service over repo using engine for the game logic. engine is
// typically a fibbingit.Engine; only "fibbing_it" is a recognized game name.
func New(repo Repo, engine Engine) *Service {
	return &Service{repo: repo, engine: engine, now: time.Now}
}

// Create builds and persists the starting game state for roomID. gameName
// must be "fibbing_it"; rounds must already hold the catalog-drawn
// questions (fetched via fibbingit.Engine.FetchRounds by the caller).
func (s *Service) Create(ctx context.Context, roomID types.RoomID, gameName string, players []types.Player, rounds types.FibbingItRounds) (*types.GameState, error) {
	if gameName != fibbingItGameName {
		return nil, gameerrors.GameNotFound(gameName)
	}

	scores := make([]types.PlayerScore, 0, len(players))
	for _, p := range players {
		scores = append(scores, types.PlayerScore{PlayerID: p.PlayerID})
	}

	gs := &types.GameState{
		RoomID:       roomID,
		GameName:     gameName,
		PlayerScores: scores,
		State:        s.engine.GetStartingState(players, rounds),
		Action:       types.ActionShowQuestion,
	}

	if err := s.repo.Add(ctx, gs); err != nil {
		return nil, err
	}
	return gs, nil
}

// Get fetches the game state for roomID.
func (s *Service) Get(ctx context.Context, roomID types.RoomID) (*types.GameState, error) {
	return s.repo.Get(ctx, roomID)
}

// NextQuestionResult is the response the GET_NEXT_QUESTION handler sends.
type NextQuestionResult struct {
	RoundChanged   bool
	NewRound       types.Round
	NextQuestion   *types.FibbingItQuestion
	TimerInSeconds int
}

// GetNextQuestion advances the question cursor and arms the SUBMIT_ANSWERS
// deadline, persisting the new state.
func (s *Service) GetNextQuestion(ctx context.Context, roomID types.RoomID) (*NextQuestionResult, error) {
	gs, err := s.repo.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if gs.Paused.IsPaused && gs.Paused.PausedStoppedAt != nil && gs.Paused.PausedStoppedAt.Before(now) {
		return nil, gameerrors.GameIsPaused(string(roomID))
	}
	if gs.Action != types.ActionShowQuestion {
		return nil, gameerrors.InvalidGameAction(string(gs.Action))
	}

	oldRound := gs.State.CurrentRound
	nextState, ok := s.engine.UpdateQuestionState(gs.State)
	if !ok {
		return nil, gameerrors.GameStateIsNoneError()
	}
	gs.State = nextState
	if err := s.repo.Update(ctx, gs); err != nil {
		return nil, err
	}

	roundChanged := s.engine.HasRoundChanged(gs.State, oldRound, gs.State.CurrentRound)
	nextQuestion := s.engine.GetNextQuestion(gs.State)
	timer := s.engine.GetTimer(gs.State.CurrentRound, types.ActionSubmitAnswers)

	gs.Action = types.ActionSubmitAnswers
	deadline := now.Add(time.Duration(timer) * time.Second)
	gs.ActionCompletedBy = &deadline
	if err := s.repo.Update(ctx, gs); err != nil {
		return nil, err
	}

	return &NextQuestionResult{
		RoundChanged:   roundChanged,
		NewRound:       gs.State.CurrentRound,
		NextQuestion:   nextQuestion,
		TimerInSeconds: timer,
	}, nil
}

// UpdateState persists a new FibbingIt state for roomID.
func (s *Service) UpdateState(ctx context.Context, gs *types.GameState, state types.FibbingItState) error {
	gs.State = state
	return s.repo.Update(ctx, gs)
}

// UpdateNextAction advances action and arms a new deadline timer seconds
// out, persisting the change.
func (s *Service) UpdateNextAction(ctx context.Context, gs *types.GameState, action types.Action, timer int) error {
	gs.Action = action
	deadline := s.now().Add(time.Duration(timer) * time.Second)
	gs.ActionCompletedBy = &deadline
	return s.repo.Update(ctx, gs)
}

// PauseGame pauses roomID's match for the fixed 300s window, returning the
// pause duration. A nil playerDisconnected is a host-initiated pause via
// PAUSE_GAME; a non-nil one is a disconnect-triggered pause and is appended
// to waiting_for_players even if the match is already paused.
func (s *Service) PauseGame(ctx context.Context, roomID types.RoomID, playerDisconnected *types.PlayerID) (int, error) {
	gs, err := s.repo.Get(ctx, roomID)
	if err != nil {
		return 0, err
	}

	if gs.Paused.IsPaused && playerDisconnected == nil {
		return 0, gameerrors.GameStateAlreadyPaused(string(roomID))
	}

	deadline := s.now().Add(pauseDuration)
	gs.Paused.IsPaused = true
	gs.Paused.PausedStoppedAt = &deadline
	if playerDisconnected != nil {
		gs.Paused.WaitingForPlayers = append(gs.Paused.WaitingForPlayers, *playerDisconnected)
	}

	if err := s.repo.Update(ctx, gs); err != nil {
		return 0, err
	}
	return int(pauseDuration.Seconds()), nil
}

// UnpauseGame removes playerReconnected from waiting_for_players; if others
// remain, the match stays paused with the shrunken set, else it unpauses
// fully. Returns the resulting Paused record.
func (s *Service) UnpauseGame(ctx context.Context, roomID types.RoomID, playerReconnected *types.PlayerID) (types.Paused, error) {
	gs, err := s.repo.Get(ctx, roomID)
	if err != nil {
		return types.Paused{}, err
	}
	if !gs.Paused.IsPaused {
		return types.Paused{}, gameerrors.GameStateNotPaused(string(roomID))
	}

	if playerReconnected != nil {
		waiting := gs.Paused.WaitingForPlayers[:0]
		for _, p := range gs.Paused.WaitingForPlayers {
			if p != *playerReconnected {
				waiting = append(waiting, p)
			}
		}
		gs.Paused.WaitingForPlayers = waiting
	}

	if len(gs.Paused.WaitingForPlayers) == 0 {
		gs.Paused = types.Paused{}
	}

	if err := s.repo.Update(ctx, gs); err != nil {
		return types.Paused{}, err
	}
	return gs.Paused, nil
}
