// Package fibbingit implements the Fibbing It game engine as a set of pure
// functions over types.FibbingItState/types.GameState: starting state
// construction, question-cursor advance, round-change detection, answer
// submission/validation, and timeout fill-in. Apart from FetchRounds
// (questions.go), which draws questions through a QuestionSource, it
// performs no I/O; it holds no mutable state of its own, mirroring the
// teacher's pattern of pushing all game logic into engine.go-style pure
// transforms (§4.5 component F).
package fibbingit

import (
	"math/rand"
	"time"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gameerrors"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
)

// DefaultQuestionsPerRound is how many questions each round serves before
// advancing, matching the default of this server's
// BANTER_BUS_CORE_API_QUESTIONS_PER_ROUND setting.
const DefaultQuestionsPerRound = 3

var timerTable = map[types.Action]map[types.Round]int{
	types.ActionShowQuestion: {
		types.RoundOpinion:  45,
		types.RoundLikely:   30,
		types.RoundFreeForm: 60,
	},
	types.ActionSubmitAnswers: {
		types.RoundOpinion:  30,
		types.RoundLikely:   30,
		types.RoundFreeForm: 30,
	},
	types.ActionVoteOnFibber: {
		types.RoundOpinion:  60,
		types.RoundLikely:   60,
		types.RoundFreeForm: 60,
	},
}

var nextActionTable = map[types.Action]types.Action{
	types.ActionShowQuestion:  types.ActionSubmitAnswers,
	types.ActionSubmitAnswers: types.ActionVoteOnFibber,
	types.ActionVoteOnFibber:  types.ActionShowQuestion,
}

// Engine holds the one configurable knob, questions per round. The
// per-round/action timers are a fixed package table, not Engine fields.
// Zero value is ready to use with the defaults.
type Engine struct {
	// QuestionsPerRound is how many questions each round serves. Zero means
	// DefaultQuestionsPerRound.
	QuestionsPerRound int
}

func (e Engine) questionsPerRoundIndex() int {
	n := e.QuestionsPerRound
	if n == 0 {
		n = DefaultQuestionsPerRound
	}
	return n - 1
}

// GetStartingState builds the initial FibbingItState for a new match: a
// random fibber and the first round (opinion) with the cursor at -1, before
// its first question (UpdateQuestionState moves it to zero). rounds must
// already be populated with questions fetched from the catalog.
func (e Engine) GetStartingState(players []types.Player, rounds types.FibbingItRounds) types.FibbingItState {
	fibber := players[rand.Intn(len(players))]

	return types.FibbingItState{
		CurrentFibberID: fibber.PlayerID,
		CurrentRound:    types.Rounds[0],
		QuestionNb:      -1,
		Questions: types.FibbingItQuestionsState{
			Rounds:         rounds,
			CurrentAnswers: map[types.PlayerID]string{},
		},
	}
}

// UpdateQuestionState advances the question cursor, rolling over to the
// next round when the current round is exhausted. It returns ok=false when
// the match has finished (the free_form round just completed its last
// question).
func (e Engine) UpdateQuestionState(current types.FibbingItState) (types.FibbingItState, bool) {
	next := current
	idx := e.questionsPerRoundIndex()

	if current.QuestionNb == idx {
		roundIdx := roundIndex(current.CurrentRound)
		if roundIdx == len(types.Rounds)-1 {
			return types.FibbingItState{}, false
		}
		next.CurrentRound = types.Rounds[roundIdx+1]
		next.QuestionNb = 0
	} else {
		next.QuestionNb = current.QuestionNb + 1
	}

	return next, true
}

func roundIndex(round types.Round) int {
	for i, r := range types.Rounds {
		if r == round {
			return i
		}
	}
	return -1
}

// GetNextQuestion returns the question at the current cursor position. It
// returns nil when the cursor is on the free_form round's last question
// index, or when the cursor is outside the current round's question slice.
func (e Engine) GetNextQuestion(state types.FibbingItState) *types.FibbingItQuestion {
	idx := e.questionsPerRoundIndex()
	if state.CurrentRound == types.RoundFreeForm && state.QuestionNb == idx {
		return nil
	}

	questions := state.Questions.Rounds.ForRound(state.CurrentRound)
	if state.QuestionNb < 0 || state.QuestionNb >= len(questions) {
		return nil
	}
	q := questions[state.QuestionNb]
	return &q
}

// GetTimer returns how many seconds the given action has to complete in
// the given round.
func (e Engine) GetTimer(round types.Round, action types.Action) int {
	return timerTable[action][round]
}

// HasRoundChanged reports whether a round boundary was just crossed: either
// the very first question of the match, or a transition to a new round.
func (e Engine) HasRoundChanged(state types.FibbingItState, oldRound, newRound types.Round) bool {
	if state.CurrentRound == types.RoundOpinion && state.QuestionNb == 0 {
		return true
	}
	return oldRound != newRound
}

// GetNextAction returns the action that follows current in the fixed cycle
// SHOW_QUESTION -> SUBMIT_ANSWERS -> VOTE_ON_FIBBER -> SHOW_QUESTION.
func (e Engine) GetNextAction(current types.Action) types.Action {
	return nextActionTable[current]
}

// SubmitAnswers validates and records a player's answer for the question
// currently on the clock, returning the updated state. It rejects answers
// submitted outside the SUBMIT_ANSWERS action, after the deadline, or that
// fail per-round validation (opinion answers must come from the question's
// offered answers, likely answers must be one of playerIDs, free_form
// answers must be at most 250 characters).
func (e Engine) SubmitAnswers(gs types.GameState, playerIDs []types.PlayerID, playerID types.PlayerID, answer string, now time.Time) (types.FibbingItState, error) {
	if gs.Action != types.ActionSubmitAnswers {
		return types.FibbingItState{}, gameerrors.InvalidGameAction(string(gs.Action))
	}
	if gs.ActionCompletedBy == nil {
		return types.FibbingItState{}, gameerrors.InvalidGameState()
	}
	if !gs.ActionCompletedBy.After(now) {
		return types.FibbingItState{}, gameerrors.ActionTimedOut(now.Unix(), gs.ActionCompletedBy.Unix())
	}

	state := gs.State

	switch state.CurrentRound {
	case types.RoundFreeForm:
		if len(answer) > 250 {
			return types.FibbingItState{}, gameerrors.InvalidAnswer(answer)
		}
	case types.RoundOpinion:
		question := e.GetNextQuestion(state)
		if question != nil && len(question.Answers) > 0 && !contains(question.Answers, answer) {
			return types.FibbingItState{}, gameerrors.InvalidAnswer(answer)
		}
	case types.RoundLikely:
		if !containsPlayer(playerIDs, types.PlayerID(answer)) {
			return types.FibbingItState{}, gameerrors.InvalidAnswer(answer)
		}
	}

	if state.Questions.CurrentAnswers == nil {
		state.Questions.CurrentAnswers = map[types.PlayerID]string{}
	}
	state.Questions.CurrentAnswers[playerID] = answer
	return state, nil
}

// SelectRandomAnswer fills in an answer for every player in playerIDs who
// has not yet submitted one, used when the SUBMIT_ANSWERS timer runs out.
// It requires the timer to have actually elapsed.
func (e Engine) SelectRandomAnswer(gs types.GameState, playerIDs []types.PlayerID, now time.Time) (types.FibbingItState, error) {
	if gs.Action != types.ActionSubmitAnswers {
		return types.FibbingItState{}, gameerrors.InvalidGameAction(string(gs.Action))
	}
	if gs.ActionCompletedBy == nil {
		return types.FibbingItState{}, gameerrors.InvalidGameState()
	}
	if gs.ActionCompletedBy.After(now) {
		return types.FibbingItState{}, gameerrors.ActionNotTimedOut()
	}

	state := gs.State
	if state.Questions.CurrentAnswers == nil {
		state.Questions.CurrentAnswers = map[types.PlayerID]string{}
	}

	for _, playerID := range playerIDs {
		if state.Questions.CurrentAnswers[playerID] != "" {
			continue
		}

		switch state.CurrentRound {
		case types.RoundFreeForm:
			state.Questions.CurrentAnswers[playerID] = ""
		case types.RoundLikely, types.RoundOpinion:
			question := e.GetNextQuestion(state)
			if question == nil || len(question.Answers) == 0 {
				return types.FibbingItState{}, gameerrors.NoAnswersFound(state.QuestionNb)
			}
			state.Questions.CurrentAnswers[playerID] = question.Answers[rand.Intn(len(question.Answers))]
		}
	}

	return state, nil
}

// GetPlayerAnswers maps the current round's answers from player id to
// nickname, the shape the transport layer sends to clients.
func (e Engine) GetPlayerAnswers(state types.FibbingItState, playerNicknames map[types.PlayerID]string) map[string]string {
	out := make(map[string]string, len(playerNicknames))
	for playerID, nickname := range playerNicknames {
		out[nickname] = state.Questions.CurrentAnswers[playerID]
	}
	return out
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

func containsPlayer(haystack []types.PlayerID, needle types.PlayerID) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
