// Package types defines the shared domain types for the game-session server.
package types

import "time"

// PlayerID uniquely identifies a player across their lifetime in the system.
type PlayerID string

// RoomID uniquely identifies a room. It doubles as the room code a client
// types in to join: there is no separate short-code scheme.
type RoomID string

// SessionID is the opaque per-connection identifier assigned by the transport.
type SessionID string

// RoomState is the lifecycle stage of a Room.
type RoomState string

const (
	RoomStateCreated   RoomState = "CREATED"
	RoomStatePlaying   RoomState = "PLAYING"
	RoomStatePaused    RoomState = "PAUSED"
	RoomStateFinished  RoomState = "FINISHED"
	RoomStateAbandoned RoomState = "ABANDONED"
)

// Joinable reports whether a room in this state accepts JOIN_ROOM.
func (s RoomState) Joinable() bool {
	return s == RoomStateCreated
}

// Rejoinable reports whether a room in this state accepts REJOIN_ROOM.
func (s RoomState) Rejoinable() bool {
	return s == RoomStateCreated || s == RoomStatePlaying || s == RoomStatePaused
}

// RejoinableAndStarted reports whether a rejoining player should receive an
// in-progress question bundle.
func (s RoomState) RejoinableAndStarted() bool {
	return s == RoomStatePlaying || s == RoomStatePaused
}

// Round is one of the three Fibbing It rounds, fixed order opinion -> likely -> free_form.
type Round string

const (
	RoundOpinion  Round = "opinion"
	RoundLikely   Round = "likely"
	RoundFreeForm Round = "free_form"
)

// Rounds lists the fixed round order.
var Rounds = []Round{RoundOpinion, RoundLikely, RoundFreeForm}

// RoundsWithGroups lists the rounds whose questions are drawn from groups.
var RoundsWithGroups = map[Round]bool{RoundOpinion: true, RoundFreeForm: true}

// Action is the current phase of a Fibbing It question cycle.
type Action string

const (
	ActionShowQuestion  Action = "SHOW_QUESTION"
	ActionSubmitAnswers Action = "SUBMIT_ANSWERS"
	ActionVoteOnFibber  Action = "VOTE_ON_FIBBER"
)

// Player is a member of a room.
type Player struct {
	PlayerID       PlayerID   `json:"player_id" bson:"player_id"`
	Nickname       string     `json:"nickname" bson:"nickname"`
	Avatar         []byte     `json:"avatar" bson:"avatar"`
	RoomID         RoomID     `json:"room_id,omitempty" bson:"room_id,omitempty"`
	LatestSID      SessionID  `json:"latest_sid" bson:"latest_sid"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty" bson:"disconnected_at,omitempty"`
}

// InRoom reports whether the player currently belongs to a room.
func (p *Player) InRoom() bool {
	return p.RoomID != ""
}

// Room is a single game-session lobby/match.
type Room struct {
	RoomID      RoomID    `json:"room_id" bson:"room_id"`
	GameName    string    `json:"game_name,omitempty" bson:"game_name,omitempty"`
	Host        PlayerID  `json:"host,omitempty" bson:"host,omitempty"`
	State       RoomState `json:"state" bson:"state"`
	PlayerCount int       `json:"player_count" bson:"player_count"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// HasHost reports whether the room currently has a host assigned.
func (r *Room) HasHost() bool {
	return r.Host != ""
}

// PlayerScore is a player's running score within a game.
type PlayerScore struct {
	PlayerID PlayerID `json:"player_id" bson:"player_id"`
	Score    int      `json:"score" bson:"score"`
}

// Paused describes the room's pause state, including the wall-clock ceiling
// and the set of players the game is waiting to reconnect.
type Paused struct {
	IsPaused          bool       `json:"is_paused" bson:"is_paused"`
	PausedStoppedAt   *time.Time `json:"paused_stopped_at,omitempty" bson:"paused_stopped_at,omitempty"`
	WaitingForPlayers []PlayerID `json:"waiting_for_players" bson:"waiting_for_players"`
}

// FibbingItQuestion is a single question record within a round.
type FibbingItQuestion struct {
	FibberQuestion string   `json:"fibber_question" bson:"fibber_question"`
	Question       string   `json:"question" bson:"question"`
	Answers        []string `json:"answers,omitempty" bson:"answers,omitempty"`
}

// FibbingItRounds holds the drawn questions for all three rounds.
type FibbingItRounds struct {
	Opinion  []FibbingItQuestion `json:"opinion" bson:"opinion"`
	Likely   []FibbingItQuestion `json:"likely" bson:"likely"`
	FreeForm []FibbingItQuestion `json:"free_form" bson:"free_form"`
}

// ForRound returns the question slice for the given round.
func (r *FibbingItRounds) ForRound(round Round) []FibbingItQuestion {
	switch round {
	case RoundOpinion:
		return r.Opinion
	case RoundLikely:
		return r.Likely
	case RoundFreeForm:
		return r.FreeForm
	default:
		return nil
	}
}

// FibbingItQuestionsState wraps the drawn rounds with the players' running answers.
type FibbingItQuestionsState struct {
	Rounds         FibbingItRounds     `json:"rounds" bson:"rounds"`
	CurrentAnswers map[PlayerID]string `json:"current_answers" bson:"current_answers"`
}

// FibbingItState is the game-specific state for a Fibbing It match.
type FibbingItState struct {
	CurrentFibberID PlayerID                `json:"current_fibber_id" bson:"current_fibber_id"`
	CurrentRound    Round                   `json:"current_round" bson:"current_round"`
	Questions       FibbingItQuestionsState `json:"questions" bson:"questions"`
	QuestionNb      int                     `json:"question_nb" bson:"question_nb"`
}

// GameState is the per-room persisted game progress record.
type GameState struct {
	RoomID            RoomID         `json:"room_id" bson:"room_id"`
	GameName          string         `json:"game_name" bson:"game_name"`
	PlayerScores      []PlayerScore  `json:"player_scores" bson:"player_scores"`
	State             FibbingItState `json:"state" bson:"state"`
	Action            Action         `json:"action" bson:"action"`
	ActionCompletedBy *time.Time     `json:"action_completed_by,omitempty" bson:"action_completed_by,omitempty"`
	Paused            Paused         `json:"paused" bson:"paused"`
}
